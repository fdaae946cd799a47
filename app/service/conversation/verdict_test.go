package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerdictValidate(t *testing.T) {
	tests := []struct {
		name    string
		verdict Verdict
		wantErr error
	}{
		{
			name:    "route",
			verdict: Verdict{Next: "water", HintForNext: "parcela 3"},
		},
		{
			name:    "finish",
			verdict: Verdict{Next: Finish, FinalReply: "Riega 20 litros."},
		},
		{
			name:    "missing next",
			verdict: Verdict{FinalReply: "hola"},
			wantErr: ErrMissingNext,
		},
		{
			name:    "blank next",
			verdict: Verdict{Next: "   "},
			wantErr: ErrMissingNext,
		},
		{
			name:    "finish without reply",
			verdict: Verdict{Next: Finish, FinalReply: "  "},
			wantErr: ErrEmptyFinalReply,
		},
		{
			name:    "route with reply",
			verdict: Verdict{Next: "risk", FinalReply: "listo"},
			wantErr: ErrUnexpectedFinish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.verdict.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSafeVerdictIsValidTerminal(t *testing.T) {
	v := SafeVerdict()

	require.NoError(t, v.Validate())
	assert.True(t, v.Terminal())
	assert.Equal(t, SourceFailure, v.Source)
	assert.Equal(t, Apology, v.FinalReply)
}
