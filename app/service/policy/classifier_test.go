package policy

import (
	"context"
	"errors"
	"testing"

	"agrosmi/app/service/capability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordClassifier(t *testing.T) {
	k := NewKeywordClassifier()

	tests := []struct {
		text string
		want []string
	}{
		{"Aplique CLORPIRIFÓS y glifosato.", []string{"clorpirifos", "glifosato"}},
		{"Use insecticidas de contacto.", []string{"insecticida"}},
		{"Aplicar químico al suelo", []string{"aplicar quimico"}},
		{"Compost y rotación.", nil},
		{"El xpreimidacloprid no existe", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := k.Classify(context.Background(), tt.text)
			require.NoError(t, err)

			var names []string
			for _, s := range got {
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestKeywordClassifierCategory(t *testing.T) {
	got, err := NewKeywordClassifier().Classify(context.Background(), "paraquat")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ia", got[0].Category)
	assert.InDelta(t, 62.1, got[0].EIQ, 1e-9)
}

func newClassifierSet(t *testing.T, call func(ctx context.Context, args capability.ClassifySubstancesArgs) (any, error)) *capability.Set {
	t.Helper()

	catalog, err := capability.NewCatalog()
	require.NoError(t, err)

	registry := capability.NewRegistry(catalog)
	if call != nil {
		require.NoError(t, registry.Bind(capability.ClassifySubstances,
			capability.Typed(capability.ClassifySubstances, "test", call)))
	}

	set, err := registry.Set(capability.ClassifySubstances)
	require.NoError(t, err)

	return set
}

func TestCapabilityClassifier(t *testing.T) {
	set := newClassifierSet(t, func(_ context.Context, args capability.ClassifySubstancesArgs) (any, error) {
		return classification{Substances: []Substance{{Name: "remote-" + args.Text}}}, nil
	})

	got, err := NewCapabilityClassifier(set, nil).Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []Substance{{Name: "remote-x"}}, got)
}

func TestCapabilityClassifierFallback(t *testing.T) {
	set := newClassifierSet(t, func(context.Context, capability.ClassifySubstancesArgs) (any, error) {
		return nil, errors.New("quota exceeded")
	})

	got, err := NewCapabilityClassifier(set, NewKeywordClassifier()).Classify(context.Background(), "usar paraquat")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "paraquat", got[0].Name)

	unbound := newClassifierSet(t, nil)
	_, err = NewCapabilityClassifier(unbound, nil).Classify(context.Background(), "usar paraquat")
	require.Error(t, err)
}

func TestLocalTool(t *testing.T) {
	set := newClassifierSet(t, LocalTool(NewKeywordClassifier()))

	got, err := NewCapabilityClassifier(set, nil).Classify(context.Background(), "mancozeb al 2%")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "II", got[0].Category)

	got, err = NewCapabilityClassifier(set, nil).Classify(context.Background(), "nada")
	require.NoError(t, err)
	assert.Empty(t, got)
}
