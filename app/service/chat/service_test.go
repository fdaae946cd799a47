package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"agrosmi/app/service/conversation"
	"agrosmi/app/service/history"
	"agrosmi/app/service/orchestrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoRunner finishes every turn the way the controller does: one responder
// contribution and one supervisor reply.
type echoRunner struct {
	states []*conversation.State
}

func (e *echoRunner) Run(_ context.Context, st *conversation.State) orchestrator.Result {
	e.states = append(e.states, st)

	st.Append(conversation.NewMessage("water", conversation.Text("contribución interna")))
	reply := conversation.NewMessage(conversation.SenderSupervisor, conversation.Text("respuesta: "+st.UserQuery()))
	st.Append(reply)

	return orchestrator.Result{Reply: reply}
}

type brokenStore struct{}

func (brokenStore) LoadRecent(context.Context, string, int) ([]conversation.Message, error) {
	return nil, errors.New("disk failure")
}

func (brokenStore) Append(context.Context, string, ...conversation.Message) error {
	return errors.New("disk failure")
}

func newService(t *testing.T) (*Service, *echoRunner, history.Store) {
	t.Helper()

	store, err := history.NewFileStore(t.TempDir())
	require.NoError(t, err)

	runner := &echoRunner{}

	return NewService(runner, store, 10), runner, store
}

func TestHandleTurn(t *testing.T) {
	svc, runner, store := newService(t)
	ctx := context.Background()

	previous := conversation.NewMessage(conversation.SenderUser, conversation.Text("hola"))
	require.NoError(t, store.Append(ctx, "u1", previous))

	reply, err := svc.HandleTurn(ctx, " u1 ", "  ¿Necesito regar?  ", nil)
	require.NoError(t, err)

	assert.Equal(t, "respuesta: ¿Necesito regar?", reply.Reply.Content.Text)
	assert.NotEmpty(t, reply.TurnID)

	require.Len(t, runner.states, 1)
	assert.Equal(t, "u1", runner.states[0].UserID)
	require.Len(t, runner.states[0].History(), 1)

	require.Len(t, reply.History, 3)
	assert.Equal(t, previous.ID, reply.History[0].ID)
	assert.True(t, reply.History[1].FromUser())
	assert.Equal(t, reply.Reply.ID, reply.History[2].ID)
}

func TestHandleTurnDetectsImageType(t *testing.T) {
	svc, runner, _ := newService(t)

	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0}
	attachment := &conversation.Attachment{Data: png}
	_, err := svc.HandleTurn(context.Background(), "u1", "", attachment)
	require.NoError(t, err)

	st := runner.states[0]
	require.True(t, st.HasAttachment())
	assert.Equal(t, "image/png", st.Attachment().MIMEType)
	assert.Empty(t, attachment.MIMEType)
	assert.NotSame(t, attachment, st.Attachment())
}

func TestHandleTurnValidation(t *testing.T) {
	svc, runner, _ := newService(t)

	tests := []struct {
		name       string
		userID     string
		text       string
		attachment *conversation.Attachment
	}{
		{"no user", "  ", "hola", nil},
		{"empty turn", "u1", "   ", nil},
		{"empty attachment", "u1", "", &conversation.Attachment{}},
		{"too long", "u1", strings.Repeat("a", maxTextLength+1), nil},
		{"not an image", "u1", "mira", &conversation.Attachment{Data: []byte("%PDF-1.4"), MIMEType: "application/pdf"}},
		{"too large", "u1", "mira", &conversation.Attachment{Data: make([]byte, maxImageSize+1), MIMEType: "image/jpeg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.HandleTurn(context.Background(), tt.userID, tt.text, tt.attachment)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	assert.Empty(t, runner.states)
}

func TestHandleTurnStoreFailure(t *testing.T) {
	runner := &echoRunner{}
	svc := NewService(runner, brokenStore{}, 10)

	reply, err := svc.HandleTurn(context.Background(), "u1", "hola", nil)
	require.NoError(t, err)
	assert.Equal(t, "respuesta: hola", reply.Reply.Content.Text)
}

func TestHistoryWelcome(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()

	messages, err := svc.History(ctx, "u9")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, WelcomeText, messages[0].Content.Text)
	assert.Equal(t, conversation.SenderSupervisor, messages[0].Sender)

	again, err := svc.History(ctx, "u9")
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, messages[0].ID, again[0].ID)

	persisted, err := store.LoadRecent(ctx, "u9", 10)
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestHistoryValidation(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.History(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidInput)
}
