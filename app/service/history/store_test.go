package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"agrosmi/app/service/conversation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	file, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Shutdown()
	})

	return map[string]Store{
		"file":   file,
		"sqlite": db,
	}
}

func message(sender, text string, at time.Time) conversation.Message {
	msg := conversation.NewMessage(sender, conversation.Text(text))
	msg.CreatedAt = at

	return msg
}

func TestStoreAppendAndLoad(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := store.LoadRecent(ctx, "u1", 10)
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, store.Append(ctx, "u1",
				message(conversation.SenderUser, "¿Cuánto riego?", base),
				message(conversation.SenderSupervisor, "Riega 20 mm.", base.Add(time.Second)),
			))
			require.NoError(t, store.Append(ctx, "u2", message(conversation.SenderUser, "hola", base)))
			require.NoError(t, store.Append(ctx, "u1", message(conversation.SenderUser, "gracias", base.Add(2*time.Second))))
			require.NoError(t, store.Append(ctx, "u1"))

			all, err := store.LoadRecent(ctx, "u1", 10)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "¿Cuánto riego?", all[0].Content.Text)
			assert.Equal(t, "gracias", all[2].Content.Text)
			assert.Equal(t, conversation.SenderSupervisor, all[1].Sender)
			assert.True(t, all[1].CreatedAt.Equal(base.Add(time.Second)))

			recent, err := store.LoadRecent(ctx, "u1", 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "Riega 20 mm.", recent[0].Content.Text)
			assert.Equal(t, "gracias", recent[1].Content.Text)
		})
	}
}

func TestStoreKeepsImageReference(t *testing.T) {
	attachment := &conversation.Attachment{Data: []byte("jpeg bytes"), MIMEType: "image/jpeg"}

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			msg := conversation.NewMessage(conversation.SenderUser, conversation.Image("mira", attachment.ImageRef()))
			require.NoError(t, store.Append(ctx, "u1", msg))

			loaded, err := store.LoadRecent(ctx, "u1", 1)
			require.NoError(t, err)
			require.Len(t, loaded, 1)

			assert.Equal(t, conversation.ContentImage, loaded[0].Content.Kind)
			require.NotNil(t, loaded[0].Content.Image)
			assert.Equal(t, attachment.Ref(), loaded[0].Content.Image.Ref)
		})
	}
}

func TestFileStorePath(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "farmer_42.jsonl", filepath.Base(store.path("farmer_42")))

	escaped := filepath.Base(store.path("../../etc/passwd"))
	assert.NotContains(t, escaped, "..")
	assert.Len(t, escaped, 32+len(".jsonl"))
}

func TestSQLiteDuplicateID(t *testing.T) {
	store, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Shutdown()

	msg := conversation.NewMessage(conversation.SenderUser, conversation.Text("hola"))
	require.NoError(t, store.Append(context.Background(), "u1", msg))
	require.Error(t, store.Append(context.Background(), "u1", msg))

	loaded, err := store.LoadRecent(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}
