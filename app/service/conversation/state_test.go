package conversation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateAppendsUserInput(t *testing.T) {
	history := []Message{
		NewMessage(SenderUser, Text("hola")),
		NewMessage(SenderSupervisor, Text("¡Hola! ¿En qué puedo ayudarte?")),
	}

	st := NewState("42", history, "¿Necesito regar mi parcela 3?", nil)

	require.Len(t, st.Messages(), 3)
	assert.NotEmpty(t, st.TurnID)
	assert.False(t, st.HasAttachment())
	assert.Equal(t, "¿Necesito regar mi parcela 3?", st.UserQuery())
	assert.Len(t, st.TurnMessages(), 1)
	assert.Len(t, st.History(), 2)

	// the caller's slice is never aliased
	history[0].Content.Text = "changed"
	assert.Equal(t, "hola", st.Messages()[0].Content.Text)
}

func TestNewStateWithAttachment(t *testing.T) {
	att := &Attachment{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}

	st := NewState("42", nil, "¿Qué tiene mi hoja?", att)

	require.True(t, st.HasAttachment())
	msg, ok := st.LastMessage()
	require.True(t, ok)
	assert.Equal(t, ContentImage, msg.Content.Kind)
	require.NotNil(t, msg.Content.Image)
	assert.Equal(t, att.Ref(), msg.Content.Image.Ref)
	assert.Len(t, msg.Content.Image.Ref, 64)
	assert.Equal(t, 3, msg.Content.Image.Size)
}

func TestNewStateIgnoresEmptyAttachment(t *testing.T) {
	st := NewState("42", nil, "hola", &Attachment{MIMEType: "image/png"})
	assert.False(t, st.HasAttachment())
}

func TestVisitedAndReset(t *testing.T) {
	st := NewState("1", nil, "precio del café", nil)

	assert.Equal(t, "", st.LastVisited())

	st.Visit("supply_chain")
	st.Visit("risk")
	st.SetHint("revisar heladas")

	assert.True(t, st.HasVisited("risk"))
	assert.False(t, st.HasVisited("water"))
	assert.Equal(t, "risk", st.LastVisited())
	if diff := cmp.Diff([]string{"supply_chain", "risk"}, st.Visited()); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}

	st.Reset()

	assert.Empty(t, st.Visited())
	assert.Empty(t, st.PendingHint())
	assert.Equal(t, []string{"revisar heladas"}, st.Hints())
}

func TestContributionsKeepOrder(t *testing.T) {
	st := NewState("1", []Message{NewMessage("water", Text("respuesta vieja"))}, "consulta", nil)
	st.Append(NewMessage("water", Text("uno")))
	st.Append(NewMessage("production", Text("dos")))
	st.Append(NewMessage(SenderSupervisor, Text("final")))

	got := make([]string, 0)
	for _, m := range st.Contributions() {
		got = append(got, m.Content.Text)
	}

	assert.Equal(t, []string{"uno", "dos"}, got)
}

func TestFormatTranscript(t *testing.T) {
	assert.Equal(t, noMessages, FormatTranscript(nil))

	msg := NewMessage(SenderUser, Image("mira", ImageRef{Ref: "abc"}))
	out := FormatTranscript([]Message{msg})
	assert.Contains(t, out, "user: mira [imagen adjunta]")
}

func TestTrim(t *testing.T) {
	msgs := []Message{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	assert.Len(t, Trim(msgs, 10), 3)
	assert.Equal(t, "2", Trim(msgs, 2)[0].ID)
	assert.Len(t, Trim(msgs, 0), 3)
}
