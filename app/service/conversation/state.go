package conversation

import (
	"slices"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
)

// State is the record shared by every node during one turn. It is owned by a
// single turn controller and is not safe for concurrent use.
type State struct {
	TurnID    string
	UserID    string
	StartedAt time.Time

	messages   []Message
	turnStart  int
	attachment *Attachment
	visited    []string

	pendingHint string
	hints       []string
}

// NewState builds the state of a new turn from persisted history and the
// incoming user input.
func NewState(userID string, history []Message, text string, attachment *Attachment) *State {
	st := &State{
		TurnID:    uuid.NewString(),
		UserID:    userID,
		StartedAt: time.Now(),
		messages:  slices.Clone(history),
		turnStart: len(history),
	}

	content := Text(text)
	if attachment != nil && len(attachment.Data) > 0 {
		st.attachment = attachment
		content = Image(text, attachment.ImageRef())
	}

	st.messages = append(st.messages, NewMessage(SenderUser, content))

	return st
}

func (s *State) Append(msg Message) {
	s.messages = append(s.messages, msg)
}

func (s *State) Messages() []Message {
	return slices.Clone(s.messages)
}

// TurnMessages returns the messages added since the turn started, the user
// input included.
func (s *State) TurnMessages() []Message {
	return slices.Clone(s.messages[s.turnStart:])
}

func (s *State) History() []Message {
	return slices.Clone(s.messages[:s.turnStart])
}

func (s *State) LastMessage() (Message, bool) {
	if len(s.messages) == 0 {
		return Message{}, false
	}

	return s.messages[len(s.messages)-1], true
}

// UserQuery is the text of the latest user message of the turn.
func (s *State) UserQuery() string {
	for i := len(s.messages) - 1; i >= s.turnStart; i-- {
		if s.messages[i].FromUser() {
			return s.messages[i].Content.Text
		}
	}

	return ""
}

// Contributions returns the responder messages of the current turn in order.
func (s *State) Contributions() []Message {
	return pie.Filter(s.messages[s.turnStart:], func(m Message) bool {
		return !m.FromUser() && m.Sender != SenderSupervisor
	})
}

func (s *State) Attachment() *Attachment {
	return s.attachment
}

func (s *State) HasAttachment() bool {
	return s.attachment != nil
}

func (s *State) Visit(responderID string) {
	s.visited = append(s.visited, responderID)
}

func (s *State) Visited() []string {
	return slices.Clone(s.visited)
}

func (s *State) HasVisited(responderID string) bool {
	return pie.Contains(s.visited, responderID)
}

func (s *State) LastVisited() string {
	return pie.Last(s.visited)
}

func (s *State) PendingHint() string {
	return s.pendingHint
}

func (s *State) SetHint(hint string) {
	s.pendingHint = hint
	if hint != "" {
		s.hints = append(s.hints, hint)
	}
}

func (s *State) ClearHint() {
	s.pendingHint = ""
}

// Hints returns every hint the supervisor passed during the turn.
func (s *State) Hints() []string {
	return slices.Clone(s.hints)
}

// Reset drops the per-turn bookkeeping once the turn terminates.
func (s *State) Reset() {
	s.visited = nil
	s.pendingHint = ""
}
