package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agrosmi/app/service/capability"
	"agrosmi/app/service/conversation"

	"github.com/tmc/langchaingo/llms"
)

// Definition describes a domain responder.
type Definition struct {
	ID           string
	Description  string
	Instructions string
	Capabilities []capability.Name
	// Fallback is the reply used when the responder cannot answer at all
	Fallback    string
	Temperature float64
}

// Agent is a text responder backed by the tool loop.
type Agent struct {
	def      Definition
	executor *Executor
}

var _ Responder = (*Agent)(nil)

func NewAgent(def Definition, executor *Executor) *Agent {
	return &Agent{
		def:      def,
		executor: executor,
	}
}

func (a *Agent) ID() string {
	return a.def.ID
}

func (a *Agent) Description() string {
	return a.def.Description
}

func (a *Agent) Respond(ctx context.Context, st *conversation.State) conversation.Message {
	messages := append([]llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, a.instructions(st)),
	}, transcript(st.Messages())...)

	outcome, err := a.executor.Run(ctx, messages)
	msg := conversation.NewMessage(a.def.ID, conversation.Text(outcome.Text))
	msg.ToolTrace = outcome.Trace

	if err != nil {
		slog.WarnContext(ctx, "Responder failed",
			"turn_id", st.TurnID,
			"responder", a.def.ID,
			"iterations", outcome.Iterations,
			"error", err,
		)

		text := DegradedText(outcome.Trace)
		if text == "" {
			text = a.def.Fallback
		}
		msg.Content = conversation.Text(text)

		return msg
	}

	if outcome.Text == "" {
		msg.Content = conversation.Text(a.def.Fallback)
	}

	return msg
}

func (a *Agent) instructions(st *conversation.State) string {
	return fillTemplate(a.def.Instructions, st)
}

func fillTemplate(template string, st *conversation.State) string {
	hint := st.PendingHint()
	if hint == "" {
		hint = "Sin indicaciones adicionales"
	}

	replacer := strings.NewReplacer(
		"{user_id}", st.UserID,
		"{hint}", hint,
		"{now}", time.Now().Format("2006-01-02 15:04"),
	)

	return replacer.Replace(template)
}

// transcript maps the shared log onto chat roles: the user speaks as human,
// every responder and the supervisor as AI tagged with its name.
func transcript(messages []conversation.Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))

	for _, msg := range messages {
		text := strings.TrimSpace(msg.Content.Text)
		if msg.Content.Kind == conversation.ContentImage {
			text = strings.TrimSpace(text + " [imagen adjunta]")
		}
		if text == "" {
			continue
		}

		if msg.FromUser() {
			result = append(result, llms.TextParts(llms.ChatMessageTypeHuman, text))
			continue
		}

		result = append(result, llms.TextParts(llms.ChatMessageTypeAI, fmt.Sprintf("[%s] %s", msg.Sender, text)))
	}

	return result
}
