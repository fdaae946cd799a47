// Package responder implements the domain specialists consulted by the
// supervisor. A responder always answers with exactly one message.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agrosmi/app/service/conversation"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/panics"
)

type Responder interface {
	ID() string
	// Description tells the supervisor what the responder is good for
	Description() string
	Respond(ctx context.Context, st *conversation.State) conversation.Message
}

// Guard runs one activation of r. It recovers panics, bounds the activation
// with timeout, stamps the message with the responder identity and drops the
// tool trace before the message reaches the shared log.
func Guard(ctx context.Context, r Responder, st *conversation.State, timeout time.Duration) conversation.Message {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var msg conversation.Message
	recovered := panics.Try(func() {
		msg = r.Respond(ctx, st)
	})
	if recovered != nil {
		slog.ErrorContext(ctx, "Responder panicked",
			"turn_id", st.TurnID,
			"responder", r.ID(),
			"panic", recovered.String(),
		)
		msg = conversation.Message{Content: conversation.Text(limitation(r.ID()))}
	}

	if strings.TrimSpace(msg.Content.Text) == "" {
		msg.Content = conversation.Text(limitation(r.ID()))
	}

	if len(msg.ToolTrace) > 0 {
		slog.DebugContext(ctx, "Responder tool trace",
			"turn_id", st.TurnID,
			"responder", r.ID(),
			"steps", len(msg.ToolTrace),
		)
	}

	msg.Sender = r.ID()
	msg.ToolTrace = nil
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Content.Kind == "" {
		msg.Content.Kind = conversation.ContentText
	}

	return msg
}

func limitation(id string) string {
	return fmt.Sprintf("El especialista %s no pudo completar su análisis en este momento. "+
		"Por favor, intenta de nuevo o reformula tu consulta.", id)
}
