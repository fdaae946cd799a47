package conversation

import (
	"fmt"
	"strings"
)

const noMessages = "Sin mensajes previos"

// FormatTranscript renders messages one per line for prompt templates.
func FormatTranscript(messages []Message) string {
	if len(messages) == 0 {
		return noMessages
	}

	var builder strings.Builder

	for _, msg := range messages {
		text := strings.TrimSpace(msg.Content.Text)
		if msg.Content.Kind == ContentImage {
			text = strings.TrimSpace(text + " [imagen adjunta]")
		}

		builder.WriteString(fmt.Sprintf("%s - %s: %s\n", formatTime(msg.CreatedAt), msg.Sender, text))
	}

	return builder.String()
}

// Trim keeps the newest limit messages.
func Trim(messages []Message, limit int) []Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}

	return messages[len(messages)-limit:]
}
