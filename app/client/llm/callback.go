package llm

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
)

var _ callbacks.Handler = (*LogCallbackHandler)(nil)

// LogCallbackHandler reports provider errors and, when Verbose is set, every
// generate and tool event of a model.
type LogCallbackHandler struct {
	callbacks.SimpleHandler

	// Model is attached to every record
	Model   string
	Verbose bool
}

func (l LogCallbackHandler) HandleLLMGenerateContentStart(ctx context.Context, ms []llms.MessageContent) {
	if !l.Verbose {
		return
	}
	slog.DebugContext(ctx, "LLM generate content start", "model", l.Model, "messages", len(ms))
}

func (l LogCallbackHandler) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	if !l.Verbose || res == nil {
		return
	}

	toolCalls := 0
	for _, choice := range res.Choices {
		toolCalls += len(choice.ToolCalls)
	}
	slog.DebugContext(ctx, "LLM generate content end",
		"model", l.Model,
		"choices", len(res.Choices),
		"tool_calls", toolCalls,
	)
}

func (l LogCallbackHandler) HandleLLMError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "LLM error", "model", l.Model, "error", err)
}

func (l LogCallbackHandler) HandleToolStart(ctx context.Context, input string) {
	if !l.Verbose {
		return
	}
	slog.DebugContext(ctx, "Tool start", "input", input)
}

func (l LogCallbackHandler) HandleToolEnd(ctx context.Context, output string) {
	if !l.Verbose {
		return
	}
	slog.DebugContext(ctx, "Tool end", "output_len", len(output))
}

func (l LogCallbackHandler) HandleToolError(ctx context.Context, err error) {
	slog.WarnContext(ctx, "Tool error", "error", err)
}
