package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"agrosmi/app/client/llm"
	"agrosmi/app/service/capability"
	"agrosmi/app/service/conversation"

	"github.com/tmc/langchaingo/llms"
)

const (
	defaultMaxIterations = 8
	defaultMaxTokens     = 4000
	degradedPayloadLimit = 600
)

const wrapUpInstruction = "Alcanzaste el límite de consultas a herramientas. " +
	"Responde ahora al usuario solo con la información que ya obtuviste y explica qué datos faltan."

// Executor runs the propose, invoke and fold back loop of a responder.
type Executor struct {
	Model         llms.Model
	Capabilities  *capability.Set
	MaxIterations int
	Temperature   float64
	MaxTokens     int
}

type Outcome struct {
	Text       string
	Trace      []conversation.ToolStep
	Iterations int
	// Degraded is set when the iteration cap was hit
	Degraded bool
}

// Run drives the loop until the model answers without proposing a call. When
// the iteration cap is reached it asks once more without tools and, if that
// fails too, builds the answer from the successful capability payloads.
func (e *Executor) Run(ctx context.Context, messages []llms.MessageContent) (Outcome, error) {
	maxIterations := e.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	messages = append([]llms.MessageContent(nil), messages...)

	var outcome Outcome
	for outcome.Iterations < maxIterations {
		outcome.Iterations++

		choice, err := e.generate(ctx, messages, true)
		if err != nil {
			return outcome, err
		}

		if len(choice.ToolCalls) == 0 {
			outcome.Text = strings.TrimSpace(choice.Content)
			return outcome, nil
		}

		proposal := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if choice.Content != "" {
			proposal.Parts = append(proposal.Parts, llms.TextContent{Text: choice.Content})
		}
		for _, call := range choice.ToolCalls {
			proposal.Parts = append(proposal.Parts, call)
		}
		messages = append(messages, proposal)

		for _, call := range choice.ToolCalls {
			res := e.Capabilities.Invoke(ctx, call)

			step := conversation.ToolStep{Success: res.Success, Output: res.Payload}
			if call.FunctionCall != nil {
				step.Capability = call.FunctionCall.Name
				step.Args = call.FunctionCall.Arguments
			}
			if !res.Success {
				step.Output = res.Error
			}
			outcome.Trace = append(outcome.Trace, step)

			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: call.ID,
					Name:       step.Capability,
					Content:    res.String(),
				}},
			})
		}
	}

	outcome.Degraded = true
	slog.WarnContext(ctx, "Tool loop reached the iteration cap",
		"iterations", outcome.Iterations,
		"steps", len(outcome.Trace),
	)

	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, wrapUpInstruction))

	choice, err := e.generate(ctx, messages, false)
	if err == nil && strings.TrimSpace(choice.Content) != "" && len(choice.ToolCalls) == 0 {
		outcome.Text = strings.TrimSpace(choice.Content)
		return outcome, nil
	}

	outcome.Text = DegradedText(outcome.Trace)
	return outcome, nil
}

func (e *Executor) generate(ctx context.Context, messages []llms.MessageContent, withTools bool) (*llms.ContentChoice, error) {
	maxTokens := e.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	opts := []llms.CallOption{
		llms.WithTemperature(e.Temperature),
		llms.WithMaxTokens(maxTokens),
	}
	if withTools && !e.Capabilities.Empty() {
		opts = append(opts, llms.WithTools(e.Capabilities.Definitions()))
	}

	res, err := e.Model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	return llm.FirstChoice(res)
}

// DegradedText summarises the successful capability results of a loop that
// could not produce an answer. It is empty when nothing succeeded.
func DegradedText(trace []conversation.ToolStep) string {
	var builder strings.Builder

	for _, step := range trace {
		if !step.Success || strings.TrimSpace(step.Output) == "" {
			continue
		}

		if builder.Len() == 0 {
			builder.WriteString("No pude completar el análisis, pero estos son los datos que obtuve:\n")
		}

		output := step.Output
		if utf8.RuneCountInString(output) > degradedPayloadLimit {
			output = string([]rune(output)[:degradedPayloadLimit]) + "…"
		}
		builder.WriteString(fmt.Sprintf("- %s: %s\n", step.Capability, output))
	}

	return strings.TrimSpace(builder.String())
}
