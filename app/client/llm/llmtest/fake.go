// Package llmtest provides a scripted llms.Model for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

var ErrScriptExhausted = errors.New("llmtest: script exhausted")

var _ llms.Model = (*Model)(nil)

// Step answers one GenerateContent call.
type Step func(ctx context.Context, messages []llms.MessageContent, opts llms.CallOptions) (*llms.ContentResponse, error)

type Call struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// Model replays Steps in order. With Repeat set the last step answers every
// call past the end of the script.
type Model struct {
	Steps  []Step
	Repeat bool

	mu    sync.Mutex
	calls []Call
}

func New(steps ...Step) *Model {
	return &Model{Steps: steps}
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}

	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, Call{Messages: messages, Options: opts})
	m.mu.Unlock()

	if idx >= len(m.Steps) {
		if !m.Repeat || len(m.Steps) == 0 {
			return nil, ErrScriptExhausted
		}
		idx = len(m.Steps) - 1
	}

	return m.Steps[idx](ctx, messages, opts)
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Call(nil), m.calls...)
}

func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.calls)
}

func Text(text string) Step {
	return func(context.Context, []llms.MessageContent, llms.CallOptions) (*llms.ContentResponse, error) {
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text, StopReason: "stop"}}}, nil
	}
}

// JSON answers with v marshalled, as a structured output model would.
func JSON(v any) Step {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return Text(string(data))
}

func Fail(err error) Step {
	return func(context.Context, []llms.MessageContent, llms.CallOptions) (*llms.ContentResponse, error) {
		return nil, err
	}
}

func Panic(v any) Step {
	return func(context.Context, []llms.MessageContent, llms.CallOptions) (*llms.ContentResponse, error) {
		panic(v)
	}
}

// ToolCall answers with a single tool call.
func ToolCall(id, name, arguments string) Step {
	return func(context.Context, []llms.MessageContent, llms.CallOptions) (*llms.ContentResponse, error) {
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
			StopReason: "tool_calls",
			ToolCalls: []llms.ToolCall{{
				ID:   id,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      name,
					Arguments: arguments,
				},
			}},
		}}}, nil
	}
}

// LastText returns the text parts of the last message of a call.
func (c Call) LastText() string {
	if len(c.Messages) == 0 {
		return ""
	}

	return Texts(c.Messages[len(c.Messages)-1])
}

func Texts(m llms.MessageContent) string {
	out := ""
	for _, part := range m.Parts {
		if text, ok := part.(llms.TextContent); ok {
			out += text.Text
		}
	}

	return out
}
