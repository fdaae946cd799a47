package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/tools"
)

var (
	_ tools.Tool = (*localTool)(nil)
	_ tools.Tool = unavailableTool{}
)

type localTool struct {
	name        Name
	description string
	call        func(ctx context.Context, input string) (string, error)
}

// NewTool wraps a function as an executor for name.
func NewTool(name Name, description string, call func(ctx context.Context, input string) (string, error)) tools.Tool {
	return &localTool{
		name:        name,
		description: description,
		call:        call,
	}
}

// Typed builds an executor that decodes its input into T and encodes the
// returned value as JSON.
func Typed[T any](name Name, description string, call func(ctx context.Context, args T) (any, error)) tools.Tool {
	return NewTool(name, description, func(ctx context.Context, input string) (string, error) {
		var args T
		if err := json.Unmarshal([]byte(input), &args); err != nil {
			return "", fmt.Errorf("invalid arguments JSON: %w", err)
		}

		value, err := call(ctx, args)
		if err != nil {
			return "", err
		}

		if text, ok := value.(string); ok {
			return text, nil
		}

		result, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to marshal result: %w", err)
		}

		return string(result), nil
	})
}

func (t *localTool) Name() string {
	return string(t.name)
}

func (t *localTool) Description() string {
	return t.description
}

func (t *localTool) Call(ctx context.Context, input string) (string, error) {
	return t.call(ctx, input)
}

type unavailableTool struct {
	name Name
}

func (t unavailableTool) Name() string {
	return string(t.name)
}

func (t unavailableTool) Description() string {
	return "not configured"
}

func (t unavailableTool) Call(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrNotConfigured, t.name)
}
