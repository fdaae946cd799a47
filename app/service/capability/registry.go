package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/elliotchance/pie/v2"
	"github.com/sourcegraph/conc/panics"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"
)

const defaultMaxPayload = 8000

var ErrNotConfigured = errors.New("capability is not configured")

// Result is the outcome of one capability invocation. Error is set iff
// Success is false.
type Result struct {
	Success bool   `json:"success"`
	Payload string `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Succeeded(payload string) Result {
	return Result{Success: true, Payload: payload}
}

func Failed(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// String is what gets folded back into the model context.
func (r Result) String() string {
	out := struct {
		Success bool   `json:"success"`
		Data    any    `json:"data,omitempty"`
		Error   string `json:"error,omitempty"`
	}{
		Success: r.Success,
		Error:   r.Error,
	}

	if r.Payload != "" {
		if json.Valid([]byte(r.Payload)) {
			out.Data = json.RawMessage(r.Payload)
		} else {
			out.Data = r.Payload
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}

	return string(data)
}

// Registry binds catalog names to executors. Names without a binding resolve
// to a tool that always fails with ErrNotConfigured.
type Registry struct {
	catalog *Catalog

	// Handler observes tool calls, may be nil
	Handler callbacks.Handler
	// MaxPayload truncates tool output, in runes
	MaxPayload int

	mu    sync.RWMutex
	tools map[Name]tools.Tool
}

func NewRegistry(catalog *Catalog) *Registry {
	return &Registry{
		catalog:    catalog,
		MaxPayload: defaultMaxPayload,
		tools:      make(map[Name]tools.Tool),
	}
}

func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

func (r *Registry) Bind(name Name, tool tools.Tool) error {
	if !r.catalog.Has(name) {
		return fmt.Errorf("unknown capability: %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[name] = tool

	return nil
}

// BindDefault binds tool unless name already has an executor.
func (r *Registry) BindDefault(name Name, tool tools.Tool) error {
	if r.Bound(name) {
		return nil
	}

	return r.Bind(name, tool)
}

func (r *Registry) Bound(name Name) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

func (r *Registry) lookup(name Name) tools.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tool, ok := r.tools[name]; ok {
		return tool
	}

	return unavailableTool{name: name}
}

// Set returns the closed capability subset made of names.
func (r *Registry) Set(names ...Name) (*Set, error) {
	for _, name := range names {
		if !r.catalog.Has(name) {
			return nil, fmt.Errorf("unknown capability: %s", name)
		}
	}

	set := &Set{registry: r}
	for _, name := range names {
		if !pie.Contains(set.names, name) {
			set.names = append(set.names, name)
		}
	}

	return set, nil
}

// Set is the fixed list of capabilities one responder may call.
type Set struct {
	registry *Registry
	names    []Name
}

func (s *Set) Names() []Name {
	return append([]Name(nil), s.names...)
}

func (s *Set) Empty() bool {
	return s == nil || len(s.names) == 0
}

func (s *Set) Has(name Name) bool {
	return s != nil && pie.Contains(s.names, name)
}

// Definitions are the function declarations of the set, in set order.
func (s *Set) Definitions() []llms.Tool {
	if s.Empty() {
		return nil
	}

	result := make([]llms.Tool, 0, len(s.names))
	for _, name := range s.names {
		if def, ok := s.registry.catalog.Definition(name); ok {
			result = append(result, def)
		}
	}

	return result
}

// Invoke runs one proposed call. It never panics and never returns an
// error: every failure is reported through Result.
func (s *Set) Invoke(ctx context.Context, call llms.ToolCall) Result {
	if call.FunctionCall == nil {
		return Failed("tool call %s has no function", call.ID)
	}

	name := Name(call.FunctionCall.Name)
	if !s.Has(name) {
		return Failed("capability %s is not available to this responder", name)
	}

	args, err := s.registry.catalog.Decode(name, call.FunctionCall.Arguments)
	if err != nil {
		return Failed("%s: %v", name, err)
	}

	handler := s.registry.Handler
	if handler != nil {
		handler.HandleToolStart(ctx, string(name)+" "+args)
	}

	tool := s.registry.lookup(name)

	var output string
	recovered := panics.Try(func() {
		output, err = tool.Call(ctx, args)
	})
	if recovered != nil {
		err = fmt.Errorf("capability panicked: %w", recovered.AsError())
	}

	if err != nil {
		if handler != nil {
			handler.HandleToolError(ctx, err)
		}
		return Failed("%s: %v", name, err)
	}

	if handler != nil {
		handler.HandleToolEnd(ctx, output)
	}

	return Succeeded(truncate(output, s.registry.MaxPayload))
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
