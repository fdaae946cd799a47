// Package decision implements the supervisor: one structured-output call that
// picks the next responder or finishes the turn.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agrosmi/app/client/llm"
	"agrosmi/app/service/conversation"

	_ "embed"

	"github.com/elliotchance/pie/v2"
	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tmc/langchaingo/llms"
)

//go:embed decision_prompt_template.txt
var decisionPromptTemplate string

const (
	defaultAttempts = 2
	defaultTimeout  = 30 * time.Second
	maxTokens       = 2000
)

var ErrInvalidVerdict = errors.New("invalid verdict")

// Option is a responder the supervisor may route to.
type Option struct {
	ID          string
	Description string
}

type Config struct {
	// Attempts bounds calls for malformed or contract-violating output
	Attempts    int
	Timeout     time.Duration
	Temperature float64
}

type Node struct {
	model   llms.Model
	options []Option
	cfg     Config
	schema  *schemavalidator.Schema
}

func NewNode(model llms.Model, options []Option, cfg Config) (*Node, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	schema, err := compileVerdictSchema()
	if err != nil {
		return nil, err
	}

	return &Node{
		model:   model,
		options: options,
		cfg:     cfg,
		schema:  schema,
	}, nil
}

func compileVerdictSchema() (*schemavalidator.Schema, error) {
	reflector := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}

	raw, err := json.Marshal(reflector.Reflect(conversation.Verdict{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verdict schema: %w", err)
	}

	compiler := schemavalidator.NewCompiler()
	if err = compiler.AddResource("verdict.json", strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("failed to load verdict schema: %w", err)
	}

	schema, err := compiler.Compile("verdict.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile verdict schema: %w", err)
	}

	return schema, nil
}

// Decide asks the supervisor for the next step. On failure it returns the
// safe terminal verdict together with the error.
func (n *Node) Decide(ctx context.Context, st *conversation.State) (conversation.Verdict, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, n.prompt(st)),
	}

	var lastErr error
	for attempt := 1; attempt <= n.cfg.Attempts; attempt++ {
		content, err := n.call(ctx, messages)
		if err != nil {
			return conversation.SafeVerdict(), fmt.Errorf("decision call: %w", err)
		}

		verdict, err := n.parse(content)
		if err == nil {
			verdict.Source = conversation.SourceDecision
			return verdict, nil
		}

		lastErr = err
		slog.WarnContext(ctx, "Supervisor returned an invalid verdict",
			"turn_id", st.TurnID,
			"attempt", attempt,
			"error", err,
		)

		messages = append(messages,
			llms.TextParts(llms.ChatMessageTypeAI, content),
			llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(
				"La respuesta anterior no es válida (%v). Responde de nuevo solo con el objeto JSON.", err)),
		)
	}

	return conversation.SafeVerdict(), fmt.Errorf("%w after %d attempts: %w", ErrInvalidVerdict, n.cfg.Attempts, lastErr)
}

func (n *Node) call(ctx context.Context, messages []llms.MessageContent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	res, err := n.model.GenerateContent(ctx, messages,
		llms.WithJSONMode(),
		llms.WithTemperature(n.cfg.Temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	choice, err := llm.FirstChoice(res)
	if err != nil {
		return "", err
	}

	return choice.Content, nil
}

func (n *Node) parse(content string) (conversation.Verdict, error) {
	result := llm.StripFences(content)

	var doc any
	if err := json.Unmarshal([]byte(result), &doc); err != nil {
		return conversation.Verdict{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if err := n.schema.Validate(doc); err != nil {
		return conversation.Verdict{}, fmt.Errorf("verdict shape: %w", err)
	}

	var verdict conversation.Verdict
	if err := json.Unmarshal([]byte(result), &verdict); err != nil {
		return conversation.Verdict{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	verdict.Next = strings.TrimSpace(verdict.Next)
	verdict.FinalReply = strings.TrimSpace(verdict.FinalReply)
	verdict.HintForNext = strings.TrimSpace(verdict.HintForNext)
	if strings.EqualFold(verdict.Next, conversation.Finish) {
		verdict.Next = conversation.Finish
	}

	if err := verdict.Validate(); err != nil {
		return conversation.Verdict{}, err
	}

	return verdict, nil
}

func (n *Node) prompt(st *conversation.State) string {
	hasImage := "No"
	if st.HasAttachment() {
		hasImage = "Sí"
	}

	visited := "ninguno"
	if v := st.Visited(); len(v) > 0 {
		visited = strings.Join(v, " -> ")
	}

	lastResponder := st.LastVisited()
	if lastResponder == "" {
		lastResponder = "ninguno"
	}

	hints := "ninguna"
	if h := st.Hints(); len(h) > 0 {
		hints = strings.Join(h, " | ")
	}

	responders := strings.Join(pie.Map(n.options, func(o Option) string {
		return fmt.Sprintf("- %s: %s", o.ID, o.Description)
	}), "\n")

	// a single pass: substituted values are never scanned for placeholders again
	replacer := strings.NewReplacer(
		"{now}", time.Now().Format("15:04:05"),
		"{user_id}", st.UserID,
		"{responders}", responders,
		"{has_image}", hasImage,
		"{visited}", visited,
		"{last_responder}", lastResponder,
		"{hints}", hints,
		"{history}", conversation.FormatTranscript(st.History()),
		"{turn}", conversation.FormatTranscript(st.TurnMessages()),
	)

	return replacer.Replace(decisionPromptTemplate)
}
