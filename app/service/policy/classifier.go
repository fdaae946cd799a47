package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"agrosmi/app/service/capability"
	"agrosmi/app/util/fold"

	"github.com/tmc/langchaingo/llms"
)

// Substance is a restricted agrochemical mention found in a text.
type Substance struct {
	Name string `json:"name"`
	// WHO toxicity class, empty for generic mentions
	Category string  `json:"category,omitempty"`
	EIQ      float64 `json:"eiq,omitempty"`
}

// Classifier detects restricted substances in responder output.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Substance, error)
}

type restrictedTerm struct {
	Substance

	pattern *regexp.Regexp
}

var knownSubstances = []Substance{
	{"clorpirifos", "Ib", 49.8},
	{"imidacloprid", "II", 37.3},
	{"diazinon", "Ib", 46.5},
	{"cipermetrina", "II", 30.9},
	{"thiocyclam hidrogenoxalato", "II", 40.0},
	{"paraquat", "Ia", 62.1},
	{"glifosato", "III", 15.3},
	{"carbofuran", "Ia", 64.2},
	{"mancozeb", "II", 22.7},
	{"lambda-cihalotrina", "II", 35.8},
	{"thiamethoxam", "II", 28.9},
	{"benomil", "II", 51.3},
	{"malathion", "II", 33.1},
	{"endosulfan", "Ia", 0},
	{"metamidofos", "Ib", 0},
	{"monocrotofos", "Ib", 0},
	{"aldicarb", "Ia", 0},
}

// Generic wording that signals a synthetic input recommendation.
var genericTerms = []string{
	"pesticida", "insecticida", "fungicida", "herbicida", "nematicida",
	"urea", "superfosfato", "cloruro de potasio", "sulfato de amonio",
	"aplicar quimico", "producto quimico", "fertilizante sintetico",
}

// KeywordClassifier matches a fixed list of restricted substances. Matching
// ignores case and accents and anchors every term at a word start.
type KeywordClassifier struct {
	terms []restrictedTerm
}

var _ Classifier = (*KeywordClassifier)(nil)

func NewKeywordClassifier() *KeywordClassifier {
	k := &KeywordClassifier{}

	for _, s := range knownSubstances {
		k.add(s)
	}
	for _, name := range genericTerms {
		k.add(Substance{Name: name})
	}

	return k
}

func (k *KeywordClassifier) add(s Substance) {
	k.terms = append(k.terms, restrictedTerm{
		Substance: s,
		pattern:   regexp.MustCompile(`\b` + regexp.QuoteMeta(fold.Fold(s.Name))),
	})
}

func (k *KeywordClassifier) Classify(_ context.Context, text string) ([]Substance, error) {
	folded := fold.Fold(text)

	var result []Substance
	for _, term := range k.terms {
		if term.pattern.MatchString(folded) {
			result = append(result, term.Substance)
		}
	}

	return result, nil
}

// CapabilityClassifier asks the classify_substances capability and falls back
// to another classifier when the capability fails.
type CapabilityClassifier struct {
	set      *capability.Set
	fallback Classifier
}

var _ Classifier = (*CapabilityClassifier)(nil)

func NewCapabilityClassifier(set *capability.Set, fallback Classifier) *CapabilityClassifier {
	return &CapabilityClassifier{
		set:      set,
		fallback: fallback,
	}
}

type classification struct {
	Substances []Substance `json:"substances"`
}

func (c *CapabilityClassifier) Classify(ctx context.Context, text string) ([]Substance, error) {
	substances, err := c.classify(ctx, text)
	if err == nil {
		return substances, nil
	}

	if c.fallback == nil {
		return nil, err
	}

	return c.fallback.Classify(ctx, text)
}

func (c *CapabilityClassifier) classify(ctx context.Context, text string) ([]Substance, error) {
	args, err := json.Marshal(capability.ClassifySubstancesArgs{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}

	res := c.set.Invoke(ctx, llms.ToolCall{
		ID:   "interception",
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      string(capability.ClassifySubstances),
			Arguments: string(args),
		},
	})
	if !res.Success {
		return nil, errors.New(res.Error)
	}

	var out classification
	if err = json.Unmarshal([]byte(res.Payload), &out); err != nil {
		return nil, fmt.Errorf("failed to parse classification: %w", err)
	}

	return out.Substances, nil
}

// LocalTool exposes a classifier as the classify_substances capability.
func LocalTool(classifier Classifier) func(ctx context.Context, args capability.ClassifySubstancesArgs) (any, error) {
	return func(ctx context.Context, args capability.ClassifySubstancesArgs) (any, error) {
		substances, err := classifier.Classify(ctx, args.Text)
		if err != nil {
			return nil, err
		}
		if substances == nil {
			substances = []Substance{}
		}

		return classification{Substances: substances}, nil
	}
}
