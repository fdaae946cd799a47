package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// Finish is the terminal marker of a verdict.
const Finish = "FINISH"

// Apology is the reply used when the supervisor cannot produce a verdict.
const Apology = "Disculpa, ocurrió un error al procesar tu solicitud. Por favor, intenta reformular tu pregunta."

type Source string

const (
	SourceDecision     Source = "decision"
	SourceAttachment   Source = "attachment"
	SourceSafety       Source = "safety"
	SourceRepeatGuard  Source = "repeat_guard"
	SourceCycleLimit   Source = "cycle_limit"
	SourceFailure      Source = "failure"
	SourceUnknownRoute Source = "unknown_route"
)

var (
	ErrMissingNext      = errors.New("verdict has no next")
	ErrEmptyFinalReply  = errors.New("terminal verdict has an empty final_reply")
	ErrUnexpectedFinish = errors.New("non-terminal verdict carries a final_reply")
)

type Verdict struct {
	Next        string `json:"next" jsonschema:"description=Responder id or FINISH"`
	Reasoning   string `json:"reasoning,omitempty" jsonschema:"description=Why this step was chosen"`
	HintForNext string `json:"hint_for_next,omitempty" jsonschema:"description=What the next responder must focus on"`
	FinalReply  string `json:"final_reply,omitempty" jsonschema:"description=Reply to the user when next is FINISH"`

	Source Source `json:"-"`
}

func (v Verdict) Terminal() bool {
	return v.Next == Finish
}

// Validate enforces the verdict contract: final_reply is present exactly when
// next is terminal.
func (v Verdict) Validate() error {
	if strings.TrimSpace(v.Next) == "" {
		return ErrMissingNext
	}

	hasReply := strings.TrimSpace(v.FinalReply) != ""
	switch {
	case v.Terminal() && !hasReply:
		return ErrEmptyFinalReply
	case !v.Terminal() && hasReply:
		return fmt.Errorf("%w (next=%s)", ErrUnexpectedFinish, v.Next)
	}

	return nil
}

func SafeVerdict() Verdict {
	return Verdict{
		Next:       Finish,
		Reasoning:  "decision unavailable",
		FinalReply: Apology,
		Source:     SourceFailure,
	}
}

func Route(next, reasoning, hint string, source Source) Verdict {
	return Verdict{
		Next:        next,
		Reasoning:   reasoning,
		HintForNext: hint,
		Source:      source,
	}
}

func Terminate(reply, reasoning string, source Source) Verdict {
	return Verdict{
		Next:       Finish,
		Reasoning:  reasoning,
		FinalReply: reply,
		Source:     source,
	}
}
