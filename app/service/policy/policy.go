// Package policy holds the deterministic routing rules evaluated before the
// supervisor is consulted.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agrosmi/app/config"
	"agrosmi/app/service/capability"
	"agrosmi/app/service/conversation"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

const visionHint = "El usuario adjuntó una imagen. Analízala antes de cualquier otra recomendación."

// Policy forces the next responder when the attachment or safety rule applies.
// Both rules fire at most once per turn: they only apply while their
// responder is absent from the visited list.
type Policy struct {
	vision      string
	safety      string
	authorities []string
	classifier  Classifier
}

func NewPolicy(vision, safety string, authorities []string, classifier Classifier) *Policy {
	return &Policy{
		vision:      vision,
		safety:      safety,
		authorities: authorities,
		classifier:  classifier,
	}
}

func New(di *do.Injector) (*Policy, error) {
	cfg := do.MustInvoke[*config.Config](di)
	capabilities := do.MustInvoke[*capability.Service](di)

	keywords := NewKeywordClassifier()
	local := capability.Typed(capability.ClassifySubstances, "keyword classifier", LocalTool(keywords))
	if err := capabilities.BindDefault(capability.ClassifySubstances, local); err != nil {
		return nil, fmt.Errorf("failed to bind classifier capability: %w", err)
	}

	var classifier Classifier = keywords
	if name := cfg.Classifier.Capability; name != "" {
		set, err := capabilities.Set(capability.Name(name))
		if err != nil {
			return nil, fmt.Errorf("classifier: %w", err)
		}
		classifier = NewCapabilityClassifier(set, keywords)
	}

	vision := cfg.Orchestrator.VisionResponder
	if pie.Contains(cfg.Responders.Disabled, vision) {
		slog.Warn("Vision responder disabled, attachment rule off", "responder", vision)
		vision = ""
	}

	safety := cfg.Orchestrator.SafetyResponder
	if pie.Contains(cfg.Responders.Disabled, safety) {
		slog.Warn("Safety responder disabled, safety rule off", "responder", safety)
		safety = ""
	}

	return NewPolicy(vision, safety, cfg.Orchestrator.Authorities, classifier), nil
}

// Intercept returns the forced verdict for this cycle, if any. The attachment
// rule wins over the safety rule.
func (p *Policy) Intercept(ctx context.Context, st *conversation.State) (conversation.Verdict, bool) {
	if p.vision != "" && st.HasAttachment() && !st.HasVisited(p.vision) {
		return conversation.Route(p.vision, "attachment present and not analysed yet", visionHint,
			conversation.SourceAttachment), true
	}

	return p.interceptSafety(ctx, st)
}

func (p *Policy) interceptSafety(ctx context.Context, st *conversation.State) (conversation.Verdict, bool) {
	if p.safety == "" || st.HasVisited(p.safety) {
		return conversation.Verdict{}, false
	}

	last := st.LastVisited()
	if !pie.Contains(p.authorities, last) {
		return conversation.Verdict{}, false
	}

	msg, ok := st.LastMessage()
	if !ok || msg.Sender != last {
		return conversation.Verdict{}, false
	}

	substances, err := p.classifier.Classify(ctx, msg.Content.Text)
	if err != nil {
		slog.WarnContext(ctx, "Substance classification failed, forcing safety review",
			"turn_id", st.TurnID,
			"responder", last,
			"error", err,
		)

		hint := fmt.Sprintf("No fue posible verificar automáticamente la respuesta de %s. "+
			"Revisa si recomienda químicos sintéticos y propone alternativas orgánicas equivalentes.", last)

		return conversation.Route(p.safety, "classification unavailable", hint, conversation.SourceSafety), true
	}

	if len(substances) == 0 {
		return conversation.Verdict{}, false
	}

	names := pie.Map(substances, func(s Substance) string {
		return s.Name
	})

	hint := fmt.Sprintf("El agente %s hizo recomendaciones que incluyen químicos sintéticos (%s). "+
		"Evaluar si existen alternativas orgánicas equivalentes antes de aprobar.", last, strings.Join(names, ", "))
	reasoning := fmt.Sprintf("%s recommended restricted substances", last)

	return conversation.Route(p.safety, reasoning, hint, conversation.SourceSafety), true
}

// GuardRepeat turns a consecutive re-route to the responder that just
// answered into a terminal verdict built from the turn's contributions.
func GuardRepeat(st *conversation.State, verdict conversation.Verdict) conversation.Verdict {
	if verdict.Terminal() || verdict.Next == "" || verdict.Next != st.LastVisited() {
		return verdict
	}

	reply := Synthesize(st)
	if reply == "" {
		reply = conversation.Apology
	}

	return conversation.Terminate(reply, fmt.Sprintf("repeated route to %s", verdict.Next),
		conversation.SourceRepeatGuard)
}

// Synthesize joins the responder contributions of the current turn.
func Synthesize(st *conversation.State) string {
	parts := pie.Map(st.Contributions(), func(m conversation.Message) string {
		return strings.TrimSpace(m.Content.Text)
	})
	parts = pie.Filter(parts, func(s string) bool {
		return s != ""
	})

	return strings.Join(parts, "\n\n")
}
