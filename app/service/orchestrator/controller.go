package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agrosmi/app/config"
	"agrosmi/app/service/conversation"
	"agrosmi/app/service/decision"
	"agrosmi/app/service/history"
	"agrosmi/app/service/kpi"
	"agrosmi/app/service/policy"
	"agrosmi/app/service/responder"
	"agrosmi/app/util/mylog"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

const (
	defaultMaxCycles = 6

	cautionNote = "Nota: no se completó la revisión de sostenibilidad de los productos químicos mencionados. " +
		"Consulta a un técnico antes de aplicarlos."
)

type Decider interface {
	Decide(ctx context.Context, st *conversation.State) (conversation.Verdict, error)
}

type Interceptor interface {
	Intercept(ctx context.Context, st *conversation.State) (conversation.Verdict, bool)
}

// Result is the outcome of one turn.
type Result struct {
	Reply   conversation.Message
	Verdict conversation.Verdict
	Cycles  int
	Visited []string
	Metrics kpi.Orchestration
	Latency kpi.Latency
}

type Controller struct {
	decider          Decider
	policy           Interceptor
	router           *Router
	store            history.Store
	emitter          kpi.Emitter
	maxCycles        int
	responderTimeout time.Duration
}

type Options struct {
	MaxCycles        int
	ResponderTimeout time.Duration
}

func NewController(decider Decider, interceptor Interceptor, router *Router, store history.Store, emitter kpi.Emitter, opts Options) *Controller {
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = defaultMaxCycles
	}

	return &Controller{
		decider:          decider,
		policy:           interceptor,
		router:           router,
		store:            store,
		emitter:          emitter,
		maxCycles:        opts.MaxCycles,
		responderTimeout: opts.ResponderTimeout,
	}
}

func New(di *do.Injector) (*Controller, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewController(
		do.MustInvoke[*decision.Node](di),
		do.MustInvoke[*policy.Policy](di),
		NewRouter(do.MustInvoke[*responder.Catalog](di)),
		do.MustInvoke[history.Store](di),
		do.MustInvoke[*kpi.Service](di),
		Options{
			MaxCycles:        cfg.Orchestrator.MaxCycles,
			ResponderTimeout: cfg.Orchestrator.ResponderTimeout,
		},
	), nil
}

type timings struct {
	decision   time.Duration
	responders map[string]time.Duration
}

// Run drives st until a terminal verdict. It always ends with exactly one
// supervisor message appended to the log.
func (c *Controller) Run(ctx context.Context, st *conversation.State) Result {
	t := timings{responders: map[string]time.Duration{}}

	cycles := 0
	var verdict conversation.Verdict

	for {
		if cycles >= c.maxCycles {
			verdict = c.exhausted(ctx, st)
			break
		}
		cycles++

		next, forced := c.policy.Intercept(ctx, st)
		if !forced {
			start := time.Now()
			decided, err := c.decider.Decide(ctx, st)
			t.decision += time.Since(start)

			if err != nil {
				slog.ErrorContext(ctx, "Decision failed",
					"turn_id", st.TurnID,
					"user_id", st.UserID,
					"cycle", cycles,
					"error", err,
					mylog.Alert(),
				)
			}

			next = policy.GuardRepeat(st, decided)
		}

		step := c.router.Route(next.Next)
		if step.Terminal {
			verdict = next
			break
		}
		if step.Unknown {
			verdict = unknownRoute(ctx, st, next)
			break
		}

		id := step.Responder.ID()
		slog.DebugContext(ctx, "Routing to responder",
			"turn_id", st.TurnID,
			"responder", id,
			"source", next.Source,
			"reasoning", next.Reasoning,
		)

		st.SetHint(next.HintForNext)

		start := time.Now()
		msg := responder.Guard(ctx, step.Responder, st, c.responderTimeout)
		t.responders[id] += time.Since(start)

		st.Append(msg)
		st.Visit(id)
		st.ClearHint()
	}

	return c.finish(ctx, st, verdict, cycles, t)
}

// exhausted builds the terminal verdict of a turn that ran out of cycles.
func (c *Controller) exhausted(ctx context.Context, st *conversation.State) conversation.Verdict {
	reply := policy.Synthesize(st)
	if reply == "" {
		reply = conversation.Apology
	}

	if pending, forced := c.policy.Intercept(ctx, st); forced && pending.Source == conversation.SourceSafety {
		reply += "\n\n" + cautionNote
	}

	slog.WarnContext(ctx, "Turn reached the cycle limit",
		"turn_id", st.TurnID,
		"visited", st.Visited(),
		"max_cycles", c.maxCycles,
	)

	return conversation.Terminate(reply, fmt.Sprintf("cycle limit %d reached", c.maxCycles),
		conversation.SourceCycleLimit)
}

func unknownRoute(ctx context.Context, st *conversation.State, v conversation.Verdict) conversation.Verdict {
	slog.ErrorContext(ctx, "Verdict routes to an unknown responder",
		"turn_id", st.TurnID,
		"next", v.Next,
		"source", v.Source,
		mylog.Alert(),
	)

	reply := policy.Synthesize(st)
	if reply == "" {
		reply = conversation.Apology
	}

	return conversation.Terminate(reply, fmt.Sprintf("unknown responder %q", v.Next),
		conversation.SourceUnknownRoute)
}

func (c *Controller) finish(ctx context.Context, st *conversation.State, verdict conversation.Verdict, cycles int, t timings) Result {
	final := conversation.NewMessage(conversation.SenderSupervisor, conversation.Text(verdict.FinalReply))
	st.Append(final)

	persisted := pie.Filter(st.TurnMessages(), func(m conversation.Message) bool {
		return m.FromUser()
	})
	persisted = append(persisted, final)

	if err := c.store.Append(context.WithoutCancel(ctx), st.UserID, persisted...); err != nil {
		slog.ErrorContext(ctx, "Failed to persist turn",
			"turn_id", st.TurnID,
			"user_id", st.UserID,
			"error", err,
		)
	}

	visited := st.Visited()

	metrics := kpi.NewOrchestration(st.TurnID, st.UserID, st.UserQuery(), st.HasAttachment(), visited, cycles)
	metrics.Failed = verdict.Source == conversation.SourceFailure || verdict.Source == conversation.SourceUnknownRoute
	metrics.Termination = string(verdict.Source)

	latency := kpi.NewLatency(st.TurnID, st.UserID, st.HasAttachment(), time.Since(st.StartedAt), t.decision, t.responders)

	st.Reset()

	c.emitter.Emit(kpi.KindOrchestration, metrics)
	c.emitter.Emit(kpi.KindLatency, latency)

	slog.InfoContext(ctx, "Turn finished",
		"turn_id", st.TurnID,
		"user_id", st.UserID,
		"visited", visited,
		"cycles", cycles,
		"termination", verdict.Source,
		"efficiency", metrics.Efficiency,
		"duration", time.Since(st.StartedAt),
	)

	return Result{
		Reply:   final,
		Verdict: verdict,
		Cycles:  cycles,
		Visited: visited,
		Metrics: metrics,
		Latency: latency,
	}
}
