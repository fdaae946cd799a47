// Package orchestrator drives a turn through the decide, route, respond cycle.
package orchestrator

import (
	"agrosmi/app/service/conversation"
	"agrosmi/app/service/responder"
)

// Step is where a verdict leads. Exactly one of Terminal, Responder and
// Unknown is set.
type Step struct {
	Terminal  bool
	Responder responder.Responder
	Unknown   bool
}

// Router maps a verdict target onto the responder catalog. Anything outside
// the catalog is reported as unknown rather than guessed.
type Router struct {
	catalog *responder.Catalog
}

func NewRouter(catalog *responder.Catalog) *Router {
	return &Router{catalog: catalog}
}

func (r *Router) Route(next string) Step {
	if next == conversation.Finish {
		return Step{Terminal: true}
	}

	if target, ok := r.catalog.Get(next); ok {
		return Step{Responder: target}
	}

	return Step{Unknown: true}
}
