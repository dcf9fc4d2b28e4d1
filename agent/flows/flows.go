// Package flows implements the per-intent sub-dialogues the orchestrator
// dispatches to. A handler runs with the state already carrying the target
// intent; it moves the phase along legal edges and returns the reply text.
package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

const DefaultDataTimeout = 10 * time.Second

// Handler runs one intent's sub-dialogue for the current turn. The error is
// reserved for invariant violations; every collaborator failure is turned
// into a reply.
type Handler interface {
	Handle(ctx context.Context, st *statex.ConversationState) (string, error)
}

// Option customizes the order and product handlers.
type Option func(*handlerOptions)

type handlerOptions struct {
	logger zerolog.Logger
}

// WithLogger replaces the global logger as the handler's base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *handlerOptions) { o.logger = l }
}

func applyOptions(component string, opts []Option) handlerOptions {
	o := handlerOptions{logger: log.Logger}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.logger = o.logger.With().Str("component", component).Logger()
	return o
}

// SlotExtractor is the part of the guarded oracle the order flow needs.
type SlotExtractor interface {
	ExtractOrderSlots(ctx context.Context, st *statex.ConversationState) contractx.OrderSlots
}

// ProductAdvisor is the part of the guarded oracle the product flow needs.
type ProductAdvisor interface {
	HasSufficientProductContext(ctx context.Context, st *statex.ConversationState) bool
	GenerateGroundedReply(ctx context.Context, st *statex.ConversationState, catalog []contractx.Product) (string, error)
}

// enterGathering moves a freshly dispatched intent into INFO_GATHERING and
// rejects any other starting phase.
func enterGathering(st *statex.ConversationState) error {
	switch st.Phase {
	case statex.PhaseIntentDetection:
		return transition(st, statex.PhaseInfoGathering)
	case statex.PhaseInfoGathering:
		return nil
	default:
		return fmt.Errorf("%w: %s flow started in phase %s", contractx.ErrInvariant, st.Intent, st.Phase)
	}
}

func transition(st *statex.ConversationState, to statex.Phase) error {
	if err := st.Transition(to); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrInvariant, err)
	}
	return nil
}

func dataTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultDataTimeout
	}
	return d
}
