package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	"github.com/tanpawarit/outfitters-agent/agent/reply"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

type turnInput struct {
	State *statex.ConversationState
	Text  string
}

type turnOutput struct {
	Reply string
}

type turnState struct {
	st         *statex.ConversationState
	startPhase statex.Phase
	classified statex.Intent
	reply      string
}

func (o *Orchestrator) prepare(_ context.Context, in turnInput) (*turnState, error) {
	if in.State == nil {
		return nil, statex.ErrNilState
	}
	in.State.Append(statex.RoleUser, in.Text)
	return &turnState{
		st:         in.State,
		startPhase: in.State.Phase,
		classified: statex.IntentNone,
	}, nil
}

// welcome answers the first turn of a session without consulting the oracle.
func (o *Orchestrator) welcome(ctx context.Context, in *turnState) (*turnState, error) {
	in.reply = reply.Welcome
	if err := in.st.Transition(statex.PhaseIntentDetection); err != nil {
		o.recoverTurn(ctx, in, fmt.Errorf("%w: %v", contractx.ErrInvariant, err))
	}
	return in, nil
}

func (o *Orchestrator) classify(ctx context.Context, in *turnState) (*turnState, error) {
	switch in.st.Phase {
	case statex.PhaseIntentDetection, statex.PhaseInfoGathering:
		in.classified = o.oracle.ClassifyIntent(ctx, in.st)
	}
	return in, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, in *turnState) (*turnState, error) {
	st := in.st

	switch st.Phase {
	case statex.PhaseInfoGathering:
		if in.classified == statex.IntentNone || in.classified == st.Intent {
			return o.run(ctx, in, st.Intent)
		}
		o.logger.Debug().
			Str("session_id", st.SessionID).
			Stringer("from", st.Intent).
			Stringer("to", in.classified).
			Msg("intent drift")
		if err := st.Transition(statex.PhaseIntentDetection); err != nil {
			return o.recoverTurn(ctx, in, fmt.Errorf("%w: %v", contractx.ErrInvariant, err)), nil
		}
	case statex.PhaseIntentDetection:
	default:
		return o.recoverTurn(ctx, in, fmt.Errorf("%w: turn started in phase %s", contractx.ErrInvariant, st.Phase)), nil
	}

	if in.classified == statex.IntentNone {
		in.reply = reply.Clarify
		if err := st.Transition(statex.PhaseIntentDetection); err != nil {
			return o.recoverTurn(ctx, in, fmt.Errorf("%w: %v", contractx.ErrInvariant, err)), nil
		}
		return in, nil
	}

	st.SetIntent(in.classified)
	st.ResetSlots()
	return o.run(ctx, in, in.classified)
}

func (o *Orchestrator) run(ctx context.Context, in *turnState, intent statex.Intent) (*turnState, error) {
	handler, ok := o.handlers[intent]
	if !ok {
		return o.recoverTurn(ctx, in, fmt.Errorf("%w: no handler for intent %s in phase %s", contractx.ErrInvariant, intent, in.st.Phase)), nil
	}
	text, err := handler.Handle(ctx, in.st)
	if err != nil {
		return o.recoverTurn(ctx, in, err), nil
	}
	in.reply = text
	return in, nil
}

func (o *Orchestrator) commit(ctx context.Context, in *turnState) (turnOutput, error) {
	if err := in.st.Validate(); err != nil {
		o.recoverTurn(ctx, in, err)
	}

	in.st.Append(statex.RoleAssistant, in.reply)
	in.st.Touch(o.now())

	o.logger.Debug().
		Str("session_id", in.st.SessionID).
		Stringer("from", in.startPhase).
		Stringer("to", in.st.Phase).
		Stringer("intent", in.st.Intent).
		Msg("turn committed")

	return turnOutput{Reply: in.reply}, nil
}

// recoverTurn handles a defect: it logs it, answers with the fallback text and
// parks the session in INTENT_DETECTION.
func (o *Orchestrator) recoverTurn(ctx context.Context, in *turnState, cause error) *turnState {
	st := in.st
	o.logger.Error().
		Err(cause).
		Str("session_id", st.SessionID).
		Stringer("phase", st.Phase).
		Stringer("intent", st.Intent).
		Msg("dialogue invariant violated")
	trace.SpanFromContext(ctx).AddEvent("invariant_violation", trace.WithAttributes(
		attribute.String("error", cause.Error()),
	))

	if !st.Intent.Valid() {
		st.Intent = statex.IntentNone
	}
	st.ResetSlots()
	if err := st.Transition(statex.PhaseIntentDetection); err != nil {
		st.Phase = statex.PhaseIntentDetection
	}
	in.reply = reply.Fallback
	return in
}
