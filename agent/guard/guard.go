// Package guard wraps a language oracle so that every call is bounded in
// time, sees only the recent history window, and degrades to a safe default
// instead of failing the turn.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

const (
	DefaultTimeout = 20 * time.Second
	DefaultWindow  = 10
)

type Options struct {
	Timeout time.Duration
	// Window is the number of most recent turns passed to the oracle. <= 0 uses DefaultWindow.
	Window int
	Logger *zerolog.Logger
	Tracer trace.Tracer
}

type Guard struct {
	oracle  contractx.Oracle
	timeout time.Duration
	window  int
	logger  zerolog.Logger
	tracer  trace.Tracer
}

func New(oracle contractx.Oracle, opts Options) (*Guard, error) {
	if oracle == nil {
		return nil, fmt.Errorf("%w: oracle is required", contractx.ErrValidation)
	}
	g := &Guard{
		oracle:  oracle,
		timeout: opts.Timeout,
		window:  opts.Window,
		tracer:  opts.Tracer,
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.window <= 0 {
		g.window = DefaultWindow
	}
	if opts.Logger != nil {
		g.logger = *opts.Logger
	} else {
		g.logger = log.Logger
	}
	g.logger = g.logger.With().Str("component", "oracle_guard").Logger()
	if g.tracer == nil {
		g.tracer = otel.Tracer("github.com/tanpawarit/outfitters-agent/agent/guard")
	}
	return g, nil
}

// ClassifyIntent returns the oracle's intent, or IntentNone on any failure.
func (g *Guard) ClassifyIntent(ctx context.Context, st *statex.ConversationState) statex.Intent {
	ctx, end := g.begin(ctx, "classify_intent", st)
	intent, err := g.oracle.ClassifyIntent(ctx, st.Window(g.window), st.Intent)
	if err == nil && !intent.Valid() {
		err = fmt.Errorf("%w: intent %d", contractx.ErrSchemaViolation, intent)
	}
	end(err)
	if err != nil {
		g.warn(err, "classify_intent", st)
		return statex.IntentNone
	}
	return intent
}

// ExtractOrderSlots returns whatever the oracle found, or empty slots on failure.
func (g *Guard) ExtractOrderSlots(ctx context.Context, st *statex.ConversationState) contractx.OrderSlots {
	ctx, end := g.begin(ctx, "extract_order_slots", st)
	slots, err := g.oracle.ExtractOrderSlots(ctx, st.Window(g.window))
	end(err)
	if err != nil {
		g.warn(err, "extract_order_slots", st)
		return contractx.OrderSlots{}
	}
	return contractx.OrderSlots{
		OrderNumber: strings.TrimSpace(slots.OrderNumber),
		Email:       strings.TrimSpace(slots.Email),
	}
}

// HasSufficientProductContext fails open: an oracle failure counts as sufficient.
func (g *Guard) HasSufficientProductContext(ctx context.Context, st *statex.ConversationState) bool {
	ctx, end := g.begin(ctx, "product_sufficiency", st)
	ok, err := g.oracle.HasSufficientProductContext(ctx, st.Window(g.window))
	end(err)
	if err != nil {
		g.warn(err, "product_sufficiency", st)
		return true
	}
	return ok
}

// GenerateGroundedReply returns the trimmed reply. An empty reply is not an
// error; a failed call is, so the caller can choose its fixed sentence.
func (g *Guard) GenerateGroundedReply(ctx context.Context, st *statex.ConversationState, catalog []contractx.Product) (string, error) {
	ctx, end := g.begin(ctx, "grounded_reply", st)
	out, err := g.oracle.GenerateGroundedReply(ctx, st.Window(g.window), catalog)
	end(err)
	if err != nil {
		g.warn(err, "grounded_reply", st)
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *Guard) begin(ctx context.Context, op string, st *statex.ConversationState) (context.Context, func(error)) {
	ctx, span := g.tracer.Start(ctx, "oracle."+op, trace.WithAttributes(
		attribute.String("session.id", st.SessionID),
		attribute.String("dialogue.intent", st.Intent.String()),
	))
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		cancel()
		span.End()
	}
}

func (g *Guard) warn(err error, op string, st *statex.ConversationState) {
	ev := g.logger.Warn().Err(err).Str("op", op).Str("session_id", st.SessionID)
	if errors.Is(err, context.DeadlineExceeded) {
		ev = ev.Dur("timeout", g.timeout)
	}
	ev.Msg("oracle call failed, using default")
}
