package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	"github.com/tanpawarit/outfitters-agent/agent/flows"
	"github.com/tanpawarit/outfitters-agent/agent/guard"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

type Config struct {
	HistoryWindow int
	OracleTimeout time.Duration
	DataTimeout   time.Duration

	PromotionTimezone  string
	PromotionStartHour int
	PromotionEndHour   int

	// Optional collaborators; zero values use the real clock, random codes,
	// the global tracer and the global logger.
	Now           func() time.Time
	DiscountCodes flows.CodeGenerator
	Tracer        trace.Tracer
	Logger        *zerolog.Logger
}

// TurnResult is what a session-level caller gets back for one message.
type TurnResult struct {
	SessionID string
	Reply     string
	Phase     statex.Phase
	Intent    statex.Intent
}

type Orchestrator struct {
	store    statex.Store
	oracle   *guard.Guard
	handlers map[statex.Intent]flows.Handler
	locks    *xsync.MapOf[string, *sessionLock]

	graphRunner compose.Runnable[turnInput, turnOutput]

	tracer trace.Tracer
	logger zerolog.Logger
	now    func() time.Time
}

func New(
	store statex.Store,
	oracle contractx.Oracle,
	data contractx.DataSource,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if oracle == nil {
		return nil, errors.New("language oracle is required")
	}
	if data == nil {
		return nil, errors.New("data source is required")
	}

	o := &Orchestrator{
		store:  store,
		locks:  xsync.NewMapOf[string, *sessionLock](),
		tracer: cfg.Tracer,
		now:    cfg.Now,
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("github.com/tanpawarit/outfitters-agent/agent/agents/orchestrator")
	}
	if o.now == nil {
		o.now = time.Now
	}
	if cfg.Logger != nil {
		o.logger = *cfg.Logger
	} else {
		o.logger = log.Logger
	}
	o.logger = o.logger.With().Str("component", "orchestrator").Logger()

	guarded, err := guard.New(oracle, guard.Options{
		Timeout: cfg.OracleTimeout,
		Window:  cfg.HistoryWindow,
		Logger:  cfg.Logger,
		Tracer:  o.tracer,
	})
	if err != nil {
		return nil, err
	}
	o.oracle = guarded

	handlers, err := buildHandlers(guarded, data, cfg, o.now, cfg.Logger)
	if err != nil {
		return nil, err
	}
	o.handlers = handlers

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

func buildHandlers(
	oracle *guard.Guard,
	data contractx.DataSource,
	cfg Config,
	now func() time.Time,
	logger *zerolog.Logger,
) (map[statex.Intent]flows.Handler, error) {
	var opts []flows.Option
	if logger != nil {
		opts = append(opts, flows.WithLogger(*logger))
	}
	orders, err := flows.NewOrderSlotFiller(oracle, data, cfg.DataTimeout, opts...)
	if err != nil {
		return nil, err
	}
	products, err := flows.NewProductGatherer(oracle, data, cfg.DataTimeout, opts...)
	if err != nil {
		return nil, err
	}
	loc, err := flows.LoadLocation(cfg.PromotionTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: promotion timezone %q: %v", contractx.ErrValidation, cfg.PromotionTimezone, err)
	}
	promotion, err := flows.NewPromotionHandler(flows.PromotionConfig{
		Location:  loc,
		StartHour: cfg.PromotionStartHour,
		EndHour:   cfg.PromotionEndHour,
		Now:       now,
		Codes:     cfg.DiscountCodes,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	decliner, err := flows.NewDiscountDecliner(promotion)
	if err != nil {
		return nil, err
	}

	handlers := make(map[statex.Intent]flows.Handler, len(statex.KnownIntents()))
	for _, intent := range statex.KnownIntents() {
		switch intent {
		case statex.IntentOrderStatus:
			handlers[intent] = orders
		case statex.IntentProductRecommendations:
			handlers[intent] = products
		case statex.IntentPromotions:
			handlers[intent] = promotion
		case statex.IntentOtherDiscounts:
			handlers[intent] = decliner
		default:
			return nil, fmt.Errorf("%w: no handler for intent %s", contractx.ErrInvariant, intent)
		}
	}
	return handlers, nil
}

// ProcessTurn advances st by one user utterance and returns the reply. The
// error is reserved for misuse such as a nil state; dialogue failures always
// produce a reply.
func (o *Orchestrator) ProcessTurn(ctx context.Context, st *statex.ConversationState, text string) (string, error) {
	if st == nil {
		return "", statex.ErrNilState
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.turn", trace.WithAttributes(
		attribute.String("session.id", st.SessionID),
		attribute.String("dialogue.phase.start", st.Phase.String()),
	))
	defer span.End()

	out, err := o.graphRunner.Invoke(ctx, turnInput{State: st, Text: text})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(
		attribute.String("dialogue.phase.end", st.Phase.String()),
		attribute.String("dialogue.intent", st.Intent.String()),
	)
	return out.Reply, nil
}

// HandleMessage runs one turn for a stored session. Turns of the same session
// are serialised; different sessions run concurrently.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (TurnResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return TurnResult{}, statex.ErrInvalidSession
	}

	unlock := o.lockSession(sessionID)
	defer unlock()

	st, err := o.loadOrCreate(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	reply, err := o.ProcessTurn(ctx, st, text)
	if err != nil {
		return TurnResult{}, err
	}
	if err := o.store.Save(ctx, st); err != nil {
		return TurnResult{}, fmt.Errorf("save session: %w", err)
	}

	return TurnResult{
		SessionID: sessionID,
		Reply:     reply,
		Phase:     st.Phase,
		Intent:    st.Intent,
	}, nil
}

// Reset forgets a session so its next message starts with the welcome.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return statex.ErrInvalidSession
	}
	unlock := o.lockSession(sessionID)
	defer unlock()

	return o.store.Delete(ctx, sessionID)
}

// sessionLock serialises the turns of one session. refs counts the holders
// and waiters; it is only touched inside locks.Compute.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lockSession blocks until the caller owns sessionID. The entry leaves the
// table once the last holder or waiter releases it.
func (o *Orchestrator) lockSession(sessionID string) func() {
	l, _ := o.locks.Compute(sessionID, func(old *sessionLock, loaded bool) (*sessionLock, bool) {
		if !loaded {
			old = &sessionLock{}
		}
		old.refs++
		return old, false
	})
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.locks.Compute(sessionID, func(old *sessionLock, loaded bool) (*sessionLock, bool) {
			if !loaded {
				return old, true
			}
			old.refs--
			return old, old.refs <= 0
		})
	}
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, sessionID string) (*statex.ConversationState, error) {
	st, err := o.store.Load(ctx, sessionID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, statex.ErrStateNotFound) {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return statex.NewConversationState(sessionID, o.now()), nil
}
