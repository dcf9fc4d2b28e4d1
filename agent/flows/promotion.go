package flows

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	"github.com/tanpawarit/outfitters-agent/agent/reply"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

const DefaultPromotionTimezone = "America/Los_Angeles"

// CodeGenerator produces a single-use discount code.
type CodeGenerator func() string

// NewDiscountCode returns EARLY- followed by eight upper-case hex characters.
func NewDiscountCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "EARLY-" + strings.ToUpper(id[:8])
}

type PromotionConfig struct {
	Location  *time.Location
	StartHour int
	EndHour   int
	Now       func() time.Time
	Codes     CodeGenerator
	Logger    *zerolog.Logger
}

// PromotionHandler answers the Early Risers promotion: a code inside
// [StartHour, EndHour) in the reference timezone, the window otherwise.
type PromotionHandler struct {
	loc       *time.Location
	startHour int
	endHour   int
	now       func() time.Time
	codes     CodeGenerator
	logger    zerolog.Logger
}

var _ Handler = (*PromotionHandler)(nil)

func NewPromotionHandler(cfg PromotionConfig) (*PromotionHandler, error) {
	h := &PromotionHandler{
		loc:       cfg.Location,
		startHour: cfg.StartHour,
		endHour:   cfg.EndHour,
		now:       cfg.Now,
		codes:     cfg.Codes,
		logger:    log.Logger,
	}
	if cfg.Logger != nil {
		h.logger = *cfg.Logger
	}
	h.logger = h.logger.With().Str("component", "promotion_flow").Logger()
	if h.loc == nil {
		loc, err := time.LoadLocation(DefaultPromotionTimezone)
		if err != nil {
			return nil, fmt.Errorf("load promotion timezone: %w", err)
		}
		h.loc = loc
	}
	if h.startHour == 0 && h.endHour == 0 {
		h.startHour, h.endHour = 8, 10
	}
	if h.startHour < 0 || h.endHour > 24 || h.startHour >= h.endHour {
		return nil, fmt.Errorf("%w: promotion window %d-%d", contractx.ErrValidation, h.startHour, h.endHour)
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.codes == nil {
		h.codes = NewDiscountCode
	}
	return h, nil
}

// LoadLocation resolves a promotion timezone name, defaulting when empty.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPromotionTimezone
	}
	return time.LoadLocation(name)
}

func (h *PromotionHandler) Handle(_ context.Context, st *statex.ConversationState) (string, error) {
	now := h.now().In(h.loc)

	var text string
	if h.Eligible(now) {
		code := h.codes()
		h.logger.Info().Str("session_id", st.SessionID).Str("code", code).Msg("discount code issued")
		text = reply.PromotionGranted(code)
	} else {
		start, end := h.window(now)
		text = reply.PromotionClosed(start, end, now)
	}
	return text, transition(st, statex.PhaseIntentDetection)
}

// Eligible reports whether t falls in the promotion window.
func (h *PromotionHandler) Eligible(t time.Time) bool {
	t = t.In(h.loc)
	start, end := h.window(t)
	return !t.Before(start) && t.Before(end)
}

func (h *PromotionHandler) window(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	return time.Date(y, m, d, h.startHour, 0, 0, 0, h.loc),
		time.Date(y, m, d, h.endHour, 0, 0, 0, h.loc)
}

// DiscountDecliner answers requests for discounts other than the promotion,
// pointing at the promotion's configured window.
type DiscountDecliner struct {
	promotion *PromotionHandler
}

var _ Handler = (*DiscountDecliner)(nil)

func NewDiscountDecliner(promotion *PromotionHandler) (*DiscountDecliner, error) {
	if promotion == nil {
		return nil, fmt.Errorf("%w: promotion handler is required", contractx.ErrValidation)
	}
	return &DiscountDecliner{promotion: promotion}, nil
}

func (d *DiscountDecliner) Handle(_ context.Context, st *statex.ConversationState) (string, error) {
	start, end := d.promotion.window(d.promotion.now().In(d.promotion.loc))
	return reply.OtherDiscountsDeclined(start, end), transition(st, statex.PhaseIntentDetection)
}
