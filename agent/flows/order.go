package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	"github.com/tanpawarit/outfitters-agent/agent/reply"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

type OrderSlotFiller struct {
	oracle  SlotExtractor
	orders  contractx.OrderFinder
	timeout time.Duration
	logger  zerolog.Logger
}

var _ Handler = (*OrderSlotFiller)(nil)

func NewOrderSlotFiller(oracle SlotExtractor, orders contractx.OrderFinder, timeout time.Duration, opts ...Option) (*OrderSlotFiller, error) {
	if oracle == nil {
		return nil, fmt.Errorf("%w: slot extractor is required", contractx.ErrValidation)
	}
	if orders == nil {
		return nil, fmt.Errorf("%w: order finder is required", contractx.ErrValidation)
	}
	return &OrderSlotFiller{
		oracle:  oracle,
		orders:  orders,
		timeout: dataTimeout(timeout),
		logger:  applyOptions("order_flow", opts).logger,
	}, nil
}

func (f *OrderSlotFiller) Handle(ctx context.Context, st *statex.ConversationState) (string, error) {
	if err := enterGathering(st); err != nil {
		return "", err
	}

	found := f.oracle.ExtractOrderSlots(ctx, st)
	st.MergeSlot(statex.SlotOrderNumber, found.OrderNumber)
	st.MergeSlot(statex.SlotEmail, found.Email)

	number := st.Slot(statex.SlotOrderNumber)
	email := st.Slot(statex.SlotEmail)
	switch {
	case number == "" && email == "":
		return reply.AskOrderDetails, transition(st, statex.PhaseInfoGathering)
	case number == "":
		return reply.AskOrderNumber(email), transition(st, statex.PhaseInfoGathering)
	case email == "":
		return reply.AskEmail(number), transition(st, statex.PhaseInfoGathering)
	}

	if err := transition(st, statex.PhaseDataRetrieval); err != nil {
		return "", err
	}

	order, err := f.lookup(ctx, contractx.OrderQuery{OrderNumber: number, Email: email})
	switch {
	case errors.Is(err, contractx.ErrOrderNotFound):
		f.logger.Info().Str("session_id", st.SessionID).Str("order_number", number).Msg("order not found")
		st.ResetSlots()
		return reply.OrderNotFound(number, email), transition(st, statex.PhaseInfoGathering)
	case err != nil:
		f.logger.Error().Err(err).Str("session_id", st.SessionID).Msg("order lookup failed")
		st.ResetSlots()
		return reply.OrderServiceDown, transition(st, statex.PhaseIntentDetection)
	}

	st.ResetSlots()
	return reply.OrderSummary(order), transition(st, statex.PhaseIntentDetection)
}

func (f *OrderSlotFiller) lookup(ctx context.Context, q contractx.OrderQuery) (contractx.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return FindOrder(ctx, f.orders, q)
}

// FindOrder returns the first order matching q, or ErrOrderNotFound when the
// finder returns nothing.
func FindOrder(ctx context.Context, orders contractx.OrderFinder, q contractx.OrderQuery) (contractx.Order, error) {
	list, err := orders.FindOrders(ctx, q)
	if err != nil {
		if errors.Is(err, contractx.ErrOrderNotFound) {
			return contractx.Order{}, err
		}
		return contractx.Order{}, fmt.Errorf("%w: %v", contractx.ErrDataUnavailable, err)
	}
	if len(list) == 0 {
		return contractx.Order{}, fmt.Errorf("%w: %s", contractx.ErrOrderNotFound, q.OrderNumber)
	}
	return list[0], nil
}
