package flows

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	"github.com/tanpawarit/outfitters-agent/agent/reply"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

type stubOracle struct {
	slots      contractx.OrderSlots
	sufficient bool
	reply      string
	replyErr   error
	catalog    []contractx.Product
}

func (s *stubOracle) ExtractOrderSlots(context.Context, *statex.ConversationState) contractx.OrderSlots {
	return s.slots
}

func (s *stubOracle) HasSufficientProductContext(context.Context, *statex.ConversationState) bool {
	return s.sufficient
}

func (s *stubOracle) GenerateGroundedReply(_ context.Context, _ *statex.ConversationState, catalog []contractx.Product) (string, error) {
	s.catalog = catalog
	return s.reply, s.replyErr
}

type stubData struct {
	orders   []contractx.Order
	products []contractx.Product
	err      error
	query    contractx.OrderQuery
}

func (s *stubData) FindOrders(_ context.Context, q contractx.OrderQuery) ([]contractx.Order, error) {
	s.query = q
	if s.err != nil {
		return nil, s.err
	}
	var out []contractx.Order
	for _, o := range s.orders {
		if q.Matches(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubData) ListProducts(context.Context, contractx.ProductQuery) ([]contractx.Product, error) {
	return s.products, s.err
}

var johnOrder = contractx.Order{
	CustomerName:    "John Doe",
	Email:           "john.doe@example.com",
	OrderNumber:     "#W001",
	ProductsOrdered: []string{"SOWB004"},
	Status:          contractx.OrderDelivered,
	TrackingNumber:  "TRK123",
}

func gatheringState(intent statex.Intent) *statex.ConversationState {
	st := statex.NewConversationState("s1", time.Now())
	st.Phase = statex.PhaseIntentDetection
	st.SetIntent(intent)
	return st
}

func TestOrderFlowAsksForBothSlots(t *testing.T) {
	f, err := NewOrderSlotFiller(&stubOracle{}, &stubData{}, 0)
	require.NoError(t, err)
	st := gatheringState(statex.IntentOrderStatus)

	out, err := f.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, reply.AskOrderDetails, out)
	assert.Equal(t, statex.PhaseInfoGathering, st.Phase)
}

func TestOrderFlowAsksForMissingSlot(t *testing.T) {
	oracle := &stubOracle{slots: contractx.OrderSlots{Email: "john.doe@example.com"}}
	f, err := NewOrderSlotFiller(oracle, &stubData{}, 0)
	require.NoError(t, err)
	st := gatheringState(statex.IntentOrderStatus)

	out, err := f.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, reply.AskOrderNumber("john.doe@example.com"), out)

	oracle.slots = contractx.OrderSlots{}
	out, err = f.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "john.doe@example.com", st.Slot(statex.SlotEmail), "slot must survive an empty extraction")
	assert.Equal(t, reply.AskOrderNumber("john.doe@example.com"), out)
	assert.Equal(t, statex.PhaseInfoGathering, st.Phase)
}

func TestOrderFlowSuccess(t *testing.T) {
	oracle := &stubOracle{slots: contractx.OrderSlots{OrderNumber: "#W001", Email: "JOHN.DOE@example.com"}}
	data := &stubData{orders: []contractx.Order{johnOrder}}
	f, err := NewOrderSlotFiller(oracle, data, 0)
	require.NoError(t, err)
	st := gatheringState(statex.IntentOrderStatus)

	out, err := f.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, reply.OrderSummary(johnOrder), out)
	assert.Equal(t, statex.PhaseIntentDetection, st.Phase)
	assert.Empty(t, st.Slots)
	assert.Equal(t, "#W001", data.query.OrderNumber)
}

func TestOrderFlowNotFound(t *testing.T) {
	oracle := &stubOracle{slots: contractx.OrderSlots{OrderNumber: "#W999", Email: "nobody@example.com"}}
	f, err := NewOrderSlotFiller(oracle, &stubData{orders: []contractx.Order{johnOrder}}, 0)
	require.NoError(t, err)
	st := gatheringState(statex.IntentOrderStatus)

	out, err := f.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Contains(t, out, "#W999")
	assert.Contains(t, out, "nobody@example.com")
	assert.Equal(t, statex.PhaseInfoGathering, st.Phase)
	assert.Empty(t, st.Slots)
}

func TestOrderFlowServiceDown(t *testing.T) {
	oracle := &stubOracle{slots: contractx.OrderSlots{OrderNumber: "#W001", Email: "john.doe@example.com"}}
	f, err := NewOrderSlotFiller(oracle, &stubData{err: errors.New("connection refused")}, 0)
	require.NoError(t, err)
	st := gatheringState(statex.IntentOrderStatus)

	out, err := f.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, reply.OrderServiceDown, out)
	assert.Equal(t, statex.PhaseIntentDetection, st.Phase)
	assert.Empty(t, st.Slots)
}

func TestOrderFlowRejectsRetrievalStart(t *testing.T) {
	f, err := NewOrderSlotFiller(&stubOracle{}, &stubData{}, 0)
	require.NoError(t, err)
	st := gatheringState(statex.IntentOrderStatus)
	st.Phase = statex.PhaseDataRetrieval

	_, err = f.Handle(context.Background(), st)
	assert.ErrorIs(t, err, contractx.ErrInvariant)
}

func TestFindOrderWrapsErrors(t *testing.T) {
	_, err := FindOrder(context.Background(), &stubData{}, contractx.OrderQuery{OrderNumber: "#W1"})
	assert.ErrorIs(t, err, contractx.ErrOrderNotFound)

	_, err = FindOrder(context.Background(), &stubData{err: errors.New("x")}, contractx.OrderQuery{})
	assert.ErrorIs(t, err, contractx.ErrDataUnavailable)
}

func TestProductFlowInsufficient(t *testing.T) {
	f, err := NewProductGatherer(&stubOracle{sufficient: false}, &stubData{}, 0)
	require.NoError(t, err)
	st := gatheringState(statex.IntentProductRecommendations)

	out, err := f.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, reply.AskProductDetails, out)
	assert.Equal(t, statex.PhaseInfoGathering, st.Phase)
}

func TestProductFlowGroundedReply(t *testing.T) {
	products := []contractx.Product{{ProductName: "Bhavish's Backcountry Blaze Backpack", SKU: "SOBP001", Inventory: 120}}
	oracle := &stubOracle{sufficient: true, reply: "Try the Backcountry Blaze Backpack (SOBP001)."}
	f, err := NewProductGatherer(oracle, &stubData{products: products}, 0)
	require.NoError(t, err)
	st := gatheringState(statex.IntentProductRecommendations)

	out, err := f.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, oracle.reply, out)
	assert.Equal(t, statex.PhaseIntentDetection, st.Phase)
	assert.Equal(t, products, oracle.catalog)
}

func TestProductFlowEmptyGeneration(t *testing.T) {
	products := []contractx.Product{{SKU: "SOBP001"}}
	f, err := NewProductGatherer(&stubOracle{sufficient: true, reply: ""}, &stubData{products: products}, 0)
	require.NoError(t, err)
	st := gatheringState(statex.IntentProductRecommendations)

	out, err := f.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, reply.NoProductMatch, out)
	assert.Equal(t, statex.PhaseInfoGathering, st.Phase)
}

func TestProductFlowGenerationFailure(t *testing.T) {
	products := []contractx.Product{{SKU: "SOBP001"}}
	f, err := NewProductGatherer(&stubOracle{sufficient: true, replyErr: errors.New("timeout")}, &stubData{products: products}, 0)
	require.NoError(t, err)
	st := gatheringState(statex.IntentProductRecommendations)

	out, err := f.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, reply.ProductReplyFailed, out)
	assert.Equal(t, statex.PhaseIntentDetection, st.Phase)
}

func TestProductFlowCatalogUnavailable(t *testing.T) {
	for name, data := range map[string]*stubData{
		"error": {err: errors.New("down")},
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			f, err := NewProductGatherer(&stubOracle{sufficient: true, reply: "x"}, data, 0)
			require.NoError(t, err)
			st := gatheringState(statex.IntentProductRecommendations)

			out, err := f.Handle(context.Background(), st)
			require.NoError(t, err)
			assert.Equal(t, reply.CatalogUnavailable, out)
			assert.Equal(t, statex.PhaseIntentDetection, st.Phase)
		})
	}
}

func newPromotion(t *testing.T, at time.Time) *PromotionHandler {
	t.Helper()
	loc, err := LoadLocation("")
	require.NoError(t, err)
	h, err := NewPromotionHandler(PromotionConfig{
		Location: loc,
		Now:      func() time.Time { return at },
		Codes:    func() string { return "EARLY-TEST0001" },
	})
	require.NoError(t, err)
	return h
}

func TestPromotionInsideWindow(t *testing.T) {
	loc, err := LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	h := newPromotion(t, time.Date(2026, 3, 2, 9, 0, 0, 0, loc))
	st := gatheringState(statex.IntentPromotions)

	out, err := h.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.Contains(t, out, "EARLY-TEST0001")
	assert.Equal(t, statex.PhaseIntentDetection, st.Phase)
}

func TestPromotionOutsideWindow(t *testing.T) {
	loc, err := LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	h := newPromotion(t, time.Date(2026, 3, 2, 11, 0, 0, 0, loc))
	st := gatheringState(statex.IntentPromotions)

	out, err := h.Handle(context.Background(), st)
	require.NoError(t, err)
	assert.NotContains(t, out, "EARLY-")
	assert.Contains(t, out, "08:00")
	assert.Contains(t, out, "10:00")
	assert.Contains(t, out, "11:00")
	assert.Equal(t, statex.PhaseIntentDetection, st.Phase)
}

func TestPromotionWindowBoundaries(t *testing.T) {
	loc, err := LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	h := newPromotion(t, time.Now())

	day := time.Date(2026, 7, 1, 0, 0, 0, 0, loc)
	assert.False(t, h.Eligible(day.Add(8*time.Hour-time.Second)))
	assert.True(t, h.Eligible(day.Add(8*time.Hour)))
	assert.True(t, h.Eligible(day.Add(10*time.Hour-time.Nanosecond)))
	assert.False(t, h.Eligible(day.Add(10*time.Hour)))
	// 16:30 UTC is 09:30 in Los Angeles during daylight time.
	assert.True(t, h.Eligible(time.Date(2026, 7, 1, 16, 30, 0, 0, time.UTC)))
}

func TestPromotionRejectsBadWindow(t *testing.T) {
	_, err := NewPromotionHandler(PromotionConfig{StartHour: 10, EndHour: 8})
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

func TestNewDiscountCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^EARLY-[0-9A-F]{8}$`)
	a, b := NewDiscountCode(), NewDiscountCode()
	assert.Regexp(t, pattern, a)
	assert.NotEqual(t, a, b)
}

func TestDiscountDeclinerNamesConfiguredWindow(t *testing.T) {
	loc, err := LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	promo, err := NewPromotionHandler(PromotionConfig{
		Location:  loc,
		StartHour: 6,
		EndHour:   7,
		Now:       func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, loc) },
	})
	require.NoError(t, err)
	d, err := NewDiscountDecliner(promo)
	require.NoError(t, err)

	st := gatheringState(statex.IntentOtherDiscounts)
	out, err := d.Handle(context.Background(), st)
	require.NoError(t, err)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	assert.Equal(t, reply.OtherDiscountsDeclined(day.Add(6*time.Hour), day.Add(7*time.Hour)), out)
	assert.Contains(t, out, "06:00")
	assert.Contains(t, out, "Asia/Bangkok")
	assert.Equal(t, statex.PhaseIntentDetection, st.Phase)

	_, err = NewDiscountDecliner(nil)
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

func TestHandlersUseGivenLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	oracle := &stubOracle{slots: contractx.OrderSlots{OrderNumber: "#W001", Email: "john.doe@example.com"}}
	f, err := NewOrderSlotFiller(oracle, &stubData{err: errors.New("connection refused")}, 0, WithLogger(logger))
	require.NoError(t, err)
	_, err = f.Handle(context.Background(), gatheringState(statex.IntentOrderStatus))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"component":"order_flow"`)

	buf.Reset()
	p, err := NewProductGatherer(&stubOracle{sufficient: true}, &stubData{}, 0, WithLogger(logger))
	require.NoError(t, err)
	_, err = p.Handle(context.Background(), gatheringState(statex.IntentProductRecommendations))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"component":"product_flow"`)

	buf.Reset()
	loc, err := LoadLocation("")
	require.NoError(t, err)
	promo, err := NewPromotionHandler(PromotionConfig{
		Location: loc,
		Now:      func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, loc) },
		Codes:    func() string { return "EARLY-TEST0002" },
		Logger:   &logger,
	})
	require.NoError(t, err)
	_, err = promo.Handle(context.Background(), gatheringState(statex.IntentPromotions))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"component":"promotion_flow"`)
	assert.Contains(t, buf.String(), "EARLY-TEST0002")
}
