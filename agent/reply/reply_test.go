package reply

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
)

func TestStatusText(t *testing.T) {
	assert.Equal(t, "The order has been delivered", StatusText(contractx.OrderDelivered))
	assert.Equal(t, "The order is on its way", StatusText("IN-TRANSIT"))
	assert.Equal(t, "The order status is: lost", StatusText("lost"))
}

func TestTrackingURL(t *testing.T) {
	assert.Empty(t, TrackingURL(" "))
	assert.Equal(t, "https://tools.usps.com/go/TrackConfirmAction?tLabels=TRK123", TrackingURL("TRK123"))
}

func TestOrderSummaryWithTracking(t *testing.T) {
	out := OrderSummary(contractx.Order{
		CustomerName:    "John Doe",
		Email:           "john.doe@example.com",
		OrderNumber:     "#W001",
		ProductsOrdered: []string{"SOWB004", "SOSV005"},
		Status:          contractx.OrderInTransit,
		TrackingNumber:  "TRK123456789",
	})

	assert.Contains(t, out, "#W001")
	assert.Contains(t, out, "The order is on its way")
	assert.Contains(t, out, "Tracking Link: https://tools.usps.com/go/TrackConfirmAction?tLabels=TRK123456789")
	assert.Contains(t, out, "Products Ordered: SOWB004, SOSV005")
	assert.Contains(t, out, AnythingElse)
}

func TestOrderSummaryWithoutTracking(t *testing.T) {
	out := OrderSummary(contractx.Order{
		OrderNumber:     "#W004",
		ProductsOrdered: []string{"SOBP001"},
		Status:          contractx.OrderError,
	})

	assert.Contains(t, out, "There was an issue with the order")
	assert.Contains(t, out, "No tracking number available")
	assert.NotContains(t, out, "Tracking Link")
}

func TestMissingSlotPromptsEchoKnownValue(t *testing.T) {
	assert.Contains(t, AskOrderNumber("a@example.com"), "a@example.com")
	assert.Contains(t, AskOrderNumber("a@example.com"), "order number")
	assert.Contains(t, AskEmail("#W002"), "#W002")
	assert.Contains(t, AskEmail("#W002"), "email address")
}

func TestPromotionClosedNamesWindow(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)
	out := PromotionClosed(day.Add(8*time.Hour), day.Add(10*time.Hour), day.Add(11*time.Hour))

	assert.Contains(t, out, "08:00")
	assert.Contains(t, out, "10:00")
	assert.Contains(t, out, "11:00 PST")
}

func TestOtherDiscountsDeclinedNamesWindow(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)
	out := OtherDiscountsDeclined(day.Add(7*time.Hour), day.Add(9*time.Hour))

	assert.Contains(t, out, "Early Risers")
	assert.Contains(t, out, "between 07:00 and 09:00 (CET)")
}
