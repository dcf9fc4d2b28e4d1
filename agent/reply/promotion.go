package reply

import (
	"fmt"
	"time"
)

func PromotionGranted(code string) string {
	return fmt.Sprintf("Good morning, early riser! 🌅 Here is your single-use Early Risers discount code: %s. It takes 10%% off your next order. %s", code, AnythingElse)
}

// PromotionClosed names the eligible window and the current reference time.
func PromotionClosed(windowStart, windowEnd, now time.Time) string {
	return fmt.Sprintf(
		"Our Early Risers promotion is only available between %s and %s (%s). It's currently %s, so please check back during that window. %s",
		windowStart.Format("15:04"),
		windowEnd.Format("15:04"),
		now.Location().String(),
		now.Format("15:04 MST"),
		AnythingElse,
	)
}

// OtherDiscountsDeclined points at the promotion window as the only offer.
func OtherDiscountsDeclined(windowStart, windowEnd time.Time) string {
	return fmt.Sprintf(
		"I'm sorry, but the only promotion we currently offer is our Early Risers promotion, available every day between %s and %s (%s). Is there anything else I can help you with?",
		windowStart.Format("15:04"),
		windowEnd.Format("15:04"),
		windowStart.Location().String(),
	)
}
