package state

import (
	"fmt"
	"strings"
)

type Phase uint8

const (
	PhaseWelcome Phase = iota
	PhaseIntentDetection
	PhaseInfoGathering
	PhaseDataRetrieval
)

var phaseNames = [...]string{
	PhaseWelcome:         "welcome",
	PhaseIntentDetection: "intent_detection",
	PhaseInfoGathering:   "info_gathering",
	PhaseDataRetrieval:   "data_retrieval",
}

func (p Phase) Valid() bool {
	return int(p) < len(phaseNames)
}

func (p Phase) String() string {
	if !p.Valid() {
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid phase %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	name := strings.TrimSpace(string(b))
	for i, n := range phaseNames {
		if n == name {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", name)
}

// Intent is the classified high-level goal of the current topic.
type Intent uint8

const (
	IntentNone Intent = iota
	IntentOrderStatus
	IntentProductRecommendations
	IntentPromotions
	IntentOtherDiscounts
)

var intentLabels = [...]string{
	IntentNone:                   "none",
	IntentOrderStatus:            "order_status",
	IntentProductRecommendations: "product_recommendations",
	IntentPromotions:             "promotions",
	IntentOtherDiscounts:         "other_discounts",
}

// KnownIntents lists every intent that has a sub-flow.
func KnownIntents() []Intent {
	return []Intent{
		IntentOrderStatus,
		IntentProductRecommendations,
		IntentPromotions,
		IntentOtherDiscounts,
	}
}

func (i Intent) Valid() bool {
	return int(i) < len(intentLabels)
}

func (i Intent) Known() bool {
	return i != IntentNone && i.Valid()
}

func (i Intent) String() string {
	if !i.Valid() {
		return fmt.Sprintf("intent(%d)", uint8(i))
	}
	return intentLabels[i]
}

// RequiredSlots returns the slots an intent collects before data retrieval.
func (i Intent) RequiredSlots() []string {
	switch i {
	case IntentOrderStatus:
		return []string{SlotOrderNumber, SlotEmail}
	case IntentNone, IntentProductRecommendations, IntentPromotions, IntentOtherDiscounts:
		return nil
	default:
		return nil
	}
}

func (i Intent) MarshalText() ([]byte, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("invalid intent %d", uint8(i))
	}
	return []byte(i.String()), nil
}

func (i *Intent) UnmarshalText(b []byte) error {
	parsed, ok := ParseIntent(string(b))
	if !ok && strings.TrimSpace(string(b)) != intentLabels[IntentNone] {
		return fmt.Errorf("unknown intent %q", string(b))
	}
	*i = parsed
	return nil
}

// ParseIntent maps a classifier label to an Intent. Labels are matched
// case-insensitively after stripping quotes and trailing punctuation; anything
// outside the enumerated set yields IntentNone, false.
func ParseIntent(label string) (Intent, bool) {
	clean := strings.ToLower(strings.TrimSpace(label))
	clean = strings.Trim(clean, "\"'`.!,;: \t\r\n")
	for i, l := range intentLabels {
		if Intent(i) == IntentNone {
			continue
		}
		if l == clean {
			return Intent(i), true
		}
	}
	return IntentNone, false
}
