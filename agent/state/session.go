package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConversationState is the per-session source of truth for the dialogue state machine.
// - History is append-only and doubles as the oracle context window and audit log.
// - Phase is the state machine variable; Intent + Slots describe the current topic.
type ConversationState struct {
	SessionID string `json:"session_id"`

	History []Turn            `json:"history"`
	Phase   Phase             `json:"phase"`
	Intent  Intent            `json:"intent"`
	Slots   map[string]string `json:"slots,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

const (
	SlotOrderNumber = "order_number"
	SlotEmail       = "email"
)

var (
	ErrNilState          = errors.New("conversation state is nil")
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrInvariant         = errors.New("conversation invariant violated")
)

func NewConversationState(sessionID string, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID: sessionID,
		Phase:     PhaseWelcome,
		Intent:    IntentNone,
		Slots:     make(map[string]string, 2),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

/* ------------------------------ History ------------------------------ */

// Append adds a turn to the end of the history. Empty user text is dropped.
func (s *ConversationState) Append(role Role, text string) {
	if role == RoleUser && strings.TrimSpace(text) == "" {
		return
	}
	s.History = append(s.History, Turn{Role: role, Text: text})
}

// Window returns a copy of the last n turns. n <= 0 returns the whole history.
func (s *ConversationState) Window(n int) []Turn {
	if s == nil || len(s.History) == 0 {
		return nil
	}
	start := 0
	if n > 0 && len(s.History) > n {
		start = len(s.History) - n
	}
	out := make([]Turn, len(s.History)-start)
	copy(out, s.History[start:])
	return out
}

/* ------------------------------- Slots ------------------------------- */

// SetIntent switches the tracked intent. Slots are cleared whenever the
// intent actually changes.
func (s *ConversationState) SetIntent(intent Intent) {
	if s.Intent != intent {
		s.ResetSlots()
	}
	s.Intent = intent
}

func (s *ConversationState) ResetSlots() {
	s.Slots = make(map[string]string, 2)
}

func (s *ConversationState) Slot(key string) string {
	if s.Slots == nil {
		return ""
	}
	return s.Slots[key]
}

// MergeSlot writes a slot only when the value is non-empty; a present slot is
// never overwritten by a missing value.
func (s *ConversationState) MergeSlot(key, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if s.Slots == nil {
		s.Slots = make(map[string]string, 2)
	}
	s.Slots[key] = value
	return true
}

/* ----------------------------- Transitions ---------------------------- */

var transitions = map[Phase][]Phase{
	PhaseWelcome:         {PhaseIntentDetection},
	PhaseIntentDetection: {PhaseIntentDetection, PhaseInfoGathering},
	PhaseInfoGathering:   {PhaseInfoGathering, PhaseIntentDetection, PhaseDataRetrieval},
	PhaseDataRetrieval:   {PhaseIntentDetection, PhaseInfoGathering},
}

func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Transition moves the state machine along one of the allowed edges.
func (s *ConversationState) Transition(to Phase) error {
	if s == nil {
		return ErrNilState
	}
	if !CanTransition(s.Phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, to)
	}
	s.Phase = to
	return nil
}

func (s *ConversationState) Validate() error {
	if s == nil {
		return ErrNilState
	}
	if !s.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %d", ErrInvariant, s.Phase)
	}
	if !s.Intent.Valid() {
		return fmt.Errorf("%w: unknown intent %d", ErrInvariant, s.Intent)
	}
	if s.Phase == PhaseWelcome && s.Intent != IntentNone {
		return fmt.Errorf("%w: intent %s set during welcome", ErrInvariant, s.Intent)
	}
	allowed := s.Intent.RequiredSlots()
	for key := range s.Slots {
		if !contains(allowed, key) {
			return fmt.Errorf("%w: slot %q not used by intent %s", ErrInvariant, key, s.Intent)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
