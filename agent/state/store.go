package state

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrStateNotFound   = errors.New("session state not found")
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

const defaultStoreTTL = 2 * time.Hour

// Store is the persistence contract used by the orchestrator.
type Store interface {
	Load(ctx context.Context, sessionID string) (*ConversationState, error)
	Save(ctx context.Context, st *ConversationState) error
	Delete(ctx context.Context, sessionID string) error
}

// StoreOption customizes MemoryStore.
type StoreOption func(*MemoryStore)

// WithTTL sets how long an idle session is kept. ttl <= 0 keeps sessions
// until they are deleted.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart. Load and Save hand out copies so callers never share a state.
type MemoryStore struct {
	entries *xsync.MapOf[string, storeEntry]
	ttl     time.Duration
	now     func() time.Time
}

type storeEntry struct {
	state     *ConversationState
	expiresAt time.Time
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	store := &MemoryStore{
		entries: xsync.NewMapOf[string, storeEntry](),
		ttl:     defaultStoreTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*ConversationState, error) {
	key, err := storeKey(sessionID)
	if err != nil {
		return nil, err
	}
	entry, ok := s.entries.Load(key)
	if !ok {
		return nil, ErrStateNotFound
	}
	if s.expired(entry) {
		s.entries.Delete(key)
		return nil, ErrStateNotFound
	}
	return entry.state.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, st *ConversationState) error {
	if st == nil {
		return ErrNilSessionState
	}
	key, err := storeKey(st.SessionID)
	if err != nil {
		return err
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = s.now().UTC()
	}

	entry := storeEntry{state: st.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.entries.Store(key, entry)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	key, err := storeKey(sessionID)
	if err != nil {
		return err
	}
	s.entries.Delete(key)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	removed := 0
	s.entries.Range(func(key string, entry storeEntry) bool {
		if s.expired(entry) {
			s.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (s *MemoryStore) Len() int {
	return s.entries.Size()
}

func (s *MemoryStore) expired(entry storeEntry) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}

func storeKey(sessionID string) (string, error) {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return "", ErrInvalidSession
	}
	return trimmed, nil
}

// Clone returns a deep copy of the state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.History = append([]Turn(nil), s.History...)
	out.Slots = make(map[string]string, len(s.Slots))
	for k, v := range s.Slots {
		out.Slots[k] = v
	}
	return &out
}
