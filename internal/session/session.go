// Package session keeps the in-memory conversation state of each user.
//
// A Session holds two independent slots: the active flow step and the food record
// awaiting confirmation. Sessions expire after an idle TTL and are lost on restart.
package session

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/BTreeMap/CalCounter/internal/models"
)

const (
	// DefaultMaxSessions bounds the number of concurrently tracked users.
	DefaultMaxSessions = 10000
	// DefaultTTL is the idle time after which a session is evicted.
	DefaultTTL = 24 * time.Hour
)

// Session is the conversation state of one user.
type Session struct {
	Flow        Step              // nil when no flow is active
	PendingFood *models.Nutrition // nil when nothing awaits confirmation
	UpdatedAt   time.Time
}

// IsEmpty reports whether the session carries no state.
func (s Session) IsEmpty() bool {
	return s.Flow == nil && s.PendingFood == nil
}

// Store maps user ids to sessions. It is safe for concurrent use.
type Store interface {
	Get(userID string) (Session, bool)
	Set(userID string, s Session)
	Clear(userID string)
	Len() int
}

// Opts holds configuration for the session store.
type Opts struct {
	MaxSessions int
	TTL         time.Duration
}

// Option configures the session store.
type Option func(*Opts)

// WithMaxSessions sets the maximum number of sessions kept in memory.
func WithMaxSessions(n int) Option {
	return func(o *Opts) {
		o.MaxSessions = n
	}
}

// WithTTL sets the idle expiry of a session.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.TTL = ttl
	}
}

// MemoryStore is an expiring LRU-backed Store.
type MemoryStore struct {
	cache *expirable.LRU[string, Session]
	now   func() time.Time
}

// NewMemoryStore creates a session store with the given options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := Opts{MaxSessions: DefaultMaxSessions, TTL: DefaultTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	slog.Debug("Session store created", "maxSessions", cfg.MaxSessions, "ttl", cfg.TTL)
	onEvict := func(userID string, _ Session) {
		slog.Debug("Session removed", "userID", userID)
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, Session](cfg.MaxSessions, onEvict, cfg.TTL),
		now:   time.Now,
	}
}

// Get returns the session of a user, if any.
func (m *MemoryStore) Get(userID string) (Session, bool) {
	return m.cache.Get(userID)
}

// Set stores the session and refreshes its TTL. An empty session clears the entry.
func (m *MemoryStore) Set(userID string, s Session) {
	if s.IsEmpty() {
		m.cache.Remove(userID)
		return
	}
	s.UpdatedAt = m.now()
	m.cache.Add(userID, s)
}

// Clear removes the session of a user.
func (m *MemoryStore) Clear(userID string) {
	m.cache.Remove(userID)
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}
