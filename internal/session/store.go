package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is an in-memory session store with idle-based eviction. Sessions
// never disappear underneath an active conversation as long as the idle
// TTL exceeds the loop's round timeout.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration
	logger   *zap.Logger
}

// NewStore constructs a store. idleTTL <= 0 disables eviction.
func NewStore(idleTTL time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{sessions: map[string]*Session{}, idleTTL: idleTTL, logger: logger}
}

// GetOrCreate returns the session for id, creating it on first use. An
// empty id gets a generated UUID.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	if sess, ok := st.sessions[id]; ok {
		return sess
	}
	sess := newSession(id, time.Now())
	st.sessions[id] = sess
	return sess
}

// Get returns an existing session.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len reports how many sessions are held.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// StartSweeper evicts idle sessions on an interval until ctx is done.
func (st *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if st.idleTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				st.sweep(now)
			}
		}
	}()
}

func (st *Store) sweep(now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, sess := range st.sessions {
		if sess.idleSince(now) > st.idleTTL {
			delete(st.sessions, id)
			st.logger.Debug("evicted idle session", zap.String("session_id", id))
		}
	}
}
