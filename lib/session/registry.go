package session

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultHistorySize is the number of closed sessions a Registry remembers.
const DefaultHistorySize = 64

// Record describes a session after it has been closed.
type Record struct {
	ID         uint64
	RemoteAddr string
	Policy     Policy
	Opened     time.Time
	Closed     time.Time
	Stats      Stats
	Err        string // empty when the session ended normally
}

// Duration returns how long the session was open.
func (r Record) Duration() time.Duration {
	return r.Closed.Sub(r.Opened)
}

// Registry tracks live sessions and keeps a bounded history of closed ones.
// Thread-safe for concurrent access; the sessions themselves share nothing.
type Registry struct {
	mu      sync.RWMutex
	nextID  uint64
	live    map[uint64]*Session
	history *lru.Cache[uint64, Record]
}

// NewRegistry creates a registry remembering up to historySize closed
// sessions. A non-positive size uses DefaultHistorySize.
func NewRegistry(historySize int) (*Registry, error) {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	history, err := lru.New[uint64, Record](historySize)
	if err != nil {
		return nil, err
	}
	return &Registry{
		live:    make(map[uint64]*Session),
		history: history,
	}, nil
}

// Register adds a live session and returns its ID.
func (r *Registry) Register(s *Session) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.live[r.nextID] = s
	return r.nextID
}

// Unregister removes a session and records it in the history with the
// error that ended it, if any. Unknown IDs are ignored.
func (r *Registry) Unregister(id uint64, cause error) {
	r.mu.Lock()
	s, ok := r.live[id]
	delete(r.live, id)
	r.mu.Unlock()

	if !ok {
		return
	}

	rec := Record{
		ID:         id,
		RemoteAddr: s.RemoteAddr(),
		Policy:     s.Policy(),
		Opened:     s.CreatedAt(),
		Closed:     time.Now(),
		Stats:      s.Stats(),
	}
	if cause != nil {
		rec.Err = cause.Error()
	}
	r.history.Add(id, rec)
}

// All returns the IDs of all live sessions in ascending order.
func (r *Registry) All() []uint64 {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.live))
	for id := range r.live {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// Recent returns the remembered closed sessions, oldest first.
func (r *Registry) Recent() []Record {
	return r.history.Values()
}

// Close closes every live session. Sessions stay registered until their
// owner unregisters them.
func (r *Registry) Close() error {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.live))
	for _, s := range r.live {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
