package session

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/tokenresolver/internal/clock"
	"github.com/giantswarm/tokenresolver/pkg/logging"
)

// MemoryStore keeps sessions in process memory, keyed by a random UUID.
type MemoryStore struct {
	clock clock.Clock

	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A nil clock uses real time.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clock:    clock.OrReal(clk),
		sessions: make(map[string]*Session),
	}
}

// Create stores a new session and returns a copy of it. IssuedAt defaults
// to now.
func (s *MemoryStore) Create(principal Principal, tokens Tokens, props Properties) *Session {
	if props.IssuedAt == nil {
		now := s.clock.Now()
		props.IssuedAt = &now
	}

	sess := &Session{
		ID:         uuid.NewString(),
		Principal:  clonePrincipal(principal),
		Tokens:     tokens,
		Properties: props,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	logging.Debug("Session", "Created session %s for subject=%s", logging.TruncateID(sess.ID), principal.Subject)

	return cloneSession(sess)
}

// Get returns a copy of the session with the given id.
func (s *MemoryStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return cloneSession(sess), true
}

// Current returns the session whose id is bound to ctx with WithSessionID.
func (s *MemoryStore) Current(ctx context.Context) (*Session, bool) {
	id, ok := IDFromContext(ctx)
	if !ok {
		return nil, false
	}
	return s.Get(id)
}

// Reissue rewrites the current session. Nil properties keep their stored
// values.
func (s *MemoryStore) Reissue(ctx context.Context, principal Principal, tokens Tokens, props Properties) error {
	id, ok := IDFromContext(ctx)
	if !ok {
		return ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", logging.TruncateID(id), ErrNoSession)
	}

	sess.Principal = clonePrincipal(principal)
	sess.Tokens = tokens
	if props.IssuedAt != nil {
		sess.Properties.IssuedAt = props.IssuedAt
	}
	if props.ExpiresAt != nil {
		sess.Properties.ExpiresAt = props.ExpiresAt
	}

	logging.Debug("Session", "Reissued session %s (token expires: %v)", logging.TruncateID(id), tokens.ExpiresAt)
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Prune removes sessions whose ExpiresAt is not after now and returns how
// many were removed.
func (s *MemoryStore) Prune() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, sess := range s.sessions {
		if exp := sess.Properties.ExpiresAt; exp != nil && !exp.After(now) {
			delete(s.sessions, id)
			count++
		}
	}
	if count > 0 {
		logging.Debug("Session", "Pruned %d expired sessions", count)
	}
	return count
}

// Count returns the number of stored sessions.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func cloneSession(sess *Session) *Session {
	out := *sess
	out.Principal = clonePrincipal(sess.Principal)
	out.Properties.IssuedAt = cloneTime(sess.Properties.IssuedAt)
	out.Properties.ExpiresAt = cloneTime(sess.Properties.ExpiresAt)
	return &out
}

func clonePrincipal(p Principal) Principal {
	p.Claims = maps.Clone(p.Claims)
	return p
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
