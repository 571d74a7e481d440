package wizard

import (
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/anuntul/api/internal/catalog"
)

const (
	sessionIDPrefix = "ws_"
	// DefaultSessionTTL bounds how long an untouched wizard session survives
	// before the sweeper discards it.
	DefaultSessionTTL = 2 * time.Hour
)

var (
	// ErrSessionNotFound indicates the session id does not resolve.
	ErrSessionNotFound = errors.New("wizard: session not found")
	// ErrSessionForbidden indicates the session belongs to a different user.
	ErrSessionForbidden = errors.New("wizard: session owned by another user")
)

// SessionStoreDeps bundles collaborators for the in-memory session store.
type SessionStoreDeps struct {
	Tree        *catalog.Tree
	Clock       func() time.Time
	IDGenerator func() string
	TTL         time.Duration
}

// SessionStore owns the live wizard sessions. Sessions are in-memory state
// with an explicit lifecycle: created when a wizard starts, discarded on
// delete or when the TTL sweeper reaps them.
type SessionStore struct {
	tree  *catalog.Tree
	clock func() time.Time
	newID func() string
	ttl   time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore constructs a SessionStore from its dependencies.
func NewSessionStore(deps SessionStoreDeps) (*SessionStore, error) {
	if deps.Tree == nil {
		return nil, errors.New("wizard: session store requires catalog tree")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string {
			return sessionIDPrefix + ulid.Make().String()
		}
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &SessionStore{
		tree:     deps.Tree,
		clock:    func() time.Time { return clock().UTC() },
		newID:    newID,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}, nil
}

// Create starts a fresh session owned by the given user.
func (st *SessionStore) Create(userID string) (*Session, error) {
	uid := trimID(userID)
	if uid == "" {
		return nil, errors.New("wizard: user id is required")
	}

	session := newSession(st.newID(), uid, st.tree, st.clock)

	st.mu.Lock()
	st.sessions[session.ID()] = session
	st.mu.Unlock()

	return session, nil
}

// Get returns the session when it exists and belongs to userID.
func (st *SessionStore) Get(sessionID, userID string) (*Session, error) {
	st.mu.Lock()
	session, ok := st.sessions[trimID(sessionID)]
	st.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.UserID() != trimID(userID) {
		return nil, ErrSessionForbidden
	}
	return session, nil
}

// Delete discards the session. Deleting an unknown id is a no-op.
func (st *SessionStore) Delete(sessionID string) {
	st.mu.Lock()
	delete(st.sessions, trimID(sessionID))
	st.mu.Unlock()
}

// Sweep removes sessions idle past the TTL and reports how many were reaped.
func (st *SessionStore) Sweep(now time.Time) int {
	cutoff := now.UTC().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, session := range st.sessions {
		if !session.touchedSince(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
