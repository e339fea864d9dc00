package loginsession

import (
	"sync"

	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
)

var _ Repo = (*InMemoryLoginSessionRepo)(nil)

// InMemoryLoginSessionRepo is an in-memory implementation of Repo
type InMemoryLoginSessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session // sessionID -> live session
}

func NewInMemoryLoginSessionRepo() *InMemoryLoginSessionRepo {
	return &InMemoryLoginSessionRepo{
		sessions: make(map[string]*Session),
	}
}

func (r *InMemoryLoginSessionRepo) Upsert(sessionID string, session *Session) error {
	if sessionID == "" {
		return errs.Wrapf(errs.ErrInvalidPayload, "sessionID is required")
	}
	if session == nil || session.Controller == nil {
		return errs.Wrapf(errs.ErrInvalidPayload, "session with a controller is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = session
	return nil
}

func (r *InMemoryLoginSessionRepo) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	return session, nil
}

func (r *InMemoryLoginSessionRepo) Delete(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	delete(r.sessions, sessionID)
	return session, nil
}

func (r *InMemoryLoginSessionRepo) BySubject(subject string) []*Session {
	if subject == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Session
	for _, session := range r.sessions {
		if session.Subject() == subject {
			matches = append(matches, session)
		}
	}
	return matches
}

func (r *InMemoryLoginSessionRepo) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		all = append(all, session)
	}
	return all
}

func (r *InMemoryLoginSessionRepo) Drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := make([]*Session, 0, len(r.sessions))
	for id, session := range r.sessions {
		drained = append(drained, session)
		delete(r.sessions, id)
	}
	return drained
}

// Len reports how many sessions are live.
func (r *InMemoryLoginSessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
