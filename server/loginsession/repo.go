package loginsession

import (
	"sync/atomic"
	"time"

	"github.com/jrsteele09/openleaf-portal/backend"
	"github.com/jrsteele09/openleaf-portal/session"
)

// Session is one signed-in browser: the controller owning its identity-provider session and
// the backend services that carry its bearer token.
type Session struct {
	ID         string
	Controller *session.Controller
	Services   *backend.Services
	CreatedAt  time.Time

	lastSeen atomic.Int64
}

func New(id string, controller *session.Controller, services *backend.Services, now time.Time) *Session {
	s := &Session{ID: id, Controller: controller, Services: services, CreatedAt: now}
	s.Touch(now)
	return s
}

// Subject is the identity-provider user id, or empty once the session has ended.
func (s *Session) Subject() string {
	if claims := s.Controller.Claims(); claims != nil {
		return claims.Subject
	}
	return ""
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

type Repo interface {
	Upsert(sessionID string, session *Session) error
	Get(sessionID string) (*Session, error)
	// Delete removes and returns the session so the caller can shut it down.
	Delete(sessionID string) (*Session, error)
	BySubject(subject string) []*Session
	// All returns a snapshot of every live session.
	All() []*Session
	// Drain removes and returns every session.
	Drain() []*Session
}
