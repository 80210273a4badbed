package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"agenda-view/view"
)

// Session is one user's view state: a store and the repository both it and
// the forms of that user talk through.
type Session struct {
	ID    string
	User  string
	Store *view.Store
	Repo  view.Repository

	mu       sync.Mutex
	active   int
	lastSeen time.Time
}

// Sessions keeps one Session per user and serializes work on each of them.
type Sessions struct {
	newRepo RepositoryFactory
	idle    time.Duration
	log     *log.Logger
	now     func() time.Time

	mu     sync.Mutex
	byUser map[string]*Session
}

// NewSessions creates a registry. Sessions unused for idle are dropped by
// Sweep; a zero idle keeps them forever.
func NewSessions(factory RepositoryFactory, idle time.Duration, logger *log.Logger) *Sessions {
	if factory == nil {
		panic("api.NewSessions: repository factory is nil")
	}
	if logger == nil {
		panic("api.NewSessions: logger is nil")
	}
	return &Sessions{
		newRepo: factory,
		idle:    idle,
		log:     logger,
		now:     time.Now,
		byUser:  make(map[string]*Session),
	}
}

// With runs fn on userID's session, creating it on first use. Calls for the
// same user run one at a time.
func (s *Sessions) With(userID string, fn func(*Session) error) error {
	sess := s.acquire(userID)
	defer s.release(sess)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

func (s *Sessions) acquire(userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUser[userID]
	if !ok {
		repo := s.newRepo(userID)
		sess = &Session{
			ID:    uuid.NewString(),
			User:  userID,
			Repo:  repo,
			Store: view.NewStore(repo, s.log),
		}
		s.byUser[userID] = sess
		s.log.WithFields(log.Fields{"session": sess.ID, "user": userID}).Debug("session opened")
	}
	sess.active++
	sess.lastSeen = s.now()
	return sess
}

func (s *Sessions) release(sess *Session) {
	s.mu.Lock()
	sess.active--
	sess.lastSeen = s.now()
	s.mu.Unlock()
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}

// Sweep drops sessions idle for longer than the idle timeout and returns how
// many were dropped. Sessions with work in flight are kept.
func (s *Sessions) Sweep() int {
	if s.idle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for user, sess := range s.byUser {
		if sess.active > 0 || sess.lastSeen.After(cutoff) {
			continue
		}
		delete(s.byUser, user)
		dropped++
		s.log.WithFields(log.Fields{"session": sess.ID, "user": user}).Debug("session expired")
	}
	return dropped
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	if s.idle <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Infof("expired %d idle sessions", n)
			}
		}
	}
}
