package memory

import (
	"context"
	"sync"

	"edvora-attempt-service/internal/app"
	"edvora-attempt-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore holding one
// authenticated user. Attempt history is append-only; records are never
// rewritten once stored.
type SessionStore struct {
	mu          sync.RWMutex
	token       string
	user        *domain.User
	subscribers map[chan domain.AuthChange]struct{}
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		subscribers: make(map[chan domain.AuthChange]struct{}),
	}
}

// Login installs the authenticated user and token and notifies subscribers.
func (s *SessionStore) Login(token string, user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
	s.broadcastLocked()
}

// Logout clears the session and notifies subscribers.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	s.broadcastLocked()
}

func (s *SessionStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *SessionStore) CurrentUser() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// AppendAttempt adds a graded attempt to the user's history.
func (s *SessionStore) AppendAttempt(_ context.Context, record domain.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return domain.ErrNotAuthenticated
	}
	s.user.AttemptedQuizzes = append(s.user.AttemptedQuizzes, record)
	s.broadcastLocked()
	return nil
}

// Subscribe returns a channel that receives auth-state changes. The caller
// must invoke the returned cancel function to avoid leaks.
func (s *SessionStore) Subscribe() (<-chan domain.AuthChange, func()) {
	ch := make(chan domain.AuthChange, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *SessionStore) broadcastLocked() {
	change := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- change:
		default:
			// Drop the stale update so a slow subscriber never blocks auth changes.
			select {
			case <-ch:
			default:
			}
			ch <- change
		}
	}
}

func (s *SessionStore) snapshotLocked() domain.AuthChange {
	if s.user == nil {
		return domain.AuthChange{}
	}
	return domain.AuthChange{LoggedIn: true, User: *s.user}
}

// SessionHub hands out one SessionStore per user, creating it on first use.
type SessionHub struct {
	mu       sync.Mutex
	sessions map[string]*SessionStore
}

func NewSessionHub() *SessionHub {
	return &SessionHub{sessions: make(map[string]*SessionStore)}
}

func (h *SessionHub) Session(_ context.Context, userID, name, token string) (app.SessionStore, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	store, ok := h.sessions[userID]
	if !ok {
		store = NewSessionStore()
		store.Login(token, domain.User{ID: userID, Name: name})
		h.sessions[userID] = store
	}
	return store, nil
}
