package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"edvora-attempt-service/internal/app"
	"edvora-attempt-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-backed implementation of app.SessionStore for one
// user. The user record (including attempt history) is persisted as JSON
// under session:user:{userID} so the session survives restarts; auth-change
// broadcasts stay in-process.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	key    string

	mu          sync.RWMutex
	token       string
	user        *domain.User
	subscribers map[chan domain.AuthChange]struct{}
}

func NewSessionStore(client *redis.Client, ttl time.Duration, userID string) *SessionStore {
	return &SessionStore{
		client:      client,
		ttl:         ttl,
		key:         "session:user:" + userID,
		subscribers: make(map[chan domain.AuthChange]struct{}),
	}
}

// Resume loads a previously persisted user record, if any.
func (s *SessionStore) Resume(ctx context.Context) error {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return fmt.Errorf("decode session record: %w", err)
	}
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return nil
}

// Login installs the token, merges any resumed history for the same user, and
// persists the record.
func (s *SessionStore) Login(ctx context.Context, token string, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil && s.user.ID == user.ID {
		user.AttemptedQuizzes = s.user.AttemptedQuizzes
	}
	s.token = token
	s.user = &user
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	s.broadcastLocked()
	return nil
}

// Logout clears the session and removes the persisted record.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	s.broadcastLocked()
	return nil
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

// AppendAttempt adds a graded attempt to the history and persists the record.
func (s *SessionStore) AppendAttempt(ctx context.Context, record domain.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return domain.ErrNotAuthenticated
	}
	s.user.AttemptedQuizzes = append(s.user.AttemptedQuizzes, record)
	if err := s.persistLocked(ctx); err != nil {
		// roll back the in-memory append so a retry does not double-record
		s.user.AttemptedQuizzes = s.user.AttemptedQuizzes[:len(s.user.AttemptedQuizzes)-1]
		return err
	}
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

func (s *SessionStore) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.user)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist session record: %w", err)
	}
	return nil
}

func (s *SessionStore) broadcastLocked() {
	change := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- change:
		default:
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

// SessionHub hands out Redis-backed session stores, resuming persisted
// records on first use and reusing live stores after that.
type SessionHub struct {
	client *redis.Client
	ttl    time.Duration

	mu       sync.Mutex
	sessions map[string]*SessionStore
}

func NewSessionHub(client *redis.Client, ttl time.Duration) *SessionHub {
	return &SessionHub{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*SessionStore),
	}
}

func (h *SessionHub) Session(ctx context.Context, userID, name, token string) (app.SessionStore, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if store, ok := h.sessions[userID]; ok {
		return store, nil
	}
	store := NewSessionStore(h.client, h.ttl, userID)
	if err := store.Resume(ctx); err != nil {
		return nil, err
	}
	user := domain.User{ID: userID, Name: name}
	if resumed, ok := store.CurrentUser(); ok {
		user = resumed
	}
	if err := store.Login(ctx, token, user); err != nil {
		return nil, err
	}
	h.sessions[userID] = store
	return store, nil
}
