package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	model "github.com/jlynch25/kaizen_api/models"
)

type AuthState string

const (
	StateUnauthenticated AuthState = "unauthenticated"
	StateLoading         AuthState = "loading"
	StateAuthenticated   AuthState = "authenticated"
	StateError           AuthState = "error"
)

// TokenStore persists the session token between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

type FileTokenStore struct {
	Path string
}

func (f FileTokenStore) Load() (string, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("client: read token: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (f FileTokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("client: save token: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("client: save token: %w", err)
	}
	return nil
}

func (f FileTokenStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("client: clear token: %w", err)
	}
	return nil
}

type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryTokenStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryTokenStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokenStore) Clear() error { return m.Save("") }

// Session keeps the logged-in user of an API client.
type Session struct {
	client *Client
	store  TokenStore

	mu    sync.RWMutex
	state AuthState
	token string
	user  *model.User
	err   error
}

func NewSession(c *Client, store TokenStore) *Session {
	return &Session{client: c, store: store, state: StateUnauthenticated}
}

func (s *Session) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Err is the failure behind StateError.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Session) Authenticated() bool { return s.State() == StateAuthenticated }

// Client returns an API client carrying the session token.
func (s *Session) Client() *Client { return s.client.WithToken(s.Token()) }

func (s *Session) set(state AuthState, token string, user *model.User, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state, s.token, s.user, s.err = state, token, user, err
}

// Restore resumes a persisted session. A token the API no longer accepts is
// discarded and the session stays unauthenticated.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.store.Load()
	if err != nil {
		return err
	}
	if token == "" {
		s.set(StateUnauthenticated, "", nil, nil)
		return nil
	}

	s.set(StateLoading, token, nil, nil)
	if err := s.fetchUser(ctx, token); err != nil {
		s.reset(nil)
	}
	return nil
}

func (s *Session) fetchUser(ctx context.Context, token string) error {
	user, err := s.client.WithToken(token).Me(ctx)
	if err != nil {
		return err
	}
	s.set(StateAuthenticated, token, &user, nil)
	return nil
}

// reset drops the token; a non-nil cause leaves the session in StateError.
func (s *Session) reset(cause error) {
	_ = s.store.Clear()
	if cause != nil {
		s.set(StateError, "", nil, cause)
		return
	}
	s.set(StateUnauthenticated, "", nil, nil)
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	s.set(StateLoading, "", nil, nil)

	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.reset(err)
		return err
	}
	if err := s.store.Save(token); err != nil {
		s.reset(err)
		return err
	}
	if err := s.fetchUser(ctx, token); err != nil {
		s.reset(err)
		return err
	}
	return nil
}

// Register creates the account and logs straight in.
func (s *Session) Register(ctx context.Context, username, email, password string) error {
	s.set(StateLoading, "", nil, nil)

	if _, err := s.client.Register(ctx, username, email, password); err != nil {
		s.reset(err)
		return err
	}
	return s.Login(ctx, email, password)
}

func (s *Session) Logout() error {
	err := s.store.Clear()
	s.set(StateUnauthenticated, "", nil, nil)
	return err
}

// Refresh reloads the user for the current token.
func (s *Session) Refresh(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		return nil
	}
	if err := s.fetchUser(ctx, token); err != nil {
		s.reset(err)
		return err
	}
	return nil
}
