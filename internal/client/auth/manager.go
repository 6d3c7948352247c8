// Package auth owns the client's authentication session: the current user,
// the bearer token and its persisted copy.
//
// The Manager is the only writer of that state. Login, RefreshUser and the
// startup restore share a single in-flight slot; a call that finds the slot
// taken fails with ErrAuthInProgress instead of queueing. Logout is never
// rejected and always wins over an in-flight login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/kongtze/internal/client/storage"
	"github.com/atinyakov/kongtze/internal/models"
	"github.com/atinyakov/kongtze/internal/validate"
)

// TokenKey is the storage key of the persisted bearer token.
const TokenKey = "kongtze_token"

var (
	// ErrAuthInProgress is returned when a login, refresh or restore is
	// already running.
	ErrAuthInProgress = errors.New("auth: another authentication call is in progress")
	// ErrSessionReset is returned when a logout happened while the call
	// was waiting on the backend. Its result was discarded.
	ErrSessionReset = errors.New("auth: session was reset by logout")
)

// AuthAPI is the subset of the backend the manager needs.
type AuthAPI interface {
	Login(ctx context.Context, in models.UserLogin) (*models.Token, error)
	CurrentUser(ctx context.Context, token string) (*models.User, error)
}

// Manager holds the authentication session. It is safe for concurrent use.
type Manager struct {
	api   AuthAPI
	store storage.Store
	log   *zap.Logger

	mu    sync.RWMutex
	user  *models.User
	token string
	phase Phase
	gen   uint64

	busy      chan struct{}
	startOnce sync.Once
	ready     chan struct{}
}

// NewManager returns a manager in the Uninitialized phase. Call Start or
// Restore to load the persisted session.
func NewManager(api AuthAPI, store storage.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		api:   api,
		store: store,
		log:   log,
		busy:  make(chan struct{}, 1),
		ready: make(chan struct{}),
	}
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newState(m.user, m.token, m.phase)
}

// Token returns the current bearer token, or "" when anonymous.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Ready is closed once the startup restore has finished.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Start runs the startup restore in the background. Only the first call
// of Start or Restore has any effect.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.beginLoading()
		go func() {
			if err := m.restore(ctx); err != nil {
				m.log.Warn("session restore failed", zap.Error(err))
			}
		}()
	})
}

// Restore is the synchronous form of Start. If the restore already ran or
// is running, Restore waits for it and returns nil.
func (m *Manager) Restore(ctx context.Context) error {
	var (
		err error
		ran bool
	)
	m.startOnce.Do(func() {
		ran = true
		m.beginLoading()
		err = m.restore(ctx)
	})
	if ran {
		return err
	}
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) restore(ctx context.Context) error {
	defer m.finishLoading()

	select {
	case m.busy <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer m.release()

	gen := m.generation()
	token, err := m.store.Get(ctx, TokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		m.log.Info("no stored session")
		return nil
	}
	if errors.Is(err, storage.ErrCorrupt) {
		m.log.Warn("stored token unreadable, clearing it", zap.Error(err))
		return m.clearStored(ctx, fmt.Errorf("read stored token: %w", err))
	}
	if err != nil {
		return fmt.Errorf("read stored token: %w", err)
	}

	user, err := m.api.CurrentUser(ctx, token)
	if err != nil {
		m.log.Warn("stored token rejected, clearing it", zap.Error(err))
		return m.clearStored(ctx, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return ErrSessionReset
	}
	m.user, m.token, m.phase = user, token, PhaseAuthenticated
	m.log.Info("session restored", zap.Int("user_id", user.UserID))
	return nil
}

// Login validates creds locally, exchanges them for a token, resolves the
// user and persists the token. On any failure the previous session is left
// untouched and the backend error is returned as is.
func (m *Manager) Login(ctx context.Context, creds models.UserLogin) error {
	if err := validate.Struct(creds); err != nil {
		return err
	}
	if !m.acquire() {
		return ErrAuthInProgress
	}
	defer m.release()

	gen := m.generation()
	tok, err := m.api.Login(ctx, creds)
	if err != nil {
		return err
	}
	user, err := m.api.CurrentUser(ctx, tok.AccessToken)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return ErrSessionReset
	}
	if err := m.store.Set(ctx, TokenKey, tok.AccessToken); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	m.user, m.token, m.phase = user, tok.AccessToken, PhaseAuthenticated
	m.log.Info("logged in", zap.Int("user_id", user.UserID), zap.Bool("parent", user.IsParent))
	return nil
}

// Logout clears the session and removes the persisted token. The in-memory
// state is cleared even when the store fails; only that failure is returned.
// Logout is idempotent.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	hadSession := m.token != ""
	m.user, m.token = nil, ""
	if m.phase == PhaseAuthenticated {
		m.phase = PhaseAnonymous
	}
	if hadSession {
		m.log.Info("logged out")
	}
	// the stored token is removed even when ctx is already cancelled
	if err := m.store.Delete(context.WithoutCancel(ctx), TokenKey); err != nil {
		return fmt.Errorf("remove stored token: %w", err)
	}
	return nil
}

// RefreshUser re-fetches the current user. Any failure ends the session:
// the manager logs out and returns the error. Without a token it does nothing.
func (m *Manager) RefreshUser(ctx context.Context) error {
	if !m.acquire() {
		return ErrAuthInProgress
	}
	defer m.release()

	m.mu.RLock()
	token, gen := m.token, m.gen
	m.mu.RUnlock()
	if token == "" {
		return nil
	}

	user, err := m.api.CurrentUser(ctx, token)
	if err != nil {
		m.log.Warn("refresh failed, logging out", zap.Error(err))
		if lerr := m.Logout(ctx); lerr != nil {
			return errors.Join(err, lerr)
		}
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return ErrSessionReset
	}
	m.user = user
	return nil
}

// clearStored removes the persisted token after cause ended a restore. The
// removal ignores cancellation of ctx so a stale token never outlives it.
func (m *Manager) clearStored(ctx context.Context, cause error) error {
	if err := m.store.Delete(context.WithoutCancel(ctx), TokenKey); err != nil {
		return errors.Join(cause, fmt.Errorf("clear stored token: %w", err))
	}
	return cause
}

func (m *Manager) acquire() bool {
	select {
	case m.busy <- struct{}{}:
		return true
	default:
		return false
	}
}

func (m *Manager) release() { <-m.busy }

func (m *Manager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

func (m *Manager) beginLoading() {
	m.mu.Lock()
	if m.phase == PhaseUninitialized {
		m.phase = PhaseLoading
	}
	m.mu.Unlock()
}

func (m *Manager) finishLoading() {
	m.mu.Lock()
	if m.phase <= PhaseLoading {
		m.phase = PhaseAnonymous
	}
	m.mu.Unlock()
	close(m.ready)
}
