package auth

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/kongtze/internal/client/storage"
	"github.com/atinyakov/kongtze/internal/client/transport"
	"github.com/atinyakov/kongtze/internal/models"
	"github.com/atinyakov/kongtze/internal/validate"
)

// fakeAuthAPI implements AuthAPI for testing.
type fakeAuthAPI struct {
	LoginFunc       func(ctx context.Context, in models.UserLogin) (*models.Token, error)
	CurrentUserFunc func(ctx context.Context, token string) (*models.User, error)
	calls           atomic.Int32
}

func (f *fakeAuthAPI) Login(ctx context.Context, in models.UserLogin) (*models.Token, error) {
	f.calls.Add(1)
	return f.LoginFunc(ctx, in)
}

func (f *fakeAuthAPI) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	f.calls.Add(1)
	return f.CurrentUserFunc(ctx, token)
}

// failingStore wraps a MemoryStore and fails deletes.
type failingStore struct {
	*storage.MemoryStore
	deleteErr error
}

func (s *failingStore) Delete(ctx context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.Delete(ctx, key)
}

// ctxStore wraps a MemoryStore and, like the network-backed drivers,
// refuses to work once ctx is done.
type ctxStore struct {
	*storage.MemoryStore
}

func (s *ctxStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *ctxStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Delete(ctx, key)
}

var errUnauthorized = &transport.HTTPError{Status: http.StatusUnauthorized, Detail: "Could not validate credentials"}

func parent() *models.User {
	email := "mum@example.com"
	return &models.User{UserID: 1, Name: "Mum", Email: &email, IsParent: true}
}

// backend accepts one parent with password "hunter22" whose token is "tok-1".
func backend() *fakeAuthAPI {
	return &fakeAuthAPI{
		LoginFunc: func(ctx context.Context, in models.UserLogin) (*models.Token, error) {
			if in.Email == "mum@example.com" && in.Password == "hunter22" {
				return &models.Token{AccessToken: "tok-1", TokenType: "bearer"}, nil
			}
			return nil, errUnauthorized
		},
		CurrentUserFunc: func(ctx context.Context, token string) (*models.User, error) {
			if token == "tok-1" {
				return parent(), nil
			}
			return nil, errUnauthorized
		},
	}
}

func storedToken(t *testing.T, s storage.Store) (string, bool) {
	t.Helper()
	v, err := s.Get(context.Background(), TokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false
	}
	require.NoError(t, err)
	return v, true
}

func TestManager_InitialState(t *testing.T) {
	m := NewManager(backend(), storage.NewMemoryStore(), nil)
	st := m.State()
	assert.Equal(t, PhaseUninitialized, st.Phase)
	assert.True(t, st.IsLoading)
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
}

func TestManager_Restore(t *testing.T) {
	tests := []struct {
		name       string
		stored     string
		wantAuth   bool
		wantErr    bool
		wantStored bool
	}{
		{"no stored token", "", false, false, false},
		{"valid stored token", "tok-1", true, false, true},
		{"rejected stored token", "expired", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			if tt.stored != "" {
				require.NoError(t, store.Set(context.Background(), TokenKey, tt.stored))
			}
			m := NewManager(backend(), store, nil)

			err := m.Restore(context.Background())
			if tt.wantErr {
				assert.Equal(t, http.StatusUnauthorized, transport.StatusCode(err))
			} else {
				assert.NoError(t, err)
			}

			st := m.State()
			assert.False(t, st.IsLoading)
			assert.Equal(t, tt.wantAuth, st.IsAuthenticated)
			if tt.wantAuth {
				assert.Equal(t, PhaseAuthenticated, st.Phase)
				assert.Equal(t, "tok-1", st.Token)
				assert.Equal(t, 1, st.User.UserID)
			} else {
				assert.Equal(t, PhaseAnonymous, st.Phase)
				assert.Empty(t, st.Token)
			}
			_, ok := storedToken(t, store)
			assert.Equal(t, tt.wantStored, ok)

			select {
			case <-m.Ready():
			default:
				t.Fatal("Ready must be closed after Restore")
			}
		})
	}
}

func TestManager_StartRunsOnce(t *testing.T) {
	api := backend()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), TokenKey, "tok-1"))
	m := NewManager(api, store, nil)

	m.Start(context.Background())
	m.Start(context.Background())

	select {
	case <-m.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("restore did not finish")
	}
	require.NoError(t, m.Restore(context.Background()))

	assert.True(t, m.State().IsAuthenticated)
	assert.Equal(t, int32(1), api.calls.Load())
}

func TestManager_Login(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(backend(), store, nil)
	require.NoError(t, m.Restore(context.Background()))

	err := m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "hunter22"})
	require.NoError(t, err)

	st := m.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, PhaseAuthenticated, st.Phase)
	assert.Equal(t, "tok-1", m.Token())
	tok, ok := storedToken(t, store)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", tok)
}

func TestManager_LoginRejectedKeepsState(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(backend(), store, nil)
	require.NoError(t, m.Restore(context.Background()))
	before := m.State()

	err := m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "wrong-pass"})
	var herr *transport.HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusUnauthorized, herr.Status)

	assert.Equal(t, before, m.State())
	_, ok := storedToken(t, store)
	assert.False(t, ok)
}

func TestManager_LoginRejectedKeepsPreviousSession(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(backend(), store, nil)
	require.NoError(t, m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "hunter22"}))

	err := m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "wrong-pass"})
	require.Error(t, err)

	assert.True(t, m.State().IsAuthenticated)
	tok, _ := storedToken(t, store)
	assert.Equal(t, "tok-1", tok)
}

func TestManager_LoginValidation(t *testing.T) {
	api := backend()
	m := NewManager(api, storage.NewMemoryStore(), nil)

	err := m.Login(context.Background(), models.UserLogin{PIN: "12"})
	var verr *validate.ValidationError
	require.ErrorAs(t, err, &verr)
	_, ok := verr.Field("pin")
	assert.True(t, ok)
	assert.Equal(t, int32(0), api.calls.Load(), "no request may be sent")
}

func TestManager_Logout(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(backend(), store, nil)
	require.NoError(t, m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "hunter22"}))

	require.NoError(t, m.Logout(context.Background()))
	require.NoError(t, m.Logout(context.Background()))

	st := m.State()
	assert.Nil(t, st.User)
	assert.Empty(t, st.Token)
	assert.False(t, st.IsAuthenticated)
	assert.Equal(t, PhaseAnonymous, st.Phase)
	_, ok := storedToken(t, store)
	assert.False(t, ok)
}

func TestManager_LogoutStoreFailureStillClears(t *testing.T) {
	boom := errors.New("disk full")
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	m := NewManager(backend(), store, nil)
	require.NoError(t, m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "hunter22"}))

	store.deleteErr = boom
	err := m.Logout(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.State().IsAuthenticated)
	assert.Empty(t, m.Token())
}

func TestManager_RefreshUser(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		api := backend()
		m := NewManager(api, storage.NewMemoryStore(), nil)
		require.NoError(t, m.RefreshUser(context.Background()))
		assert.Equal(t, int32(0), api.calls.Load())
	})

	t.Run("updated user", func(t *testing.T) {
		api := backend()
		m := NewManager(api, storage.NewMemoryStore(), nil)
		require.NoError(t, m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "hunter22"}))

		api.CurrentUserFunc = func(ctx context.Context, token string) (*models.User, error) {
			u := parent()
			u.Name = "Mum (renamed)"
			return u, nil
		}
		require.NoError(t, m.RefreshUser(context.Background()))
		assert.Equal(t, "Mum (renamed)", m.State().User.Name)
	})

	t.Run("rejected token logs out", func(t *testing.T) {
		api := backend()
		store := storage.NewMemoryStore()
		m := NewManager(api, store, nil)
		require.NoError(t, m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "hunter22"}))

		api.CurrentUserFunc = func(ctx context.Context, token string) (*models.User, error) {
			return nil, errUnauthorized
		}
		err := m.RefreshUser(context.Background())
		assert.Same(t, errUnauthorized, err)

		st := m.State()
		assert.False(t, st.IsAuthenticated)
		assert.Nil(t, st.User)
		assert.Empty(t, st.Token)
		_, ok := storedToken(t, store)
		assert.False(t, ok)
	})
}

// blockingBackend holds Login until release is closed.
func blockingBackend(entered chan<- struct{}, release <-chan struct{}) *fakeAuthAPI {
	api := backend()
	login := api.LoginFunc
	api.LoginFunc = func(ctx context.Context, in models.UserLogin) (*models.Token, error) {
		entered <- struct{}{}
		<-release
		return login(ctx, in)
	}
	return api
}

func TestManager_ConcurrentLoginRejected(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	m := NewManager(blockingBackend(entered, release), storage.NewMemoryStore(), nil)
	creds := models.UserLogin{Email: "mum@example.com", Password: "hunter22"}

	done := make(chan error, 1)
	go func() { done <- m.Login(context.Background(), creds) }()
	<-entered

	assert.ErrorIs(t, m.Login(context.Background(), creds), ErrAuthInProgress)
	assert.ErrorIs(t, m.RefreshUser(context.Background()), ErrAuthInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.True(t, m.State().IsAuthenticated)

	// The slot is free again.
	require.NoError(t, m.Login(context.Background(), creds))
}

func TestManager_LogoutWinsOverInFlightLogin(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	store := storage.NewMemoryStore()
	m := NewManager(blockingBackend(entered, release), store, nil)

	done := make(chan error, 1)
	go func() {
		done <- m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "hunter22"})
	}()
	<-entered

	require.NoError(t, m.Logout(context.Background()))
	close(release)

	assert.ErrorIs(t, <-done, ErrSessionReset)
	assert.False(t, m.State().IsAuthenticated)
	_, ok := storedToken(t, store)
	assert.False(t, ok)
}

func TestManager_StateIsSnapshot(t *testing.T) {
	m := NewManager(backend(), storage.NewMemoryStore(), nil)
	require.NoError(t, m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "hunter22"}))

	st := m.State()
	st.User.Name = "changed"
	*st.User.Email = "changed@example.com"

	again := m.State()
	assert.Equal(t, "Mum", again.User.Name)
	assert.Equal(t, "mum@example.com", *again.User.Email)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "loading", PhaseLoading.String())
	assert.Equal(t, "anonymous", PhaseAnonymous.String())
	assert.Equal(t, "unknown", Phase(42).String())
}

func TestManager_RefreshCancelledStillClearsStore(t *testing.T) {
	api := backend()
	store := &ctxStore{MemoryStore: storage.NewMemoryStore()}
	m := NewManager(api, store, nil)
	require.NoError(t, m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "hunter22"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api.CurrentUserFunc = func(ctx context.Context, token string) (*models.User, error) {
		cancel()
		return nil, ctx.Err()
	}

	err := m.RefreshUser(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, m.State().IsAuthenticated)
	_, ok := storedToken(t, store.MemoryStore)
	assert.False(t, ok, "stored token must be removed")
}

func TestManager_LogoutWithCancelledContext(t *testing.T) {
	store := &ctxStore{MemoryStore: storage.NewMemoryStore()}
	m := NewManager(backend(), store, nil)
	require.NoError(t, m.Login(context.Background(), models.UserLogin{Email: "mum@example.com", Password: "hunter22"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Logout(ctx))
	_, ok := storedToken(t, store.MemoryStore)
	assert.False(t, ok)
}

func TestManager_RestoreCancelledStillClearsRejectedToken(t *testing.T) {
	api := backend()
	store := &ctxStore{MemoryStore: storage.NewMemoryStore()}
	require.NoError(t, store.Set(context.Background(), TokenKey, "tok-1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api.CurrentUserFunc = func(ctx context.Context, token string) (*models.User, error) {
		cancel()
		return nil, errUnauthorized
	}
	m := NewManager(api, store, nil)

	err := m.Restore(ctx)
	assert.Equal(t, http.StatusUnauthorized, transport.StatusCode(err))
	assert.Equal(t, PhaseAnonymous, m.State().Phase)
	_, ok := storedToken(t, store.MemoryStore)
	assert.False(t, ok)
}

func TestManager_RestoreClearsUnreadableToken(t *testing.T) {
	raw := storage.NewMemoryStore()
	oldSealer, err := storage.NewSealer([]byte("old"))
	require.NoError(t, err)
	require.NoError(t, storage.Sealed(raw, oldSealer).Set(context.Background(), TokenKey, "tok-1"))

	newSealer, err := storage.NewSealer([]byte("new"))
	require.NoError(t, err)
	api := backend()
	m := NewManager(api, storage.Sealed(raw, newSealer), nil)

	err = m.Restore(context.Background())
	assert.ErrorIs(t, err, storage.ErrCorrupt)
	assert.Equal(t, PhaseAnonymous, m.State().Phase)
	assert.Equal(t, int32(0), api.calls.Load(), "an unreadable token is never sent")
	_, ok := storedToken(t, raw)
	assert.False(t, ok, "unreadable token must be removed")
}

func TestManager_RestoreKeepsTokenOnTransientReadError(t *testing.T) {
	store := &ctxStore{MemoryStore: storage.NewMemoryStore()}
	require.NoError(t, store.Set(context.Background(), TokenKey, "tok-1"))
	m := NewManager(backend(), store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, m.Restore(ctx))
	_, ok := storedToken(t, store.MemoryStore)
	assert.True(t, ok)
}
