// Package session owns the client-side authentication lifecycle: restoring a
// persisted session, login and logout, transparent token refresh and the
// derived view consumers render from.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-clinic-auth/authmodel"
	"github.com/jrsteele09/go-clinic-auth/notify"
	"github.com/jrsteele09/go-clinic-auth/tokenstore"
	"github.com/jrsteele09/go-clinic-auth/users"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateAuthenticated State = "authenticated"
	StateRefreshing    State = "refreshing"
	StateAnonymous     State = "anonymous"
)

// Snapshot is the read-only view handed to consumers.
type Snapshot struct {
	User            *users.Profile
	Loading         bool
	IsAuthenticated bool
	State           State
}

// LoginResult reports a login attempt. Error holds the message already shown to the user.
type LoginResult struct {
	Success bool
	User    *users.Profile
	Error   string
}

// Backend is the subset of the auth API the manager drives. *authapi.Client satisfies it.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (*authmodel.SessionData, error)
	Refresh(ctx context.Context, refreshToken string) (*authmodel.RefreshData, error)
	Me(ctx context.Context) (*users.Profile, error)
	SignOut(ctx context.Context, refreshToken string) error
	SignOutAll(ctx context.Context) error
}

const refreshKey = "refresh"

type Manager struct {
	api          Backend
	store        *tokenstore.Store
	notifier     notify.Notifier
	logger       zerolog.Logger
	singleFlight bool
	refreshGroup singleflight.Group

	initOnce sync.Once
	initErr  error

	// generation is bumped whenever the stored session is cleared or replaced.
	// Work started in an older generation must not touch state or store.
	lock         sync.RWMutex
	generation   uint64
	state        State
	user         *users.Profile
	loading      int
	listeners    map[uint64]func(error)
	nextListener uint64
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSingleFlight controls whether concurrent refreshes share one backend call. Enabled by default.
func WithSingleFlight(enabled bool) Option {
	return func(m *Manager) {
		m.singleFlight = enabled
	}
}

func NewManager(api Backend, store *tokenstore.Store, notifier notify.Notifier, options ...Option) *Manager {
	m := &Manager{
		api:          api,
		store:        store,
		notifier:     notifier,
		logger:       zerolog.Nop(),
		singleFlight: true,
		state:        StateUninitialized,
		listeners:    make(map[uint64]func(error)),
	}
	if m.notifier == nil {
		m.notifier = notify.Nop{}
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Init restores a persisted session. It runs once per manager; later calls
// return the first result. A non-nil error explains why the session ended
// anonymous, the manager is usable either way.
func (m *Manager) Init(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.initErr = m.init(ctx)
	})
	return m.initErr
}

func (m *Manager) init(ctx context.Context) error {
	m.lock.Lock()
	if m.state == StateUninitialized {
		m.state = StateInitializing
	}
	gen := m.generation
	m.loading++
	m.lock.Unlock()
	defer m.endLoading()

	raw := m.store.LoadRaw(ctx)
	if !raw.HasSession() {
		m.lock.Lock()
		if m.generation == gen {
			m.state = StateAnonymous
		}
		m.lock.Unlock()
		return nil
	}

	cached, err := raw.User()
	if err != nil {
		m.clearSession(ctx, gen)
		return fmt.Errorf("restore session: %w", err)
	}

	if m.store.IsExpired(raw) {
		if _, err := m.Refresh(ctx); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
	}

	profile, err := m.api.Me(ctx)
	if err == nil && profile == nil {
		err = fmt.Errorf("%w: empty profile", ErrInvalidResponse)
	}
	if err == nil {
		err = profile.Validate()
	}
	if err == nil && profile.ID != cached.ID {
		err = fmt.Errorf("%w: cached %s, token %s", ErrUserMismatch, cached.ID, profile.ID)
	}
	if err != nil {
		m.logger.Debug().Err(err).Msg("session: restore failed")
		m.clearSession(ctx, gen)
		return fmt.Errorf("restore session: %w", err)
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if m.generation != gen {
		return fmt.Errorf("restore session: %w", ErrSessionReplaced)
	}
	if raw.UserID != profile.ID {
		m.store.SaveUserID(ctx, profile.ID)
	}
	m.user = profile.Clone()
	m.state = StateAuthenticated
	return nil
}

// Login replaces any current session with a new one.
func (m *Manager) Login(ctx context.Context, email, password string) LoginResult {
	m.beginLoading()
	defer m.endLoading()

	gen := m.resetSession(ctx)

	data, err := m.api.SignIn(ctx, email, password)
	if err == nil {
		err = validateSession(data)
	}
	if err == nil {
		err = m.commitLogin(ctx, gen, data)
	}
	if err != nil {
		m.logger.Debug().Err(err).Msg("session: login failed")
		msg := messageOf(err, msgLoginFailed)
		m.notifier.Error(msg)
		return LoginResult{Error: msg}
	}

	m.notifier.Success(msgLoginSuccess)
	return LoginResult{Success: true, User: data.User.Clone()}
}

// commitLogin persists a signed in session unless a logout or another login
// replaced the session while the sign in was in flight.
func (m *Manager) commitLogin(ctx context.Context, gen uint64, data *authmodel.SessionData) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.generation != gen {
		return ErrSessionReplaced
	}
	m.store.Save(ctx, tokenstore.Tokens{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresIn:    data.ExpiresIn,
	})
	m.store.SaveUser(ctx, data.User)
	m.user = data.User.Clone()
	m.state = StateAuthenticated
	return nil
}

// Logout ends the local session. Revoking the refresh token on the backend is
// best-effort; the local session is cleared whatever the outcome.
func (m *Manager) Logout(ctx context.Context) {
	m.beginLoading()
	defer m.endLoading()

	if refreshToken := m.store.RefreshToken(ctx); refreshToken != "" {
		if err := m.api.SignOut(ctx, refreshToken); err != nil {
			m.logger.Debug().Err(err).Msg("session: backend sign out failed")
		}
	}
	m.resetSession(ctx)
	m.notifier.Success(msgLoggedOut)
}

// LogoutAllDevices revokes every session of the user. On failure the local
// session is left as it was.
func (m *Manager) LogoutAllDevices(ctx context.Context) error {
	m.beginLoading()
	defer m.endLoading()

	if err := m.api.SignOutAll(ctx); err != nil {
		m.notifier.Error(messageOf(err, msgLogoutAllFailed))
		return fmt.Errorf("logout all devices: %w", err)
	}
	m.resetSession(ctx)
	m.notifier.Success(msgLoggedOutAll)
	return nil
}

// GetValidToken returns an unexpired access token, refreshing when needed.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	gen := m.currentGeneration()
	raw := m.store.LoadRaw(ctx)
	if raw.AccessToken == "" {
		m.clearOnError(ctx, gen, ErrNotAuthenticated)
		return "", ErrNotAuthenticated
	}
	if !m.store.IsExpired(raw) {
		return raw.AccessToken, nil
	}
	token, err := m.Refresh(ctx)
	if err != nil {
		if !errors.Is(err, ErrSessionReplaced) {
			m.clearOnError(ctx, gen, err)
		}
		return "", err
	}
	return token, nil
}

// Refresh exchanges the stored refresh token for a new access token. Any
// failure ends the session locally. A result that arrives after the session
// was replaced is dropped and ErrSessionReplaced returned.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	if !m.singleFlight {
		return m.refresh(ctx)
	}
	// Callers only share a refresh that belongs to the same session.
	key := fmt.Sprintf("%s-%d", refreshKey, m.currentGeneration())
	v, err, _ := m.refreshGroup.Do(key, func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.lock.Lock()
	gen := m.generation
	refreshToken := m.store.RefreshToken(ctx)
	if m.state == StateAuthenticated {
		m.state = StateRefreshing
	}
	m.loading++
	m.lock.Unlock()
	defer m.endLoading()

	if refreshToken == "" {
		m.forceAnonymous(ctx, gen, ErrNoRefreshToken)
		return "", ErrNoRefreshToken
	}

	data, err := m.api.Refresh(ctx, refreshToken)
	if err == nil && (data == nil || data.AccessToken == "") {
		err = fmt.Errorf("%w: empty access token", ErrInvalidResponse)
	}
	if err != nil {
		err = fmt.Errorf("refresh session: %w", err)
		if !m.forceAnonymous(ctx, gen, err) {
			return "", fmt.Errorf("%w: %w", ErrSessionReplaced, err)
		}
		return "", err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if m.generation != gen {
		m.logger.Debug().Msg("session: discarding refresh for a replaced session")
		return "", ErrSessionReplaced
	}
	if err := m.store.SaveAccessToken(ctx, refreshToken, data.AccessToken, data.ExpiresIn); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSessionReplaced, err)
	}
	if m.state == StateRefreshing {
		m.state = StateAuthenticated
	}
	return data.AccessToken, nil
}

func (m *Manager) clearOnError(ctx context.Context, gen uint64, cause error) {
	m.forceAnonymous(ctx, gen, cause)
	m.notifier.Error(msgSessionExpired)
}

// forceAnonymous ends the session of generation gen and, when this moves the
// manager into the anonymous state, emits the invalidated event. It reports
// false when the session had already been replaced and nothing was done.
func (m *Manager) forceAnonymous(ctx context.Context, gen uint64, cause error) bool {
	cleared, wasAnonymous := m.clearSession(ctx, gen)
	if !cleared {
		return false
	}
	if wasAnonymous {
		return true
	}

	m.lock.RLock()
	listeners := make([]func(error), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.lock.RUnlock()

	m.logger.Info().Err(cause).Msg("session: invalidated")
	for _, l := range listeners {
		l(cause)
	}
	return true
}

// clearSession clears the store and moves to anonymous, but only while gen is
// still the current generation.
func (m *Manager) clearSession(ctx context.Context, gen uint64) (cleared, wasAnonymous bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.generation != gen {
		return false, false
	}
	wasAnonymous = m.state == StateAnonymous
	m.endSessionLocked(ctx)
	return true, wasAnonymous
}

// resetSession unconditionally clears the session and returns the new generation.
func (m *Manager) resetSession(ctx context.Context) uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.endSessionLocked(ctx)
	return m.generation
}

func (m *Manager) endSessionLocked(ctx context.Context) {
	m.store.Clear(ctx)
	m.generation++
	m.user = nil
	m.state = StateAnonymous
}

func (m *Manager) currentGeneration() uint64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.generation
}

// OnInvalidated registers fn to run whenever the session is ended by a failed
// refresh or a missing token. Hosts use it to route the user back to login.
func (m *Manager) OnInvalidated(fn func(error)) (unsubscribe func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) Snapshot() Snapshot {
	m.lock.RLock()
	defer m.lock.RUnlock()
	s := Snapshot{
		Loading: m.loading > 0,
		State:   m.state,
	}
	if m.user != nil {
		s.User = m.user.Clone()
		s.IsAuthenticated = m.state == StateAuthenticated || m.state == StateRefreshing
	}
	return s
}

func (m *Manager) User() *users.Profile {
	return m.Snapshot().User
}

func (m *Manager) IsAuthenticated() bool {
	return m.Snapshot().IsAuthenticated
}

func (m *Manager) Loading() bool {
	return m.Snapshot().Loading
}

func (m *Manager) State() State {
	return m.Snapshot().State
}

func (m *Manager) beginLoading() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.loading++
}

func (m *Manager) endLoading() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.loading--
}

func validateSession(data *authmodel.SessionData) error {
	if data == nil || data.AccessToken == "" || data.RefreshToken == "" {
		return fmt.Errorf("%w: missing tokens", ErrInvalidResponse)
	}
	if err := data.User.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return nil
}
