package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-clinic-auth/authapi"
	"github.com/jrsteele09/go-clinic-auth/authmodel"
	"github.com/jrsteele09/go-clinic-auth/internal/utils"
	"github.com/jrsteele09/go-clinic-auth/notify"
	"github.com/jrsteele09/go-clinic-auth/notify/notifyfake"
	"github.com/jrsteele09/go-clinic-auth/session"
	"github.com/jrsteele09/go-clinic-auth/tokenstore"
	"github.com/jrsteele09/go-clinic-auth/tokenstore/memkv"
	"github.com/jrsteele09/go-clinic-auth/users"
	"github.com/stretchr/testify/require"
)

const (
	testUserID       = "user-1"
	testUserEmail    = "doc@clinic.test"
	testUserPassword = "Passw0rdOK"
	testAccessToken  = "access-1"
	testRefreshToken = "refresh-1"
	testExpiresIn    = 900
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeBackend struct {
	lock sync.Mutex

	signIn  func(email, password string) (*authmodel.SessionData, error)
	refresh func(refreshToken string) (*authmodel.RefreshData, error)
	me      func() (*users.Profile, error)

	signOutErr    error
	signOutAllErr error

	calls map[string]int
}

func newFakeBackend() *fakeBackend {
	profile := mainProfile()
	return &fakeBackend{
		signIn: func(email, password string) (*authmodel.SessionData, error) {
			if email != testUserEmail || password != testUserPassword {
				return nil, &authapi.APIError{Op: "signin", StatusCode: 401, Message: "Invalid credentials"}
			}
			return &authmodel.SessionData{User: profile, AccessToken: testAccessToken, RefreshToken: testRefreshToken, ExpiresIn: testExpiresIn}, nil
		},
		refresh: func(refreshToken string) (*authmodel.RefreshData, error) {
			if refreshToken != testRefreshToken {
				return nil, &authapi.APIError{Op: "refresh", StatusCode: 401, Message: "Invalid or expired refresh token"}
			}
			return &authmodel.RefreshData{AccessToken: "access-2", ExpiresIn: testExpiresIn}, nil
		},
		me: func() (*users.Profile, error) {
			p := profile
			return &p, nil
		},
		calls: make(map[string]int),
	}
}

func (f *fakeBackend) record(op string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls[op]++
}

func (f *fakeBackend) count(op string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) SignIn(_ context.Context, email, password string) (*authmodel.SessionData, error) {
	f.record("signin")
	return f.signIn(email, password)
}

func (f *fakeBackend) Refresh(_ context.Context, refreshToken string) (*authmodel.RefreshData, error) {
	f.record("refresh")
	return f.refresh(refreshToken)
}

func (f *fakeBackend) Me(context.Context) (*users.Profile, error) {
	f.record("me")
	return f.me()
}

func (f *fakeBackend) SignOut(context.Context, string) error {
	f.record("signout")
	return f.signOutErr
}

func (f *fakeBackend) SignOutAll(context.Context) error {
	f.record("signout-all")
	return f.signOutAllErr
}

func mainProfile() users.Profile {
	return users.Profile{ID: testUserID, Email: testUserEmail, Name: "Dr Who", Status: users.StatusActive}
}

func subProfile() users.Profile {
	return users.Profile{ID: "user-2", Email: "nurse@clinic.test", Name: "Nurse", IsSubuser: true, ParentID: utils.Ptr(testUserID), Status: users.StatusActive}
}

type testFixture struct {
	backend     *fakeBackend
	kv          *memkv.KV
	store       *tokenstore.Store
	notifier    *notifyfake.Recorder
	manager     *session.Manager
	invalidated *atomic.Int32
	now         time.Time
	nowLock     sync.Mutex
}

func setupTestFixture(t *testing.T, opts ...session.Option) *testFixture {
	t.Helper()
	f := &testFixture{
		backend:     newFakeBackend(),
		kv:          memkv.New(),
		notifier:    notifyfake.NewRecorder(),
		invalidated: &atomic.Int32{},
		now:         testStart,
	}
	f.store = tokenstore.New(f.kv, tokenstore.WithNowFunc(f.clock))
	f.manager = session.NewManager(f.backend, f.store, f.notifier, opts...)
	f.manager.OnInvalidated(func(error) { f.invalidated.Add(1) })
	return f
}

func (f *testFixture) clock() time.Time {
	f.nowLock.Lock()
	defer f.nowLock.Unlock()
	return f.now
}

func (f *testFixture) advance(d time.Duration) {
	f.nowLock.Lock()
	defer f.nowLock.Unlock()
	f.now = f.now.Add(d)
}

// persistSession seeds the store as a previous run would have left it.
func (f *testFixture) persistSession(t *testing.T, p users.Profile) {
	t.Helper()
	ctx := context.Background()
	f.store.Save(ctx, tokenstore.Tokens{AccessToken: testAccessToken, RefreshToken: testRefreshToken, ExpiresIn: testExpiresIn})
	f.store.SaveUser(ctx, p)
}

func (f *testFixture) requireCleared(t *testing.T) {
	t.Helper()
	raw := f.store.LoadRaw(context.Background())
	require.Empty(t, raw.AccessToken)
	require.Empty(t, raw.RefreshToken)
	require.Empty(t, raw.UserJSON)
	require.Empty(t, raw.UserID)
	require.Nil(t, raw.ExpiresAt)
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing persisted", func(t *testing.T) {
		f := setupTestFixture(t)
		require.Equal(t, session.StateUninitialized, f.manager.State())

		require.NoError(t, f.manager.Init(ctx))
		require.Equal(t, session.StateAnonymous, f.manager.State())
		require.False(t, f.manager.IsAuthenticated())
		require.False(t, f.manager.Loading())
		require.Zero(t, f.backend.count("me"))
		require.Zero(t, f.notifier.Count())
	})

	t.Run("partial session makes no backend calls", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.kv.SetMany(ctx, map[string]string{tokenstore.KeyAccessToken: testAccessToken}))

		require.NoError(t, f.manager.Init(ctx))
		require.Equal(t, session.StateAnonymous, f.manager.State())
		require.Zero(t, f.backend.count("me"))
	})

	t.Run("valid session restored", func(t *testing.T) {
		f := setupTestFixture(t)
		f.persistSession(t, mainProfile())
		require.NoError(t, f.kv.Delete(ctx, tokenstore.KeyUserID))

		require.NoError(t, f.manager.Init(ctx))
		snap := f.manager.Snapshot()
		require.True(t, snap.IsAuthenticated)
		require.Equal(t, session.StateAuthenticated, snap.State)
		require.Equal(t, testUserID, snap.User.ID)
		require.Equal(t, testUserID, f.store.LoadRaw(ctx).UserID, "user id reconciled")
		require.Zero(t, f.backend.count("refresh"))
		require.Zero(t, f.notifier.Count())
	})

	t.Run("expired session refreshed first", func(t *testing.T) {
		f := setupTestFixture(t)
		f.persistSession(t, mainProfile())
		f.advance(time.Hour)

		require.NoError(t, f.manager.Init(ctx))
		require.True(t, f.manager.IsAuthenticated())
		require.Equal(t, 1, f.backend.count("refresh"))
		raw := f.store.LoadRaw(ctx)
		require.Equal(t, "access-2", raw.AccessToken)
		require.Equal(t, testRefreshToken, raw.RefreshToken)
		require.False(t, f.store.IsExpired(raw))
	})

	t.Run("expired session with rejected refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		f.persistSession(t, mainProfile())
		f.advance(time.Hour)
		f.backend.refresh = func(string) (*authmodel.RefreshData, error) {
			return nil, errors.New("refresh rejected")
		}

		require.Error(t, f.manager.Init(ctx))
		require.Equal(t, session.StateAnonymous, f.manager.State())
		require.Zero(t, f.backend.count("me"))
		require.EqualValues(t, 1, f.invalidated.Load())
		require.Zero(t, f.notifier.Count())
		f.requireCleared(t)
	})

	t.Run("token owner differs from cached user", func(t *testing.T) {
		f := setupTestFixture(t)
		f.persistSession(t, subProfile())

		err := f.manager.Init(ctx)
		require.ErrorIs(t, err, session.ErrUserMismatch)
		require.Equal(t, session.StateAnonymous, f.manager.State())
		f.requireCleared(t)
	})

	t.Run("corrupt cached user", func(t *testing.T) {
		f := setupTestFixture(t)
		f.persistSession(t, mainProfile())
		require.NoError(t, f.kv.SetMany(ctx, map[string]string{tokenstore.KeyUser: "{not json"}))

		require.ErrorIs(t, f.manager.Init(ctx), users.ErrInvalidProfile)
		require.Zero(t, f.backend.count("me"))
		f.requireCleared(t)
	})

	t.Run("runs once", func(t *testing.T) {
		f := setupTestFixture(t)
		f.persistSession(t, mainProfile())

		require.NoError(t, f.manager.Init(ctx))
		require.NoError(t, f.manager.Init(ctx))
		require.Equal(t, 1, f.backend.count("me"))
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.manager.Init(ctx))

		res := f.manager.Login(ctx, testUserEmail, testUserPassword)
		require.True(t, res.Success)
		require.Empty(t, res.Error)
		require.Equal(t, testUserID, res.User.ID)

		snap := f.manager.Snapshot()
		require.True(t, snap.IsAuthenticated)
		require.False(t, snap.Loading)

		raw := f.store.LoadRaw(ctx)
		require.Equal(t, testAccessToken, raw.AccessToken)
		require.Equal(t, testRefreshToken, raw.RefreshToken)
		require.Equal(t, testUserID, raw.UserID)
		require.True(t, raw.ExpiresAt.Equal(testStart.Add(testExpiresIn*time.Second)))

		require.Equal(t, []string{"Login successful"}, f.notifier.Messages(notify.LevelSuccess))
		require.Equal(t, 1, f.notifier.Count())
	})

	t.Run("bad credentials", func(t *testing.T) {
		f := setupTestFixture(t)

		res := f.manager.Login(ctx, testUserEmail, "wrong")
		require.False(t, res.Success)
		require.Equal(t, "Invalid credentials", res.Error)
		require.False(t, f.manager.IsAuthenticated())
		require.Equal(t, []string{"Invalid credentials"}, f.notifier.Messages(notify.LevelError))
		require.Equal(t, 1, f.notifier.Count())
		f.requireCleared(t)
	})

	t.Run("replaces the previous session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.persistSession(t, mainProfile())
		require.NoError(t, f.manager.Init(ctx))

		res := f.manager.Login(ctx, testUserEmail, "wrong")
		require.False(t, res.Success)
		require.Equal(t, session.StateAnonymous, f.manager.State())
		require.Zero(t, f.invalidated.Load())
		f.requireCleared(t)
	})

	t.Run("network failure uses the generic message", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.signIn = func(string, string) (*authmodel.SessionData, error) {
			return nil, errors.New("dial tcp: connection refused")
		}

		res := f.manager.Login(ctx, testUserEmail, testUserPassword)
		require.Equal(t, "Login failed. Please try again.", res.Error)
	})

	t.Run("returned user is a copy", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.signIn = func(string, string) (*authmodel.SessionData, error) {
			return &authmodel.SessionData{User: subProfile(), AccessToken: testAccessToken, RefreshToken: testRefreshToken, ExpiresIn: testExpiresIn}, nil
		}

		res := f.manager.Login(ctx, testUserEmail, testUserPassword)
		require.True(t, res.Success)
		res.User.IsSubuser = false
		*res.User.ParentID = "someone-else"

		u := f.manager.User()
		require.True(t, u.IsSubuser)
		require.Equal(t, testUserID, *u.ParentID)
		require.NoError(t, u.Validate())

		*u.ParentID = "changed-again"
		require.Equal(t, testUserID, *f.manager.User().ParentID)
	})

	t.Run("malformed profile is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.signIn = func(string, string) (*authmodel.SessionData, error) {
			p := mainProfile()
			p.IsSubuser = true
			return &authmodel.SessionData{User: p, AccessToken: testAccessToken, RefreshToken: testRefreshToken, ExpiresIn: testExpiresIn}, nil
		}

		res := f.manager.Login(ctx, testUserEmail, testUserPassword)
		require.False(t, res.Success)
		require.Equal(t, "Login failed. Please try again.", res.Error)
		f.requireCleared(t)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
		f.notifier.Reset()

		f.manager.Logout(ctx)
		f.manager.Logout(ctx)

		require.Equal(t, session.StateAnonymous, f.manager.State())
		require.Equal(t, 1, f.backend.count("signout"))
		require.Equal(t, []string{"Logged out successfully", "Logged out successfully"}, f.notifier.Messages(notify.LevelSuccess))
		require.Zero(t, f.invalidated.Load())
		f.requireCleared(t)
	})

	t.Run("backend failure still clears", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
		f.backend.signOutErr = errors.New("unreachable")

		f.manager.Logout(ctx)
		require.False(t, f.manager.IsAuthenticated())
		f.requireCleared(t)
	})
}

func TestLogoutAllDevices(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
		f.notifier.Reset()

		require.NoError(t, f.manager.LogoutAllDevices(ctx))
		require.False(t, f.manager.IsAuthenticated())
		require.Equal(t, []string{"Logged out from all devices"}, f.notifier.Messages(notify.LevelSuccess))
		f.requireCleared(t)
	})

	t.Run("failure leaves the session", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
		f.notifier.Reset()
		f.backend.signOutAllErr = &authapi.APIError{Op: "signout-all", StatusCode: 500, Message: "Could not revoke sessions"}

		require.Error(t, f.manager.LogoutAllDevices(ctx))
		require.True(t, f.manager.IsAuthenticated())
		require.Equal(t, testAccessToken, f.store.AccessToken(ctx))
		require.Equal(t, []string{"Could not revoke sessions"}, f.notifier.Messages(notify.LevelError))
	})
}

func TestGetValidToken(t *testing.T) {
	ctx := context.Background()

	t.Run("unexpired token", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)

		tok, err := f.manager.GetValidToken(ctx)
		require.NoError(t, err)
		require.Equal(t, testAccessToken, tok)
		require.Zero(t, f.backend.count("refresh"))
	})

	t.Run("not authenticated", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.manager.GetValidToken(ctx)
		require.ErrorIs(t, err, session.ErrNotAuthenticated)
		require.Equal(t, []string{"Your session has expired. Please log in again."}, f.notifier.Messages(notify.LevelError))
	})

	t.Run("expired token is refreshed", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
		f.advance(testExpiresIn*time.Second + time.Second)

		tok, err := f.manager.GetValidToken(ctx)
		require.NoError(t, err)
		require.Equal(t, "access-2", tok)
		require.True(t, f.manager.IsAuthenticated())
		require.Equal(t, session.StateAuthenticated, f.manager.State())
	})

	t.Run("failed refresh ends the session once", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
		f.notifier.Reset()
		f.advance(testExpiresIn*time.Second + time.Second)
		f.backend.refresh = func(string) (*authmodel.RefreshData, error) {
			return nil, &authapi.APIError{Op: "refresh", StatusCode: 401, Message: "Invalid or expired refresh token"}
		}

		_, err := f.manager.GetValidToken(ctx)
		require.Error(t, err)
		require.False(t, f.manager.IsAuthenticated())
		require.Equal(t, 1, f.notifier.Count())
		require.Equal(t, []string{"Your session has expired. Please log in again."}, f.notifier.Messages(notify.LevelError))
		require.EqualValues(t, 1, f.invalidated.Load())
		f.requireCleared(t)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("missing refresh token forces logout", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
		require.NoError(t, f.kv.Delete(ctx, tokenstore.KeyRefreshToken))

		_, err := f.manager.Refresh(ctx)
		require.ErrorIs(t, err, session.ErrNoRefreshToken)
		require.False(t, f.manager.IsAuthenticated())
		require.Zero(t, f.backend.count("refresh"))
		require.EqualValues(t, 1, f.invalidated.Load())
		f.requireCleared(t)
	})

	t.Run("rejected refresh forces logout", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
		f.notifier.Reset()
		f.backend.refresh = func(string) (*authmodel.RefreshData, error) {
			return nil, errors.New("refresh rejected")
		}

		_, err := f.manager.Refresh(ctx)
		require.Error(t, err)
		require.False(t, f.manager.IsAuthenticated())
		require.Zero(t, f.notifier.Count(), "refresh itself never notifies")
		f.requireCleared(t)
	})

	t.Run("empty access token is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
		f.backend.refresh = func(string) (*authmodel.RefreshData, error) {
			return &authmodel.RefreshData{ExpiresIn: testExpiresIn}, nil
		}

		_, err := f.manager.Refresh(ctx)
		require.ErrorIs(t, err, session.ErrInvalidResponse)
	})

	t.Run("concurrent refreshes share one call", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)

		release := make(chan struct{})
		f.backend.refresh = func(string) (*authmodel.RefreshData, error) {
			<-release
			return &authmodel.RefreshData{AccessToken: "access-2", ExpiresIn: testExpiresIn}, nil
		}

		const callers = 5
		var wg sync.WaitGroup
		tokens := make([]string, callers)
		errs := make([]error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tokens[i], errs[i] = f.manager.Refresh(ctx)
			}(i)
		}

		require.Eventually(t, func() bool { return f.backend.count("refresh") == 1 }, time.Second, time.Millisecond)
		require.Eventually(t, func() bool { return f.manager.State() == session.StateRefreshing }, time.Second, time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		require.Equal(t, 1, f.backend.count("refresh"))
		for i, tok := range tokens {
			require.NoError(t, errs[i])
			require.Equal(t, "access-2", tok)
		}
		require.Equal(t, session.StateAuthenticated, f.manager.State())
	})
}

func TestRefreshDuringLogin(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	otherUser := users.Profile{ID: "user-2", Email: "vet@clinic.test", Name: "Vet", Status: users.StatusActive}
	f.backend.signIn = func(email, _ string) (*authmodel.SessionData, error) {
		if email == otherUser.Email {
			return &authmodel.SessionData{User: otherUser, AccessToken: "access-of-user-2", RefreshToken: "refresh-of-user-2", ExpiresIn: testExpiresIn}, nil
		}
		return &authmodel.SessionData{User: mainProfile(), AccessToken: "access-of-user-1", RefreshToken: "refresh-of-user-1", ExpiresIn: testExpiresIn}, nil
	}
	release := make(chan struct{})
	f.backend.refresh = func(refreshToken string) (*authmodel.RefreshData, error) {
		<-release
		if refreshToken != "refresh-of-user-1" {
			return nil, errors.New("unexpected refresh token")
		}
		return &authmodel.RefreshData{AccessToken: "access-of-user-1", ExpiresIn: testExpiresIn}, nil
	}

	require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
	f.advance(testExpiresIn*time.Second + time.Second)
	f.notifier.Reset()

	var (
		wg       sync.WaitGroup
		token    string
		tokenErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		token, tokenErr = f.manager.GetValidToken(ctx)
	}()
	require.Eventually(t, func() bool { return f.backend.count("refresh") == 1 }, time.Second, time.Millisecond)

	res := f.manager.Login(ctx, otherUser.Email, testUserPassword)
	require.True(t, res.Success)

	close(release)
	wg.Wait()

	require.ErrorIs(t, tokenErr, session.ErrSessionReplaced)
	require.Empty(t, token)

	raw := f.store.LoadRaw(ctx)
	require.Equal(t, "access-of-user-2", raw.AccessToken)
	require.Equal(t, "refresh-of-user-2", raw.RefreshToken)
	require.Equal(t, "user-2", raw.UserID)

	snap := f.manager.Snapshot()
	require.Equal(t, session.StateAuthenticated, snap.State)
	require.Equal(t, "user-2", snap.User.ID)
	require.Zero(t, f.invalidated.Load())
	require.Empty(t, f.notifier.Messages(notify.LevelError))
}

func TestRefreshFailureAfterLogout(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)

	release := make(chan struct{})
	f.backend.refresh = func(string) (*authmodel.RefreshData, error) {
		<-release
		return nil, errors.New("refresh rejected")
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := f.manager.Refresh(ctx)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return f.backend.count("refresh") == 1 }, time.Second, time.Millisecond)

	f.manager.Logout(ctx)
	require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)
	close(release)

	require.ErrorIs(t, <-errCh, session.ErrSessionReplaced)
	require.True(t, f.manager.IsAuthenticated())
	require.Equal(t, testAccessToken, f.store.AccessToken(ctx))
	require.Zero(t, f.invalidated.Load())
}

func TestOnInvalidatedUnsubscribe(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)

	var got error
	unsubscribe := f.manager.OnInvalidated(func(err error) { got = err })
	unsubscribe()

	require.NoError(t, f.kv.Delete(ctx, tokenstore.KeyRefreshToken))
	_, _ = f.manager.Refresh(ctx)
	require.NoError(t, got)
	require.EqualValues(t, 1, f.invalidated.Load())
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.True(t, f.manager.Login(ctx, testUserEmail, testUserPassword).Success)

	tok, err := f.manager.TokenSource(ctx).Token()
	require.NoError(t, err)
	require.Equal(t, testAccessToken, tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
}
