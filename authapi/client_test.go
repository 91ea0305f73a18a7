package authapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-clinic-auth/authapi"
	"github.com/jrsteele09/go-clinic-auth/authmodel"
	"github.com/jrsteele09/go-clinic-auth/httpclient"
	"github.com/jrsteele09/go-clinic-auth/users"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "doc@clinic.test"
	testPassword = "Passw0rdOK"
	testAccess   = "access-1"
	testRefresh  = "refresh-1"
)

type tokens string

func (t tokens) AccessToken(context.Context) string { return string(t) }

type countingRefresher struct{ calls int }

func (r *countingRefresher) Refresh(context.Context) (string, error) {
	r.calls++
	return "", errors.New("should not be called")
}

func writeEnvelope[T any](w http.ResponseWriter, status int, env authmodel.Envelope[T]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func setupClient(t *testing.T, handler http.HandlerFunc) (*authapi.Client, *countingRefresher) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpclient.New(srv.URL, tokens(testAccess))
	refresher := &countingRefresher{}
	hc.SetRefresher(refresher)
	return authapi.New(hc), refresher
}

func TestSignIn(t *testing.T) {
	profile := users.Profile{ID: "u-1", Email: testEmail, Name: "Doc", Status: users.StatusActive}

	t.Run("success", func(t *testing.T) {
		client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/"+authapi.RouteSignIn, r.URL.Path)
			var req authmodel.SignInRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, testEmail, req.Email)
			writeEnvelope(w, http.StatusOK, authmodel.Envelope[authmodel.SessionData]{
				Success: true,
				Data:    authmodel.SessionData{User: profile, AccessToken: testAccess, RefreshToken: testRefresh, ExpiresIn: 900},
			})
		})

		data, err := client.SignIn(context.Background(), testEmail, testPassword)
		require.NoError(t, err)
		require.Equal(t, profile, data.User)
		require.Equal(t, testRefresh, data.RefreshToken)
		require.Equal(t, 900, data.ExpiresIn)
	})

	t.Run("401 carries the server message and never refreshes", func(t *testing.T) {
		client, refresher := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusUnauthorized, authmodel.Envelope[struct{}]{Message: "Invalid credentials"})
		})

		_, err := client.SignIn(context.Background(), testEmail, "wrong")
		var apiErr *authapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, "Invalid credentials", authapi.MessageOf(err, "fallback"))
		require.True(t, httpclient.IsUnauthorized(err))
		require.Zero(t, refresher.calls)
	})

	t.Run("success false in a 200", func(t *testing.T) {
		client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusOK, authmodel.Envelope[struct{}]{Message: "Account is inactive"})
		})

		_, err := client.SignIn(context.Background(), testEmail, testPassword)
		require.Equal(t, "Account is inactive", authapi.MessageOf(err, "fallback"))
	})
}

func TestMessageOfFallback(t *testing.T) {
	require.Equal(t, "fallback", authapi.MessageOf(errors.New("dial tcp"), "fallback"))
	require.Equal(t, "fallback", authapi.MessageOf(&authapi.APIError{Op: "me"}, "fallback"))
}

func TestMeAndValidate(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer "+testAccess, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/" + authapi.RouteMe:
			writeEnvelope(w, http.StatusOK, authmodel.Envelope[authmodel.UserData]{
				Success: true,
				Data:    authmodel.UserData{User: users.Profile{ID: "u-1", Email: testEmail, Status: users.StatusActive}},
			})
		case "/" + authapi.RouteValidate:
			writeEnvelope(w, http.StatusOK, authmodel.Envelope[authmodel.ValidateData]{
				Success: true,
				Data:    authmodel.ValidateData{Valid: true, UserID: "u-1"},
			})
		case "/" + authapi.RouteSignOutAll:
			writeEnvelope(w, http.StatusOK, authmodel.Envelope[struct{}]{Success: true, Message: "Signed out from all devices"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "u-1", me.ID)

	v, err := client.Validate(ctx)
	require.NoError(t, err)
	require.True(t, v.Valid)
	require.Equal(t, "u-1", v.UserID)

	require.NoError(t, client.SignOutAll(ctx))
}

func TestNetworkErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := authapi.New(httpclient.New(url, tokens("")))
	_, err := client.Refresh(context.Background(), testRefresh)
	require.ErrorIs(t, err, httpclient.ErrNetwork)
	require.Equal(t, "fallback", authapi.MessageOf(err, "fallback"))
}
