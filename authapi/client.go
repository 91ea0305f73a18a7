// Package authapi is a typed client for the auth backend.
package authapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-clinic-auth/authmodel"
	"github.com/jrsteele09/go-clinic-auth/httpclient"
	"github.com/jrsteele09/go-clinic-auth/users"
)

const (
	RouteSignUp     = "auth/signup"
	RouteSignIn     = "auth/signin"
	RouteRefresh    = "auth/refresh"
	RouteMe         = "auth/me"
	RouteSignOut    = "auth/signout"
	RouteSignOutAll = "auth/signout-all"
	RouteValidate   = "auth/validate"
)

// APIError is a rejected call. Message is the server supplied text, safe to show a user.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authapi %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("authapi %s: request rejected", e.Op)
}

func (e *APIError) Unwrap() error { return e.Err }

// UserMessage is the text shown to a user for this error.
func (e *APIError) UserMessage() string { return e.Message }

// MessageOf returns the server message carried by err, or fallback.
func MessageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

type Client struct {
	http *httpclient.Client
}

func New(c *httpclient.Client) *Client {
	return &Client{http: c}
}

// SignUp is not part of the session lifecycle; it is exposed for provisioning tools.
func (c *Client) SignUp(ctx context.Context, req authmodel.SignUpRequest) (*users.Profile, error) {
	data, err := call[authmodel.UserData](httpclient.WithoutRefresh(ctx), c, "signup", http.MethodPost, RouteSignUp, req)
	if err != nil {
		return nil, err
	}
	return &data.User, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*authmodel.SessionData, error) {
	data, err := call[authmodel.SessionData](httpclient.WithoutRefresh(ctx), c, "signin", http.MethodPost, RouteSignIn,
		authmodel.SignInRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*authmodel.RefreshData, error) {
	data, err := call[authmodel.RefreshData](httpclient.WithoutRefresh(ctx), c, "refresh", http.MethodPost, RouteRefresh,
		authmodel.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// Me returns the profile of the bearer of the stored access token.
func (c *Client) Me(ctx context.Context) (*users.Profile, error) {
	data, err := call[authmodel.UserData](ctx, c, "me", http.MethodGet, RouteMe, nil)
	if err != nil {
		return nil, err
	}
	return &data.User, nil
}

func (c *Client) SignOut(ctx context.Context, refreshToken string) error {
	_, err := call[struct{}](httpclient.WithoutRefresh(ctx), c, "signout", http.MethodPost, RouteSignOut,
		authmodel.SignOutRequest{RefreshToken: refreshToken})
	return err
}

func (c *Client) SignOutAll(ctx context.Context) error {
	_, err := call[struct{}](ctx, c, "signout-all", http.MethodPost, RouteSignOutAll, nil)
	return err
}

func (c *Client) Validate(ctx context.Context) (*authmodel.ValidateData, error) {
	data, err := call[authmodel.ValidateData](ctx, c, "validate", http.MethodGet, RouteValidate, nil)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func call[T any](ctx context.Context, c *Client, op, method, path string, in any) (T, error) {
	var (
		zero T
		env  authmodel.Envelope[T]
	)
	if err := c.http.Do(ctx, method, path, in, &env); err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			return zero, &APIError{Op: op, StatusCode: se.StatusCode, Message: se.Message, Err: err}
		}
		return zero, fmt.Errorf("authapi %s: %w", op, err)
	}
	if !env.Success {
		return zero, &APIError{Op: op, StatusCode: http.StatusOK, Message: env.Message}
	}
	return env.Data, nil
}
