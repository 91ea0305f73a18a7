// Package authmodel holds the JSON bodies exchanged on the auth API.
package authmodel

import "github.com/jrsteele09/go-clinic-auth/users"

// Envelope wraps every auth API response.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type SignUpRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentId,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionData is returned by sign-in. ExpiresIn is the access token lifetime in seconds.
type SessionData struct {
	User         users.Profile `json:"user"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshData carries a new access token only; the refresh token is not rotated.
type RefreshData struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type SignOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UserData struct {
	User users.Profile `json:"user"`
}

type ValidateData struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"userId"`
}
