package session

import (
	"errors"

	"github.com/jrsteele09/go-clinic-auth/tokenstore"
)

var (
	// ErrNotAuthenticated is returned when no access token is held.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoRefreshToken is returned by Refresh when the store holds no refresh token.
	ErrNoRefreshToken = tokenstore.ErrNoRefreshToken

	// ErrInvalidResponse marks a backend reply missing required fields.
	ErrInvalidResponse = errors.New("invalid response from auth server")

	// ErrUserMismatch means the backend identity differs from the cached one.
	ErrUserMismatch = errors.New("cached user does not match token owner")

	// ErrSessionReplaced means a logout or login replaced the session while the
	// operation was in flight. Its result was discarded.
	ErrSessionReplaced = errors.New("session replaced during refresh")
)

const (
	msgLoginSuccess        = "Login successful"
	msgLoginFailed         = "Login failed. Please try again."
	msgLoggedOut           = "Logged out successfully"
	msgLoggedOutAll        = "Logged out from all devices"
	msgLogoutAllFailed     = "Failed to log out from all devices"
	msgSessionExpired      = "Your session has expired. Please log in again."
	msgMainAccountRequired = "Access denied: this area is only available to main accounts"
)

// userMessenger is implemented by errors that carry text fit for a user.
type userMessenger interface {
	UserMessage() string
}

func messageOf(err error, fallback string) string {
	var um userMessenger
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return fallback
}
