package refresh

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("refresh token not found")

// StoredRefreshToken represents the server-side storage of refresh token metadata.
// The client only receives the Token field (a random string). A user holds one
// token per signed-in device.
type StoredRefreshToken struct {
	Token     string    `json:"token"`      // The actual random token string (sent to client)
	UserID    string    `json:"user_id"`    // Owner of the session
	Iat       time.Time `json:"iat"`        // Issued at time
	ExpiresAt time.Time `json:"expires_at"` // Absolute expiry
}

// Repo manages server-side storage of refresh token metadata, keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	ListByUserID(userID string) ([]*StoredRefreshToken, error)
	DeleteAllForUser(userID string) (int, error)
}
