package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var ErrExpired = errors.New("refresh token expired")

// Manager handles refresh token creation, validation and revocation
type Manager struct {
	repo        Repo
	tokenLength int
	expiry      time.Duration
	nowFunc     func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a refresh token manager issuing tokenLength random bytes,
// hex encoded, valid for expiry.
func NewManager(repo Repo, tokenLength int, expiry time.Duration, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:        repo,
		tokenLength: tokenLength,
		expiry:      expiry,
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.tokenLength <= 0 {
		m.tokenLength = 32
	}
	if m.expiry <= 0 {
		m.expiry = 7 * 24 * time.Hour
	}
	return m
}

// Create generates a new refresh token for userID and stores it. Existing
// tokens of the user stay valid so several devices can be signed in.
func (m *Manager) Create(userID string) (string, error) {
	tokenBytes := make([]byte, m.tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	now := m.nowFunc()
	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:     tokenStr,
		UserID:    userID,
		Iat:       now,
		ExpiresAt: now.Add(m.expiry),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return tokenStr, nil
}

// Validate returns the stored token when it exists and has not expired.
// Expired tokens are removed.
func (m *Manager) Validate(token string) (*StoredRefreshToken, error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, err
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return nil, ErrExpired
	}
	return rt, nil
}

// Delete removes a refresh token from storage
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// DeleteAllForUser revokes every device session of userID.
func (m *Manager) DeleteAllForUser(userID string) (int, error) {
	return m.repo.DeleteAllForUser(userID)
}

func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return !m.nowFunc().Before(rt.ExpiresAt)
}
