package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-clinic-auth/users"
	"github.com/rs/zerolog"
)

const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenExpires = "token_expires"
	KeyUser         = "user"
	KeyUserID       = "userId"
)

// Keys with these prefixes hold auth-related data written by other parts of
// the application and are removed together with the session.
var clearPrefixes = []string{"user_", "auth_", "app_"}

var (
	ErrNoRefreshToken      = errors.New("no refresh token available")
	ErrRefreshTokenChanged = errors.New("stored refresh token changed")
)

// Tokens is a pair as issued by the backend. ExpiresIn is in seconds.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Raw is the persisted session as found in the KV.
type Raw struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	UserJSON     string
	UserID       string
}

// HasSession reports whether every piece needed to restore a session is present.
func (r Raw) HasSession() bool {
	return r.AccessToken != "" && r.RefreshToken != "" && r.UserJSON != ""
}

// User decodes and validates the cached profile.
func (r Raw) User() (*users.Profile, error) {
	if r.UserJSON == "" {
		return nil, fmt.Errorf("%w: no cached user", users.ErrInvalidProfile)
	}
	var p users.Profile
	if err := json.Unmarshal([]byte(r.UserJSON), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", users.ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Store persists the client session. Writes are best-effort: failures are
// logged and never returned, the caller keeps working from memory.
type Store struct {
	kv      KV
	nowFunc func() time.Time
	logger  zerolog.Logger
}

type Option func(*Store)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func New(kv KV, options ...Option) *Store {
	s := &Store{
		kv:      kv,
		nowFunc: time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Save writes the access token, refresh token and computed expiry as one batch.
func (s *Store) Save(ctx context.Context, t Tokens) {
	s.setMany(ctx, "save tokens", map[string]string{
		KeyAccessToken:  t.AccessToken,
		KeyRefreshToken: t.RefreshToken,
		KeyTokenExpires: s.expiresAt(t.ExpiresIn),
	})
}

// SaveAccessToken replaces the access token after a refresh that used
// refreshToken. The write only happens while that refresh token is still the
// stored one, so a result arriving after the session was replaced is dropped
// with ErrRefreshTokenChanged. The pair is rewritten in one batch.
// Callers serialize store writes; the KV offers no compare-and-set of its own.
func (s *Store) SaveAccessToken(ctx context.Context, refreshToken, accessToken string, expiresIn int) error {
	if refreshToken == "" || s.RefreshToken(ctx) != refreshToken {
		s.logger.Warn().Msg("tokenstore: refresh token changed, discarding refreshed access token")
		return ErrRefreshTokenChanged
	}
	s.Save(ctx, Tokens{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresIn: expiresIn})
	return nil
}

// SaveUser caches the profile and its id.
func (s *Store) SaveUser(ctx context.Context, p users.Profile) {
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn().Err(err).Msg("tokenstore: encode user")
		return
	}
	s.setMany(ctx, "save user", map[string]string{
		KeyUser:   string(data),
		KeyUserID: p.ID,
	})
}

func (s *Store) SaveUserID(ctx context.Context, id string) {
	s.setMany(ctx, "save user id", map[string]string{KeyUserID: id})
}

func (s *Store) LoadRaw(ctx context.Context) Raw {
	raw := Raw{
		AccessToken:  s.get(ctx, KeyAccessToken),
		RefreshToken: s.get(ctx, KeyRefreshToken),
		UserJSON:     s.get(ctx, KeyUser),
		UserID:       s.get(ctx, KeyUserID),
	}
	if expires := s.get(ctx, KeyTokenExpires); expires != "" {
		ms, err := strconv.ParseInt(expires, 10, 64)
		if err != nil {
			s.logger.Warn().Err(err).Str("value", expires).Msg("tokenstore: malformed expiry")
		} else {
			at := time.UnixMilli(ms)
			raw.ExpiresAt = &at
		}
	}
	return raw
}

func (s *Store) AccessToken(ctx context.Context) string {
	return s.get(ctx, KeyAccessToken)
}

func (s *Store) RefreshToken(ctx context.Context) string {
	return s.get(ctx, KeyRefreshToken)
}

// Clear removes the session keys and every key under the auth prefixes.
func (s *Store) Clear(ctx context.Context) {
	keys := []string{KeyAccessToken, KeyRefreshToken, KeyTokenExpires, KeyUser, KeyUserID}
	all, err := s.kv.Keys(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("tokenstore: list keys")
	}
	for _, k := range all {
		if hasClearPrefix(k) {
			keys = append(keys, k)
		}
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Msg("tokenstore: clear")
	}
}

// IsExpired reports whether now is strictly after the stored expiry. A missing
// expiry counts as expired.
func (s *Store) IsExpired(raw Raw) bool {
	if raw.ExpiresAt == nil {
		return true
	}
	return s.nowFunc().After(*raw.ExpiresAt)
}

func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) expiresAt(expiresIn int) string {
	return strconv.FormatInt(s.nowFunc().Add(time.Duration(expiresIn)*time.Second).UnixMilli(), 10)
}

func (s *Store) get(ctx context.Context, key string) string {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("tokenstore: read")
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (s *Store) setMany(ctx context.Context, op string, values map[string]string) {
	if err := s.kv.SetMany(ctx, values); err != nil {
		s.logger.Warn().Err(err).Msg("tokenstore: " + op)
	}
}

func hasClearPrefix(key string) bool {
	for _, p := range clearPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
