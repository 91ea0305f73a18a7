package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-clinic-auth/internal/errors"
	"github.com/jrsteele09/go-clinic-auth/token/refresh"
	"github.com/jrsteele09/go-clinic-auth/users"
)

const defaultAudience = "clinic-api"

// TokenIntrospection describes an access token. When Active is false the other
// fields may not be populated.
type TokenIntrospection struct {
	Active  bool    `json:"active"`            // Is the token valid and unrevoked
	Exp     *int64  `json:"exp,omitempty"`     // Expiration
	Iat     *int64  `json:"iat,omitempty"`     // Issued at time
	Iss     *string `json:"iss,omitempty"`     // Issuer of the token
	Sub     *string `json:"sub,omitempty"`     // Users unique ID
	Jti     string  `json:"jti,omitempty"`     // Token ID used for revocation
	Subuser bool    `json:"subuser,omitempty"` // Token belongs to a subuser
}

// TokenResponse is what sign-in and refresh hand back. RefreshToken is empty on refresh.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

type Manager struct {
	signer            Signer
	issuer            string
	audience          string
	refresh           *refresh.Manager
	userRepo          users.UserRepo
	revocations       Revocations
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
	ledger            *accessLedger
}

type ManagerOption func(*Manager)

func WithAccessTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithRevocations(revocations Revocations) ManagerOption {
	return func(m *Manager) {
		m.revocations = revocations
	}
}

func New(refreshManager *refresh.Manager, userRepo users.UserRepo, signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:   signer,
		refresh:  refreshManager,
		userRepo: userRepo,
		audience: defaultAudience,
		ledger:   newAccessLedger(),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 15 * time.Minute
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	if m.revocations == nil {
		m.revocations = NewMemoryRevocations(m.nowFunc, m.accessTokenExpiry)
	}
	return m
}

// AccessTokenExpiry returns the lifetime of issued access tokens.
func (c *Manager) AccessTokenExpiry() time.Duration {
	return c.accessTokenExpiry
}

// IssueTokens starts a new device session for user.
func (c *Manager) IssueTokens(user *users.User) (*TokenResponse, error) {
	accessToken, err := c.CreateAccessToken(user)
	if err != nil {
		return nil, autherrors.Wrapf(err, "Manager.IssueTokens CreateAccessToken")
	}
	refreshToken, err := c.refresh.Create(user.ID)
	if err != nil {
		return nil, autherrors.Wrapf(err, "Manager.IssueTokens CreateRefreshToken")
	}
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(c.accessTokenExpiry.Seconds()),
	}, nil
}

func (c *Manager) CreateAccessToken(user *users.User) (string, error) {
	now := c.nowFunc()
	exp := now.Add(c.accessTokenExpiry)
	jti := uuid.New().String()

	claims := jwt.MapClaims{
		"iss":     c.issuer,         // The issuer of the token
		"sub":     user.ID,          // The subject, the user the token was issued to
		"aud":     c.audience,       // The audience for which the token is intended
		"iat":     now.Unix(),       // Issued At: the time at which the token was issued
		"exp":     exp.Unix(),       // Expiry: when the token will expire
		"jti":     jti,              // Unique token ID for revocation
		"subuser": user.IsSubuser(), // Subusers are restricted client side
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", err
	}
	c.ledger.track(user.ID, jti, exp)
	return signed, nil
}

// RefreshAccessToken issues a new access token for a valid refresh token. The
// refresh token is not rotated.
func (c *Manager) RefreshAccessToken(refreshToken string) (*TokenResponse, error) {
	rt, err := c.refresh.Validate(refreshToken)
	if errors.Is(err, refresh.ErrExpired) {
		return nil, autherrors.ErrRefreshTokenExpired
	}
	if err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidRefreshToken, "%v", err)
	}

	user, err := c.userRepo.GetByID(rt.UserID)
	if err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrUserNotFound, "refresh for %s", rt.UserID)
	}
	if !user.Active() {
		return nil, autherrors.ErrUserInactive
	}

	accessToken, err := c.CreateAccessToken(user)
	if err != nil {
		return nil, autherrors.Wrapf(err, "failed to create access token")
	}
	return &TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(c.accessTokenExpiry.Seconds()),
	}, nil
}

func (c *Manager) Introspection(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, nil
	}

	token, err := jwt.Parse(rawToken, c.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(c.nowFunc),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return &TokenIntrospection{Active: false}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return &TokenIntrospection{Active: false}, errors.New("error extracting claims from token")
	}

	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)
	jti, _ := claims["jti"].(string)
	subuser, _ := claims["subuser"].(bool)

	iatInt := int64(iat)
	expInt := int64(exp)

	active := sub != ""
	if jti != "" && c.revocations.IsRevoked(jti) {
		active = false
	}

	return &TokenIntrospection{
		Active:  active,
		Exp:     &expInt,
		Iat:     &iatInt,
		Iss:     &iss,
		Sub:     &sub,
		Jti:     jti,
		Subuser: subuser,
	}, nil
}

// InvalidateRefreshToken ends one device session. Unknown tokens are ignored.
func (c *Manager) InvalidateRefreshToken(refreshToken string) error {
	if err := c.refresh.Delete(refreshToken); err != nil && !errors.Is(err, refresh.ErrNotFound) {
		return fmt.Errorf("invalidate refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser ends every device session of userID: all refresh tokens are
// deleted and every live access token is revoked.
func (c *Manager) RevokeAllForUser(userID string) (int, error) {
	n, err := c.refresh.DeleteAllForUser(userID)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}

	for jti, exp := range c.ledger.take(userID, c.nowFunc()) {
		if err := c.revocations.Revoke(jti, exp); err != nil {
			return n, fmt.Errorf("revoke access token: %w", err)
		}
	}
	return n, nil
}

// PruneRevocations drops revocations and ledger entries for tokens that have
// expired anyway. It returns the number of revocations removed.
func (c *Manager) PruneRevocations() int {
	c.ledger.prune(c.nowFunc())
	return c.revocations.Prune()
}
