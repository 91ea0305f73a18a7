package config

import "time"

const (
	jwtSecretVar          = "JWT_SECRET"
	issuerVar             = "JWT_ISSUER"
	accessTokenExpiryVar  = "ACCESS_TOKEN_EXPIRY"
	refreshTokenExpiryVar = "REFRESH_TOKEN_EXPIRY"
	refreshTokenLengthVar = "REFRESH_TOKEN_LENGTH"
)

type Tokens struct{}

var _ TokenConfig = Tokens{}

// GetJWTSecret returns the HS256 signing secret. Empty means the server generates an ephemeral one.
func (Tokens) GetJWTSecret() string {
	return GetEnv(jwtSecretVar, "")
}

func (Tokens) GetIssuer() string {
	return GetEnv(issuerVar, EnvVars{}.GetBaseURL())
}

func (Tokens) GetRefreshTokenLength() int {
	return GetInt(refreshTokenLengthVar, 32) // 32 bytes = 256 bits
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return GetDuration(accessTokenExpiryVar, 15*time.Minute)
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return GetDuration(refreshTokenExpiryVar, 7*24*time.Hour)
}
