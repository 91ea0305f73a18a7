package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	GetSeedDemoUsers() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type TokenConfig interface {
	GetJWTSecret() string
	GetIssuer() string
	GetRefreshTokenLength() int
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

// StoreConfig selects the backing store for server-side refresh tokens.
// An empty Redis URL means the in-memory repo is used.
type StoreConfig interface {
	GetRedisURL() string
	GetRedisNamespace() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Stores
}

func New() Config {
	return mainConfig{}
}
