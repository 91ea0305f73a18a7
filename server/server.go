package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-clinic-auth/internal/config"
	"github.com/jrsteele09/go-clinic-auth/token"
	"github.com/jrsteele09/go-clinic-auth/token/refresh"
	"github.com/jrsteele09/go-clinic-auth/users"
	"github.com/rs/zerolog/log"
)

// Repos are the stores the auth API runs on.
type Repos struct {
	Users   users.UserRepo
	Refresh refresh.Repo
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	repos   Repos
	tokens  *token.Manager
	metrics *metrics
	nowFunc func() time.Time
}

type Option func(*Server)

// WithNowFunc replaces the clock used for token issue and expiry.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func New(cfg config.Config, repos Repos, options ...Option) (*Server, error) {
	if repos.Users == nil || repos.Refresh == nil {
		return nil, fmt.Errorf("[Server New] user and refresh token repos are required")
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		repos:   repos,
		metrics: newMetrics(),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	secret := cfg.GetJWTSecret()
	if secret == "" {
		var err error
		if secret, err = ephemeralSecret(); err != nil {
			return nil, fmt.Errorf("[Server New] failed to generate signing secret: %w", err)
		}
		log.Warn().Msg("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}

	refreshManager := refresh.NewManager(repos.Refresh, cfg.GetRefreshTokenLength(), cfg.GetRefreshTokenExpiry(),
		refresh.WithNowFunc(s.nowFunc))
	s.tokens = token.New(refreshManager, repos.Users, token.NewHMACSigner(secret),
		token.WithIssuer(cfg.GetIssuer()),
		token.WithAccessTokenExpiry(cfg.GetAccessTokenExpiry()),
		token.WithNowFunc(s.nowFunc),
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Tokens exposes the token manager for background maintenance.
func (s *Server) Tokens() *token.Manager {
	return s.tokens
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}

func ephemeralSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
