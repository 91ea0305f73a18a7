package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-clinic-auth/authmodel"
	autherrors "github.com/jrsteele09/go-clinic-auth/internal/errors"
	"github.com/jrsteele09/go-clinic-auth/users"
	"github.com/rs/zerolog/log"
)

const (
	msgInvalidBody          = "Invalid request body"
	msgInvalidCredentials   = "Invalid credentials"
	msgAccountInactive      = "Account is inactive"
	msgEmailTaken           = "Email already registered"
	msgInvalidParent        = "Parent account not found or not a main account"
	msgNameRequired         = "Name is required"
	msgRefreshTokenRequired = "Refresh token is required"
	msgInvalidRefreshToken  = "Invalid or expired refresh token"
	msgUserNotFound         = "User not found"
	msgInternal             = "Internal server error"
	msgSignedOut            = "Signed out"
	msgSignedOutAll         = "Signed out from all devices"
)

// SignUpHandler creates a main account, or a subuser when parentId names an
// active main account.
func (s *Server) SignUpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.SignUpRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, msgInvalidBody, http.StatusBadRequest)
			return
		}

		email := users.NormalizeEmail(req.Email)
		if err := users.ValidateEmail(email); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := users.ValidatePasswordStrength(req.Password); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeJSONError(w, msgNameRequired, http.StatusBadRequest)
			return
		}

		if existing, err := s.repos.Users.GetByEmail(email); err == nil && existing != nil {
			s.metrics.authEvent("signup", outcomeFailure)
			writeJSONError(w, msgEmailTaken, http.StatusConflict)
			return
		}

		var parentID *string
		if req.ParentID != nil && *req.ParentID != "" {
			parent, err := s.repos.Users.GetByID(*req.ParentID)
			if err != nil || parent.IsSubuser() || !parent.Active() {
				s.metrics.authEvent("signup", outcomeFailure)
				writeJSONError(w, msgInvalidParent, http.StatusBadRequest)
				return
			}
			parentID = &parent.ID
		}

		hash, err := users.HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("failed to hash password")
			writeJSONError(w, msgInternal, http.StatusInternalServerError)
			return
		}

		user := &users.User{
			Email:        email,
			Name:         name,
			PasswordHash: hash,
			ParentID:     parentID,
			Status:       users.StatusActive,
			DateJoined:   s.nowFunc(),
		}
		if err := s.repos.Users.Upsert(user); err != nil {
			log.Error().Err(err).Str("email", email).Msg("failed to create user")
			writeJSONError(w, msgInternal, http.StatusInternalServerError)
			return
		}

		s.metrics.authEvent("signup", outcomeSuccess)
		log.Info().Str("user_id", user.ID).Bool("subuser", user.IsSubuser()).Msg("user signed up")
		writeJSON(w, http.StatusCreated, authmodel.UserData{User: user.Profile()})
	}
}

func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.SignInRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, msgInvalidBody, http.StatusBadRequest)
			return
		}

		user, err := s.repos.Users.GetByEmail(req.Email)
		if err != nil || !user.CheckPassword(req.Password) {
			s.metrics.authEvent("signin", outcomeFailure)
			writeJSONError(w, msgInvalidCredentials, http.StatusUnauthorized)
			return
		}
		if !user.Active() {
			s.metrics.authEvent("signin", outcomeFailure)
			writeJSONError(w, msgAccountInactive, http.StatusForbidden)
			return
		}

		tokens, err := s.tokens.IssueTokens(user)
		if err != nil {
			log.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue tokens")
			writeJSONError(w, msgInternal, http.StatusInternalServerError)
			return
		}
		if err := s.repos.Users.SetLastLogin(user.Email, s.nowFunc()); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
		}

		s.metrics.authEvent("signin", outcomeSuccess)
		writeJSON(w, http.StatusOK, authmodel.SessionData{
			User:         user.Profile(),
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			ExpiresIn:    tokens.ExpiresIn,
		})
	}
}

// RefreshHandler exchanges a refresh token for a new access token. The refresh
// token itself stays valid.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.RefreshRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, msgInvalidBody, http.StatusBadRequest)
			return
		}
		if req.RefreshToken == "" {
			writeJSONError(w, msgRefreshTokenRequired, http.StatusBadRequest)
			return
		}

		tokens, err := s.tokens.RefreshAccessToken(req.RefreshToken)
		switch {
		case err == nil:
		case errors.Is(err, autherrors.ErrUserInactive):
			s.metrics.authEvent("refresh", outcomeFailure)
			writeJSONError(w, msgAccountInactive, http.StatusForbidden)
			return
		case errors.Is(err, autherrors.ErrRefreshTokenExpired),
			errors.Is(err, autherrors.ErrInvalidRefreshToken),
			errors.Is(err, autherrors.ErrUserNotFound):
			s.metrics.authEvent("refresh", outcomeFailure)
			writeJSONError(w, msgInvalidRefreshToken, http.StatusUnauthorized)
			return
		default:
			log.Error().Err(err).Msg("refresh failed")
			writeJSONError(w, msgInternal, http.StatusInternalServerError)
			return
		}

		s.metrics.authEvent("refresh", outcomeSuccess)
		writeJSON(w, http.StatusOK, authmodel.RefreshData{
			AccessToken: tokens.AccessToken,
			ExpiresIn:   tokens.ExpiresIn,
		})
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.repos.Users.GetByID(userIDFromContext(r.Context()))
		if err != nil {
			writeJSONError(w, msgUserNotFound, http.StatusNotFound)
			return
		}
		if !user.Active() {
			writeJSONError(w, msgAccountInactive, http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, authmodel.UserData{User: user.Profile()})
	}
}

// SignOutHandler ends the device session named by the refresh token. Unknown
// or missing tokens still succeed.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.SignOutRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, msgInvalidBody, http.StatusBadRequest)
			return
		}
		if req.RefreshToken != "" {
			if err := s.tokens.InvalidateRefreshToken(req.RefreshToken); err != nil {
				log.Error().Err(err).Msg("failed to invalidate refresh token")
				writeJSONError(w, msgInternal, http.StatusInternalServerError)
				return
			}
		}
		s.metrics.authEvent("signout", outcomeSuccess)
		writeMessage(w, msgSignedOut)
	}
}

func (s *Server) SignOutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromContext(r.Context())
		n, err := s.tokens.RevokeAllForUser(userID)
		if err != nil {
			s.metrics.authEvent("signout_all", outcomeFailure)
			log.Error().Err(err).Str("user_id", userID).Msg("failed to revoke sessions")
			writeJSONError(w, msgInternal, http.StatusInternalServerError)
			return
		}
		s.metrics.authEvent("signout_all", outcomeSuccess)
		log.Info().Str("user_id", userID).Int("sessions", n).Msg("signed out from all devices")
		writeMessage(w, msgSignedOutAll)
	}
}

func (s *Server) ValidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authmodel.ValidateData{
			Valid:  tokenFromContext(r.Context()) != nil,
			UserID: userIDFromContext(r.Context()),
		})
	}
}

// PreflightHandler answers OPTIONS requests that carry no Origin; CorsMiddleware
// handles the rest.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
