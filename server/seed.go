package server

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-clinic-auth/users"
	"github.com/rs/zerolog/log"
)

const (
	DemoOwnerUsername = "owner"
	DemoStaffUsername = "reception"
)

// DemoAccount is a seeded login. Password is empty when the account already existed.
type DemoAccount struct {
	Email    string
	Password string
	Subuser  bool
}

// SeedDemoUsers creates a main account and one subuser under it. Existing
// accounts are left alone, so seeding is safe on every start.
func (s *Server) SeedDemoUsers() ([]DemoAccount, error) {
	log.Info().Msg("Seed: checking demo accounts")
	domain := emailDomainFromBaseURL(s.config.GetBaseURL())

	owner, ownerAccount, err := s.seedUser(DemoOwnerUsername+"@"+domain, "Clinic Owner", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to seed owner account: %w", err)
	}
	_, staffAccount, err := s.seedUser(DemoStaffUsername+"@"+domain, "Front Desk", &owner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to seed subuser account: %w", err)
	}

	accounts := []DemoAccount{ownerAccount, staffAccount}
	for _, a := range accounts {
		if a.Password == "" {
			log.Info().Str("email", a.Email).Msg("Seed: account already exists")
			continue
		}
		// Printed once; the password is not stored anywhere in clear text.
		log.Warn().Str("email", a.Email).Bool("subuser", a.Subuser).Str("password", a.Password).
			Msg("Seed: created demo account, save this password")
	}
	return accounts, nil
}

func (s *Server) seedUser(email, name string, parentID *string) (*users.User, DemoAccount, error) {
	account := DemoAccount{Email: email, Subuser: parentID != nil}

	existing, err := s.repos.Users.GetByEmail(email)
	if err == nil {
		return existing, account, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, account, err
	}

	password, err := generatePassword()
	if err != nil {
		return nil, account, err
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, account, err
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
		return nil, account, err
	}
	account.Password = password
	return user, account, nil
}

// generatePassword returns a random password that passes ValidatePasswordStrength.
func generatePassword() (string, error) {
	passwordBytes := make([]byte, 12)
	if _, err := rand.Read(passwordBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(passwordBytes) + "Aa1", nil
}

func emailDomainFromBaseURL(baseURL string) string {
	domain := strings.ReplaceAll(strings.ReplaceAll(baseURL, "https://", ""), "http://", "")
	domain = strings.SplitN(domain, "/", 2)[0] // Remove any path
	domain = strings.SplitN(domain, ":", 2)[0] // Remove port if present
	if domain == "" || domain == "localhost" {
		return "clinic.local"
	}
	return domain
}
