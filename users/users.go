package users

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

var ErrInvalidProfile = errors.New("invalid user profile")

// Profile is the identity record exchanged with clients. A profile with a
// ParentID is a subuser of that main account.
type Profile struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	IsSubuser bool    `json:"isSubuser"`
	ParentID  *string `json:"parentId"`
	Status    Status  `json:"status"`
}

// Validate checks the structural rules every stored or received profile must satisfy.
func (p Profile) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidProfile)
	case p.Email == "":
		return fmt.Errorf("%w: missing email", ErrInvalidProfile)
	case p.Status != StatusActive && p.Status != StatusInactive:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProfile, p.Status)
	case p.IsSubuser && (p.ParentID == nil || *p.ParentID == ""):
		return fmt.Errorf("%w: subuser without parent", ErrInvalidProfile)
	case !p.IsSubuser && p.ParentID != nil:
		return fmt.Errorf("%w: main user with parent", ErrInvalidProfile)
	}
	return nil
}

// Clone returns a copy that shares no memory with p.
func (p Profile) Clone() *Profile {
	c := p
	if p.ParentID != nil {
		parent := *p.ParentID
		c.ParentID = &parent
	}
	return &c
}

// IsMainUser reports whether the profile is a top-level account.
func (p Profile) IsMainUser() bool {
	return !p.IsSubuser
}

type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Email        string    `json:"email,omitempty"`       // User's email address, stored lowercased
	Name         string    `json:"name,omitempty"`        // Display name
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	ParentID     *string   `json:"parent_id,omitempty"`   // Owning main account for subusers
	Status       Status    `json:"status,omitempty"`      // active or inactive
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time `json:"last_login,omitempty"`  // Last time the user logged in
}

func (u *User) IsSubuser() bool {
	return u.ParentID != nil
}

func (u *User) Active() bool {
	return u.Status == StatusActive
}

// Profile returns the client-facing view of the user.
func (u *User) Profile() Profile {
	p := Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		IsSubuser: u.IsSubuser(),
		Status:    u.Status,
	}
	if u.ParentID != nil {
		parent := *u.ParentID
		p.ParentID = &parent
	}
	return p
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a plaintext password against the user's stored hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}
