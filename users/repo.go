package users

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

// UserRepo stores accounts. Emails are matched case-insensitively.
type UserRepo interface {
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	List(offset, limit int) ([]*User, error)
	ListSubusers(parentID string) ([]*User, error)
	SetStatus(email string, status Status) error
	SetLastLogin(email string, at time.Time) error
}
