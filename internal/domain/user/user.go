// Package user is the read model of account holders the billing core addresses.
package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
)

var ErrUserNotFound = errors.New("user not found")

// User is read only from the billing core's point of view.
type User struct {
	id    uint
	email string
	name  string
}

func NewUser(id uint, email, name string) (*User, error) {
	if id == 0 {
		return nil, fmt.Errorf("user ID cannot be zero")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email %q: %w", email, err)
	}
	return &User{id: id, email: email, name: name}, nil
}

func (u *User) ID() uint {
	return u.id
}

func (u *User) Email() string {
	return u.email
}

// DisplayName falls back to the email address when no name is set.
func (u *User) DisplayName() string {
	if u.name != "" {
		return u.name
	}
	return u.email
}

func (u *User) Name() string {
	return u.name
}

// Directory resolves user references carried by billing events.
type Directory interface {
	GetByID(ctx context.Context, id uint) (*User, error)
	Exists(ctx context.Context, id uint) (bool, error)
}
