package domain

import "errors"

var ErrInvalidUser = errors.New("user id must not be empty")

// UserID identifies a user. It is opaque to the membership core.
type UserID string

func (u UserID) Validate() error {
	if u == "" {
		return ErrInvalidUser
	}
	return nil
}

func (u UserID) String() string {
	return string(u)
}
