package domain

import "errors"

// Generic lookup failures. Domain sentinels wrap these.
var (
	ErrNotExist = errors.New("does not exist")
	ErrExist    = errors.New("already exists")
)
