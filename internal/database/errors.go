package database

import "errors"

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmptyName is returned when an identity name is blank after normalization.
var ErrEmptyName = errors.New("identity name is empty")
