package config

import "errors"

// ErrNotFound is returned when a requested resource does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update violates a uniqueness
// constraint, such as a taken username, email or phone number.
var ErrConflict = errors.New("already exists")

// ErrUnsupportedDriver is returned by Open for an unknown store driver.
var ErrUnsupportedDriver = errors.New("unsupported store driver")
