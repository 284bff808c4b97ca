package store

import "errors"

// Common persistence errors returned by store implementations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists indicates a user with the same email already exists.
	ErrEmailExists = errors.New("email already exists")

	// ErrTaskNotFound indicates the requested task does not exist or is
	// not owned by the requesting user.
	ErrTaskNotFound = errors.New("task not found")
)
