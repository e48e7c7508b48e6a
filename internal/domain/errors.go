package domain

import "errors"

var (
	// ErrAlreadyRegistered is returned when creating a service whose
	// subdomain already has a persisted record.
	ErrAlreadyRegistered = errors.New("service already registered")

	// ErrNotFound is returned when an update, removal or lookup targets a
	// service that has no live binding.
	ErrNotFound = errors.New("service not found")

	// ErrNicknameTaken is returned when an occupant joins a room under a
	// nickname that is already present.
	ErrNicknameTaken = errors.New("nickname already taken")
)
