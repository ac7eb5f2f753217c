package domain

import "errors"

var (
	// ErrEmptyIdentity is returned when a network is built with a blank id
	ErrEmptyIdentity = errors.New("empty network id")

	// ErrBackendUnreachable is a transport-level failure talking to a backend
	ErrBackendUnreachable = errors.New("backend unreachable")

	// ErrBackendRejected means the backend answered with an error response
	ErrBackendRejected = errors.New("backend rejected request")

	// ErrUnsupportedAction means the source does not implement the action
	ErrUnsupportedAction = errors.New("action not supported")

	// ErrHostNotFound means no host with the given id is in the current topology
	ErrHostNotFound = errors.New("host not found")
)
