package rbac

import "errors"

var (
	// ErrUnknownRole is returned when a claim names a role outside the closed set.
	ErrUnknownRole = errors.New("rbac: unknown role")
	// ErrUnknownClearance is returned when a claim names an unknown clearance tier.
	ErrUnknownClearance = errors.New("rbac: unknown clearance")
	// ErrInvalidPolicy signals a broken role or permission table at startup.
	ErrInvalidPolicy = errors.New("rbac: invalid policy")
)
