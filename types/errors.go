package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the router channel, the SNMP layer and the CoA client.
var (
	ErrConnection      = errors.New("connection failure")
	ErrDesync          = errors.New("protocol desync")
	ErrTimeout         = errors.New("transport timeout")
	ErrDecode          = errors.New("decode failure")
	ErrValidation      = errors.New("validation failure")
	ErrProfileNotFound = errors.New("profile not found")
)

// ValidationError reports a missing mandatory field
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failure: %s is required", e.Field)
}

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ProfileNotFoundError reports an unknown device id. It is a connection failure.
type ProfileNotFoundError struct {
	Kind string // "router" or "olt"
	ID   string
}

func (e *ProfileNotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("connection failure: no default %s profile", e.Kind)
	}
	return fmt.Sprintf("connection failure: %s profile %q not found", e.Kind, e.ID)
}

func (e *ProfileNotFoundError) Is(target error) bool {
	return target == ErrProfileNotFound || target == ErrConnection
}
