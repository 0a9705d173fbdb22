package core

import (
	"errors"
	"fmt"
)

// ErrInvalidCoordinates is returned when an artifact coordinate string cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid artifact coordinates")

// ErrNotFound is returned when an artifact or its metadata is not found.
var ErrNotFound = errors.New("not found")

// CoordinatesError wraps ErrInvalidCoordinates with the offending input.
type CoordinatesError struct {
	Input  string
	Reason string
}

func (e *CoordinatesError) Error() string {
	return fmt.Sprintf("invalid artifact coordinates %q: %s", e.Input, e.Reason)
}

func (e *CoordinatesError) Unwrap() error {
	return ErrInvalidCoordinates
}

// NotFoundError wraps ErrNotFound with additional context.
type NotFoundError struct {
	Repository string
	Artifact   Artifact
}

func (e *NotFoundError) Error() string {
	if e.Repository != "" {
		return fmt.Sprintf("%s: artifact %s not found", e.Repository, e.Artifact)
	}
	return fmt.Sprintf("artifact %s not found", e.Artifact)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
