package models

import "errors"

// Definition invariant violations. These indicate misconfigured registrations
// and fail fast at startup, never at request time.
var (
	ErrEmptyDefinition = errors.New("lifecycle definition has no stages")
	ErrUnnamedStage    = errors.New("lifecycle definition contains an unnamed stage")
	ErrDuplicateStage  = errors.New("lifecycle definition contains duplicate stage names")
	ErrTerminalNotLast = errors.New("terminal stage must be the last stage")
	ErrLastNotTerminal = errors.New("last stage must be terminal")
)
