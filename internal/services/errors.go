package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotStarted           = errors.New("session not started")
	ErrSlotOutOfRange       = errors.New("slot is not part of the active challenge")
	ErrChallengeNotFound    = errors.New("challenge not found")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrEmptyQuery           = errors.New("query is empty")
)

// ConfirmationError carries the question the user must accept before a
// destructive operation runs. It matches ErrConfirmationRequired.
type ConfirmationError struct {
	Prompt string
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfirmationRequired, e.Prompt)
}

func (e *ConfirmationError) Is(target error) bool {
	return target == ErrConfirmationRequired
}

func confirmation(prompt string) error {
	return &ConfirmationError{Prompt: prompt}
}
