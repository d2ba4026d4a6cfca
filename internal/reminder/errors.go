package reminder

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrValidation marks a malformed or past-dated schedule request.
	// It is the only error surfaced to the requester.
	ErrValidation = errors.New("invalid schedule request")

	// ErrDuplicateID is returned by Insert when the ID is already pending.
	ErrDuplicateID = errors.New("reminder already pending")

	// ErrNotFound is returned when no pending reminder has the ID.
	ErrNotFound = errors.New("reminder not found")

	// ErrStateConflict is returned by Transition when the current state
	// differs from the expected one. The caller lost a race.
	ErrStateConflict = errors.New("reminder state conflict")
)

// ValidationError builds an error marked with ErrValidation that keeps msg
// as its user-facing text.
func ValidationError(msg string) error {
	return errors.Mark(errors.New(msg), ErrValidation)
}

// IsRaceLoss reports whether err only means another handler resolved the
// reminder first.
func IsRaceLoss(err error) bool {
	return errors.Is(err, ErrStateConflict) || errors.Is(err, ErrNotFound)
}
