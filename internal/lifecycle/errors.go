package lifecycle

import "github.com/cockroachdb/errors"

var (
	// ErrChannel marks a failed call to the notification channel.
	ErrChannel = errors.New("notification channel failure")

	// ErrLogStore marks a failed append to the outcome log. The reminder is
	// still resolved; the row is lost.
	ErrLogStore = errors.New("log store failure")
)

// MsgPastTime is the user-facing text for a fire time that is not in the future.
const MsgPastTime = "Время должно быть в будущем."
