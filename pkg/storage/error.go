package storage

import "errors"

// ErrNilTranscript is returned when a nil transcript is stored.
var ErrNilTranscript = errors.New("cannot store nil transcript")

// NotFoundError is returned when a transcript doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "transcript not found"
	}

	return "transcript not found: " + e.ID
}
