package domain

import "errors"

// Expected business conditions. Callers branch on these with errors.Is;
// anything else coming out of a component is an infrastructure failure.
var (
	ErrFileNotFound    = errors.New("file not found")
	ErrShareNotFound   = errors.New("share not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrNotOwner        = errors.New("only the file owner may manage shares")
	ErrSessionEnded    = errors.New("session has ended")
	// ErrSessionExists reports a conditional-create conflict on a duplicate
	// session id.
	ErrSessionExists = errors.New("session already exists")
	// ErrStatusConflict reports a conditional status update whose expected
	// status no longer matched.
	ErrStatusConflict = errors.New("session status changed concurrently")
)
