package measurements

import "errors"

var (
	// ErrDuplicateLineItem is returned when an active item with the same
	// session, price-list entry and row description already exists.
	ErrDuplicateLineItem = errors.New("duplicate line item: an active item with this price-list entry and row description already exists in the session")

	// ErrMissingRole is returned when a revision would be recorded without
	// an editor role.
	ErrMissingRole = errors.New("editor role is required to record a revision")

	ErrNotFound = errors.New("not found")

	// ErrSessionClosed is returned when items of a submitted or approved
	// session are mutated.
	ErrSessionClosed = errors.New("session is not editable in its current status")

	ErrInvalidTransition = errors.New("invalid session status transition")

	// ErrInvalidFile wraps parse failures of an uploaded price-list file.
	ErrInvalidFile = errors.New("invalid price list file")
)
