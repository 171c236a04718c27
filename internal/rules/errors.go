package rules

import "errors"

// Sentinel errors for rule store operations. Returned errors wrap these;
// test with errors.Is.
var (
	// ErrNotFound indicates the rule document does not exist.
	ErrNotFound = errors.New("rule document not found")

	// ErrMalformed indicates the rule document could not be parsed or
	// violates the id invariants.
	ErrMalformed = errors.New("malformed rule document")

	// ErrIO indicates reading or writing a rule document failed.
	ErrIO = errors.New("rule document i/o failure")

	// ErrDuplicateID indicates an explicit rule id is already in use.
	ErrDuplicateID = errors.New("rule id already in use")

	// ErrInvalidID indicates a negative rule id.
	ErrInvalidID = errors.New("rule id must not be negative")
)
