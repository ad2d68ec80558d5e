package domain

import "errors"

var (
	// ErrNotFound signals an absent company, group, or snapshot id.
	ErrNotFound = errors.New("not found")

	// ErrValidation signals a malformed request rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrDataIntegrity signals a broken invariant observed on read (more than
	// one our-company holder, rating outside 1..5). Never repaired silently.
	ErrDataIntegrity = errors.New("data integrity violation")
)
