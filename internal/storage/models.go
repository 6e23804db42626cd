package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidRating is returned when a rating falls outside MinRating..MaxRating.
var ErrInvalidRating = errors.New("rating out of range")

// ErrPersist marks failures writing the collection to durable storage.
var ErrPersist = errors.New("persisting prompt history")

const (
	MinRating = 1
	MaxRating = 5
)

// PromptRecord is one generation event and the user's metadata about it.
// The JSON field names are the on-disk format and must not change.
type PromptRecord struct {
	ID              string `json:"id" yaml:"id"`
	OriginalInput   string `json:"originalInput" yaml:"originalInput"`
	GeneratedPrompt string `json:"generatedPrompt" yaml:"generatedPrompt"`
	Timestamp       int64  `json:"timestamp" yaml:"timestamp"`
	IsFavorite      bool   `json:"isFavorite" yaml:"isFavorite"`
	Rating          *int   `json:"rating,omitempty" yaml:"rating,omitempty"`
}

// Rated reports whether the record carries a rating.
func (r PromptRecord) Rated() bool {
	return r.Rating != nil
}

func (r PromptRecord) clone() PromptRecord {
	if r.Rating != nil {
		v := *r.Rating
		r.Rating = &v
	}
	return r
}

// PersistError wraps a failed write of the collection. The in-memory
// mutation that triggered it has already been applied.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrPersist.Error(), e.Op, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrPersist, e.Err}
}
