// Package storage persists case records, curated sets and raw message logs.
package storage

import (
	"flagwatch/backend/internal/models"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned when no record exists for the requested key.
	ErrNotFound = errors.New("record not found")
	// ErrEmptyValue is returned when a phrase is blank after normalization.
	ErrEmptyValue = errors.New("value must not be empty")
	// ErrMalformed marks a persisted store that could not be parsed.
	ErrMalformed = errors.New("malformed store")
)

// CaseLedger is the append-only, per-author history of classified events.
// Implementations serialize appends for the same author.
type CaseLedger interface {
	// Append adds ev to the author's record and returns the new event count.
	Append(authorID string, ev models.ClassifiedEvent) (int, error)
	// Read returns the active record in arrival order, or ErrNotFound.
	Read(authorID string) ([]models.ClassifiedEvent, error)
	// Query applies f to the active record.
	Query(authorID string, f Filter) ([]models.ClassifiedEvent, error)
	// Delete destroys the active record.
	Delete(authorID string) error
	// Archive moves the active record into the archive store.
	Archive(authorID string) error
	// Lookup consults the active store first and then the archive.
	Lookup(authorID string) (events []models.ClassifiedEvent, archived bool, err error)
	// Authors lists author IDs that have an active record.
	Authors() ([]string, error)
	// Summaries returns one line per author, optionally including archived records.
	Summaries(includeArchived bool) ([]models.CaseSummary, error)
}

// SetStore is a small persisted set of strings (watchlist, blacklist, ignored communities).
type SetStore interface {
	List() ([]string, error)
	Contains(value string) (bool, error)
	// Add returns false when the value was already present.
	Add(value string) (bool, error)
	// Remove returns false when the value was not present.
	Remove(value string) (bool, error)
}
