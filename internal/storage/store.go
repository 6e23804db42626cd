package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCap is the maximum number of records kept in the collection.
const DefaultCap = 50

// Store owns the ordered collection of prompt records (newest first) and
// keeps it synchronized with a single durable Slot.
//
// The collection is hydrated once in Open. Every mutation rewrites the whole
// collection to the slot, except that an empty collection is never written.
// Deleting the last record clears the slot instead, so deleted history does
// not come back on the next load.
type Store struct {
	mu      sync.RWMutex
	slot    Slot
	records []PromptRecord
	cap     int
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCap overrides DefaultCap. Values <= 0 are ignored.
func WithCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cap = n
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the record id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the logger used for hydration and persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates a Store backed by slot and hydrates it from the slot's
// current content. A missing or unreadable blob yields an empty collection;
// the failure is logged and never returned. Records beyond the cap are
// dropped from the oldest end.
func Open(slot Slot, opts ...Option) *Store {
	s := &Store{
		slot:   slot,
		cap:    DefaultCap,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.records = s.hydrate()
	return s
}

func (s *Store) hydrate() []PromptRecord {
	data, err := s.slot.Read()
	if errors.Is(err, ErrSlotEmpty) {
		return nil
	}
	if err != nil {
		s.logger.Warn("failed to read stored prompts", "key", StorageKey, "error", err)
		return nil
	}

	var loaded []PromptRecord
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Error("failed to parse stored prompts", "key", StorageKey, "error", err)
		return nil
	}

	seen := make(map[string]struct{}, len(loaded))
	records := make([]PromptRecord, 0, len(loaded))
	for _, r := range loaded {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		records = append(records, r)
	}
	if skipped := len(loaded) - len(records); skipped > 0 {
		s.logger.Warn("dropped invalid stored prompts", "count", skipped)
	}
	if len(records) > s.cap {
		// A cap lowered since the blob was written applies on load; the
		// slot itself is rewritten with the next mutation.
		s.logger.Info("trimming stored prompts to cap", "records", len(records), "cap", s.cap)
		records = records[:s.cap]
	}
	s.logger.Debug("hydrated prompt history", "records", len(records))
	return records
}

// Add records a new generation result at the front of the collection and
// evicts the oldest records beyond the cap, favorites included.
//
// The returned record is valid even when err is a *PersistError: the record
// is kept in memory and written with the next successful persist.
func (s *Store) Add(originalInput, generatedPrompt string) (PromptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixMilli()
	if len(s.records) > 0 && ts <= s.records[0].Timestamp {
		ts = s.records[0].Timestamp + 1
	}

	rec := PromptRecord{
		ID:              s.newID(),
		OriginalInput:   originalInput,
		GeneratedPrompt: generatedPrompt,
		Timestamp:       ts,
		IsFavorite:      false,
	}

	updated := make([]PromptRecord, 0, len(s.records)+1)
	updated = append(updated, rec)
	updated = append(updated, s.records...)
	if len(updated) > s.cap {
		s.logger.Debug("evicting oldest prompts", "count", len(updated)-s.cap)
		updated = updated[:s.cap]
	}
	s.records = updated

	return rec.clone(), s.persist()
}

// ToggleFavorite flips IsFavorite on the matching record. Unknown ids are a no-op.
func (s *Store) ToggleFavorite(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	s.records[i].IsFavorite = !s.records[i].IsFavorite
	return s.persist()
}

// SetRating sets the rating on the matching record. Ratings outside
// MinRating..MaxRating are rejected with ErrInvalidRating. Unknown ids are a no-op.
func (s *Store) SetRating(id string, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("%w: %d (want %d-%d)", ErrInvalidRating, rating, MinRating, MaxRating)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	s.records[i].Rating = &rating
	return s.persist()
}

// Delete removes the matching record. Unknown ids are a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	s.records = append(s.records[:i:i], s.records[i+1:]...)

	if len(s.records) == 0 {
		if err := s.slot.Clear(); err != nil {
			s.logger.Error("failed to clear stored prompts", "error", err)
			return &PersistError{Op: "clear", Err: err}
		}
		return nil
	}
	return s.persist()
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (PromptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return PromptRecord{}, ErrNotFound
	}
	return s.records[i].clone(), nil
}

// All returns a copy of the whole collection, newest first.
func (s *Store) All() []PromptRecord {
	return s.Recent(0)
}

// Recent returns up to n records, newest first. n <= 0 returns all of them.
func (s *Store) Recent(n int) []PromptRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.records) {
		n = len(s.records)
	}
	out := make([]PromptRecord, n)
	for i := range out {
		out[i] = s.records[i].clone()
	}
	return out
}

// Favorites returns the favorited records, newest first.
func (s *Store) Favorites() []PromptRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PromptRecord, 0)
	for _, r := range s.records {
		if r.IsFavorite {
			out = append(out, r.clone())
		}
	}
	return out
}

// Len returns the number of records in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Cap returns the configured collection cap.
func (s *Store) Cap() int {
	return s.cap
}

func (s *Store) indexOf(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// persist writes the full collection. Caller must hold s.mu.
func (s *Store) persist() error {
	if len(s.records) == 0 {
		s.logger.Debug("skipping persist of empty prompt collection")
		return nil
	}

	data, err := json.Marshal(s.records)
	if err != nil {
		return &PersistError{Op: "encode", Err: err}
	}
	if err := s.slot.Write(data); err != nil {
		s.logger.Error("failed to persist prompts", "records", len(s.records), "error", err)
		return &PersistError{Op: "write", Err: err}
	}
	return nil
}
