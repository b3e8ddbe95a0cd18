package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Persistence is the best-effort backing store for the whole collection.
type Persistence interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
}

// NameResolver maps a user id to a display name.
type NameResolver interface {
	NameOf(userID string) string
}

// Recorder receives store events for metrics.
type Recorder interface {
	Upserted(created bool)
	PersistFailed(op string)
}

type nopRecorder struct{}

func (nopRecorder) Upserted(bool)        {}
func (nopRecorder) PersistFailed(string) {}

// Store holds the attendance collection in memory and mirrors every
// mutation to its Persistence. The in-memory copy stays authoritative when
// the backend fails. Writes are serialized, which keeps one record per
// (userId, date).
type Store struct {
	mu      sync.RWMutex
	records []Record
	persist Persistence
	names   NameResolver
	rec     Recorder
	log     zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithRecorder reports upserts and persistence failures to r.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.rec = r
		}
	}
}

// NewStore builds a store and loads the current collection from p.
// A failed load is logged and the store starts empty.
func NewStore(ctx context.Context, p Persistence, names NameResolver, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		persist: p,
		names:   names,
		rec:     nopRecorder{},
		log:     log.With().Str("component", "attendance_store").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Starting with empty attendance collection")
	}
	return s
}

// Reload replaces the in-memory collection with the persisted one.
// On error the current collection is kept.
func (s *Store) Reload(ctx context.Context) error {
	loaded, err := s.persist.Load(ctx)
	if err != nil {
		s.rec.PersistFailed("load")
		return fmt.Errorf("load attendance: %w", err)
	}
	sortByDateDesc(loaded)

	s.mu.Lock()
	s.records = loaded
	s.mu.Unlock()
	return nil
}

// Query returns the records for userID, or all records when userID is
// empty, most recent date first.
func (s *Store) Query(userID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if userID == "" || r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// Upsert creates or updates the record for (in.UserID, in.Date).
// An update keeps the record's id and userName, and keeps its subject
// when in.Subject is blank.
func (s *Store) Upsert(ctx context.Context, in UpsertInput) (Record, error) {
	if err := validate(in); err != nil {
		return Record{}, err
	}
	subject := strings.TrimSpace(in.Subject)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		r := &s.records[i]
		if r.UserID != in.UserID || r.Date != in.Date {
			continue
		}
		r.Status = in.Status
		r.CheckInTime = in.CheckInTime
		if subject != "" {
			r.Subject = subject
		}
		updated := *r
		s.rec.Upserted(false)
		s.saveLocked(ctx)
		return updated, nil
	}

	if subject == "" {
		subject = DefaultSubject
	}
	created := Record{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		UserName:    s.names.NameOf(in.UserID),
		Date:        in.Date,
		Status:      in.Status,
		CheckInTime: in.CheckInTime,
		Subject:     subject,
	}
	s.records = append([]Record{created}, s.records...)
	sortByDateDesc(s.records)
	s.rec.Upserted(true)
	s.saveLocked(ctx)
	return created, nil
}

// ResetAll clears the collection.
func (s *Store) ResetAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.saveLocked(ctx)
}

// Seed adds records whose (userId, date) is not already present and
// returns how many were added.
func (s *Store) Seed(ctx context.Context, records []Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.records))
	for _, r := range s.records {
		seen[naturalKey(r.UserID, r.Date)] = struct{}{}
	}
	added := 0
	for _, r := range records {
		k := naturalKey(r.UserID, r.Date)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.records = append(s.records, r)
		added++
	}
	if added > 0 {
		sortByDateDesc(s.records)
		s.saveLocked(ctx)
	}
	return added
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) saveLocked(ctx context.Context) {
	snapshot := make([]Record, len(s.records))
	copy(snapshot, s.records)
	if err := s.persist.Save(ctx, snapshot); err != nil {
		s.rec.PersistFailed("save")
		s.log.Error().Err(err).Int("records", len(snapshot)).Msg("Failed to persist attendance")
	}
}

func validate(in UpsertInput) error {
	if strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if _, err := ParseDate(in.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	return nil
}

func naturalKey(userID, date string) string {
	return userID + "|" + date
}

// ISO dates order lexically; the stable sort keeps newer writes ahead on ties.
func sortByDateDesc(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
}
