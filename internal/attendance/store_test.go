package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakePersistence struct {
	mu      sync.Mutex
	stored  []Record
	loadErr error
	saveErr error
	saves   int
}

func (f *fakePersistence) Load(ctx context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make([]Record, len(f.stored))
	copy(out, f.stored)
	return out, nil
}

func (f *fakePersistence) Save(ctx context.Context, records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.stored = records
	return nil
}

type fakeNames map[string]string

func (n fakeNames) NameOf(id string) string {
	if name, ok := n[id]; ok {
		return name
	}
	return "Unknown"
}

type countingRecorder struct {
	created, updated int
	failures         map[string]int
}

func (c *countingRecorder) Upserted(created bool) {
	if created {
		c.created++
	} else {
		c.updated++
	}
}

func (c *countingRecorder) PersistFailed(op string) {
	if c.failures == nil {
		c.failures = map[string]int{}
	}
	c.failures[op]++
}

func newTestStore(p *fakePersistence, opts ...Option) *Store {
	return NewStore(context.Background(), p, fakeNames{"2": "John Student"}, zerolog.Nop(), opts...)
}

func TestUpsertThenUpdateKeepsOneRecord(t *testing.T) {
	p := &fakePersistence{}
	s := newTestStore(p)
	ctx := context.Background()

	first, err := s.Upsert(ctx, UpsertInput{UserID: "2", Date: "2024-01-08", Status: StatusAbsent})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	second, err := s.Upsert(ctx, UpsertInput{UserID: "2", Date: "2024-01-08", Status: StatusPresent, CheckInTime: "09:00"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got := s.Query("2")
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}
	if got[0].Status != StatusPresent || got[0].CheckInTime != "09:00" {
		t.Errorf("Unexpected record: %+v", got[0])
	}
	if second.ID != first.ID {
		t.Errorf("Expected id %s to be preserved, got %s", first.ID, second.ID)
	}
	if second.UserName != "John Student" {
		t.Errorf("Expected denormalized name, got %q", second.UserName)
	}
	if p.saves != 2 {
		t.Errorf("Expected 2 saves, got %d", p.saves)
	}
	if len(p.stored) != 1 {
		t.Errorf("Expected persisted collection of 1, got %d", len(p.stored))
	}
}

func TestUpdateWithoutSubjectKeepsExistingSubject(t *testing.T) {
	s := newTestStore(&fakePersistence{})
	ctx := context.Background()

	s.Upsert(ctx, UpsertInput{UserID: "2", Date: "2024-01-08", Status: StatusAbsent, Subject: "Math"})
	rec, err := s.Upsert(ctx, UpsertInput{UserID: "2", Date: "2024-01-08", Status: StatusPresent})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if rec.Subject != "Math" {
		t.Errorf("Expected subject Math to be kept, got %q", rec.Subject)
	}

	rec, _ = s.Upsert(ctx, UpsertInput{UserID: "2", Date: "2024-01-08", Status: StatusPresent, Subject: "History"})
	if rec.Subject != "History" {
		t.Errorf("Expected subject History, got %q", rec.Subject)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(&fakePersistence{})
	in := UpsertInput{UserID: "2", Date: "2024-02-01", Status: StatusLate, CheckInTime: "08:20", Subject: "Math"}

	a, _ := s.Upsert(context.Background(), in)
	b, _ := s.Upsert(context.Background(), in)

	if a != b {
		t.Errorf("Expected identical records, got %+v and %+v", a, b)
	}
	if n := s.Len(); n != 1 {
		t.Errorf("Expected 1 record, got %d", n)
	}
}

func TestUpsertUnknownUserGetsPlaceholderName(t *testing.T) {
	s := newTestStore(&fakePersistence{})

	rec, err := s.Upsert(context.Background(), UpsertInput{UserID: "42", Date: "2024-02-01", Status: StatusPresent})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if rec.UserName != "Unknown" {
		t.Errorf("Expected Unknown, got %q", rec.UserName)
	}
	if rec.Subject != DefaultSubject {
		t.Errorf("Expected default subject, got %q", rec.Subject)
	}
	if rec.ID == "" {
		t.Error("Expected an assigned id")
	}
}

func TestUpsertRejectsInvalidInput(t *testing.T) {
	s := newTestStore(&fakePersistence{})

	tests := []struct {
		name string
		in   UpsertInput
	}{
		{"missing user", UpsertInput{Date: "2024-01-08", Status: StatusPresent}},
		{"bad date", UpsertInput{UserID: "2", Date: "08/01/2024", Status: StatusPresent}},
		{"bad status", UpsertInput{UserID: "2", Date: "2024-01-08", Status: "SICK"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Upsert(context.Background(), tt.in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if s.Len() != 0 {
		t.Errorf("Expected no records stored, got %d", s.Len())
	}
}

func TestQueryOrdersByDateDescending(t *testing.T) {
	s := newTestStore(&fakePersistence{})
	ctx := context.Background()
	for _, d := range []string{"2024-01-09", "2024-01-11", "2024-01-10"} {
		if _, err := s.Upsert(ctx, UpsertInput{UserID: "2", Date: d, Status: StatusPresent}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	s.Upsert(ctx, UpsertInput{UserID: "7", Date: "2024-01-12", Status: StatusAbsent})

	got := s.Query("2")
	want := []string{"2024-01-11", "2024-01-10", "2024-01-09"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(got))
	}
	for i, d := range want {
		if got[i].Date != d {
			t.Errorf("Position %d: expected %s, got %s", i, d, got[i].Date)
		}
	}
	if all := s.Query(""); len(all) != 4 || all[0].UserID != "7" {
		t.Errorf("Unexpected unfiltered query: %+v", all)
	}
	if none := s.Query("nobody"); len(none) != 0 {
		t.Errorf("Expected no records, got %d", len(none))
	}
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	p := &fakePersistence{saveErr: errors.New("quota exceeded")}
	rec := &countingRecorder{}
	s := newTestStore(p, WithRecorder(rec))

	if _, err := s.Upsert(context.Background(), UpsertInput{UserID: "2", Date: "2024-01-08", Status: StatusPresent}); err != nil {
		t.Fatalf("Expected save failure to be swallowed, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Expected in-memory record, got %d", s.Len())
	}
	if rec.failures["save"] != 1 {
		t.Errorf("Expected 1 save failure, got %d", rec.failures["save"])
	}
	if rec.created != 1 {
		t.Errorf("Expected 1 created upsert, got %d", rec.created)
	}
}

func TestLoadFailureStartsEmpty(t *testing.T) {
	p := &fakePersistence{loadErr: errors.New("unavailable")}
	s := newTestStore(p)

	if s.Len() != 0 {
		t.Errorf("Expected empty store, got %d", s.Len())
	}
	if err := s.Reload(context.Background()); err == nil {
		t.Error("Expected reload error")
	}
}

func TestReloadPicksUpExternalWrites(t *testing.T) {
	p := &fakePersistence{}
	s := newTestStore(p)

	p.stored = []Record{
		{ID: "a", UserID: "2", Date: "2024-01-08", Status: StatusLate},
		{ID: "b", UserID: "2", Date: "2024-01-09", Status: StatusPresent},
	}
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	got := s.Query("2")
	if len(got) != 2 || got[0].ID != "b" {
		t.Errorf("Expected reloaded records newest first, got %+v", got)
	}
}

func TestResetAllClearsAndPersists(t *testing.T) {
	p := &fakePersistence{}
	s := newTestStore(p)
	s.Upsert(context.Background(), UpsertInput{UserID: "2", Date: "2024-01-08", Status: StatusPresent})

	s.ResetAll(context.Background())

	if s.Len() != 0 {
		t.Errorf("Expected empty store, got %d", s.Len())
	}
	if len(p.stored) != 0 {
		t.Errorf("Expected empty persisted state, got %d", len(p.stored))
	}
}

func TestSeedSkipsExistingPairs(t *testing.T) {
	p := &fakePersistence{}
	s := newTestStore(p)
	s.Upsert(context.Background(), UpsertInput{UserID: "2", Date: "2024-01-08", Status: StatusAbsent})

	added := s.Seed(context.Background(), []Record{
		{UserID: "2", Date: "2024-01-08", Status: StatusPresent},
		{UserID: "2", Date: "2024-01-09", Status: StatusPresent},
		{UserID: "2", Date: "2024-01-09", Status: StatusLate},
	})

	if added != 1 {
		t.Errorf("Expected 1 seeded record, got %d", added)
	}
	got := s.Query("2")
	if got[1].Status != StatusAbsent {
		t.Errorf("Expected existing record untouched, got %+v", got[1])
	}
	if got[0].ID == "" {
		t.Error("Expected seeded record to receive an id")
	}
}

func TestConcurrentUpsertsKeepOneRecordPerPair(t *testing.T) {
	s := newTestStore(&fakePersistence{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := StatusPresent
			if i%2 == 0 {
				status = StatusLate
			}
			date := fmt.Sprintf("2024-01-%02d", 8+i%3)
			s.Upsert(ctx, UpsertInput{UserID: "2", Date: date, Status: status})
		}(i)
	}
	wg.Wait()

	seen := map[string]int{}
	for _, r := range s.Query("") {
		seen[r.UserID+r.Date]++
	}
	if len(seen) != 3 {
		t.Errorf("Expected 3 distinct pairs, got %d", len(seen))
	}
	for k, n := range seen {
		if n != 1 {
			t.Errorf("Pair %s stored %d times", k, n)
		}
	}
}
