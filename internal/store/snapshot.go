package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"classroll/internal/attendance"
)

// MemorySnapshot keeps the collection in process memory only.
type MemorySnapshot struct {
	mu      sync.Mutex
	records []attendance.Record
}

// NewMemorySnapshot returns an empty in-process backend.
func NewMemorySnapshot() *MemorySnapshot {
	return &MemorySnapshot{}
}

// Load returns a copy of the last saved collection.
func (m *MemorySnapshot) Load(ctx context.Context) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attendance.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Save replaces the stored collection.
func (m *MemorySnapshot) Save(ctx context.Context, records []attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make([]attendance.Record, len(records))
	copy(m.records, records)
	return nil
}

// RedisSnapshot stores the collection as one JSON document under key.
type RedisSnapshot struct {
	client redis.Cmdable
	key    string
}

// NewRedisSnapshot builds a snapshot backend on an existing client.
func NewRedisSnapshot(client redis.Cmdable, key string) *RedisSnapshot {
	if key == "" {
		key = "classroll:attendance"
	}
	return &RedisSnapshot{client: client, key: key}
}

// Load reads the stored document. A missing key is an empty collection.
func (r *RedisSnapshot) Load(ctx context.Context) ([]attendance.Record, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	var records []attendance.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.key, err)
	}
	return records, nil
}

// Save overwrites the stored document.
func (r *RedisSnapshot) Save(ctx context.Context, records []attendance.Record) error {
	if records == nil {
		records = []attendance.Record{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode attendance: %w", err)
	}
	if err := r.client.Set(ctx, r.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

const attendanceSchema = `
CREATE TABLE IF NOT EXISTS attendance_records (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	user_name     TEXT NOT NULL DEFAULT '',
	record_date   TEXT NOT NULL,
	status        TEXT NOT NULL,
	check_in_time TEXT NOT NULL DEFAULT '',
	subject       TEXT NOT NULL DEFAULT '',
	position      INTEGER NOT NULL DEFAULT 0,
	saved_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, record_date)
);
CREATE INDEX IF NOT EXISTS idx_attendance_records_user ON attendance_records(user_id);
`

// PostgresSnapshot mirrors the collection into the attendance_records table.
type PostgresSnapshot struct {
	db *sql.DB
}

// NewPostgresSnapshot creates the table when missing.
func NewPostgresSnapshot(ctx context.Context, db *sql.DB) (*PostgresSnapshot, error) {
	if _, err := db.ExecContext(ctx, attendanceSchema); err != nil {
		return nil, fmt.Errorf("migrate attendance_records: %w", err)
	}
	return &PostgresSnapshot{db: db}, nil
}

// Load returns every row in collection order.
func (p *PostgresSnapshot) Load(ctx context.Context) ([]attendance.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, user_name, record_date, status, check_in_time, subject
		FROM attendance_records
		ORDER BY record_date DESC, position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		var r attendance.Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.UserName, &r.Date, &r.Status, &r.CheckInTime, &r.Subject); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Save rewrites the table in one transaction so readers never see a
// partial collection.
func (p *PostgresSnapshot) Save(ctx context.Context, records []attendance.Record) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_records`); err != nil {
		return fmt.Errorf("clear attendance_records: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance_records (id, user_id, user_name, record_date, status, check_in_time, subject, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, r.UserID, r.UserName, r.Date, string(r.Status), r.CheckInTime, r.Subject, i); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
