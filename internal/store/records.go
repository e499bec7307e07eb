package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/marcq/internal/marc"
	"github.com/roach88/marcq/internal/marcjson"
	"github.com/roach88/marcq/internal/serialization"
)

// ErrNotFound is returned when no cached record matches.
var ErrNotFound = errors.New("record not found")

// Entry is one cached record.
type Entry struct {
	ID        string
	Source    string
	RecordID  string
	Format    serialization.Format
	Record    *marc.Record
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordID returns the 001 control number of rec, or "".
func RecordID(rec *marc.Record) string {
	if f, ok := rec.Field("001"); ok {
		return strings.TrimSpace(f.Value)
	}
	return ""
}

// Put stores rec under (source, recordID), replacing any earlier version.
// An empty recordID falls back to the record's 001 field.
func (s *Store) Put(ctx context.Context, source, recordID string, rec *marc.Record, f serialization.Format) (Entry, error) {
	if recordID == "" {
		recordID = RecordID(rec)
	}
	if recordID == "" {
		return Entry{}, fmt.Errorf("put record: no record id and no 001 field")
	}
	if f == serialization.Unknown {
		return Entry{}, fmt.Errorf("put record %s: %w", recordID, serialization.ErrUnrecognizedFormat)
	}

	payload, err := marcjson.Marshal(rec)
	if err != nil {
		return Entry{}, fmt.Errorf("put record %s: %w", recordID, err)
	}

	now := formatTime(s.now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, source, record_id, format, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, record_id) DO UPDATE SET
			format = excluded.format,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`,
		uuid.Must(uuid.NewV7()).String(),
		source,
		recordID,
		f.String(),
		string(payload),
		now,
		now,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("put record %s: %w", recordID, err)
	}

	return s.Get(ctx, source, recordID)
}

// Get returns the cached record, or ErrNotFound.
func (s *Store) Get(ctx context.Context, source, recordID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, record_id, format, payload, created_at, updated_at
		FROM records
		WHERE source = ? AND record_id = ?
	`, source, recordID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("get record %s/%s: %w", source, recordID, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get record %s/%s: %w", source, recordID, err)
	}
	return e, nil
}

// Delete removes a cached record, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, source, recordID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM records WHERE source = ? AND record_id = ?
	`, source, recordID)
	if err != nil {
		return fmt.Errorf("delete record %s/%s: %w", source, recordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %s/%s: %w", source, recordID, err)
	}
	if n == 0 {
		return fmt.Errorf("delete record %s/%s: %w", source, recordID, ErrNotFound)
	}
	return nil
}

// Count returns the number of cached records of source, or of all sources
// when source is empty.
func (s *Store) Count(ctx context.Context, source string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records WHERE ? = '' OR source = ?
	`, source, source).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// List returns cached records of source (all sources when empty), ordered
// by source and record id. A limit of zero or less returns everything.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) List(ctx context.Context, source string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, record_id, format, payload, created_at, updated_at
		FROM records
		WHERE ? = '' OR source = ?
		ORDER BY source COLLATE BINARY ASC, record_id COLLATE BINARY ASC
		LIMIT ?
	`, source, source, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                Entry
		format, payload  string
		created, updated string
	)
	if err := row.Scan(&e.ID, &e.Source, &e.RecordID, &format, &payload, &created, &updated); err != nil {
		return Entry{}, err
	}

	f, err := serialization.ParseFormat(format)
	if err != nil {
		return Entry{}, fmt.Errorf("record %s: %w", e.ID, err)
	}
	e.Format = f

	rec, _, err := marcjson.Unmarshal([]byte(payload))
	if err != nil {
		return Entry{}, fmt.Errorf("record %s: decode payload: %w", e.ID, err)
	}
	e.Record = rec

	if e.CreatedAt, err = parseTime(created); err != nil {
		return Entry{}, fmt.Errorf("record %s: %w", e.ID, err)
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return Entry{}, fmt.Errorf("record %s: %w", e.ID, err)
	}
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
