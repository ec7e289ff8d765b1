package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/vboughner/brain-lambda/internal/memory"
)

// SQLStore implements Driver on database/sql for SQLite and PostgreSQL
type SQLStore struct {
	db       *sql.DB
	postgres bool
	now      Clock

	// serialises Store so concurrent writers cannot pick the same StoredAt
	storeMu sync.Mutex
}

// NewSQLite opens (or creates) a SQLite database file
func NewSQLite(path string, clock Clock) (*SQLStore, error) {
	if path == "" {
		path = "./data/brain.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps writes ordered and in-memory databases shared
	db.SetMaxOpenConns(1)

	return newSQLStore(db, false, clock)
}

// NewPostgres connects to PostgreSQL using a lib/pq DSN
func NewPostgres(dsn string, clock Clock) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return newSQLStore(db, true, clock)
}

func newSQLStore(db *sql.DB, postgres bool, clock Clock) (*SQLStore, error) {
	if clock == nil {
		clock = time.Now
	}
	s := &SQLStore{db: db, postgres: postgres, now: clock}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			owner_id TEXT NOT NULL,
			stored_at BIGINT NOT NULL,
			device_id TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			language_tag TEXT NOT NULL DEFAULT '',
			timezone TEXT NOT NULL DEFAULT '',
			store_country TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (owner_id, stored_at)
		)`,
		`CREATE TABLE IF NOT EXISTS identities (
			user_id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			device_id TEXT NOT NULL DEFAULT '',
			linked_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			owner_id TEXT NOT NULL,
			stored_at BIGINT NOT NULL,
			device_id TEXT NOT NULL DEFAULT '',
			server_version TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			PRIMARY KEY (owner_id, stored_at)
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const memoryColumns = `owner_id, stored_at, device_id, text, language_tag, timezone, store_country`

func (s *SQLStore) Load(ctx context.Context, ownerID string) ([]memory.Record, error) {
	query := s.rebind(`SELECT ` + memoryColumns + ` FROM memories WHERE owner_id = ? ORDER BY stored_at ASC`)
	return s.queryRecords(ctx, query, ownerID)
}

func (s *SQLStore) LoadEverything(ctx context.Context) ([]memory.Record, error) {
	return s.queryRecords(ctx, `SELECT `+memoryColumns+` FROM memories ORDER BY owner_id, stored_at`)
}

func (s *SQLStore) queryRecords(ctx context.Context, query string, args ...any) ([]memory.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	records := []memory.Record{}
	for rows.Next() {
		var r memory.Record
		if err := rows.Scan(&r.OwnerID, &r.StoredAt, &r.DeviceID, &r.Text, &r.LanguageTag, &r.Timezone, &r.StoreCountry); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLStore) Store(ctx context.Context, rec memory.Record) (memory.Record, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memory.Record{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest int64
	row := tx.QueryRowContext(ctx, s.rebind(`SELECT COALESCE(MAX(stored_at), 0) FROM memories WHERE owner_id = ?`), rec.OwnerID)
	if err := row.Scan(&latest); err != nil {
		return memory.Record{}, fmt.Errorf("failed to read latest memory: %w", err)
	}
	rec.StoredAt = nextStoredAt(s.now(), latest)

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO memories (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		rec.OwnerID, rec.StoredAt, rec.DeviceID, rec.Text, rec.LanguageTag, rec.Timezone, rec.StoreCountry)
	if err != nil {
		return memory.Record{}, fmt.Errorf("failed to insert memory: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return memory.Record{}, fmt.Errorf("failed to commit memory: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) UpdateText(ctx context.Context, ownerID string, storedAt int64, text string) (memory.Record, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE memories SET text = ? WHERE owner_id = ? AND stored_at = ?`), text, ownerID, storedAt)
	if err != nil {
		return memory.Record{}, fmt.Errorf("failed to update memory: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return memory.Record{}, err
	}

	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+memoryColumns+` FROM memories WHERE owner_id = ? AND stored_at = ?`), ownerID, storedAt)
	var r memory.Record
	if err := row.Scan(&r.OwnerID, &r.StoredAt, &r.DeviceID, &r.Text, &r.LanguageTag, &r.Timezone, &r.StoreCountry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return memory.Record{}, ErrNotFound
		}
		return memory.Record{}, fmt.Errorf("failed to scan memory: %w", err)
	}
	return r, nil
}

func (s *SQLStore) EraseOne(ctx context.Context, ownerID string, storedAt int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM memories WHERE owner_id = ? AND stored_at = ?`), ownerID, storedAt)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return affectedOne(res)
}

func (s *SQLStore) EraseAll(ctx context.Context, ownerID string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM memories WHERE owner_id = ?`), ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memories: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted memories: %w", err)
	}
	return int(n), nil
}

func (s *SQLStore) LinkedOwner(ctx context.Context, userID string) (string, bool, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT owner_id FROM identities WHERE user_id = ?`), userID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up identity: %w", err)
	}
	return ownerID, true, nil
}

func (s *SQLStore) Link(ctx context.Context, userID, ownerID, deviceID string) error {
	query := s.rebind(`INSERT INTO identities (user_id, owner_id, device_id, linked_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET owner_id = excluded.owner_id, device_id = excluded.device_id, linked_at = excluded.linked_at`)
	if _, err := s.db.ExecContext(ctx, query, userID, ownerID, deviceID, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to link identity: %w", err)
	}
	return nil
}

func (s *SQLStore) StoreReport(ctx context.Context, entry ReportEntry) (ReportEntry, error) {
	body, err := json.Marshal(entry.Report)
	if err != nil {
		return ReportEntry{}, fmt.Errorf("failed to marshal report: %w", err)
	}
	entry.StoredAt = s.now().UnixMilli()

	query := s.rebind(`INSERT INTO reports (owner_id, stored_at, device_id, server_version, body) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, entry.OwnerID, entry.StoredAt, entry.DeviceID, entry.ServerVersion, string(body)); err != nil {
		return ReportEntry{}, fmt.Errorf("failed to store report: %w", err)
	}
	return entry, nil
}

func (s *SQLStore) LoadReports(ctx context.Context) ([]ReportEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT owner_id, stored_at, device_id, server_version, body FROM reports ORDER BY stored_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var entries []ReportEntry
	for rows.Next() {
		var e ReportEntry
		var body string
		if err := rows.Scan(&e.OwnerID, &e.StoredAt, &e.DeviceID, &e.ServerVersion, &body); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &e.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
