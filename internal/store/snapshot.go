// Package store caches the most recent account snapshot and audience
// records in SQLite so the dashboard can render the previous fetch while a
// refresh is in flight, and the report command works offline.
// Latest fetch wins; nothing is diffed incrementally.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"audiencedeck/internal/api"
	"audiencedeck/internal/logging"

	_ "modernc.org/sqlite"
)

// Snapshot is the local cache. A single connection with WAL keeps writers
// from tripping over the dashboard's reads.
type Snapshot struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewSnapshot initializes the SQLite database at the given path.
func NewSnapshot(path string) (*Snapshot, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSnapshot")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &Snapshot{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("snapshot cache ready at %s", path)
	return s, nil
}

// initialize creates the required tables.
func (s *Snapshot) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		username TEXT NOT NULL,
		created_at TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS audience (
		account_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Snapshot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logging.StoreDebug("closing snapshot cache at %s", s.dbPath)
	return s.db.Close()
}

// PutAccounts replaces the cached snapshot wholesale. The snapshot is never
// merged; the latest fetch wins.
func (s *Snapshot) PutAccounts(accounts []api.ConnectedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM accounts"); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range accounts {
		_, err := tx.Exec(
			"INSERT INTO accounts (id, platform, username, created_at, fetched_at) VALUES (?, ?, ?, ?, ?)",
			a.ID, a.Platform, a.Username, a.CreatedAt.UTC().Format(time.RFC3339), now,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Accounts returns the cached account snapshot.
func (s *Snapshot) Accounts() ([]api.ConnectedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, platform, username, created_at FROM accounts")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []api.ConnectedAccount
	for rows.Next() {
		var a api.ConnectedAccount
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Platform, &a.Username, &createdAt); err != nil {
			return nil, err
		}
		if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			a.CreatedAt = t
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// PutAudience upserts the audience record for one account.
func (s *Snapshot) PutAudience(rec api.AudienceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(rec.Demographics)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO audience (account_id, payload, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		rec.AccountID, string(payload), rec.FetchedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// Audience returns the cached record for one account, if present.
func (s *Snapshot) Audience(accountID string) (api.AudienceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload, fetchedAt string
	err := s.db.QueryRow(
		"SELECT payload, fetched_at FROM audience WHERE account_id = ?", accountID,
	).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return api.AudienceRecord{}, false, nil
	}
	if err != nil {
		return api.AudienceRecord{}, false, err
	}
	rec, err := decodeAudience(accountID, payload, fetchedAt)
	if err != nil {
		return api.AudienceRecord{}, false, err
	}
	return rec, true, nil
}

// Audiences returns every cached audience record.
func (s *Snapshot) Audiences() ([]api.AudienceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT account_id, payload, fetched_at FROM audience")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []api.AudienceRecord
	for rows.Next() {
		var accountID, payload, fetchedAt string
		if err := rows.Scan(&accountID, &payload, &fetchedAt); err != nil {
			return nil, err
		}
		rec, err := decodeAudience(accountID, payload, fetchedAt)
		if err != nil {
			logging.StoreDebug("skipping unreadable audience row for %s: %v", accountID, err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func decodeAudience(accountID, payload, fetchedAt string) (api.AudienceRecord, error) {
	var demo api.AudienceDemographics
	if err := json.Unmarshal([]byte(payload), &demo); err != nil {
		return api.AudienceRecord{}, err
	}
	rec := api.AudienceRecord{AccountID: accountID, Demographics: demo}
	if t, err := time.Parse(time.RFC3339, fetchedAt); err == nil {
		rec.FetchedAt = t
	}
	return rec, nil
}
