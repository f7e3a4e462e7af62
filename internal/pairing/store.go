package pairing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Record is one stored pairing key.
type Record struct {
	DeviceID  string    `json:"device_id"`
	ClientKey string    `json:"-"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines pairing key persistence.
type Store interface {
	Get(ctx context.Context, deviceID string) (string, error)
	Save(ctx context.Context, deviceID, clientKey, address string) error
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, deviceID string) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a key store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the key for deviceID, or "" with a nil error when none is stored.
func (s *SQLiteStore) Get(ctx context.Context, deviceID string) (string, error) {
	const query = `SELECT client_key FROM webos_pairing_keys WHERE device_id = ?`
	var key string
	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying pairing key for %s: %w", deviceID, err)
	}
	return key, nil
}

// Save inserts or replaces the key for deviceID. An empty address keeps the
// one already stored.
func (s *SQLiteStore) Save(ctx context.Context, deviceID, clientKey, address string) error {
	if deviceID == "" || clientKey == "" {
		return fmt.Errorf("%w: device id and key are required", ErrInvalidKey)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	const query = `INSERT INTO webos_pairing_keys (device_id, client_key, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			client_key = excluded.client_key,
			address = CASE WHEN excluded.address = '' THEN webos_pairing_keys.address ELSE excluded.address END,
			updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, deviceID, clientKey, address, now, now); err != nil {
		return fmt.Errorf("saving pairing key for %s: %w", deviceID, err)
	}
	return nil
}

// List returns every stored record ordered by device ID.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	const query = `SELECT device_id, client_key, address, created_at, updated_at
		FROM webos_pairing_keys ORDER BY device_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing pairing keys: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                    Record
			createdAt, updatedAt string
		)
		if err := rows.Scan(&r.DeviceID, &r.ClientKey, &r.Address, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning pairing key: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pairing keys: %w", err)
	}
	return records, nil
}

// Delete forgets the key for deviceID; the television will prompt again.
func (s *SQLiteStore) Delete(ctx context.Context, deviceID string) error {
	const query = `DELETE FROM webos_pairing_keys WHERE device_id = ?`
	res, err := s.db.ExecContext(ctx, query, deviceID)
	if err != nil {
		return fmt.Errorf("deleting pairing key for %s: %w", deviceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting pairing key for %s: %w", deviceID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, deviceID)
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
