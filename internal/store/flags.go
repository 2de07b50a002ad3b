package store

import (
	"database/sql"
	"fmt"
	"time"
)

// HasFaceImageKey caches whether the device account has a reference face
// image registered with the backend, so the agent does not probe the network
// on every verification attempt.
const HasFaceImageKey = "user_has_face_image"

// FlagStore holds small boolean flags in the local cache table.
type FlagStore struct {
	db *sql.DB
}

func NewFlagStore(db *sql.DB) *FlagStore {
	return &FlagStore{db: db}
}

func (s *FlagStore) Set(key string, value bool) error {
	v := "false"
	if value {
		v = "true"
	}
	_, err := s.db.Exec(
		`INSERT INTO cache (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, []byte(v), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set flag %q: %w", key, err)
	}
	return nil
}

// Get returns the flag value and whether it was set at all. An unreadable
// value counts as unset.
func (s *FlagStore) Get(key string) (value, ok bool, err error) {
	var raw []byte
	err = s.db.QueryRow(`SELECT value FROM cache WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("get flag %q: %w", key, err)
	}

	switch string(raw) {
	case "true":
		return true, true, nil
	case "false":
		return false, true, nil
	default:
		return false, false, nil
	}
}

func (s *FlagStore) Clear(key string) error {
	_, err := s.db.Exec(`DELETE FROM cache WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("clear flag %q: %w", key, err)
	}
	return nil
}
