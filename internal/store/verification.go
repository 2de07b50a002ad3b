package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hollis-dev/rollcall/internal/model"
)

// verificationKey is the fixed cache key holding the face verification
// result. There is at most one unconsumed result per device.
const verificationKey = "face_verification_results"

// VerificationStore persists the outcome of a face verification attempt
// across the gap between capture and check-in. The payload is sealed with
// AES-256-GCM under the device secret; anything that fails to decrypt or
// unmarshal is treated as absent and removed, never surfaced.
type VerificationStore struct {
	db     *sql.DB
	secret string
	now    func() time.Time
}

func NewVerificationStore(db *sql.DB, secret string) *VerificationStore {
	return &VerificationStore{db: db, secret: secret, now: time.Now}
}

// Save persists the result under the fixed key, overwriting any prior
// unconsumed result.
func (s *VerificationStore) Save(result model.VerificationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal verification result: %w", err)
	}

	sealed, err := seal(payload, s.secret)
	if err != nil {
		return fmt.Errorf("seal verification result: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO cache (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		verificationKey, sealed, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save verification result: %w", err)
	}
	return nil
}

// Load returns the stored result, or nil when nothing usable is stored.
// Expired and corrupt entries are deleted as a side effect.
func (s *VerificationStore) Load() (*model.VerificationResult, error) {
	var sealed []byte
	err := s.db.QueryRow(`SELECT value FROM cache WHERE key = ?`, verificationKey).Scan(&sealed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load verification result: %w", err)
	}

	payload, err := open(sealed, s.secret)
	if err != nil {
		// Undecryptable payload: self-heal by discarding it.
		s.Clear()
		return nil, nil
	}

	var result model.VerificationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		s.Clear()
		return nil, nil
	}

	if result.Expired(s.now()) {
		s.Clear()
		return nil, nil
	}

	return &result, nil
}

// Consume returns the stored result and unconditionally deletes it. Used
// when the result is about to be spent on a check-in call.
func (s *VerificationStore) Consume() (*model.VerificationResult, error) {
	result, err := s.Load()
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	if err := s.Clear(); err != nil {
		return nil, err
	}
	return result, nil
}

// Clear deletes any stored result.
func (s *VerificationStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM cache WHERE key = ?`, verificationKey)
	if err != nil {
		return fmt.Errorf("clear verification result: %w", err)
	}
	return nil
}
