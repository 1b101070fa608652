package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/vtx/internal/session"
)

var _ session.CredentialStore = (*CredentialRepository)(nil)

// AccessTokenKey is the credentials row holding the session access token.
const AccessTokenKey = "access_token"

// CredentialRepository stores named secrets in the credentials table.
//
// Bound to a single key it satisfies session.CredentialStore.
type CredentialRepository struct {
	db  *sql.DB
	key string
}

// NewCredentialRepository creates a repository bound to [AccessTokenKey].
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db, key: AccessTokenKey}
}

// Load returns the stored value, or "" if the row does not exist.
func (r *CredentialRepository) Load() (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, r.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query credential: %w", err)
	}
	return value, nil
}

// Save upserts the value.
func (r *CredentialRepository) Save(value string) error {
	now := time.Now()
	query := `
		INSERT INTO credentials (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, r.key, value, now, now); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Erase deletes the row. Erasing a missing row is not an error.
func (r *CredentialRepository) Erase() error {
	if _, err := r.db.Exec(`DELETE FROM credentials WHERE key = ?`, r.key); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// UpdatedAt reports when the value was last written.
func (r *CredentialRepository) UpdatedAt() (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRow(`SELECT updated_at FROM credentials WHERE key = ?`, r.key).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("credential not found: %s", r.key)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query credential: %w", err)
	}
	return updatedAt, nil
}
