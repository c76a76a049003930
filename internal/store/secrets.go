package store

import (
	"database/sql"
	"fmt"
)

// SaveSecret stores a vault-sealed blob under an identifier. Values are
// always encrypted before they reach the store.
func (s *Store) SaveSecret(id string, sealed []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO secrets (id, value)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		id, sealed)
	if err != nil {
		return fmt.Errorf("save secret: %w", err)
	}
	return nil
}

// GetSecret returns the sealed blob, or (nil, nil) when absent.
func (s *Store) GetSecret(id string) ([]byte, error) {
	var sealed []byte
	err := s.db.QueryRow(`SELECT value FROM secrets WHERE id = ?`, id).Scan(&sealed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return sealed, nil
}

func (s *Store) ListSecretIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM secrets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan secret id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) DeleteSecret(id string) error {
	_, err := s.db.Exec(`DELETE FROM secrets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}
