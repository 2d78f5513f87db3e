package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// SaveEndpoint records an endpoint registered at runtime so it survives a restart.
func (db *DB) SaveEndpoint(ctx context.Context, e models.Endpoint) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO endpoints (capability_id, name, url, description, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(capability_id) DO UPDATE SET
				name = excluded.name, url = excluded.url, description = excluded.description
		`, e.CapabilityID, e.Name, e.URL, e.Description, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("save endpoint %s: %w", e.CapabilityID, err)
		}
		return nil
	})
}

// DeleteEndpoint forgets a runtime endpoint. Deleting an unknown id is not an error.
func (db *DB) DeleteEndpoint(ctx context.Context, capabilityID string) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM endpoints WHERE capability_id = ?`, capabilityID); err != nil {
			return fmt.Errorf("delete endpoint %s: %w", capabilityID, err)
		}
		return nil
	})
}

// ListEndpoints returns saved endpoints in the order they were first saved.
func (db *DB) ListEndpoints(ctx context.Context) ([]models.Endpoint, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT capability_id, name, url, description FROM endpoints ORDER BY created_at, capability_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query endpoints: %w", err)
	}
	defer rows.Close()

	var out []models.Endpoint
	for rows.Next() {
		var e models.Endpoint
		if err := rows.Scan(&e.CapabilityID, &e.Name, &e.URL, &e.Description); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
