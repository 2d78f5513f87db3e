package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// ConversationSummary describes a journaled conversation.
type ConversationSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     int       `json:"turns"`
}

// AppendTurn records one turn at the end of a conversation, creating the
// conversation row on first use.
func (db *DB) AppendTurn(ctx context.Context, conversationID string, turn models.Turn) error {
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	now := formatTime(ts)

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
		`, conversationID, now, now); err != nil {
			return fmt.Errorf("upsert conversation: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turns (conversation_id, seq, role, text, capability_id, request_id, created_at)
			SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?
			FROM turns WHERE conversation_id = ?
		`, conversationID, string(turn.Role), turn.Text, nullString(turn.CapabilityID), nullString(turn.RequestID), now, conversationID); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
		return nil
	})
}

// LoadTurns returns every turn of a conversation in arrival order. An unknown
// conversation yields no turns and no error.
func (db *DB) LoadTurns(ctx context.Context, conversationID string) ([]models.Turn, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT role, text, capability_id, request_id, created_at
		FROM turns WHERE conversation_id = ? ORDER BY seq
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var (
			role, text, created string
			capability, request sql.NullString
		)
		if err := rows.Scan(&role, &text, &capability, &request, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		ts, err := parseTime(created)
		if err != nil {
			return nil, fmt.Errorf("parse turn timestamp: %w", err)
		}
		turns = append(turns, models.Turn{
			Role:         models.Role(role),
			Text:         text,
			Timestamp:    ts,
			CapabilityID: capability.String,
			RequestID:    request.String,
		})
	}
	return turns, rows.Err()
}

// DeleteConversation removes a conversation and its turns.
func (db *DB) DeleteConversation(ctx context.Context, conversationID string) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE conversation_id = ?`, conversationID); err != nil {
			return fmt.Errorf("delete turns: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return nil
	})
}

// ConversationIDs returns the ids of every journaled conversation, sorted.
func (db *DB) ConversationIDs(ctx context.Context) ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM conversations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query conversation ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListConversations returns journaled conversations, most recently updated first.
func (db *DB) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.id, c.created_at, c.updated_at, COUNT(t.seq)
		FROM conversations c LEFT JOIN turns t ON t.conversation_id = c.id
		GROUP BY c.id ORDER BY c.updated_at DESC, c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		var created, updated string
		if err := rows.Scan(&s.ID, &created, &updated, &s.Turns); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if s.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if s.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
