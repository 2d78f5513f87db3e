package state

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// setupTestDB opens a migrated database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenAndMigrate(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

const (
	insertConversation = "INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)"
	epoch              = "2024-01-01T00:00:00.000000000Z"
)

func countRows(t *testing.T, db *DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "state.db")

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	assert.FileExists(t, path, "parent directories and file should be created")
}

func TestOpen_InvalidPath(t *testing.T) {
	// Directories can't be created under /proc on Linux.
	_, err := Open("/proc/nonexistent/test.db")
	assert.Error(t, err)
}

func TestOpen_ForeignKeysOnEveryConnection(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	var conns []*sql.Conn
	for i := 0; i < 3; i++ {
		c, err := db.conn.Conn(ctx)
		require.NoError(t, err)
		conns = append(conns, c)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	for i, c := range conns {
		var on int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on))
		assert.Equal(t, 1, on, "conn %d", i)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	_, err = db.Query("SELECT 1")
	assert.Error(t, err, "queries after Close should fail")
}

func TestMigrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Migrate(), "iteration %d", i)
	}

	for _, table := range []string{"schema_version", "conversations", "turns", "endpoints"} {
		assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table), table)
	}
	assert.Equal(t, 3, countRows(t, db, "SELECT MAX(version) FROM schema_version"))
}

func TestExecAndQueryRow(t *testing.T) {
	db := setupTestDB(t)

	result, err := db.Exec(insertConversation, "conv-1", epoch, epoch)
	require.NoError(t, err)
	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM conversations"))
}

func TestTransaction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(insertConversation, "tx-1", epoch, epoch)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM conversations WHERE id = ?", "tx-1"), "not committed")

	simulated := errors.New("simulated error")
	err = db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(insertConversation, "tx-fail", epoch, epoch); err != nil {
			return err
		}
		return simulated
	})
	assert.ErrorIs(t, err, simulated)
	assert.Zero(t, countRows(t, db, "SELECT COUNT(*) FROM conversations WHERE id = ?", "tx-fail"), "not rolled back")
}

func TestDefaultDBPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	assert.Equal(t, "/custom/data/switchboard/state.db", DefaultDBPath())

	t.Setenv("XDG_DATA_HOME", "")
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".local", "share", "switchboard", "state.db"), DefaultDBPath())
}

func TestFormatAndParseTime(t *testing.T) {
	now := time.Now()
	parsed, err := parseTime(formatTime(now))
	require.NoError(t, err)
	assert.True(t, now.Equal(parsed), "got %v, want %v", parsed, now.UTC())

	// Fixed width keeps lexical and chronological order aligned.
	a := formatTime(time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC))
	b := formatTime(time.Date(2024, 1, 1, 0, 0, 5, 500_000_000, time.UTC))
	assert.Less(t, a, b)
}

func TestPurgeConversations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	stale := models.Turn{Role: models.RoleUser, Text: "stale", Timestamp: time.Now().Add(-48 * time.Hour)}
	require.NoError(t, db.AppendTurn(ctx, "old", stale))
	require.NoError(t, db.AppendTurn(ctx, "new", models.Turn{Role: models.RoleUser, Text: "fresh"}))

	n, err := db.PurgeConversations(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, countRows(t, db, "SELECT COUNT(*) FROM turns WHERE conversation_id = 'old'"), "turns survived purge")

	// A reused id starts empty.
	require.NoError(t, db.AppendTurn(ctx, "old", models.Turn{Role: models.RoleUser, Text: "again"}))
	got, err := db.LoadTurns(ctx, "old")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "again", got[0].Text)

	kept, err := db.LoadTurns(ctx, "new")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
