package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDB_AppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pets.db")
	db, err := NewDB(NewConfig(path))
	require.NoError(t, err)
	defer db.Close()

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`))
	require.Equal(t, []string{"adoption_requests", "animals", "migrations", "notifications", "video_sources", "videos"}, tables)

	var fk int
	require.NoError(t, db.Get(&fk, "PRAGMA foreign_keys"))
	require.Equal(t, 1, fk)
}

func TestNewDB_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pets.db")
	db, err := NewDB(NewConfig(path))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(NewConfig(path))
	require.NoError(t, err)
	defer db.Close()

	var applied int
	require.NoError(t, db.Get(&applied, "SELECT COUNT(*) FROM migrations"))
	require.Equal(t, 3, applied)
}

func TestRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pets.db")
	db, err := NewDB(NewConfig(path))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Rollback(1))
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'adoption_requests'`))
	require.Equal(t, 0, n)
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM migrations"))
	require.Equal(t, 2, n)
}

func TestDeleteDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pets.db")
	db, err := NewDB(NewConfig(path))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, DeleteDB(path))
	require.NoError(t, DeleteDB(path), "missing files are not an error")
}
