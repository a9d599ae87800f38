package gormstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	var journal string
	require.NoError(t, db.Raw("PRAGMA journal_mode;").Scan(&journal).Error)
	assert.Equal(t, "wal", journal)

	var foreignKeys, busyTimeout int
	require.NoError(t, db.Raw("PRAGMA foreign_keys;").Scan(&foreignKeys).Error)
	require.NoError(t, db.Raw("PRAGMA busy_timeout;").Scan(&busyTimeout).Error)
	assert.Equal(t, 1, foreignKeys)
	assert.Equal(t, 5000, busyTimeout)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpenFailsOnUnusablePath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "store.db"))
	assert.Error(t, err)

	// A directory cannot be opened as a database file.
	_, err = Open(t.TempDir())
	assert.Error(t, err)
}
