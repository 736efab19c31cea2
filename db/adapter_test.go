package db

import (
	"path/filepath"
	"testing"

	"github.com/nosgoth/eldergod/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnknownMode(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: "embedded_xml"})
	assert.ErrorContains(t, err, "unknown mode")
}

func TestOpen_SQLiteFile(t *testing.T) {
	db, err := Open(config.DatabaseConfig{
		Mode:       ModeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)").Error)
}

func TestOpen_MemoryIsolated(t *testing.T) {
	a, err := Open(config.DatabaseConfig{Mode: ModeMemory})
	require.NoError(t, err)
	b, err := Open(config.DatabaseConfig{Mode: ModeMemory})
	require.NoError(t, err)

	require.NoError(t, a.Exec("CREATE TABLE only_a (id INTEGER PRIMARY KEY)").Error)
	assert.True(t, a.Migrator().HasTable("only_a"))
	assert.False(t, b.Migrator().HasTable("only_a"))
}
