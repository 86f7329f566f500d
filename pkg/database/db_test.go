package database

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNCarriesPragmas(t *testing.T) {
	dsn := DSN(Config{Path: "/tmp/x.db", BusyTimeout: 2 * time.Second})

	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/x.db?"))
	assert.Contains(t, dsn, "_busy_timeout=2000")
	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_txlock=immediate")
}

func TestOpenAndMigrate(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "nested", "data.db")}

	db, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))
	// second run is a no-op
	require.NoError(t, Migrate(db))

	v, err := Version(db)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	for _, table := range []string{"users", "saved_movies", "search_trends"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestMigrationLogsThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	SetMigrationLogger(slog.New(slog.NewTextHandler(&buf, nil)).With("component", "migrate"))
	t.Cleanup(func() { SetMigrationLogger(nil) })

	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "data.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "component=migrate")
	assert.Contains(t, out, "successfully migrated database")
}

func TestTimeScan(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)

	var ts Time
	require.NoError(t, ts.Scan("2025-03-14 09:26:53.589+00:00"))
	assert.True(t, want.Equal(ts.Time))

	require.NoError(t, ts.Scan([]byte("2025-03-14T09:26:53.589Z")))
	assert.True(t, want.Equal(ts.Time))

	require.NoError(t, ts.Scan(want.In(time.FixedZone("X", 3600))))
	assert.Equal(t, time.UTC, ts.Time.Location())

	assert.Error(t, ts.Scan("yesterday"))
	assert.Error(t, ts.Scan(3.14))
}
