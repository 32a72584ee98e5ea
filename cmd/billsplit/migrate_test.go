package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/config"
	"github.com/Veraticus/billsplit/internal/storage"
)

func useDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "billsplit.db")
	previous := cfg
	cfg = config.Config{Database: config.DatabaseConfig{Path: path}}
	t.Cleanup(func() { cfg = previous })
	return path
}

func TestMigrateCommand(t *testing.T) {
	path := useDatabase(t)

	cmd := migrateCmd()
	cmd.SetContext(context.Background())
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, cmd.RunE(cmd, nil))

	store, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.ExpectedSchemaVersion, version)
}

func TestSeedCommand(t *testing.T) {
	useDatabase(t)

	run := func(args ...string) (string, error) {
		cmd := seedCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetContext(context.Background())
		require.NoError(t, cmd.ParseFlags(args))
		err := cmd.RunE(cmd, nil)
		return out.String(), err
	}

	out, err := run()
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded sample data")

	_, err = run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--reset")

	_, err = run("--reset")
	require.NoError(t, err)
}
