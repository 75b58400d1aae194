package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/phbpx/contact-intake/memory"
	"github.com/phbpx/contact-intake/pkg/storage"
	"github.com/phbpx/contact-intake/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := storage.Open(ctx, storage.Config{Kind: storage.KindMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, b)

	b, err = storage.Open(ctx, storage.Config{
		Kind:       storage.KindSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "contacts.db"),
	})
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &sqlite.Store{}, b)
	require.NoError(t, b.Migrate(ctx))
	require.NoError(t, b.StatusCheck(ctx))

	_, err = storage.Open(ctx, storage.Config{Kind: "couchdb"})
	assert.EqualError(t, err, `unknown store kind "couchdb"`)

	_, err = storage.Open(ctx, storage.Config{Kind: storage.KindDynamo})
	assert.Error(t, err, "table name is required")
}
