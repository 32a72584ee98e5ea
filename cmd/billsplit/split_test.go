package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/common"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadItems(t *testing.T) {
	t.Run("item array", func(t *testing.T) {
		items, err := readItems(writeFile(t, `[{"name": "Pizza", "price": 12.5, "quantity": 2, "total": 25}]`))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Pizza", items[0].Name)
		assert.Equal(t, 2, items[0].Quantity)
		assert.InDelta(t, 25.0, items[0].Total, 0.001)
	})

	t.Run("analysis response", func(t *testing.T) {
		items, err := readItems(writeFile(t, `{"request_id": "r1", "status": "completed", "items": [{"name": "Salad", "price": 9, "quantity": 1, "total": 9}]}`))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Salad", items[0].Name)
	})

	t.Run("no items", func(t *testing.T) {
		_, err := readItems(writeFile(t, `[]`))
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := readItems(writeFile(t, `pizza 12.50`))
		var userErr *common.UserError
		require.ErrorAs(t, err, &userErr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readItems(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})
}
