package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// createPeople inserts people with the given names and returns them in order.
func createPeople(t *testing.T, s *SQLiteStorage, names ...string) []model.Person {
	t.Helper()
	people := make([]model.Person, len(names))
	for i, name := range names {
		people[i] = model.Person{Name: name, Email: name + "@example.com"}
		require.NoError(t, s.CreatePerson(context.Background(), &people[i]))
	}
	return people
}

func createSplit(t *testing.T, s *SQLiteStorage, name string, people ...model.Person) model.Split {
	t.Helper()
	split := model.Split{Name: name, People: people}
	require.NoError(t, s.CreateSplit(context.Background(), &split))
	return split
}

func TestNewSQLiteStorage(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		_, err := NewSQLiteStorage("  ")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyString)
	})

	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "billsplit.db")
		store, err := NewSQLiteStorage(path)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		assert.Equal(t, path, store.Path())
	})

	t.Run("in memory", func(t *testing.T) {
		store, err := NewSQLiteStorage(":memory:")
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		require.NoError(t, store.Migrate(context.Background()))
	})
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate(ctx))
	version, err = store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestPeople(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	_, err := store.GetFirstPerson(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)

	people, err := store.GetPeople(ctx)
	require.NoError(t, err)
	assert.Empty(t, people)

	created := createPeople(t, store, "Alice", "Bob")
	assert.Positive(t, created[0].ID)
	assert.Greater(t, created[1].ID, created[0].ID)

	first, err := store.GetFirstPerson(ctx)
	require.NoError(t, err)
	assert.Equal(t, created[0], *first)

	got, err := store.GetPerson(ctx, created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)
	assert.Equal(t, "Bob@example.com", got.Email)

	_, err = store.GetPerson(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)

	people, err = store.GetPeople(ctx)
	require.NoError(t, err)
	assert.Equal(t, created, people)

	t.Run("people exist", func(t *testing.T) {
		require.NoError(t, store.PeopleExist(ctx, []int64{created[0].ID, created[1].ID}))
		require.NoError(t, store.PeopleExist(ctx, nil))

		err := store.PeopleExist(ctx, []int64{created[0].ID, 99})
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.Contains(t, err.Error(), "person 99")
	})

	t.Run("name required", func(t *testing.T) {
		err := store.CreatePerson(ctx, &model.Person{Email: "nobody@example.com"})
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestSplits(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	people := createPeople(t, store, "Alice", "Bob", "Charlie")

	split := createSplit(t, store, "Roommates", people[0], people[1])
	assert.Positive(t, split.ID)

	got, err := store.GetSplit(ctx, split.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roommates", got.Name)
	assert.Equal(t, []model.Person{people[0], people[1]}, got.People)

	t.Run("update replaces members", func(t *testing.T) {
		update := model.Split{ID: split.ID, Name: "House", People: []model.Person{people[2]}}
		require.NoError(t, store.UpdateSplit(ctx, &update))

		got, err := store.GetSplit(ctx, split.ID)
		require.NoError(t, err)
		assert.Equal(t, "House", got.Name)
		assert.Equal(t, []model.Person{people[2]}, got.People)
	})

	t.Run("update unknown split", func(t *testing.T) {
		err := store.UpdateSplit(ctx, &model.Split{ID: 999, Name: "Ghost"})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("unknown member", func(t *testing.T) {
		err := store.CreateSplit(ctx, &model.Split{Name: "Bad", People: []model.Person{{ID: 42}}})
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrNotFound)

		splits, err := store.GetSplits(ctx)
		require.NoError(t, err)
		assert.Len(t, splits, 1)
	})

	t.Run("empty split lists no people", func(t *testing.T) {
		empty := createSplit(t, store, "Solo")
		splits, err := store.GetSplits(ctx)
		require.NoError(t, err)
		require.Len(t, splits, 2)
		assert.Equal(t, empty.ID, splits[1].ID)
		assert.NotNil(t, splits[1].People)
		assert.Empty(t, splits[1].People)
	})

	t.Run("delete cascades to transactions", func(t *testing.T) {
		txn := sampleTransaction(split.ID, people[2])
		require.NoError(t, store.CreateTransaction(ctx, &txn))

		require.NoError(t, store.DeleteSplit(ctx, split.ID))

		_, err := store.GetSplit(ctx, split.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
		_, err = store.GetTransaction(ctx, txn.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)

		err = store.DeleteSplit(ctx, split.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func sampleTransaction(splitID int64, payer model.Person, owers ...model.Person) model.Transaction {
	if len(owers) == 0 {
		owers = []model.Person{payer}
	}
	amount := 30.0
	share := amount / float64(len(owers))
	txn := model.Transaction{
		SplitID:         splitID,
		Title:           "Dinner",
		TransactionType: model.TypeDining,
		BillAmount:      amount,
		Date:            "2024-03-01",
		Items: []model.TransactionItem{
			{Name: "Pizza", Price: 20},
			{Name: "Salad", Price: 10},
		},
		PaidBy: []model.Share{{Person: payer, Amount: amount}},
	}
	for _, p := range owers {
		txn.Splits = append(txn.Splits, model.Share{Person: p, Amount: share})
	}
	return txn
}
