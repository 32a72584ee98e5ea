// Package testutil provides shared test utilities: an isolated in-memory
// database with typed fixtures for people and splits.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/storage"
)

// TestDB represents a test database with associated fixtures.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	People  People
	Splits  Splits
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup func(context.Context, *storage.SQLiteStorage) error
	People      []PersonName
	Splits      []SplitFixture
	// Seed loads the demo dataset instead of People and Splits.
	Seed bool
}

// SetupTestDB creates a migrated in-memory database holding the basic people.
// It is closed automatically when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{People: BasicPeople()})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{Storage: store, t: t}

	if opts.Seed {
		if err := store.Seed(ctx, false); err != nil {
			t.Fatalf("failed to seed database: %v", err)
		}
		if db.People, err = store.GetPeople(ctx); err != nil {
			t.Fatalf("failed to load seeded people: %v", err)
		}
		if db.Splits, err = store.GetSplits(ctx); err != nil {
			t.Fatalf("failed to load seeded splits: %v", err)
		}
	} else {
		for _, name := range opts.People {
			p := model.Person{Name: name.String(), Email: name.Email()}
			if err := store.CreatePerson(ctx, &p); err != nil {
				t.Fatalf("failed to seed person %q: %v", name, err)
			}
			db.People = append(db.People, p)
		}
		for _, fixture := range opts.Splits {
			split := model.Split{Name: fixture.Name}
			for _, member := range fixture.Members {
				split.People = append(split.People, db.People.MustFind(t, member))
			}
			if err := store.CreateSplit(ctx, &split); err != nil {
				t.Fatalf("failed to seed split %q: %v", fixture.Name, err)
			}
			db.Splits = append(db.Splits, split)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return db
}

// MustPerson returns the fixture person with the given name or fails the test.
func (db *TestDB) MustPerson(name PersonName) model.Person {
	db.t.Helper()
	return db.People.MustFind(db.t, name)
}

// MustSplit returns the fixture split with the given name or fails the test.
func (db *TestDB) MustSplit(name string) model.Split {
	db.t.Helper()
	for _, s := range db.Splits {
		if s.Name == name {
			return s
		}
	}
	db.t.Fatalf("split %q not found in test data", name)
	return model.Split{}
}
