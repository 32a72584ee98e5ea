package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
)

// Seed loads a small demo dataset. Unless reset is true it refuses to touch a
// database that already holds people.
func (s *SQLiteStorage) Seed(ctx context.Context, reset bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if reset {
			for _, table := range []string{"bill_results", "transactions", "split_people", "splits", "people"} {
				//nolint:gosec // table names are constants
				if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
					return fmt.Errorf("failed to clear %s: %w", table, err)
				}
			}
		} else {
			var count int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM people`).Scan(&count); err != nil {
				return fmt.Errorf("failed to count people: %w", err)
			}
			if count > 0 {
				return fmt.Errorf("%w: database already contains %d people", common.ErrDuplicateEntry, count)
			}
		}

		people := []model.Person{
			{Name: "Alice", Email: "alice@example.com"},
			{Name: "Bob", Email: "bob@example.com"},
			{Name: "Charlie", Email: "charlie@example.com"},
			{Name: "Diana", Email: "diana@example.com"},
			{Name: "John Doe", Email: "johndoe@example.com"},
		}
		for i := range people {
			result, err := tx.ExecContext(ctx,
				`INSERT INTO people (name, email) VALUES (?, ?)`, people[i].Name, people[i].Email)
			if err != nil {
				return fmt.Errorf("failed to seed person: %w", err)
			}
			if people[i].ID, err = result.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get person id: %w", err)
			}
		}
		person := func(n int) model.Person { return people[n-1] }

		splits := []struct {
			name    string
			members []int
		}{
			{"Groceries", []int{1, 2, 5}},
			{"Coffee Run", []int{3, 4, 5}},
			{"Utilities", []int{1, 3, 5}},
			{"Dinner Out", []int{2, 1, 3, 4, 5}},
			{"Movie Night", []int{2, 5}},
		}
		splitIDs := make([]int64, len(splits))
		for i, sp := range splits {
			result, err := tx.ExecContext(ctx, `INSERT INTO splits (name) VALUES (?)`, sp.name)
			if err != nil {
				return fmt.Errorf("failed to seed split: %w", err)
			}
			if splitIDs[i], err = result.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get split id: %w", err)
			}
			ids := make([]int64, len(sp.members))
			for j, m := range sp.members {
				ids[j] = person(m).ID
			}
			if err := insertSplitPeople(ctx, tx, splitIDs[i], ids); err != nil {
				return err
			}
		}

		txns := []model.Transaction{
			{
				SplitID: splitIDs[0], Title: "Walmart", TransactionType: model.TypeGrocery,
				BillAmount: 150.75, Date: "2023-10-01",
				Items: []model.TransactionItem{{Name: "Milk", Price: 3.5}, {Name: "Bread", Price: 2.0}, {Name: "Eggs", Price: 4.0}},
				Splits: []model.Share{
					{Person: person(1), Amount: 50.25}, {Person: person(2), Amount: 50.25}, {Person: person(5), Amount: 50.25},
				},
				PaidBy: []model.Share{{Person: person(1), Amount: 150.75}},
			},
			{
				SplitID: splitIDs[1], Title: "Starbucks", TransactionType: model.TypeDining,
				BillAmount: 25.5, Date: "2023-10-03",
				Items: []model.TransactionItem{{Name: "Latte", Price: 5.5}, {Name: "Croissant", Price: 3.0}},
				Splits: []model.Share{
					{Person: person(3), Amount: 8.5}, {Person: person(4), Amount: 8.5}, {Person: person(5), Amount: 8.5},
				},
				PaidBy: []model.Share{{Person: person(3), Amount: 25.5}},
			},
			{
				SplitID: splitIDs[2], Title: "Utility Company", TransactionType: model.TypeOther,
				BillAmount: 200.0, Date: "2023-10-05",
				Items: []model.TransactionItem{{Name: "Electricity Bill", Price: 200.0}},
				Splits: []model.Share{
					{Person: person(1), Amount: 66.67}, {Person: person(3), Amount: 66.67}, {Person: person(5), Amount: 66.67},
				},
				PaidBy: []model.Share{{Person: person(1), Amount: 200.0}},
			},
		}
		for i := range txns {
			if err := insertTransaction(ctx, tx, &txns[i]); err != nil {
				return err
			}
		}

		slog.Info("Seeded database",
			"people", len(people),
			"splits", len(splits),
			"transactions", len(txns))
		return nil
	})
}
