package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
)

// CreateSplit inserts a split with its members and sets the generated id.
func (s *SQLiteStorage) CreateSplit(ctx context.Context, split *model.Split) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSplit(split); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := peopleExist(ctx, tx, split.PersonIDs()); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `INSERT INTO splits (name) VALUES (?)`, split.Name)
		if err != nil {
			return fmt.Errorf("failed to create split: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get split id: %w", err)
		}

		if err := insertSplitPeople(ctx, tx, id, split.PersonIDs()); err != nil {
			return err
		}
		split.ID = id
		return nil
	})
}

// GetSplit returns a split with its members resolved.
func (s *SQLiteStorage) GetSplit(ctx context.Context, id int64) (*model.Split, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	split := model.Split{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM splits WHERE id = ?`, id).Scan(&split.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: split %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}

	members, err := s.splitMembers(ctx)
	if err != nil {
		return nil, err
	}
	split.People = members[id]
	if split.People == nil {
		split.People = []model.Person{}
	}
	return &split, nil
}

// GetSplits returns every split ordered by id.
func (s *SQLiteStorage) GetSplits(ctx context.Context) ([]model.Split, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM splits ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	splits := []model.Split{}
	for rows.Next() {
		var split model.Split
		if err := rows.Scan(&split.ID, &split.Name); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	_ = rows.Close()

	members, err := s.splitMembers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range splits {
		splits[i].People = members[splits[i].ID]
		if splits[i].People == nil {
			splits[i].People = []model.Person{}
		}
	}
	return splits, nil
}

// UpdateSplit replaces the name and member list of an existing split.
func (s *SQLiteStorage) UpdateSplit(ctx context.Context, split *model.Split) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSplit(split); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE splits SET name = ? WHERE id = ?`, split.Name, split.ID)
		if err != nil {
			return fmt.Errorf("failed to update split: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: split %d", common.ErrNotFound, split.ID)
		}

		if err := peopleExist(ctx, tx, split.PersonIDs()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM split_people WHERE split_id = ?`, split.ID); err != nil {
			return fmt.Errorf("failed to clear split members: %w", err)
		}
		return insertSplitPeople(ctx, tx, split.ID, split.PersonIDs())
	})
}

// DeleteSplit removes a split together with its transactions.
func (s *SQLiteStorage) DeleteSplit(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM splits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete split: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: split %d", common.ErrNotFound, id)
	}
	return nil
}

func insertSplitPeople(ctx context.Context, tx *sql.Tx, splitID int64, personIDs []int64) error {
	if len(personIDs) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO split_people (split_id, person_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, personID := range personIDs {
		if _, err := stmt.ExecContext(ctx, splitID, personID); err != nil {
			return fmt.Errorf("failed to add person %d to split: %w", personID, err)
		}
	}
	return nil
}

// splitMembers maps split id to its members ordered by person id.
func (s *SQLiteStorage) splitMembers(ctx context.Context) (map[int64][]model.Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sp.split_id, p.id, p.name, p.email
		FROM split_people sp
		JOIN people p ON p.id = sp.person_id
		ORDER BY sp.split_id, p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query split members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	members := make(map[int64][]model.Person)
	for rows.Next() {
		var splitID int64
		var p model.Person
		if err := rows.Scan(&splitID, &p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("failed to scan split member: %w", err)
		}
		members[splitID] = append(members[splitID], p)
	}
	return members, rows.Err()
}
