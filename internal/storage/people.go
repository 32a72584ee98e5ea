package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
)

// CreatePerson inserts a person and sets its generated id.
func (s *SQLiteStorage) CreatePerson(ctx context.Context, person *model.Person) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePerson(person); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO people (name, email) VALUES (?, ?)`,
		person.Name, person.Email)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get person id: %w", err)
	}
	person.ID = id
	return nil
}

// GetPerson returns the person with the given id.
func (s *SQLiteStorage) GetPerson(ctx context.Context, id int64) (*model.Person, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var p model.Person
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM people WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: person %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return &p, nil
}

// GetFirstPerson returns the person with the lowest id. It stands in for the
// current user until authentication exists.
func (s *SQLiteStorage) GetFirstPerson(ctx context.Context) (*model.Person, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var p model.Person
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM people ORDER BY id LIMIT 1`).
		Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no people exist", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get first person: %w", err)
	}
	return &p, nil
}

// GetPeople returns every person ordered by id.
func (s *SQLiteStorage) GetPeople(ctx context.Context) ([]model.Person, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email FROM people ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	defer func() { _ = rows.Close() }()

	people := []model.Person{}
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// PeopleExist returns an ErrNotFound error naming the first id with no person.
func (s *SQLiteStorage) PeopleExist(ctx context.Context, ids []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return peopleExist(ctx, s.db, ids)
}

func peopleExist(ctx context.Context, q querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	//nolint:gosec // only placeholders are interpolated
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM people WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to query people: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan person id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if !found[id] {
			return fmt.Errorf("%w: person %d", common.ErrNotFound, id)
		}
	}
	return nil
}
