package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/service"
)

// CreateTransaction inserts a transaction with its items, splits and payers.
// Every referenced split and person must already exist.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertTransaction(ctx, tx, txn)
	})
}

// GetTransaction returns a transaction with persons resolved.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return loadTransaction(ctx, s.db, id)
}

// GetTransactions lists transactions newest first, optionally for one split.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT id FROM transactions WHERE 1=1`
	var args []any

	if filter.SplitID > 0 {
		query += ` AND split_id = ?`
		args = append(args, filter.SplitID)
	}

	query += ` ORDER BY date DESC, id DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan transaction id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	txns := make([]model.Transaction, 0, len(ids))
	for _, id := range ids {
		txn, err := loadTransaction(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, nil
}

// UpdateTransaction replaces every field and child row of an existing transaction.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkReferences(ctx, tx, txn); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET split_id = ?, title = ?, transaction_type = ?, bill_amount = ?, date = ?, bill_link = ?
			WHERE id = ?`,
			txn.SplitID, txn.Title, string(txn.TransactionType), txn.BillAmount, txn.Date,
			nullString(txn.BillLink), txn.ID)
		if err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: transaction %d", common.ErrNotFound, txn.ID)
		}

		for _, table := range []string{"transaction_items", "transaction_splits", "transaction_paid_by"} {
			//nolint:gosec // table names are constants
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE transaction_id = ?`, txn.ID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return insertChildren(ctx, tx, txn)
	})
}

// DeleteTransaction removes a transaction and its child rows.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: transaction %d", common.ErrNotFound, id)
	}
	return nil
}

func checkReferences(ctx context.Context, q querier, txn *model.Transaction) error {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM splits WHERE id = ?`, txn.SplitID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: split %d", common.ErrNotFound, txn.SplitID)
	}
	if err != nil {
		return fmt.Errorf("failed to check split: %w", err)
	}
	return peopleExist(ctx, q, txn.PersonIDs())
}

// insertTransaction writes txn inside tx and sets its generated id.
func insertTransaction(ctx context.Context, tx *sql.Tx, txn *model.Transaction) error {
	if err := checkReferences(ctx, tx, txn); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (split_id, title, transaction_type, bill_amount, date, bill_link)
		VALUES (?, ?, ?, ?, ?, ?)`,
		txn.SplitID, txn.Title, string(txn.TransactionType), txn.BillAmount, txn.Date,
		nullString(txn.BillLink))
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transaction id: %w", err)
	}
	txn.ID = id

	return insertChildren(ctx, tx, txn)
}

func insertChildren(ctx context.Context, tx *sql.Tx, txn *model.Transaction) error {
	for i, item := range txn.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_items (transaction_id, position, name, price) VALUES (?, ?, ?, ?)`,
			txn.ID, i, item.Name, item.Price); err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}
	if err := insertShares(ctx, tx, "transaction_splits", txn.ID, txn.Splits); err != nil {
		return err
	}
	return insertShares(ctx, tx, "transaction_paid_by", txn.ID, txn.PaidBy)
}

func insertShares(ctx context.Context, tx *sql.Tx, table string, txnID int64, shares []model.Share) error {
	for i, share := range shares {
		//nolint:gosec // table names are constants
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (transaction_id, position, person_id, amount) VALUES (?, ?, ?, ?)`,
			txnID, i, share.Person.ID, share.Amount); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

func loadTransaction(ctx context.Context, q querier, id int64) (*model.Transaction, error) {
	txn := model.Transaction{ID: id}
	var txnType string
	var billLink sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT split_id, title, transaction_type, bill_amount, date, bill_link
		FROM transactions WHERE id = ?`, id).
		Scan(&txn.SplitID, &txn.Title, &txnType, &txn.BillAmount, &txn.Date, &billLink)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	txn.TransactionType = model.TransactionType(txnType)
	if billLink.Valid {
		txn.BillLink = &billLink.String
	}

	if txn.Items, err = loadItems(ctx, q, id); err != nil {
		return nil, err
	}
	if txn.Splits, err = loadShares(ctx, q, "transaction_splits", id); err != nil {
		return nil, err
	}
	if txn.PaidBy, err = loadShares(ctx, q, "transaction_paid_by", id); err != nil {
		return nil, err
	}
	return &txn, nil
}

func loadItems(ctx context.Context, q querier, txnID int64) ([]model.TransactionItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, price FROM transaction_items WHERE transaction_id = ? ORDER BY position`, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []model.TransactionItem{}
	for rows.Next() {
		var item model.TransactionItem
		if err := rows.Scan(&item.Name, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func loadShares(ctx context.Context, q querier, table string, txnID int64) ([]model.Share, error) {
	//nolint:gosec // table names are constants
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.name, p.email, s.amount
		FROM `+table+` s
		JOIN people p ON p.id = s.person_id
		WHERE s.transaction_id = ?
		ORDER BY s.position`, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	shares := []model.Share{}
	for rows.Next() {
		var share model.Share
		if err := rows.Scan(&share.Person.ID, &share.Person.Name, &share.Person.Email, &share.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
