package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/service"
)

// SaveBillResult records the pipeline outcome for a request id. A completed
// result is final: saving again for the same id returns the stored result
// unchanged. A completed result carrying a transaction inserts it in the same
// database transaction.
func (s *SQLiteStorage) SaveBillResult(ctx context.Context, result *service.BillResult) (*service.BillResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateBillResult(result); err != nil {
		return nil, err
	}

	var responseJSON sql.NullString
	if result.Response != nil {
		data, err := json.Marshal(result.Response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bill response: %w", err)
		}
		responseJSON = sql.NullString{String: string(data), Valid: true}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM bill_results WHERE request_id = ?`, result.RequestID).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to check bill result: %w", err)
		case model.AnalysisStatus(existing) == model.StatusCompleted:
			return nil
		}

		var txnID sql.NullInt64
		if result.Status == model.StatusCompleted && result.Transaction != nil {
			if err := insertTransaction(ctx, tx, result.Transaction); err != nil {
				return err
			}
			txnID = sql.NullInt64{Int64: result.Transaction.ID, Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO bill_results (request_id, transaction_id, status, error, response_json)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(request_id) DO UPDATE SET
				transaction_id = excluded.transaction_id,
				status = excluded.status,
				error = excluded.error,
				response_json = excluded.response_json,
				updated_at = CURRENT_TIMESTAMP`,
			result.RequestID, txnID, string(result.Status), result.Error, responseJSON)
		if err != nil {
			return fmt.Errorf("failed to save bill result: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetBillResult(ctx, result.RequestID)
}

// GetBillResult returns the stored outcome for a request id.
func (s *SQLiteStorage) GetBillResult(ctx context.Context, requestID string) (*service.BillResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(requestID, "requestID"); err != nil {
		return nil, err
	}

	var (
		result       service.BillResult
		status       string
		txnID        sql.NullInt64
		responseJSON sql.NullString
		createdAt    time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT request_id, transaction_id, status, error, response_json, created_at
		FROM bill_results WHERE request_id = ?`, requestID).
		Scan(&result.RequestID, &txnID, &status, &result.Error, &responseJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: bill result %s", common.ErrNotFound, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill result: %w", err)
	}
	result.Status = model.AnalysisStatus(status)
	result.CreatedAt = createdAt

	if responseJSON.Valid {
		var resp model.BillAnalysisResponse
		if err := json.Unmarshal([]byte(responseJSON.String), &resp); err != nil {
			return nil, fmt.Errorf("failed to decode bill response: %w", err)
		}
		result.Response = &resp
	}

	if txnID.Valid {
		id := txnID.Int64
		result.TransactionID = &id
		txn, err := loadTransaction(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		result.Transaction = txn
	}
	return &result, nil
}
