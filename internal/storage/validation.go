package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/service"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidID          = errors.New("id must be positive")
	ErrInvalidPerson      = errors.New("invalid person")
	ErrInvalidSplit       = errors.New("invalid split")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidBillResult  = errors.New("invalid bill result")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %w: %s", common.ErrValidation, ErrEmptyString, paramName)
	}
	return nil
}

func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %w: %s", common.ErrValidation, ErrInvalidID, paramName)
	}
	return nil
}

func validatePerson(p *model.Person) error {
	if p == nil {
		return fmt.Errorf("%w: %w: person", common.ErrValidation, ErrNilParameter)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: %w: missing name", common.ErrValidation, ErrInvalidPerson)
	}
	return nil
}

func validateSplit(s *model.Split) error {
	if s == nil {
		return fmt.Errorf("%w: %w: split", common.ErrValidation, ErrNilParameter)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: %w: missing name", common.ErrValidation, ErrInvalidSplit)
	}
	for i, p := range s.People {
		if p.ID <= 0 {
			return fmt.Errorf("%w: %w: people[%d] has no id", common.ErrValidation, ErrInvalidSplit, i)
		}
	}
	return nil
}

// validateTransaction checks shape only. The splits total is not required to
// match billAmount for stored transactions.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: %w: transaction", common.ErrValidation, ErrNilParameter)
	}
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %w: %s", common.ErrValidation, ErrInvalidTransaction, fmt.Sprintf(format, args...))
	}

	if txn.SplitID <= 0 {
		return invalid("missing splitId")
	}
	if !txn.TransactionType.Valid() {
		return invalid("unknown transactionType %q", txn.TransactionType)
	}
	if _, err := time.Parse(model.DateLayout, txn.Date); err != nil {
		return invalid("date %q is not YYYY-MM-DD", txn.Date)
	}
	if txn.BillAmount < 0 {
		return invalid("negative billAmount")
	}
	for i, item := range txn.Items {
		if item.Price < 0 {
			return invalid("items[%d] has a negative price", i)
		}
	}
	for _, group := range []struct {
		name   string
		shares []model.Share
	}{{"splits", txn.Splits}, {"paidBy", txn.PaidBy}} {
		for i, share := range group.shares {
			if share.Person.ID <= 0 {
				return invalid("%s[%d] has no person id", group.name, i)
			}
			if share.Amount < 0 {
				return invalid("%s[%d] has a negative amount", group.name, i)
			}
		}
	}
	return nil
}

func validateBillResult(r *service.BillResult) error {
	if r == nil {
		return fmt.Errorf("%w: %w: bill result", common.ErrValidation, ErrNilParameter)
	}
	if strings.TrimSpace(r.RequestID) == "" {
		return fmt.Errorf("%w: %w: missing request id", common.ErrValidation, ErrInvalidBillResult)
	}
	switch r.Status {
	case model.StatusProcessing, model.StatusCompleted, model.StatusError:
	default:
		return fmt.Errorf("%w: %w: unknown status %q", common.ErrValidation, ErrInvalidBillResult, r.Status)
	}
	if r.Transaction != nil {
		return validateTransaction(r.Transaction)
	}
	return nil
}
