// Package validate checks transactions produced by an LLM before they are
// trusted as domain objects.
package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
)

// Tolerance is the largest accepted gap between billAmount and the sum of
// splits or payments.
var Tolerance = decimal.RequireFromString("0.01")

var requiredFields = []string{"title", "transactionType", "billAmount", "date", "items", "splits", "paidBy"}

// PeopleChecker resolves person references.
type PeopleChecker interface {
	PeopleExist(ctx context.Context, ids []int64) error
}

// Defaults fill fields the model is allowed to omit.
type Defaults struct {
	Date            string
	TransactionType model.TransactionType
}

// Parse decodes a model reply into a transaction. Fields named in defaults are
// filled when absent; every other required field must be present.
func Parse(text string, defaults Defaults) (*model.Transaction, error) {
	obj, err := llm.DecodeObject(text)
	if err != nil {
		return nil, err
	}

	if v, ok := obj["date"]; (!ok || v == nil || v == "") && defaults.Date != "" {
		obj["date"] = defaults.Date
	}
	if v, ok := obj["transactionType"]; (!ok || v == nil || v == "") && defaults.TransactionType != "" {
		obj["transactionType"] = string(defaults.TransactionType)
	}
	if link, ok := obj["billLink"]; ok && (link == nil || link == "") {
		delete(obj, "billLink")
	}

	var missing []string
	for _, field := range requiredFields {
		if v, ok := obj[field]; !ok || v == nil {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", common.ErrSchemaViolation, strings.Join(missing, ", "))
	}

	if s, ok := obj["transactionType"].(string); ok {
		obj["transactionType"] = strings.ToUpper(strings.TrimSpace(s))
	}

	encoded, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("re-encoding transaction: %w", err)
	}

	var txn model.Transaction
	if err := json.Unmarshal(encoded, &txn); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSchemaViolation, err)
	}
	return &txn, nil
}

// Validator enforces transaction invariants.
type Validator struct {
	people PeopleChecker
}

// New creates a validator. A nil checker skips person resolution.
func New(people PeopleChecker) *Validator {
	return &Validator{people: people}
}

// Transaction validates txn. Every failure wraps common.ErrSchemaViolation.
func (v *Validator) Transaction(ctx context.Context, txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction is nil", common.ErrSchemaViolation)
	}

	var problems []string

	if strings.TrimSpace(txn.Title) == "" {
		problems = append(problems, "title is empty")
	}
	if !txn.TransactionType.Valid() {
		problems = append(problems, fmt.Sprintf("transactionType %q is not one of %v", txn.TransactionType, model.TransactionTypes()))
	}
	if _, err := time.Parse(model.DateLayout, txn.Date); err != nil {
		problems = append(problems, fmt.Sprintf("date %q is not YYYY-MM-DD", txn.Date))
	}

	bill := decimal.NewFromFloat(txn.BillAmount)
	if !bill.IsPositive() {
		problems = append(problems, "billAmount must be positive")
	}

	for i, item := range txn.Items {
		if strings.TrimSpace(item.Name) == "" {
			problems = append(problems, fmt.Sprintf("items[%d] has no name", i))
		}
		if item.Price < 0 {
			problems = append(problems, fmt.Sprintf("items[%d] has a negative price", i))
		}
	}

	problems = append(problems, checkShares("splits", txn.Splits, bill)...)
	problems = append(problems, checkShares("paidBy", txn.PaidBy, bill)...)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", common.ErrSchemaViolation, strings.Join(problems, "; "))
	}

	if v.people != nil {
		if err := v.people.PeopleExist(ctx, txn.PersonIDs()); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("%w: %w", common.ErrSchemaViolation, err)
			}
			return fmt.Errorf("resolving people: %w", err)
		}
	}

	return nil
}

func checkShares(field string, shares []model.Share, bill decimal.Decimal) []string {
	if len(shares) == 0 {
		return []string{field + " is empty"}
	}

	var problems []string
	sum := decimal.Zero
	for i, share := range shares {
		if share.Person.ID <= 0 {
			problems = append(problems, fmt.Sprintf("%s[%d] has no person id", field, i))
		}
		if share.Amount < 0 {
			problems = append(problems, fmt.Sprintf("%s[%d] has a negative amount", field, i))
		}
		sum = sum.Add(decimal.NewFromFloat(share.Amount))
	}

	if sum.Sub(bill).Abs().GreaterThan(Tolerance) {
		problems = append(problems, fmt.Sprintf("%s total %s does not match billAmount %s", field, sum.StringFixed(2), bill.StringFixed(2)))
	}
	return problems
}
