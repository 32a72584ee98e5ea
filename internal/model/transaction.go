package model

import (
	"fmt"
	"strings"
)

// TransactionType classifies what a shared expense was for.
type TransactionType string

// Supported transaction types.
const (
	TypeShopping      TransactionType = "SHOPPING"
	TypeGrocery       TransactionType = "GROCERY"
	TypeDining        TransactionType = "DINING"
	TypeEntertainment TransactionType = "ENTERTAINMENT"
	TypeOther         TransactionType = "OTHER"
)

// DateLayout is the wire format of Transaction.Date.
const DateLayout = "2006-01-02"

// TransactionTypes lists every valid TransactionType in display order.
func TransactionTypes() []TransactionType {
	return []TransactionType{TypeShopping, TypeGrocery, TypeDining, TypeEntertainment, TypeOther}
}

// Valid reports whether t is one of the enumerated types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeShopping, TypeGrocery, TypeDining, TypeEntertainment, TypeOther:
		return true
	default:
		return false
	}
}

// ParseTransactionType normalizes case and whitespace before validating.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
	return t, nil
}

// Transaction is one recorded expense event within a split.
// Items, Splits and PaidBy are owned by the transaction and deleted with it.
type Transaction struct {
	BillLink        *string           `json:"billLink,omitempty"`
	Title           string            `json:"title"`
	TransactionType TransactionType   `json:"transactionType"`
	Date            string            `json:"date"`
	Items           []TransactionItem `json:"items"`
	Splits          []Share           `json:"splits"`
	PaidBy          []Share           `json:"paidBy"`
	ID              int64             `json:"id"`
	SplitID         int64             `json:"splitId"`
	BillAmount      float64           `json:"billAmount"`
}

// TransactionItem is a single priced line of a transaction.
type TransactionItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Share assigns an amount to a person, either as owed (splits) or paid (paidBy).
type Share struct {
	Person Person  `json:"person"`
	Amount float64 `json:"amount"`
}

// SplitTotal sums the owed amounts.
func (t *Transaction) SplitTotal() float64 {
	var total float64
	for _, s := range t.Splits {
		total += s.Amount
	}
	return total
}

// PersonIDs returns the distinct person ids referenced by splits and paidBy.
func (t *Transaction) PersonIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, group := range [][]Share{t.Splits, t.PaidBy} {
		for _, s := range group {
			if !seen[s.Person.ID] {
				seen[s.Person.ID] = true
				ids = append(ids, s.Person.ID)
			}
		}
	}
	return ids
}
