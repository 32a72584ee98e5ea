// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/billsplit/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Person operations
	CreatePerson(ctx context.Context, person *model.Person) error
	GetPerson(ctx context.Context, id int64) (*model.Person, error)
	GetFirstPerson(ctx context.Context) (*model.Person, error)
	GetPeople(ctx context.Context) ([]model.Person, error)
	PeopleExist(ctx context.Context, ids []int64) error

	// Split operations
	CreateSplit(ctx context.Context, split *model.Split) error
	GetSplit(ctx context.Context, id int64) (*model.Split, error)
	GetSplits(ctx context.Context) ([]model.Split, error)
	UpdateSplit(ctx context.Context, split *model.Split) error
	DeleteSplit(ctx context.Context, id int64) error

	// Transaction operations
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error

	// Bill result operations
	SaveBillResult(ctx context.Context, result *BillResult) (*BillResult, error)
	GetBillResult(ctx context.Context, requestID string) (*BillResult, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	SplitID int64
	Limit   int
	Offset  int
}

// BillResult is the outcome of the agent pipeline for one request id.
// A completed result links to the transaction created for it.
type BillResult struct {
	CreatedAt     time.Time
	Transaction   *model.Transaction
	Response      *model.BillAnalysisResponse
	TransactionID *int64
	RequestID     string
	Status        model.AnalysisStatus
	Error         string
}

// PeopleSource supplies the known people used as LLM prompt context.
type PeopleSource interface {
	GetPeople(ctx context.Context) ([]model.Person, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
