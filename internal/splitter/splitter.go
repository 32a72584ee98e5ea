// Package splitter allocates bill items among people with an LLM and checks
// the result before handing it on.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/service"
	"github.com/Veraticus/billsplit/internal/validate"
)

// DefaultMaxAttempts bounds how many replies are requested for one bill.
const DefaultMaxAttempts = 2

// Allocation is the model's raw reply and the validated transaction built
// from it.
type Allocation struct {
	Transaction *model.Transaction
	Raw         string
	Attempts    int
}

// Config tunes a Splitter.
type Config struct {
	MaxAttempts int
}

// Splitter turns bill items and free-text rules into a transaction.
type Splitter struct {
	client    llm.Client
	people    service.PeopleSource
	validator *validate.Validator
	logger    *slog.Logger
	now       func() time.Time
	cfg       Config
}

// New creates a splitter. people may be nil, in which case no people context
// is sent.
func New(client llm.Client, people service.PeopleSource, validator *validate.Validator, cfg Config, logger *slog.Logger) *Splitter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if validator == nil {
		validator = validate.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{
		client:    client,
		people:    people,
		validator: validator,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// Split asks the model to allocate items according to rules. A reply that
// fails validation is rejected and the model is asked again with the error
// quoted, up to the configured number of attempts.
func (s *Splitter) Split(ctx context.Context, items []model.BillItem, rules string) (Allocation, error) {
	if len(items) == 0 {
		return Allocation{}, fmt.Errorf("%w: no items to split", common.ErrValidation)
	}
	if strings.TrimSpace(rules) == "" {
		rules = DefaultRules
	}

	req := llm.Request{
		System: systemMessage,
		Prompt: buildPrompt(items, rules),
	}
	if s.people != nil {
		people, err := s.people.GetPeople(ctx)
		if err != nil {
			return Allocation{}, fmt.Errorf("loading people: %w", err)
		}
		if pc := PeopleContext(people); pc != "" {
			req.Context = []string{pc}
		}
	}

	defaults := validate.Defaults{
		Date:            s.now().Format(model.DateLayout),
		TransactionType: model.TypeDining,
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		raw, err := s.client.Complete(ctx, req)
		if err != nil {
			return Allocation{}, fmt.Errorf("bill split failed: %w", err)
		}

		txn, err := s.check(ctx, raw, defaults)
		if err == nil {
			s.logger.Info("Bill split",
				"title", txn.Title,
				"bill_amount", txn.BillAmount,
				"people", len(txn.Splits),
				"attempts", attempt)
			return Allocation{Raw: raw, Transaction: txn, Attempts: attempt}, nil
		}
		if !errors.Is(err, common.ErrSchemaViolation) && !errors.Is(err, common.ErrMalformedResponse) {
			return Allocation{}, err
		}

		lastErr = err
		s.logger.Warn("Rejected split reply",
			"attempt", attempt,
			"max_attempts", s.cfg.MaxAttempts,
			"error", err)

		req.Prompt = buildPrompt(items, rules) + correction(raw, err)
	}

	return Allocation{}, fmt.Errorf("%w: split rejected after %d attempts: %w", common.ErrSchemaViolation, s.cfg.MaxAttempts, lastErr)
}

func (s *Splitter) check(ctx context.Context, raw string, defaults validate.Defaults) (*model.Transaction, error) {
	txn, err := validate.Parse(raw, defaults)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Transaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func correction(previous string, err error) string {
	return fmt.Sprintf(`

Your previous reply was rejected.
Previous reply:
%s

Problem: %v

Reply again with a corrected JSON object only.`, llm.StripCodeFence(previous), err)
}
