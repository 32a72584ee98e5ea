package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/service"
	"github.com/Veraticus/billsplit/internal/splitter"
)

// Metadata keys the splitter reads from a BillAnalysisResponse.
const (
	MetaSplitRules = "split_rules"
	MetaSplitID    = "split_id"
)

// BillSplitter allocates items among people.
type BillSplitter interface {
	Split(ctx context.Context, items []model.BillItem, rules string) (splitter.Allocation, error)
}

// SplitterAgentConfig tunes a SplitterAgent.
type SplitterAgentConfig struct {
	// OutputPath receives the last split as indented JSON; empty disables it.
	OutputPath     string
	DefaultRules   string
	DefaultSplitID int64
}

// SplitterAgent turns completed bill analyses into persisted transactions.
type SplitterAgent struct {
	splitter BillSplitter
	results  ResultRecorder
	store    ResponseStore
	tracker  *Tracker
	logger   *slog.Logger
	cfg      SplitterAgentConfig
}

// NewSplitterAgent creates the actor. store and tracker may be nil.
func NewSplitterAgent(cfg SplitterAgentConfig, s BillSplitter, results ResultRecorder, store ResponseStore, tracker *Tracker, logger *slog.Logger) *SplitterAgent {
	if cfg.DefaultRules == "" {
		cfg.DefaultRules = splitter.DefaultRules
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SplitterAgent{
		splitter: s,
		results:  results,
		store:    store,
		tracker:  tracker,
		logger:   logger.With("actor", "splitter"),
		cfg:      cfg,
	}
}

// Handle implements Handler. Orphaned responses are dropped without error.
func (a *SplitterAgent) Handle(ctx context.Context, env Envelope) error {
	if env.Kind != KindResponse {
		return fmt.Errorf("%w: splitter cannot handle %s", common.ErrValidation, env.Kind)
	}

	var resp model.BillAnalysisResponse
	if err := env.Decode(&resp); err != nil {
		return err
	}
	if resp.RequestID == "" {
		resp.RequestID = env.RequestID
	}

	if a.tracker != nil && !a.tracker.Resolve(resp.RequestID) {
		return nil
	}
	if a.alreadySplit(ctx, resp.RequestID) {
		a.logger.Info("Ignoring response for a bill that is already split", "request_id", resp.RequestID, "from", env.From)
		return nil
	}
	if a.store != nil {
		a.store.Put(resp.RequestID, &resp)
	}

	a.logger.Info("Received bill analysis response",
		"request_id", resp.RequestID,
		"status", resp.Status,
		"items", len(resp.Items),
		"from", env.From)

	if resp.Failed() {
		reason := resp.Error
		if reason == "" {
			reason = "bill analysis returned no items"
		}
		return a.recordFailure(ctx, &resp, reason)
	}

	rules := a.cfg.DefaultRules
	if r, ok := llm.AsString(resp.Metadata[MetaSplitRules]); ok && r != "" {
		rules = r
	}

	alloc, err := a.splitter.Split(ctx, resp.Items, rules)
	if err != nil {
		if recErr := a.recordFailure(ctx, &resp, err.Error()); recErr != nil {
			a.logger.Error("Failed to record split failure", "request_id", resp.RequestID, "error", recErr)
		}
		return fmt.Errorf("splitting %s: %w", resp.RequestID, err)
	}

	txn := alloc.Transaction
	txn.ID = 0
	txn.SplitID = a.cfg.DefaultSplitID
	if id, ok := llm.AsInt(resp.Metadata[MetaSplitID]); ok && id > 0 {
		txn.SplitID = int64(id)
	}

	saved, err := a.results.SaveBillResult(ctx, &service.BillResult{
		RequestID:   resp.RequestID,
		Status:      model.StatusCompleted,
		Transaction: txn,
		Response:    &resp,
	})
	if err != nil {
		if recErr := a.recordFailure(ctx, &resp, "Failed to save split: "+err.Error()); recErr != nil {
			a.logger.Error("Failed to record save failure", "request_id", resp.RequestID, "error", recErr)
		}
		return fmt.Errorf("saving split for %s: %w", resp.RequestID, err)
	}

	if saved.TransactionID != nil {
		a.logger.Info("Stored split transaction",
			"request_id", resp.RequestID,
			"transaction_id", *saved.TransactionID,
			"bill_amount", txn.BillAmount)
	}

	if err := a.writeOutput(saved); err != nil {
		a.logger.Warn("Failed to write split output", "path", a.cfg.OutputPath, "error", err)
	}
	return nil
}

// alreadySplit reports whether requestID already has a completed result. Lookup
// errors other than not found are logged and treated as not split, since
// SaveBillResult never replaces a completed result.
func (a *SplitterAgent) alreadySplit(ctx context.Context, requestID string) bool {
	existing, err := a.results.GetBillResult(ctx, requestID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			a.logger.Warn("Failed to look up bill result", "request_id", requestID, "error", err)
		}
		return false
	}
	return existing.Status == model.StatusCompleted
}

func (a *SplitterAgent) recordFailure(ctx context.Context, resp *model.BillAnalysisResponse, reason string) error {
	a.logger.Warn("Bill could not be split", "request_id", resp.RequestID, "reason", reason)
	_, err := a.results.SaveBillResult(ctx, &service.BillResult{
		RequestID: resp.RequestID,
		Status:    model.StatusError,
		Error:     reason,
		Response:  resp,
	})
	return err
}

type splitOutput struct {
	Transaction *model.Transaction `json:"transaction"`
	RequestID   string             `json:"request_id"`
}

// writeOutput replaces the output file atomically.
func (a *SplitterAgent) writeOutput(result *service.BillResult) error {
	if a.cfg.OutputPath == "" || result == nil {
		return nil
	}

	data, err := json.MarshalIndent(splitOutput{RequestID: result.RequestID, Transaction: result.Transaction}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(a.cfg.OutputPath)
	tmp, err := os.CreateTemp(dir, ".split-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), a.cfg.OutputPath)
}
