package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/extractor"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
)

// ItemExtractor reads bill items from an image.
type ItemExtractor interface {
	Extract(ctx context.Context, img llm.Image, notes string) (extractor.Result, error)
}

// ImageSource loads the image a request points at.
type ImageSource interface {
	Fetch(ctx context.Context, url string) (llm.Image, error)
}

// ExtractorAgent answers bill analysis requests. Every request gets exactly
// one response: completed with items, or status error with a reason.
type ExtractorAgent struct {
	extractor  ItemExtractor
	images     ImageSource
	dispatcher Dispatcher
	store      ResponseStore
	logger     *slog.Logger
	now        func() time.Time
	name       string
	replyTo    string
}

// NewExtractorAgent creates the actor. replyTo is used for requests that do
// not name their own reply address. store may be nil.
func NewExtractorAgent(name, replyTo string, ext ItemExtractor, images ImageSource, dispatcher Dispatcher, store ResponseStore, logger *slog.Logger) *ExtractorAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractorAgent{
		extractor:  ext,
		images:     images,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger.With("actor", name),
		now:        time.Now,
		name:       name,
		replyTo:    replyTo,
	}
}

// Handle implements Handler.
func (a *ExtractorAgent) Handle(ctx context.Context, env Envelope) error {
	if env.Kind != KindRequest {
		return fmt.Errorf("%w: extractor cannot handle %s", common.ErrValidation, env.Kind)
	}

	var req model.BillAnalysisRequest
	if err := env.Decode(&req); err != nil {
		return err
	}
	if req.RequestID == "" {
		req.RequestID = env.RequestID
	}

	a.logger.Info("Received bill analysis request", "request_id", req.RequestID, "from", env.From)

	resp := a.analyze(ctx, req)
	if a.store != nil {
		a.store.Put(resp.RequestID, resp)
	}

	replyTo := env.ReplyTo
	if replyTo == "" {
		replyTo = a.replyTo
	}
	if replyTo == "" {
		return fmt.Errorf("%w: no reply address for request %s", common.ErrMissingConfig, req.RequestID)
	}

	out, err := NewEnvelope(KindResponse, a.name, "", resp.RequestID, resp)
	if err != nil {
		return err
	}
	if err := a.dispatcher.Send(ctx, replyTo, out); err != nil {
		return fmt.Errorf("sending response for %s: %w", resp.RequestID, err)
	}
	return nil
}

func (a *ExtractorAgent) analyze(ctx context.Context, req model.BillAnalysisRequest) *model.BillAnalysisResponse {
	resp := &model.BillAnalysisResponse{
		RequestID: req.RequestID,
		Items:     []model.BillItem{},
		Currency:  "USD",
		Status:    model.StatusProcessing,
		Metadata:  map[string]any{},
	}

	fail := func(msg string, err error) *model.BillAnalysisResponse {
		if err != nil {
			msg = fmt.Sprintf("%s: %v", msg, err)
		}
		a.logger.Warn("Bill analysis failed", "request_id", req.RequestID, "error", msg)
		resp.Status = model.StatusError
		resp.Error = msg
		resp.Timestamp = a.now().UTC()
		return resp
	}

	if req.ImageURL == "" {
		return fail("request has no image_url", nil)
	}

	img, err := a.images.Fetch(ctx, req.ImageURL)
	if err != nil {
		return fail("Failed to download image", err)
	}

	result, err := a.extractor.Extract(ctx, img, req.TextData)
	if err != nil {
		if errors.Is(err, common.ErrMalformedResponse) {
			return fail("No valid bill data could be extracted", err)
		}
		return fail("Bill extraction failed", err)
	}
	if len(result.Items) == 0 {
		return fail("Failed to parse bill items", nil)
	}

	now := a.now().UTC()
	resp.Items = result.Items
	resp.TotalAmount = result.TotalAmount
	resp.Currency = result.Currency
	resp.Status = model.StatusCompleted
	resp.Timestamp = now
	for k, v := range result.Metadata {
		resp.Metadata[k] = v
	}
	resp.Metadata["processing_timestamp"] = now.Format(time.RFC3339)

	a.logger.Info("Bill analyzed",
		"request_id", req.RequestID,
		"items", len(resp.Items),
		"total", resp.TotalAmount,
		"currency", resp.Currency)
	return resp
}
