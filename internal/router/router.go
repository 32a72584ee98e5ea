// Package router classifies raw bill input with an LLM and forwards a typed
// envelope to the extractor or the splitter.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/billsplit/internal/agent"
	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
)

// Target names a downstream agent.
type Target string

// Routing targets as the classifier names them.
const (
	TargetExtractor Target = "agent_1"
	TargetSplitter  Target = "agent_2"
)

// ErrMalformedDecision is returned when the classifier reply cannot be used.
// It also matches common.ErrMalformedResponse.
var ErrMalformedDecision = fmt.Errorf("%w: malformed routing decision", common.ErrMalformedResponse)

const systemMessage = `You route bill-processing work to one of two agents.

agent_1 is the Bill Item Extractor. It reads a bill image and lists its items.
It expects a BillAnalysisRequest:
{"image_url": string, "text_data": string, "request_id": string, "timestamp": string (RFC 3339)}

agent_2 is the Bill Splitter. It divides already itemized bills among people.
It expects a BillAnalysisResponse:
{"request_id": string,
 "items": [{"name": string, "price": number, "quantity": integer, "total": number}],
 "total_amount": number, "currency": string, "timestamp": string (RFC 3339),
 "status": "processing" | "completed" | "error", "error": string, "metadata": object}

Choose agent_1 whenever the input contains an image URL. Choose agent_2 when the
input already lists items with prices.

Reply with exactly one JSON object and nothing else:
{"agent": "agent_1" | "agent_2", "input_format": { ...the payload for that agent... }}`

// Input is the raw material to classify.
type Input struct {
	Metadata  map[string]any   `json:"metadata,omitempty"`
	ImageURL  string           `json:"image_url,omitempty"`
	Text      string           `json:"text,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
	Items     []model.BillItem `json:"items,omitempty"`
}

// Decision is a classified input with its payload. Exactly one of Request and
// Response is set, matching Target.
type Decision struct {
	Request  *model.BillAnalysisRequest
	Response *model.BillAnalysisResponse
	Target   Target
}

// RequestID returns the correlation id carried by the payload.
func (d Decision) RequestID() string {
	if d.Request != nil {
		return d.Request.RequestID
	}
	if d.Response != nil {
		return d.Response.RequestID
	}
	return ""
}

// Addresses locates the downstream agents.
type Addresses struct {
	Self      string
	Extractor string
	Splitter  string
}

// Router classifies inputs and dispatches the result.
type Router struct {
	client     llm.Client
	dispatcher agent.Dispatcher
	tracker    *agent.Tracker
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	addrs      Addresses
}

// New creates a router. dispatcher and tracker are only needed by Handle.
func New(client llm.Client, dispatcher agent.Dispatcher, tracker *agent.Tracker, addrs Addresses, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if addrs.Self == "" {
		addrs.Self = "router"
	}
	return &Router{
		client:     client,
		dispatcher: dispatcher,
		tracker:    tracker,
		addrs:      addrs,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Route asks the classifier where in should go and builds the payload.
func (r *Router) Route(ctx context.Context, in Input) (Decision, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return Decision{}, fmt.Errorf("encoding router input: %w", err)
	}

	reply, err := r.client.Complete(ctx, llm.Request{
		System: systemMessage,
		Prompt: string(raw),
	})
	if err != nil {
		return Decision{}, fmt.Errorf("routing classification failed: %w", err)
	}

	decision, err := r.parseDecision(reply, in)
	if err != nil {
		r.logger.Warn("Unusable routing decision", "error", err, "raw", reply)
		return Decision{}, err
	}

	r.logger.Info("Routed input", "target", decision.Target, "request_id", decision.RequestID())
	return decision, nil
}

// Handle routes in and sends the payload to the chosen agent. The request id
// is tracked until the splitter sees a response for it.
func (r *Router) Handle(ctx context.Context, in Input) (Decision, error) {
	decision, err := r.Route(ctx, in)
	if err != nil {
		return Decision{}, err
	}
	if r.dispatcher == nil {
		return decision, fmt.Errorf("%w: router has no dispatcher", common.ErrMissingConfig)
	}

	var env agent.Envelope
	var to string
	switch decision.Target {
	case TargetExtractor:
		to = r.addrs.Extractor
		env, err = agent.NewEnvelope(agent.KindRequest, r.addrs.Self, r.addrs.Splitter, decision.Request.RequestID, decision.Request)
	case TargetSplitter:
		to = r.addrs.Splitter
		env, err = agent.NewEnvelope(agent.KindResponse, r.addrs.Self, "", decision.Response.RequestID, decision.Response)
	}
	if err != nil {
		return decision, err
	}

	id := decision.RequestID()
	if r.tracker != nil {
		r.tracker.Track(id, to)
	}
	if err := r.dispatcher.Send(ctx, to, env); err != nil {
		if r.tracker != nil {
			r.tracker.Forget(id)
		}
		return decision, fmt.Errorf("dispatching %s to %s: %w", env.Kind, to, err)
	}
	return decision, nil
}

func (r *Router) parseDecision(reply string, in Input) (Decision, error) {
	obj, err := llm.DecodeObject(reply)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrMalformedDecision, err)
	}

	target, ok := llm.AsString(obj["agent"])
	if !ok || target == "" {
		return Decision{}, fmt.Errorf("%w: missing agent", ErrMalformedDecision)
	}
	format, ok := llm.AsMap(obj["input_format"])
	if !ok {
		return Decision{}, fmt.Errorf("%w: missing input_format", ErrMalformedDecision)
	}

	switch Target(target) {
	case TargetExtractor:
		req, err := r.buildRequest(format, in)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Target: TargetExtractor, Request: req}, nil
	case TargetSplitter:
		resp, err := r.buildResponse(format, in)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Target: TargetSplitter, Response: resp}, nil
	default:
		return Decision{}, fmt.Errorf("%w: unknown agent %q", ErrMalformedDecision, target)
	}
}

func (r *Router) buildRequest(format map[string]any, in Input) (*model.BillAnalysisRequest, error) {
	// The caller's URL wins over whatever the model echoed back.
	imageURL := in.ImageURL
	if imageURL == "" {
		imageURL, _ = llm.AsString(format["image_url"])
	}
	if imageURL == "" {
		return nil, fmt.Errorf("%w: bill analysis request needs an image_url", common.ErrSchemaViolation)
	}

	text, _ := llm.AsString(format["text_data"])

	return &model.BillAnalysisRequest{
		ImageURL:  imageURL,
		TextData:  text,
		RequestID: r.requestID(format, in),
		Timestamp: r.timestamp(format),
	}, nil
}

func (r *Router) buildResponse(format map[string]any, in Input) (*model.BillAnalysisResponse, error) {
	items, err := decodeItems(format["items"])
	if err != nil {
		return nil, err
	}
	// Items supplied by the caller are used as given.
	if len(in.Items) > 0 {
		items = in.Items
	}

	status := model.StatusCompleted
	if s, ok := llm.AsString(format["status"]); ok && s != "" {
		status = model.AnalysisStatus(s)
		switch status {
		case model.StatusProcessing, model.StatusCompleted, model.StatusError:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", common.ErrSchemaViolation, s)
		}
	}

	total, ok := llm.AsFloat(format["total_amount"])
	if !ok {
		total = model.ItemsTotal(items)
	}

	currency, _ := llm.AsString(format["currency"])
	if currency == "" {
		currency = "USD"
	}
	errText, _ := llm.AsString(format["error"])

	metadata, ok := llm.AsMap(format["metadata"])
	if !ok {
		metadata = map[string]any{}
	}
	for k, v := range in.Metadata {
		if _, exists := metadata[k]; !exists {
			metadata[k] = v
		}
	}

	return &model.BillAnalysisResponse{
		RequestID:   r.requestID(format, in),
		Items:       items,
		TotalAmount: total,
		Currency:    currency,
		Timestamp:   r.timestamp(format),
		Status:      status,
		Error:       errText,
		Metadata:    metadata,
	}, nil
}

func (r *Router) requestID(format map[string]any, in Input) string {
	if in.RequestID != "" {
		return in.RequestID
	}
	if id, ok := llm.AsString(format["request_id"]); ok && id != "" {
		return id
	}
	return r.newID()
}

func (r *Router) timestamp(format map[string]any) time.Time {
	if s, ok := llm.AsString(format["timestamp"]); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts
		}
	}
	return r.now().UTC()
}

func decodeItems(v any) ([]model.BillItem, error) {
	rawItems, _ := llm.AsSlice(v)
	items := make([]model.BillItem, 0, len(rawItems))
	for _, entry := range rawItems {
		fields, ok := llm.AsMap(entry)
		if !ok {
			return nil, fmt.Errorf("%w: item is not an object", common.ErrSchemaViolation)
		}
		var item model.BillItem
		item.Name, _ = llm.AsString(fields["name"])
		item.Price, _ = llm.AsFloat(fields["price"])
		item.Quantity, _ = llm.AsInt(fields["quantity"])
		item.Total, _ = llm.AsFloat(fields["total"])
		items = append(items, item)
	}
	return items, nil
}
