// Package normalizer converts a chat message, optionally with a bill image,
// into a transaction in one LLM call.
package normalizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/service"
	"github.com/Veraticus/billsplit/internal/validate"
)

const systemMessage = `You are a helpful assistant that extracts information from a given text and/or image into a transaction.
Reply with a single JSON object in camelCase and nothing else. It must follow this schema:

{
  "splitId": number,
  "title": string,
  "transactionType": "SHOPPING" | "GROCERY" | "DINING" | "ENTERTAINMENT" | "OTHER",
  "billAmount": number,
  "date": string (YYYY-MM-DD),
  "billLink": string (optional),
  "items": [{"name": string, "price": number}],
  "splits": [{"person": {"id": number, "name": string, "email": string}, "amount": number}],
  "paidBy": [{"person": {"id": number, "name": string, "email": string}, "amount": number}]
}

The splits amounts must add up to billAmount, and so must the paidBy amounts.`

// ChatRequest is the body of a chat submission. ImageURL is either a URL,
// a data URL or raw image bytes encoded as a data URL; empty means no image.
type ChatRequest struct {
	ID       string
	Type     string
	Sender   string
	Message  string
	ImageURL string
}

// ParseChatRequest decodes a chat body. All of id, type, sender, imageUrl and
// message must be present; imageUrl may be empty, a string or a byte array.
func ParseChatRequest(body []byte) (ChatRequest, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return ChatRequest{}, fmt.Errorf("%w: invalid JSON body: %w", common.ErrValidation, err)
	}

	var missing []string
	for _, key := range []string{"id", "type", "sender", "imageUrl", "message"} {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return ChatRequest{}, fmt.Errorf("%w: Missing required fields: %s", common.ErrValidation, strings.Join(missing, ", "))
	}

	var req ChatRequest
	var err error
	if req.ID, err = scalar(raw["id"]); err != nil {
		return ChatRequest{}, fmt.Errorf("%w: id: %w", common.ErrValidation, err)
	}
	if req.Type, err = scalar(raw["type"]); err != nil {
		return ChatRequest{}, fmt.Errorf("%w: type: %w", common.ErrValidation, err)
	}
	if req.Sender, err = scalar(raw["sender"]); err != nil {
		return ChatRequest{}, fmt.Errorf("%w: sender: %w", common.ErrValidation, err)
	}
	if req.Message, err = scalar(raw["message"]); err != nil {
		return ChatRequest{}, fmt.Errorf("%w: message: %w", common.ErrValidation, err)
	}
	if req.ImageURL, err = imageField(raw["imageUrl"]); err != nil {
		return ChatRequest{}, fmt.Errorf("%w: imageUrl: %w", common.ErrValidation, err)
	}
	return req, nil
}

// scalar renders a JSON string, number or boolean as text.
func scalar(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	trimmed := strings.TrimSpace(string(v))
	if trimmed == "null" {
		return "", nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return fmt.Sprint(b), nil
	}
	return "", fmt.Errorf("expected a scalar, got %s", trimmed)
}

// imageField accepts a string or an array of byte values. Bytes are encoded
// into a base64 data URL.
func imageField(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	if strings.TrimSpace(string(v)) == "null" {
		return "", nil
	}
	var ints []int
	if err := json.Unmarshal(v, &ints); err != nil {
		return "", errors.New("expected a string or byte array")
	}
	data := make([]byte, len(ints))
	for i, n := range ints {
		if n < 0 || n > 255 {
			return "", fmt.Errorf("byte %d out of range", i)
		}
		data[i] = byte(n)
	}
	if len(data) == 0 {
		return "", nil
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Normalizer turns chat requests into validated transactions.
type Normalizer struct {
	client    llm.Client
	people    service.PeopleSource
	validator *validate.Validator
	logger    *slog.Logger
	now       func() time.Time
	self      string
}

// New creates a normalizer. self names the person the chat speaks for, used
// as the default payer.
func New(client llm.Client, people service.PeopleSource, validator *validate.Validator, self string, logger *slog.Logger) *Normalizer {
	if validator == nil {
		validator = validate.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		client:    client,
		people:    people,
		validator: validator,
		logger:    logger,
		now:       time.Now,
		self:      self,
	}
}

// Normalize asks the model for a transaction and validates it. Invalid output
// is returned as an error without retrying.
func (n *Normalizer) Normalize(ctx context.Context, req ChatRequest) (*model.Transaction, error) {
	peopleContext, err := n.peopleContext(ctx)
	if err != nil {
		return nil, err
	}

	call := llm.Request{
		System:  systemMessage,
		Context: []string{peopleContext},
		Prompt:  fmt.Sprintf("user_text:%s\nmetadata:%s %s %s", req.Message, req.ID, req.Type, req.Sender),
	}
	if req.ImageURL != "" {
		call.Image = &llm.Image{URL: req.ImageURL}
	}

	raw, err := n.client.Complete(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("chat normalization failed: %w", err)
	}

	txn, err := validate.Parse(raw, validate.Defaults{Date: n.now().Format(model.DateLayout)})
	if err != nil {
		n.logger.Warn("Unusable chat normalization reply", "error", err, "raw", raw)
		return nil, err
	}
	if err := n.validator.Transaction(ctx, txn); err != nil {
		n.logger.Warn("Chat normalization failed validation", "error", err)
		return nil, err
	}
	return txn, nil
}

type personRecord struct {
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Splits []int64 `json:"splits"`
	ID     int64   `json:"id"`
}

// SplitLister reports which splits a person belongs to.
type SplitLister interface {
	GetSplits(ctx context.Context) ([]model.Split, error)
}

func (n *Normalizer) peopleContext(ctx context.Context) (string, error) {
	intro := "Known people. "
	if n.self != "" {
		intro = fmt.Sprintf("I am %s. If paidBy is unknown, say I paid. ", n.self)
	}
	intro += "Always fill in how much each person owes (splits) and who paid (paidBy)."

	if n.people == nil {
		return intro, nil
	}

	people, err := n.people.GetPeople(ctx)
	if err != nil {
		return "", fmt.Errorf("loading people: %w", err)
	}

	membership := map[int64][]int64{}
	if lister, ok := n.people.(SplitLister); ok {
		splits, err := lister.GetSplits(ctx)
		if err != nil {
			return "", fmt.Errorf("loading splits: %w", err)
		}
		for _, s := range splits {
			for _, p := range s.People {
				membership[p.ID] = append(membership[p.ID], s.ID)
			}
		}
	}

	records := make([]personRecord, 0, len(people))
	for _, p := range people {
		splits := membership[p.ID]
		if splits == nil {
			splits = []int64{}
		}
		records = append(records, personRecord{ID: p.ID, Name: p.Name, Email: p.Email, Splits: splits})
	}

	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding people: %w", err)
	}
	return intro + "\npersons = " + string(encoded), nil
}
