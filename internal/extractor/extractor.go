// Package extractor turns a bill image into priced line items using a vision
// model.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
)

const extractionPrompt = `Please analyze this bill image and provide a detailed breakdown in JSON format.
Focus on extracting:
1. The establishment name
2. Date of the bill
3. All items with their individual prices and quantities
4. Subtotal, tax, and total amounts
5. Any special charges or discounts

Format your response as a valid JSON object with this structure:
{
    "items": [
        {
            "name": "Item name",
            "price": 0.00,
            "quantity": 1,
            "total": 0.00
        }
    ],
    "special_charges": [
        {"name": "Service charge", "amount": 0.00}
    ],
    "total_amount": 0.00,
    "currency": "USD",
    "metadata": {
        "establishment_name": "Name of the place",
        "date": "YYYY-MM-DD",
        "subtotal": 0.00,
        "tax": 0.00,
        "tax_rate": 0.00
    }
}

Important:
- Ensure all numbers are formatted as decimal numbers (e.g., 10.99 not 10,99)
- Make sure the JSON is valid and properly formatted
- Include all visible items and charges
- Do not include tax as an item; report it in metadata.tax
- Calculate totals accurately`

// Result is the normalized outcome of one extraction.
type Result struct {
	Metadata    map[string]any
	Currency    string
	Items       []model.BillItem
	TotalAmount float64
}

// Extractor calls a vision model and normalizes its reply into bill items.
type Extractor struct {
	client llm.Client
	logger *slog.Logger
}

// New creates an Extractor backed by a vision-capable client.
func New(client llm.Client, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, logger: logger}
}

// Extract analyzes a bill image. Notes, when non-empty, are passed to the model
// as extra context about the bill.
func (e *Extractor) Extract(ctx context.Context, img llm.Image, notes string) (Result, error) {
	req := llm.Request{
		Prompt: extractionPrompt,
		Image:  &img,
	}
	if notes != "" {
		req.Context = []string{"Notes from the submitter: " + notes}
	}

	raw, err := e.client.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, common.ErrMalformedResponse) || errors.Is(err, common.ErrTransportFailure) {
			return Result{}, fmt.Errorf("bill extraction failed: %w", err)
		}
		return Result{}, fmt.Errorf("%w: bill extraction failed: %w", common.ErrTransportFailure, err)
	}

	data, err := llm.DecodeObject(raw)
	if err != nil {
		e.logger.Warn("Could not parse extraction reply", "error", err, "raw", raw)
		return Result{}, fmt.Errorf("bill extraction failed: %w", err)
	}

	items := parseBillItems(data)
	result := Result{
		Items:       items,
		TotalAmount: model.ItemsTotal(items),
		Currency:    "USD",
		Metadata:    summarizeMetadata(data),
	}
	if currency, ok := llm.AsString(data["currency"]); ok && currency != "" {
		result.Currency = currency
	}

	e.logger.Debug("Extracted bill items",
		"items", len(items),
		"total", result.TotalAmount,
		"currency", result.Currency)

	return result, nil
}
