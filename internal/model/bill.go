package model

import "time"

// AnalysisStatus is the lifecycle state of a BillAnalysisResponse.
type AnalysisStatus string

// Analysis statuses.
const (
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusError      AnalysisStatus = "error"
)

// BillItem is a line item extracted from a bill image. It is transient and only
// persisted once converted into a Transaction.
type BillItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
}

// BillAnalysisRequest asks the extractor to analyze a bill image.
type BillAnalysisRequest struct {
	Timestamp time.Time `json:"timestamp"`
	ImageURL  string    `json:"image_url"`
	TextData  string    `json:"text_data"`
	RequestID string    `json:"request_id"`
}

// BillAnalysisResponse carries extracted items back, correlated by RequestID.
// It is never mutated after being sent.
type BillAnalysisResponse struct {
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata"`
	RequestID   string         `json:"request_id"`
	Currency    string         `json:"currency"`
	Status      AnalysisStatus `json:"status"`
	Error       string         `json:"error"`
	Items       []BillItem     `json:"items"`
	TotalAmount float64        `json:"total_amount"`
}

// Failed reports whether the response is a terminal failure: an explicit error
// status or a completed response with no items.
func (r *BillAnalysisResponse) Failed() bool {
	return r.Status == StatusError || len(r.Items) == 0
}

// ItemsTotal sums the item totals.
func ItemsTotal(items []BillItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Total
	}
	return total
}
