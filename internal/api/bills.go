package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/router"
	"github.com/Veraticus/billsplit/internal/service"
)

// billStatus is the API view of a bill pipeline request.
type billStatus struct {
	TransactionID *int64                      `json:"transactionId,omitempty"`
	Transaction   *model.Transaction          `json:"transaction,omitempty"`
	Response      *model.BillAnalysisResponse `json:"response,omitempty"`
	RequestID     string                      `json:"requestId"`
	Status        model.AnalysisStatus        `json:"status"`
	Error         string                      `json:"error,omitempty"`
}

func statusOf(result *service.BillResult) billStatus {
	return billStatus{
		RequestID:     result.RequestID,
		Status:        result.Status,
		Error:         result.Error,
		TransactionID: result.TransactionID,
		Transaction:   result.Transaction,
		Response:      result.Response,
	}
}

// submitBill accepts an image URL, text or item list and routes it in the
// background. A request id that already completed is answered from storage
// without routing again.
func (s *Server) submitBill(w http.ResponseWriter, r *http.Request) {
	if s.bills == nil {
		writeError(w, http.StatusServiceUnavailable, "bill routing is not configured")
		return
	}

	var in router.Input
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(in.ImageURL) == "" && strings.TrimSpace(in.Text) == "" && len(in.Items) == 0 {
		writeError(w, http.StatusBadRequest, "bill requires image_url, text or items")
		return
	}
	if in.RequestID == "" {
		in.RequestID = s.newID()
	}

	result, err := s.store.SaveBillResult(r.Context(), &service.BillResult{
		RequestID: in.RequestID,
		Status:    model.StatusProcessing,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if result.Status == model.StatusCompleted {
		writeJSON(w, http.StatusOK, statusOf(result))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.routeLimit)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		s.route(ctx, in)
	}()

	writeJSON(w, http.StatusAccepted, statusOf(result))
}

func (s *Server) route(ctx context.Context, in router.Input) {
	decision, err := s.bills.Handle(ctx, in)
	if err == nil {
		s.logger.Info("Bill dispatched", "request_id", in.RequestID, "target", decision.Target)
		return
	}

	s.logger.Error("Bill routing failed", "request_id", in.RequestID, "error", err)
	if _, saveErr := s.store.SaveBillResult(ctx, &service.BillResult{
		RequestID: in.RequestID,
		Status:    model.StatusError,
		Error:     "Routing failed: " + err.Error(),
	}); saveErr != nil {
		s.logger.Error("Failed to record routing failure", "request_id", in.RequestID, "error", saveErr)
	}
}

// getBill reports the stored result, falling back to the in-memory response
// cache for requests the pipeline has seen but not yet persisted.
func (s *Server) getBill(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	result, err := s.store.GetBillResult(r.Context(), requestID)
	switch {
	case err == nil:
		status := statusOf(result)
		if status.Response == nil && s.responses != nil {
			if resp, ok := s.responses.Get(requestID); ok {
				status.Response = resp
			}
		}
		writeJSON(w, http.StatusOK, status)
	case errors.Is(err, common.ErrNotFound):
		if s.responses != nil {
			if resp, ok := s.responses.Get(requestID); ok {
				writeJSON(w, http.StatusOK, billStatus{
					RequestID: requestID,
					Status:    resp.Status,
					Error:     resp.Error,
					Response:  resp,
				})
				return
			}
		}
		writeError(w, http.StatusNotFound, "Bill request not found")
	default:
		s.fail(w, r, err)
	}
}
