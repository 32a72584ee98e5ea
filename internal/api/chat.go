package api

import (
	"io"
	"net/http"

	"github.com/Veraticus/billsplit/internal/normalizer"
)

// chatGPT normalizes a chat message into a transaction without persisting it.
// Upstream, parse and validation failures of the model reply are all 500s.
func (s *Server) chatGPT(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat normalization is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	req, err := normalizer.ParseChatRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txn, err := s.chat.Normalize(r.Context(), req)
	if err != nil {
		s.logger.Error("Chat normalization failed", "chat_id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, txn)
}
