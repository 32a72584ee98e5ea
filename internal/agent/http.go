package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/billsplit/internal/common"
)

// SubmitPath is where a process accepts envelopes from remote dispatchers.
const SubmitPath = "/submit"

const maxEnvelopeBytes = 1 << 20

// HTTPDispatcher posts envelopes to <address>/submit.
type HTTPDispatcher struct {
	client *http.Client
}

// NewHTTPDispatcher creates a dispatcher. A nil client uses a 10s timeout.
func NewHTTPDispatcher(client *http.Client) *HTTPDispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPDispatcher{client: client}
}

// Send implements Dispatcher. The remote side picks the actor from env.To or,
// when empty, from env.Kind.
func (d *HTTPDispatcher) Send(ctx context.Context, to string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	url := strings.TrimRight(to, "/") + SubmitPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: posting envelope to %s: %w", common.ErrTransportFailure, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned status %d: %s", common.ErrTransportFailure, url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// SubmitHandler accepts envelopes over HTTP and hands them to local actors.
type SubmitHandler struct {
	local  Dispatcher
	byKind map[Kind]string
	logger *slog.Logger
}

// NewSubmitHandler creates a handler delivering to local. byKind names the
// actor for envelopes that arrive without a To address.
func NewSubmitHandler(local Dispatcher, byKind map[Kind]string, logger *slog.Logger) *SubmitHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitHandler{local: local, byKind: byKind, logger: logger}
}

func (h *SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	dec := json.NewDecoder(io.LimitReader(r.Body, maxEnvelopeBytes))
	if err := dec.Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope: "+err.Error())
		return
	}
	if env.Kind == "" || env.RequestID == "" || len(env.Body) == 0 {
		writeError(w, http.StatusBadRequest, "envelope requires kind, request_id and body")
		return
	}

	to := env.To
	if to == "" || IsRemote(to) {
		to = h.byKind[env.Kind]
	}
	if to == "" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no actor accepts %s", env.Kind))
		return
	}

	err := h.local.Send(r.Context(), to, env)
	switch {
	case err == nil:
		h.logger.Debug("Accepted remote envelope", "actor", to, "kind", env.Kind, "request_id", env.RequestID, "from", env.From)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "request_id": env.RequestID})
	case errors.Is(err, ErrUnknownActor):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMailboxFull), errors.Is(err, ErrBusClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
