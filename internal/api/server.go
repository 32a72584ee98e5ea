// Package api serves the JSON HTTP API over storage, the chat normalizer and
// the bill routing pipeline.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Veraticus/billsplit/internal/agent"
	"github.com/Veraticus/billsplit/internal/metrics"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/normalizer"
	"github.com/Veraticus/billsplit/internal/router"
	"github.com/Veraticus/billsplit/internal/service"
)

const (
	maxBodyBytes           = 10 << 20
	defaultShutdownTimeout = 10 * time.Second
	defaultRouteTimeout    = 5 * time.Minute
)

// ChatNormalizer turns a chat message into a validated transaction.
type ChatNormalizer interface {
	Normalize(ctx context.Context, req normalizer.ChatRequest) (*model.Transaction, error)
}

// BillRouter classifies an input and dispatches it into the agent pipeline.
type BillRouter interface {
	Handle(ctx context.Context, in router.Input) (router.Decision, error)
}

// Deps are the collaborators of a Server. Only Storage is required; the chat,
// bill and submit routes answer 503 when their collaborator is missing.
type Deps struct {
	Storage    service.Storage
	Chat       ChatNormalizer
	Bills      BillRouter
	Responses  agent.ResponseStore
	Submit     http.Handler
	Logger     *slog.Logger
	TLS        *tls.Config
	RouteLimit time.Duration
}

// Server owns the HTTP routes and any background bill routing they start.
type Server struct {
	store      service.Storage
	chat       ChatNormalizer
	bills      BillRouter
	responses  agent.ResponseStore
	submit     http.Handler
	logger     *slog.Logger
	tls        *tls.Config
	now        func() time.Time
	newID      func() string
	routeLimit time.Duration
	inflight   sync.WaitGroup
}

// NewServer creates a server from deps.
func NewServer(deps Deps) (*Server, error) {
	if deps.Storage == nil {
		return nil, errors.New("api: storage is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := deps.RouteLimit
	if limit <= 0 {
		limit = defaultRouteTimeout
	}
	return &Server{
		store:      deps.Storage,
		chat:       deps.Chat,
		bills:      deps.Bills,
		responses:  deps.Responses,
		submit:     deps.Submit,
		logger:     logger,
		tls:        deps.TLS,
		now:        time.Now,
		newID:      newRequestID,
		routeLimit: limit,
	}, nil
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if s.submit != nil {
		r.Method(http.MethodPost, agent.SubmitPath, s.submit)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/user", s.getUser)
		r.Get("/people", s.listPeople)

		r.Route("/splits", func(r chi.Router) {
			r.Get("/", s.listSplits)
			r.Post("/", s.createSplit)
			r.Get("/{id}", s.getSplit)
			r.Put("/{id}", s.updateSplit)
			r.Delete("/{id}", s.deleteSplit)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.listTransactions)
			r.Post("/", s.createTransaction)
			r.Get("/{id}", s.getTransaction)
			r.Put("/{id}", s.updateTransaction)
			r.Delete("/{id}", s.deleteTransaction)
		})

		r.Post("/chat/gpt", s.chatGPT)

		r.Post("/bills", s.submitBill)
		r.Get("/bills/{requestId}", s.getBill)
	})

	return r
}

// Serve listens on addr until ctx is canceled, then drains active requests and
// waits for background routing to finish. It serves HTTPS when Deps.TLS is set.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         s.tls,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "address", addr, "tls", s.tls != nil)
		var err error
		if s.tls != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serving on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	s.Wait()
	return nil
}

// Wait blocks until background bill routing started by the API is done.
func (s *Server) Wait() {
	s.inflight.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware allows browser access from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
