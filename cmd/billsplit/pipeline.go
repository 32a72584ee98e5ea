package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Veraticus/billsplit/internal/agent"
	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/extractor"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/normalizer"
	"github.com/Veraticus/billsplit/internal/router"
	"github.com/Veraticus/billsplit/internal/splitter"
	"github.com/Veraticus/billsplit/internal/storage"
	"github.com/Veraticus/billsplit/internal/validate"
)

// pipeline holds the running agent graph for one process.
type pipeline struct {
	bus        *agent.Bus
	responses  *agent.MemoryStore
	router     *router.Router
	normalizer *normalizer.Normalizer
	submit     http.Handler
	stop       context.CancelFunc
	clients    []*llm.ResilientClient
}

// startPipeline wires the router, extractor and splitter agents. Agents with
// an http(s) address are expected to run elsewhere and are only dispatched to.
func startPipeline(ctx context.Context, store *storage.SQLiteStorage) (*pipeline, error) {
	logger := slog.Default()
	p := &pipeline{
		bus:       agent.NewBus(cfg.Agents.MailboxSize, logger),
		responses: agent.NewMemoryStore(cfg.Agents.ResponseTTL),
	}

	text, err := newTextClient()
	if err != nil {
		p.Close()
		return nil, err
	}
	p.clients = append(p.clients, text)

	dispatcher := &agent.MultiDispatcher{
		Local:  p.bus,
		Remote: agent.NewHTTPDispatcher(nil),
	}

	tracker := agent.NewTracker(cfg.Agents.CorrelationTimeout, p.responses, store, logger)
	sweepCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	p.stop = stop
	go tracker.Run(sweepCtx, cfg.Agents.SweepInterval)

	validator := validate.New(store)
	byKind := map[agent.Kind]string{}

	if !agent.IsRemote(cfg.Agents.Extractor) {
		if err := p.registerExtractor(dispatcher, logger); err != nil {
			if !errors.Is(err, common.ErrMissingConfig) {
				p.Close()
				return nil, err
			}
			logger.Warn("Bill extractor disabled", "error", err)
		} else {
			byKind[agent.KindRequest] = cfg.Agents.Extractor
		}
	}

	if !agent.IsRemote(cfg.Agents.Splitter) {
		split := splitter.New(text, store, validator, splitter.Config{MaxAttempts: cfg.Splitter.MaxAttempts}, logger)
		splitAgent := agent.NewSplitterAgent(agent.SplitterAgentConfig{
			OutputPath:     cfg.Splitter.OutputPath,
			DefaultRules:   cfg.Splitter.DefaultRules,
			DefaultSplitID: cfg.Splitter.DefaultSplitID,
		}, split, store, p.responses, tracker, logger)
		if err := p.bus.Register(cfg.Agents.Splitter, splitAgent); err != nil {
			p.Close()
			return nil, err
		}
		byKind[agent.KindResponse] = cfg.Agents.Splitter
	}

	p.router = router.New(text, dispatcher, tracker, router.Addresses{
		Self:      cfg.Agents.Router,
		Extractor: cfg.Agents.Extractor,
		Splitter:  cfg.Agents.Splitter,
	}, logger)

	self := ""
	if first, err := store.GetFirstPerson(ctx); err == nil {
		self = first.Name
	} else if !errors.Is(err, common.ErrNotFound) {
		p.Close()
		return nil, fmt.Errorf("failed to load the chat owner: %w", err)
	}
	p.normalizer = normalizer.New(text, store, validator, self, logger)
	p.submit = agent.NewSubmitHandler(p.bus, byKind, logger)

	logger.Info("Agent pipeline ready",
		"router", cfg.Agents.Router,
		"extractor", cfg.Agents.Extractor,
		"splitter", cfg.Agents.Splitter,
		"llm_provider", cfg.LLM.Provider)
	return p, nil
}

func (p *pipeline) registerExtractor(dispatcher agent.Dispatcher, logger *slog.Logger) error {
	vision, err := newVisionClient()
	if err != nil {
		return err
	}
	p.clients = append(p.clients, vision)

	images := extractor.NewImageFetcher(&http.Client{Timeout: cfg.Extractor.FetchTimeout}, cfg.Extractor.MaxImageBytes)
	ext := agent.NewExtractorAgent(cfg.Agents.Extractor, cfg.Agents.Splitter,
		extractor.New(vision, logger), images, dispatcher, p.responses, logger)
	return p.bus.Register(cfg.Agents.Extractor, ext)
}

// Close drains the mailboxes and stops background work.
func (p *pipeline) Close() {
	p.bus.Shutdown()
	if p.stop != nil {
		p.stop()
	}
	p.responses.Close()
	for _, c := range p.clients {
		_ = c.Close()
	}
}
