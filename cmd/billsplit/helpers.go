package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/billsplit/internal/config"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/storage"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(cfg.Database.Path)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newTextClient creates the client used for routing, splitting and chat.
func newTextClient() (*llm.ResilientClient, error) {
	client, err := llm.NewClient(cfg.TextLLM(), slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.LLM.Provider, err)
	}
	return client, nil
}

// newVisionClient creates the Gemini client used for bill extraction.
func newVisionClient() (*llm.ResilientClient, error) {
	client, err := llm.NewClient(cfg.VisionLLM(), slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return client, nil
}
