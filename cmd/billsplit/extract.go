package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/billsplit/internal/cli"
	"github.com/Veraticus/billsplit/internal/extractor"
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
)

type extractOutput struct {
	Metadata    map[string]any   `json:"metadata,omitempty"`
	Source      string           `json:"source"`
	Currency    string           `json:"currency,omitempty"`
	Error       string           `json:"error,omitempty"`
	Items       []model.BillItem `json:"items"`
	TotalAmount float64          `json:"total_amount"`
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <image>...",
		Short: "Extract bill items from images",
		Long: `Read one or more bill images with the vision model and list their items.

Each argument is an http(s) URL, a data: URL or a local file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExtract,
	}

	cmd.Flags().String("notes", "", "extra context passed to the model")
	cmd.Flags().Bool("json", false, "print results as JSON")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	notes, _ := cmd.Flags().GetString("notes")
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	vision, err := newVisionClient()
	if err != nil {
		return err
	}
	defer func() { _ = vision.Close() }()

	ext := extractor.New(vision, slog.Default())
	images := extractor.NewImageFetcher(&http.Client{Timeout: cfg.Extractor.FetchTimeout}, cfg.Extractor.MaxImageBytes)

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Extraction")
	ctx := interrupts.HandleInterrupts(cmd.Context())

	showBar := len(args) > 1 && !asJSON
	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(args), "Extracting")

	results := make([]extractOutput, 0, len(args))
	failed := 0
	for i, source := range args {
		if ctx.Err() != nil {
			break
		}
		result := extractOne(ctx, ext, images, source, notes)
		if result.Error != "" {
			failed++
			slog.Warn("Extraction failed", "source", source, "error", result.Error)
		}
		results = append(results, result)
		interrupts.SetProgress(i+1, len(args))
		if showBar {
			_ = bar.Add(1)
		}
	}

	if asJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintln(out, cli.FormatError(r.Source+": "+r.Error))
				continue
			}
			fmt.Fprintln(out, cli.RenderBox(r.Source, cli.RenderItems(r.Items, r.TotalAmount, r.Currency)))
		}
	}

	if interrupts.WasInterrupted() {
		return context.Canceled
	}
	if failed == len(args) {
		return errors.New("no bill could be extracted")
	}
	return nil
}

func extractOne(ctx context.Context, ext *extractor.Extractor, images *extractor.ImageFetcher, source, notes string) extractOutput {
	result := extractOutput{Source: source, Items: []model.BillItem{}}

	img, err := loadImage(ctx, images, source)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	extracted, err := ext.Extract(ctx, img, notes)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Metadata = extracted.Metadata
	result.Currency = extracted.Currency
	result.Items = extracted.Items
	result.TotalAmount = extracted.TotalAmount
	return result
}

// loadImage fetches URLs and reads anything else from disk. Local files go
// through the fetcher as data: URLs so the same size and type checks apply.
func loadImage(ctx context.Context, images *extractor.ImageFetcher, source string) (llm.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") || strings.HasPrefix(source, "data:") {
		return images.Fetch(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return llm.Image{}, fmt.Errorf("failed to read %s: %w", source, err)
	}
	local := llm.Image{Data: data}
	return images.Fetch(ctx, local.DataURL())
}
