package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/router"
)

func routeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Show where the router would send an input",
		Long: `Classify an image URL or bill text without dispatching it, and print the
chosen agent with the payload it would receive.`,
		RunE: runRoute,
	}

	cmd.Flags().String("image-url", "", "URL of a bill image")
	cmd.Flags().String("text", "", "bill text or notes")
	cmd.Flags().String("request-id", "", "request id to carry through")

	return cmd
}

func runRoute(cmd *cobra.Command, _ []string) error {
	imageURL, _ := cmd.Flags().GetString("image-url")
	text, _ := cmd.Flags().GetString("text")
	requestID, _ := cmd.Flags().GetString("request-id")
	if imageURL == "" && text == "" {
		return common.NewUserError("provide --image-url or --text", common.ErrValidation)
	}

	client, err := newTextClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	rt := router.New(client, nil, nil, router.Addresses{
		Self:      cfg.Agents.Router,
		Extractor: cfg.Agents.Extractor,
		Splitter:  cfg.Agents.Splitter,
	}, slog.Default())

	decision, err := rt.Route(cmd.Context(), router.Input{
		ImageURL:  imageURL,
		Text:      text,
		RequestID: requestID,
	})
	if err != nil {
		return err
	}

	out := map[string]any{"agent": decision.Target}
	if decision.Request != nil {
		out["input_format"] = decision.Request
	} else {
		out["input_format"] = decision.Response
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
