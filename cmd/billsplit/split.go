package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/billsplit/internal/cli"
	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/splitter"
	"github.com/Veraticus/billsplit/internal/validate"
)

func splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split itemized bill among people",
		Long: `Ask the splitter to divide a list of bill items according to free-text
rules, and show the resulting transaction without saving it.

The items file holds a JSON array of {"name", "price", "quantity", "total"},
or a bill analysis response with an "items" field.`,
		RunE: runSplit,
	}

	cmd.Flags().String("items", "", "JSON file with bill items (required)")
	cmd.Flags().String("rules", "", "splitting instructions (default: splitter.default_rules)")
	cmd.Flags().Int64("split-id", 0, "split the transaction belongs to (default: splitter.default_split_id)")
	cmd.Flags().Bool("save", false, "save the transaction")
	_ = cmd.MarkFlagRequired("items")

	return cmd
}

func runSplit(cmd *cobra.Command, _ []string) error {
	itemsPath, _ := cmd.Flags().GetString("items")
	rules, _ := cmd.Flags().GetString("rules")
	splitID, _ := cmd.Flags().GetInt64("split-id")
	save, _ := cmd.Flags().GetBool("save")
	ctx := cmd.Context()

	items, err := readItems(itemsPath)
	if err != nil {
		return err
	}
	if rules == "" {
		rules = cfg.Splitter.DefaultRules
	}
	if rules == "" {
		rules = splitter.DefaultRules
	}
	if splitID == 0 {
		splitID = cfg.Splitter.DefaultSplitID
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	client, err := newTextClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	s := splitter.New(client, store, validate.New(store), splitter.Config{MaxAttempts: cfg.Splitter.MaxAttempts}, slog.Default())
	alloc, err := s.Split(ctx, items, rules)
	if err != nil {
		return err
	}
	txn := alloc.Transaction
	txn.SplitID = splitID

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTransaction(txn))

	if !save {
		return nil
	}
	if err := store.CreateTransaction(ctx, txn); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Saved transaction #%d", txn.ID)))
	return nil
}

func readItems(path string) ([]model.BillItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	var items []model.BillItem
	if err := json.Unmarshal(data, &items); err != nil {
		var resp model.BillAnalysisResponse
		if respErr := json.Unmarshal(data, &resp); respErr != nil {
			return nil, common.NewUserError("items file must be a JSON array of items or a bill analysis response", err)
		}
		items = resp.Items
	}
	if len(items) == 0 {
		return nil, common.NewUserError("items file lists no items", common.ErrValidation)
	}
	return items, nil
}
