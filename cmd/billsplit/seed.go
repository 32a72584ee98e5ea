package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/billsplit/internal/cli"
	"github.com/Veraticus/billsplit/internal/common"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sample people, splits and transactions",
		RunE:  runSeed,
	}

	cmd.Flags().Bool("reset", false, "Delete existing data before seeding")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	reset, _ := cmd.Flags().GetBool("reset")
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Seed(ctx, reset); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			return common.NewUserError("database already has people; rerun with --reset to replace them", err)
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Seeded sample data"))
	return nil
}
