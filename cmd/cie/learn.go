package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/compliance-intelligence/internal/cli"
	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

func learnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Run and inspect learning cycles",
	}
	cmd.PersistentFlags().StringP("format", "f", formatText, "Output format (text, json, yaml)")
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Aggregate recent feedback into threshold suggestions",
		RunE:  runLearn,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "latest",
		Short: "Show the most recent learning cycle result",
		RunE:  runLearnLatest,
	})
	return cmd
}

func runLearn(cmd *cobra.Command, _ []string) error {
	return withLearningResult(cmd, func(a *app) (*model.LearningCycleResult, error) {
		return a.cycle.Run(cmd.Context())
	})
}

func runLearnLatest(cmd *cobra.Command, _ []string) error {
	return withLearningResult(cmd, func(a *app) (*model.LearningCycleResult, error) {
		result, err := a.cycle.Latest(cmd.Context())
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewUserError("no learning cycle has run yet; try cie learn run", err)
		}
		return result, err
	})
}

func withLearningResult(cmd *cobra.Command, fn func(*app) (*model.LearningCycleResult, error)) error {
	format, _ := cmd.Flags().GetString("format")

	a, err := openApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to close resources", "error", closeErr)
		}
	}()

	result, err := fn(a)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if handled, err := writeStructured(out, format, result); handled {
		return err
	}
	fmt.Fprintln(out, cli.RenderLearningResult(result))
	return nil
}
