package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/compliance-intelligence/internal/cli"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Maintain recorded feedback",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "archive",
		Short: "Move feedback older than the retention window to the archive",
		RunE:  runFeedbackArchive,
	})
	return cmd
}

func runFeedbackArchive(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to close resources", "error", closeErr)
		}
	}()

	n, err := a.collector.Archive(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Archived %d feedback events older than %s",
		n, a.cfg.Feedback.Retention)))
	return nil
}
