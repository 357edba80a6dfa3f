package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/compliance-intelligence/internal/cli"
	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
	"github.com/Veraticus/compliance-intelligence/internal/service"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <subject-id>",
		Short: "Classify a legal or compliance change",
		Long: `Classify a change into severity, confidence and recommended actions.

Transient reasoning failures are retried. When the reasoning service stays
unavailable the previous classification of the subject is shown instead.

Examples:
  cie classify change-42 --type impressum --summary "Phone number required" \
    --description "Operators must publish a direct phone contact"
  cie classify change-42 --scope tenant-a --type privacy_policy --summary ... --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().String("scope", "", "Personalization scope (empty for the global classification)")
	cmd.Flags().String("type", "", "Change type, for example impressum or privacy_policy")
	cmd.Flags().String("summary", "", "One-line summary of the change")
	cmd.Flags().String("description", "", "Full description of the change")
	cmd.Flags().String("jurisdiction", "", "Jurisdiction the change applies to")
	cmd.Flags().String("effective-date", "", "Date the change takes effect (YYYY-MM-DD)")
	cmd.Flags().String("severity-hint", "", "Expected severity (critical, high, medium, low, info)")
	cmd.Flags().String("action-hint", "", "Expected primary action type")
	cmd.Flags().Int("retries", 3, "Attempts for transient reasoning failures")
	cmd.Flags().StringP("format", "f", formatText, "Output format (text, json, yaml)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("summary")

	return cmd
}

func changeFromFlags(cmd *cobra.Command) (model.Change, error) {
	flags := cmd.Flags()
	change := model.Change{}
	change.Type, _ = flags.GetString("type")
	change.Summary, _ = flags.GetString("summary")
	change.Description, _ = flags.GetString("description")
	change.Jurisdiction, _ = flags.GetString("jurisdiction")
	change.ActionTypeHint, _ = flags.GetString("action-hint")
	hint, _ := flags.GetString("severity-hint")
	change.SeverityHint = model.Severity(hint)

	if raw, _ := flags.GetString("effective-date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return change, fmt.Errorf("invalid effective date (use YYYY-MM-DD): %w", err)
		}
		change.EffectiveDate = &date
	}
	return change, nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	subjectID := args[0]
	scope, _ := cmd.Flags().GetString("scope")
	retries, _ := cmd.Flags().GetInt("retries")
	format, _ := cmd.Flags().GetString("format")

	change, err := changeFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, appOptions{reasoning: true})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to close resources", "error", closeErr)
		}
	}()

	var c *model.Classification
	err = common.WithRetry(ctx, func() error {
		var classifyErr error
		c, classifyErr = a.engine.Classify(ctx, subjectID, scope, change)
		return classifyErr
	}, service.RetryOptions{MaxAttempts: retries, InitialDelay: time.Second, MaxDelay: 30 * time.Second})

	stale := false
	if err != nil && errors.Is(err, common.ErrClassificationUnavailable) {
		prior, fallbackErr := a.engine.Fallback(ctx, subjectID, scope, err)
		if fallbackErr != nil {
			return common.NewUserError("classification unavailable and no previous classification exists", err)
		}
		slog.Warn("Showing previous classification", "subject_id", subjectID, "error", err)
		c, stale, err = prior, true, nil
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if handled, err := writeStructured(out, format, c); handled {
		return err
	}
	fmt.Fprintln(out, cli.RenderClassification(c, stale))
	return nil
}
