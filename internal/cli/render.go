package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/compliance-intelligence/internal/cache"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

// RenderClassification formats a classification for the terminal.
func RenderClassification(c *model.Classification, stale bool) string {
	var b strings.Builder

	verdict := FormatSuccess("No action required")
	if c.ActionRequired {
		verdict = FormatWarning("Action required")
	}
	b.WriteString(verdict + "\n\n")

	fmt.Fprintf(&b, "%s %s  %s %s  %s %.1f\n",
		BoldStyle.Render("Severity:"), severityStyle(c.Severity).Render(string(c.Severity)),
		BoldStyle.Render("Confidence:"), c.Confidence,
		BoldStyle.Render("Impact:"), c.ImpactScore)
	if c.UserImpactText != "" {
		b.WriteString("\n" + c.UserImpactText + "\n")
	}

	b.WriteString("\n" + BoldStyle.Render("Primary action") + "\n")
	b.WriteString(renderAction(c.PrimaryAction))
	if len(c.SecondaryActions) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Also consider") + "\n")
		for _, a := range c.SecondaryActions {
			b.WriteString(renderAction(a))
		}
	}

	if c.Reasoning != "" {
		b.WriteString("\n" + SubtleStyle.Render(c.Reasoning) + "\n")
	}
	b.WriteString("\n" + SubtleStyle.Render(fmt.Sprintf("%s · %s · %s",
		c.ID, c.ModelVersion, c.ClassifiedAt.Format("2006-01-02 15:04 MST"))))
	if stale {
		b.WriteString("\n" + FormatWarning("Served from a previous classification; the reasoning service is unavailable"))
	}

	title := c.SubjectID
	if c.Scope != "" {
		title += " (" + c.Scope + ")"
	}
	return RenderBox(title, b.String())
}

func renderAction(a model.Action) string {
	line := fmt.Sprintf("  • [%s] %s", a.Priority, a.Title)
	if a.EstimatedEffort != "" {
		line += SubtleStyle.Render(" (" + a.EstimatedEffort + ")")
	}
	if a.RequiresPaidTier {
		line += " " + InfoStyle.Render("paid")
	}
	line += "\n"
	if a.Description != "" {
		line += "    " + SubtleStyle.Render(a.Description) + "\n"
	}
	return line
}

func severityStyle(s model.Severity) lipgloss.Style {
	switch s {
	case model.SeverityCritical, model.SeverityHigh:
		return ErrorStyle
	case model.SeverityMedium:
		return WarningStyle
	default:
		return SuccessStyle
	}
}

// RenderSolution formats a cache lookup result.
func RenderSolution(r *cache.Result) string {
	s := r.Solution
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", BoldStyle.Render("Source:"), r.Source)
	if r.Source == cache.SourceFuzzy {
		fmt.Fprintf(&b, " (score %.2f)", r.Score)
	}
	fmt.Fprintf(&b, "\n%s %d  %s %.2f\n\n",
		BoldStyle.Render("Used:"), s.UsageCount,
		BoldStyle.Render("Success rate:"), s.SuccessRate)
	b.WriteString(s.SolutionText + "\n\n")
	b.WriteString(SubtleStyle.Render(s.Fingerprint))
	return RenderBox(s.Category+": "+s.Title, b.String())
}

// RenderStats formats cache statistics.
func RenderStats(s cache.Stats) string {
	rows := [][2]string{
		{"Requests", fmt.Sprintf("%d", s.Requests)},
		{"Exact hits", fmt.Sprintf("%d", s.Exact)},
		{"Fuzzy hits", fmt.Sprintf("%d", s.Fuzzy)},
		{"Generated", fmt.Sprintf("%d", s.Generated)},
		{"Shared generations", fmt.Sprintf("%d", s.Shared)},
		{"Wait timeouts", fmt.Sprintf("%d", s.Timeouts)},
		{"Generation failures", fmt.Sprintf("%d", s.Failures)},
		{"Calls saved", fmt.Sprintf("%d", s.CallsSaved)},
		{"Savings rate", fmt.Sprintf("%.1f%%", s.SavingsRate*100)},
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			TableHeaderStyle.Width(22).Render(row[0]),
			TableCellStyle.Render(row[1])))
	}
	return RenderBox(ChartIcon+" Cache statistics", strings.Join(lines, "\n"))
}

// RenderLearningResult formats a learning cycle result as a table.
func RenderLearningResult(r *model.LearningCycleResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s → %s\n", BoldStyle.Render("Window:"),
		r.WindowStart.Format("2006-01-02"), r.ComputedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "%s %d\n\n", BoldStyle.Render("Feedback considered:"), r.ConsideredFeedbackCount)

	if len(r.Suggestions) == 0 {
		b.WriteString(SubtleStyle.Render("No group reached the minimum sample size."))
		return RenderBox(r.ID, b.String())
	}

	widths := []int{22, 10, 11, 8, 9, 9, 24}
	header := []string{"Action type", "Severity", "Confidence", "Samples", "Observed", "Delta", "Adjustment"}
	b.WriteString(renderRow(TableHeaderStyle, widths, header) + "\n")
	for _, s := range r.Suggestions {
		cells := []string{
			s.ActionType,
			string(s.SeverityBucket),
			string(s.ConfidenceBucket),
			fmt.Sprintf("%d", s.SampleSize),
			fmt.Sprintf("%.2f", s.SuccessRateObserved),
			fmt.Sprintf("%+.2f", s.PerformanceDelta),
			adjustmentStyle(s.RecommendedAdjustment).Render(string(s.RecommendedAdjustment)),
		}
		b.WriteString(renderRow(TableCellStyle, widths, cells) + "\n")
	}
	return RenderBox(r.ID, strings.TrimRight(b.String(), "\n"))
}

func renderRow(style lipgloss.Style, widths []int, cells []string) string {
	rendered := make([]string, len(cells))
	for i, cell := range cells {
		rendered[i] = style.Width(widths[i]).Render(cell)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func adjustmentStyle(a model.Adjustment) lipgloss.Style {
	switch a {
	case model.AdjustRaiseActionThreshold:
		return ErrorStyle
	case model.AdjustDecreasePriority:
		return WarningStyle
	case model.AdjustLowerActionThreshold:
		return SuccessStyle
	default:
		return SubtleStyle
	}
}
