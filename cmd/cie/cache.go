package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/compliance-intelligence/internal/cache"
	"github.com/Veraticus/compliance-intelligence/internal/cli"
	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/fingerprint"
	"github.com/Veraticus/compliance-intelligence/internal/server"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the solution cache",
	}
	cmd.AddCommand(cacheLookupCmd())
	cmd.AddCommand(cacheStatsCmd())
	cmd.AddCommand(cacheReindexCmd())
	return cmd
}

func cacheLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up the cached solution for an issue",
		Long: `Look up an issue by exact fingerprint, then list near-duplicate candidates.

With --generate a full miss is answered by the reasoning service and cached.`,
		RunE: runCacheLookup,
	}
	cmd.Flags().String("category", "", "Issue category")
	cmd.Flags().String("title", "", "Issue title")
	cmd.Flags().String("description", "", "Issue description")
	cmd.Flags().Int("limit", 5, "Maximum fuzzy candidates to list")
	cmd.Flags().Bool("generate", false, "Generate and cache a solution on a miss")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func runCacheLookup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	category, _ := cmd.Flags().GetString("category")
	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	limit, _ := cmd.Flags().GetInt("limit")
	generate, _ := cmd.Flags().GetBool("generate")

	a, err := openApp(ctx, appOptions{reasoning: generate})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to close resources", "error", closeErr)
		}
	}()

	out := cmd.OutOrStdout()
	if generate {
		res, err := a.solutions.Solve(ctx, a.client, category, title, description)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.RenderSolution(res))
		return nil
	}

	fp, err := fingerprint.Compute(category, title, description)
	if err != nil {
		return err
	}
	sol, err := a.solutions.Lookup(ctx, fp)
	switch {
	case err == nil:
		fmt.Fprintln(out, cli.RenderSolution(&cache.Result{Solution: sol, Source: cache.SourceExact, Score: 1}))
		return nil
	case !errors.Is(err, common.ErrNotFound):
		return err
	}

	matches, err := a.solutions.LookupFuzzy(ctx, category, title+" "+description, limit)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintln(out, cli.FormatInfo("No cached solution for "+fp))
		return nil
	}
	fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("No exact match; %d near-duplicate candidates:", len(matches))))
	for _, m := range matches {
		fmt.Fprintf(out, "  %.2f  %d shared  %s  %s\n", m.Score, m.SharedTokens, m.Solution.Fingerprint[:12], m.Solution.Title)
	}
	return nil
}

func cacheStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how a running server served solution requests",
		RunE:  runCacheStats,
	}
	cmd.Flags().String("url", "", "Server base URL (default: derived from server.addr)")
	cmd.Flags().StringP("format", "f", formatText, "Output format (text, json, yaml)")
	return cmd
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	base, err := serverURL(cmd)
	if err != nil {
		return err
	}

	var stats cache.Stats
	if err := callServer(cmd, http.MethodGet, base+"/cache/stats", &stats); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if handled, err := writeStructured(out, format, stats); handled {
		return err
	}
	fmt.Fprintln(out, cli.RenderStats(stats))
	return nil
}

func cacheReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the fuzzy index from stored solutions",
		Long: `Rebuild the near-duplicate index from every stored solution.

Without --remote the index is rebuilt locally, which checks that every stored
solution can be indexed. With --remote the running server rebuilds its own index.`,
		RunE: runCacheReindex,
	}
	cmd.Flags().Bool("remote", false, "Ask the running server to rebuild its index")
	cmd.Flags().String("url", "", "Server base URL for --remote (default: derived from server.addr)")
	return cmd
}

func runCacheReindex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	remote, _ := cmd.Flags().GetBool("remote")
	out := cmd.OutOrStdout()

	if remote {
		base, err := serverURL(cmd)
		if err != nil {
			return err
		}
		var resp server.ReindexResponse
		if err := callServer(cmd, http.MethodPost, base+"/admin/cache/reindex", &resp); err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Server indexed %d solutions", resp.Indexed)))
		return nil
	}

	var bar *progressbar.ProgressBar
	onProgress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Indexing solutions...[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
		}
		if err := bar.Set(done); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}

	start := time.Now()
	a, err := openApp(ctx, appOptions{onIndexProgress: onProgress})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to close resources", "error", closeErr)
		}
	}()
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}

	solutions, err := a.store.ListSolutions(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Indexed %d solutions in %s", len(solutions), time.Since(start).Round(time.Millisecond))))
	return nil
}

// serverURL returns the --url flag or a local URL for server.addr.
func serverURL(cmd *cobra.Command) (string, error) {
	if u, _ := cmd.Flags().GetString("url"); u != "" {
		return strings.TrimRight(u, "/"), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	addr := cfg.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr, nil
}

// callServer performs a request against the running server and decodes the
// JSON response into dst.
func callServer(cmd *cobra.Command, method, url string, dst any) error {
	req, err := http.NewRequestWithContext(cmd.Context(), method, url, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return common.NewUserError("is cie serve running?", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr server.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		return fmt.Errorf("server returned %s: %s (%s)", resp.Status, apiErr.Error, apiErr.Code)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
