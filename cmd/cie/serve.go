package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/compliance-intelligence/internal/learning"
	"github.com/Veraticus/compliance-intelligence/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the learning scheduler",
		Long: `Serve the classification, solution cache, feedback and learning endpoints.

The learning cycle and feedback archival run on the configured interval
until the process receives SIGINT or SIGTERM.`,
		RunE: runServe,
	}
	cmd.Flags().Bool("no-scheduler", false, "Disable the periodic learning cycle")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

	a, err := openApp(ctx, appOptions{reasoning: true})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to close resources", "error", closeErr)
		}
	}()

	handler, err := server.NewHandler(server.HandlerDependencies{
		Cache:      a.solutions,
		Reasoning:  a.client,
		Classifier: a.engine,
		Feedback:   a.collector,
		Learner:    a.cycle,
		Schema:     a.store,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}
	srv := server.New(a.cfg.Server.Addr, handler.Routes(), a.cfg.Server.ShutdownTimeout, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if !noScheduler {
		scheduler := learning.NewScheduler(a.cycle, a.collector, a.cfg.Learning.Interval, a.logger)
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}
