package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"screenscape/discoveryservice/internal/app"
	"screenscape/discoveryservice/internal/domain"
	"screenscape/discoveryservice/internal/quota"
)

// quotaReader reports the shared daily quota.
type quotaReader interface {
	QuotaStatus(ctx context.Context) (domain.QuotaStatus, error)
}

// runner is the part of the discovery pipeline the CLI drives.
type runner interface {
	quotaReader
	Discover(ctx context.Context, query string, opts domain.DiscoverOptions) (domain.DiscoveryResponse, error)
}

type (
	runnerBuilder func(ctx context.Context, logger *slog.Logger) (runner, func() error, error)
	quotaBuilder  func(ctx context.Context, logger *slog.Logger) (quotaReader, func() error, error)
)

type commandContext struct {
	build      runnerBuilder
	buildQuota quotaBuilder
	verbose    *bool
}

func (c *commandContext) logger(stderr io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if c.verbose != nil && *c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// withRunner builds the full pipeline and releases it after fn.
func (c *commandContext) withRunner(cmd *cobra.Command, fn func(runner) error) error {
	r, closeFn, err := c.build(cmd.Context(), c.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(r)
}

// withQuota builds only the quota gate, so it works without model credentials.
func (c *commandContext) withQuota(cmd *cobra.Command, fn func(quotaReader) error) error {
	q, closeFn, err := c.buildQuota(cmd.Context(), c.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(q)
}

func buildRunner(ctx context.Context, logger *slog.Logger) (runner, func() error, error) {
	pipeline, err := app.BuildPipeline(ctx, app.LoadConfig(), logger)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.Service, pipeline.Close, nil
}

type gateStatus struct {
	gate *quota.Gate
}

func (g gateStatus) QuotaStatus(ctx context.Context) (domain.QuotaStatus, error) {
	return g.gate.Check(ctx)
}

func buildQuotaReader(ctx context.Context, logger *slog.Logger) (quotaReader, func() error, error) {
	gate, closeFn := app.BuildQuotaGate(ctx, app.LoadConfig(), logger)
	return gateStatus{gate: gate}, closeFn, nil
}

func newRootCommand(build runnerBuilder, buildQuota quotaBuilder) *cobra.Command {
	var verbose bool
	ctx := &commandContext{build: build, buildQuota: buildQuota, verbose: &verbose}

	rootCmd := &cobra.Command{
		Use:           "discover",
		Short:         "Find movies and shows from a plain-language description",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline activity to stderr")

	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newQuotaCommand(ctx))

	return rootCmd
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
