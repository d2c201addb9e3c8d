package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/homepage-tone/internal/ingest"
	"github.com/JakeFAU/homepage-tone/internal/pipeline"
	"github.com/JakeFAU/homepage-tone/internal/record"
)

type fetchFlags struct {
	out   string
	sleep float64
}

// newFetchCmd creates the 'fetch' subcommand, stage one of the harvest.
func newFetchCmd() *cobra.Command {
	var flags fetchFlags
	cmd := &cobra.Command{
		Use:   "fetch [url_list]",
		Short: "Render homepages and append their text to a JSONL log",
		Long: `Reads one URL per line from url_list (or stdin when omitted), skipping blank
lines, '#' comments and duplicates. Each URL is rendered in a fresh headless
browser session and one JSON record with its title, text and word count is
appended to --out. Pages that fail to render are logged and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetchCommand(cmd, args, flags)
		},
	}
	cmd.Flags().StringVar(&flags.out, "out", "", "output JSONL path (default from fetch.out)")
	cmd.Flags().Float64Var(&flags.sleep, "sleep", 0, "seconds to pause after each URL (default from fetch.sleep)")
	return cmd
}

func runFetchCommand(cmd *cobra.Command, args []string, flags fetchFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig().Fetch
	if cmd.Flags().Changed("out") {
		cfg.Out = flags.out
	}
	if cmd.Flags().Changed("sleep") {
		if flags.sleep < 0 {
			return fmt.Errorf("--sleep must be >= 0, got %v", flags.sleep)
		}
		cfg.Sleep = time.Duration(flags.sleep * float64(time.Second))
	}

	var urls []string
	if len(args) == 1 {
		urls, err = ingest.ReadFile(args[0])
	} else {
		urls, err = ingest.Read(cmd.InOrStdin())
	}
	if errors.Is(err, ingest.ErrNoInput) {
		return &ExitError{Code: 2, Err: err}
	}
	if err != nil {
		return err
	}

	renderer, err := appInstance.NewRenderer()
	if err != nil {
		return err
	}
	out, err := record.Create(cfg.Out, record.Append)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			appInstance.GetLogger().Warn("Failed to close output", zap.String("path", cfg.Out), zap.Error(cerr))
		}
	}()

	fetcher, err := pipeline.NewFetcher(renderer, out, pipeline.FetchConfig{Sleep: cfg.Sleep},
		appInstance.PipelineDeps(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	sum, err := fetcher.Run(cmd.Context(), urls)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run fetch: %w", err)
	}
	if err != nil {
		appInstance.GetLogger().Info("Fetch interrupted", zap.Int("ok", sum.OK))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Done. %s. Output -> %s\n", sum, out.Path())
	return nil
}
