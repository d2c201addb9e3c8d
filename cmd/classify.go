package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/homepage-tone/internal/pipeline"
	"github.com/JakeFAU/homepage-tone/internal/record"
)

type classifyFlags struct {
	in              string
	out             string
	maxChars        int
	continueOnError bool
}

// newClassifyCmd creates the 'classify' subcommand, stage two of the harvest.
func newClassifyCmd() *cobra.Command {
	var flags classifyFlags
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Label each fetched page as partisan or neutral",
		Long: `Reads the JSONL log written by fetch, sanitizes each page's text and asks an
OpenAI-compatible chat/completions endpoint for a verdict. Every record is
written to --out with a sentiment_llm object attached. The output file is
replaced on each run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClassifyCommand(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.in, "in", "", "input JSONL path (default from classifier.in)")
	cmd.Flags().StringVar(&flags.out, "out", "", "output JSONL path (default from classifier.out)")
	cmd.Flags().IntVar(&flags.maxChars, "max-chars", 0, "maximum sanitized characters sent per page (default from classifier.max_chars)")
	cmd.Flags().BoolVar(&flags.continueOnError, "continue-on-error", false,
		"record an unknown verdict and keep going when a page cannot be classified")
	return cmd
}

func runClassifyCommand(cmd *cobra.Command, flags classifyFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig().Classifier
	if cmd.Flags().Changed("in") {
		cfg.In = flags.in
	}
	if cmd.Flags().Changed("out") {
		cfg.Out = flags.out
	}
	if cmd.Flags().Changed("max-chars") {
		if flags.maxChars <= 0 {
			return fmt.Errorf("--max-chars must be > 0, got %d", flags.maxChars)
		}
		cfg.MaxChars = flags.maxChars
	}
	if cmd.Flags().Changed("continue-on-error") {
		cfg.ContinueOnError = flags.continueOnError
	}

	model, err := appInstance.NewVerdicter()
	if err != nil {
		return err
	}

	// #nosec G304 -- the input path is operator supplied.
	in, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close() //nolint:errcheck // read-only handle

	out, err := record.Create(cfg.Out, record.Truncate)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			appInstance.GetLogger().Warn("Failed to close output", zap.String("path", cfg.Out), zap.Error(cerr))
		}
	}()

	classifier, err := pipeline.NewClassifier(model, pipeline.ClassifyConfig{
		MaxChars:        cfg.MaxChars,
		ContinueOnError: cfg.ContinueOnError,
	}, appInstance.PipelineDeps(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	sum, err := classifier.Run(cmd.Context(), record.NewReader(in), out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run classify: %w", err)
	}
	if err != nil {
		appInstance.GetLogger().Info("Classify interrupted", zap.Int("ok", sum.OK))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Done. %s. Output -> %s\n", sum, out.Path())
	return nil
}
