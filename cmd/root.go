// Package cmd defines and implements the CLI commands for the homepage-tone
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/homepage-tone/internal/app"
	"github.com/JakeFAU/homepage-tone/internal/config"
	"github.com/JakeFAU/homepage-tone/internal/pipeline"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// closeTimeout bounds the progress drain and metrics export after a command.
const closeTimeout = 10 * time.Second

// App defines the services commands use. Tests inject a fake through the
// factory passed to run.
type App interface {
	Close(ctx context.Context) error
	GetConfig() config.Config
	GetLogger() *zap.Logger
	PipelineDeps(stdout io.Writer) pipeline.Deps
	NewRenderer() (pipeline.Renderer, error)
	NewVerdicter() (pipeline.Verdicter, error)
}

type appFactory func(cfgPath string) (App, error)

// newApp loads the config and builds the real services.
func newApp(cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ExitError carries a process exit code other than 1.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// cli holds the state of one invocation.
type cli struct {
	factory appFactory
	cfgFile string
	app     App
}

// newRootCmd creates and configures the root command.
func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "homepage-tone",
		Short: "Harvest homepage text and classify its tone.",
		Long: `homepage-tone renders a list of homepages in a headless browser, records
their visible text as JSONL (fetch), then asks an OpenAI-compatible model
whether each page reads as partisan or neutral (classify).`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Builds the application services and stores them in the context
		// before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := c.factory(c.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			c.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	cmd.AddCommand(newFetchCmd(), newClassifyCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// run executes the CLI and returns the process exit code. Services are closed
// here rather than in a post-run hook because cobra skips those when RunE
// fails.
func run(ctx context.Context, factory appFactory, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{factory: factory}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if cerr := c.app.Close(closeCtx); cerr != nil {
			fmt.Fprintf(stderr, "shutdown: %v\n", cerr)
		}
		cancel()
	}
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Execute is the main entry point. It returns the process exit code.
func Execute(ctx context.Context) int {
	return run(ctx, newApp, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}
