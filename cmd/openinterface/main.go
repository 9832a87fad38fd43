package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"openinterface/internal/config"
	appcontext "openinterface/internal/context"
	"openinterface/internal/llm"
	"openinterface/internal/logging"

	"github.com/spf13/cobra"
)

const (
	envModel   = "OPENINTERFACE_MODEL"
	envContext = "OPENINTERFACE_CONTEXT"
)

var (
	version     = "0.1.0"
	modelFlag   string
	contextFlag string
	timeoutFlag time.Duration
	verbose     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "openinterface",
		Short: "Turn natural-language objectives into desktop automation steps",
		Long: `openinterface asks a language model, local (Ollama, any OpenAI-compatible
server) or hosted (Gemini), for the steps that accomplish an objective on
this computer, and prints them as structured instructions.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "model for this invocation (default is the saved model, then gemma2)")
	rootCmd.PersistentFlags().StringVar(&contextFlag, "context", "", "path to the static context asset (default is resources/context.txt)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 0, "per-request HTTP timeout (0 uses the default, negative disables it)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr at debug level")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newPullCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("openinterface version %s\n", version)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// setupLogging sends logs to the settings directory, or to stderr with
// --verbose.
func setupLogging(cmd *cobra.Command, args []string) error {
	if verbose {
		logging.Configure(logging.LevelDebug, os.Stderr)
		return nil
	}

	level := logging.LevelWarn
	if store, err := config.DefaultStore(); err == nil {
		if saved := store.Load().String(config.KeyLogLevel); saved != "" {
			level = logging.ParseLevel(saved)
		}
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return nil
	}
	if err := logging.EnableFileLogging(dir, level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	}
	return nil
}

// newCoordinator builds a coordinator honouring --model, --context and their
// environment overrides.
func newCoordinator(ctx context.Context) (*llm.Coordinator, *config.Store, error) {
	store, err := config.DefaultStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to locate settings: %w", err)
	}

	model := modelFlag
	if model == "" {
		model = os.Getenv(envModel)
	}
	contextPath := contextFlag
	if contextPath == "" {
		contextPath = os.Getenv(envContext)
	}

	progress := &pullReporter{w: os.Stderr}
	coord, err := llm.New(ctx, llm.Options{
		Store:        store,
		Builder:      appcontext.NewBuilder(contextPath),
		Model:        model,
		HTTPTimeout:  timeoutFlag,
		PullProgress: progress.report,
	})
	if err != nil {
		return nil, nil, err
	}
	return coord, store, nil
}
