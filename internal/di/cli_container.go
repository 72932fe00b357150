package di

import (
	"context"
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Commands
	Backfill  bool
	MatchFile string

	// Command arguments
	AccountID string
	BatchSize int

	// Provider overrides
	Provider string
	StoreDSN string

	// Output flags
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags(args []string) (*CLIFlags, error) {
	flags := &CLIFlags{}
	fs := flag.NewFlagSet("smartlabel-cli", flag.ContinueOnError)

	fs.BoolVar(&flags.Backfill, "backfill", false, "Re-apply smart label rules to the account's inbox")
	fs.StringVar(&flags.MatchFile, "match", "", "Match messages from a JSON array or raw .eml file without applying labels")

	fs.StringVar(&flags.AccountID, "account", "", "Account id")
	fs.IntVar(&flags.BatchSize, "batch-size", 0, "Backfill batch size (0 uses smartlabels.backfill_batch_size)")

	fs.StringVar(&flags.Provider, "provider", "", "LLM provider override (bedrock, gemini, openai)")
	fs.StringVar(&flags.StoreDSN, "store-dsn", "", "Store DSN override")

	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(ctx context.Context, flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		applyFlagOverrides(cfg, flags)
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideEngine(ctx, container); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlagOverrides copies explicitly set flags over file and env configuration
func applyFlagOverrides(cfg *config.Config, flags *CLIFlags) {
	v := cfg.GetViper()
	if flags.Provider != "" {
		v.Set("llm.provider", flags.Provider)
	}
	if flags.StoreDSN != "" {
		v.Set("store.dsn", flags.StoreDSN)
	}
	if flags.BatchSize > 0 {
		v.Set("smartlabels.backfill_batch_size", flags.BatchSize)
	}
}
