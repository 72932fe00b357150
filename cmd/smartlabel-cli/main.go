package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikey/llm-smart-labels/internal/adapters/ingest"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/mikey/llm-smart-labels/internal/di"
	"github.com/mikey/llm-smart-labels/internal/factory"
	"github.com/mikey/llm-smart-labels/internal/utils"
	"go.uber.org/zap"
)

func main() {
	flags, err := di.ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if err := validate(flags); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.BuildCLIContainer(ctx, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	var runErr error
	if flags.Backfill {
		runErr = container.Invoke(func(p *core.BackfillProcessor, closers *factory.Closers, logger *zap.Logger) error {
			defer closers.Close()
			return backfill(ctx, os.Stdout, p, logger, flags)
		})
	} else {
		runErr = container.Invoke(func(m *core.SmartLabelMatcher, tp *utils.TextProcessor, closers *factory.Closers) error {
			defer closers.Close()
			return match(ctx, os.Stdout, m, ingest.NewNormalizer(tp), flags)
		})
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func validate(flags *di.CLIFlags) error {
	switch {
	case flags.Backfill == (flags.MatchFile != ""):
		return fmt.Errorf("exactly one of -backfill or -match is required")
	case flags.AccountID == "":
		return fmt.Errorf("-account is required")
	case flags.BatchSize < 0:
		return fmt.Errorf("-batch-size must not be negative")
	}
	return nil
}

func backfill(ctx context.Context, out io.Writer, p *core.BackfillProcessor, logger *zap.Logger, flags *di.CLIFlags) error {
	start := time.Now()
	total, err := p.BackfillSmartLabels(ctx, flags.AccountID, flags.BatchSize)
	if err != nil {
		logger.Error("Backfill failed", zap.String("account_id", flags.AccountID), zap.Error(err))
		return err
	}

	fmt.Fprintf(out, "\n=== Backfill ===\n")
	fmt.Fprintf(out, "Account: %s\n", flags.AccountID)
	fmt.Fprintf(out, "Labels matched: %d\n", total)
	fmt.Fprintf(out, "Processing time: %v\n", time.Since(start))
	return nil
}

func match(ctx context.Context, out io.Writer, m *core.SmartLabelMatcher, n *ingest.Normalizer, flags *di.CLIFlags) error {
	messages, err := n.ReadMessagesFile(flags.MatchFile)
	if err != nil {
		return err
	}

	matches, err := m.MatchSmartLabels(ctx, flags.AccountID, messages)
	if err != nil {
		return err
	}
	if matches == nil {
		matches = []core.SmartLabelMatch{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(matches)
}
