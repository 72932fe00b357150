package core

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Matcher is the matching surface used by the appliers
type Matcher interface {
	MatchSmartLabels(ctx context.Context, accountID string, messages []*NormalizedMessage) ([]SmartLabelMatch, error)
}

// RealtimeApplicator labels freshly ingested mail. It never fails from the
// caller's point of view; problems are logged.
type RealtimeApplicator struct {
	matcher     Matcher
	applier     LabelApplier
	logger      *zap.Logger
	concurrency int
}

// NewRealtimeApplicator creates a new realtime applicator
func NewRealtimeApplicator(matcher Matcher, applier LabelApplier, logger *zap.Logger, concurrency int) *RealtimeApplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeApplicator{
		matcher:     matcher,
		applier:     applier,
		logger:      logger,
		concurrency: concurrency,
	}
}

// ApplySmartLabelsToMessages matches messages and applies every resulting label.
// The returned outcomes are informational; callers may ignore them.
func (a *RealtimeApplicator) ApplySmartLabelsToMessages(ctx context.Context, accountID string, messages []*NormalizedMessage) []ApplyOutcome {
	if len(messages) == 0 {
		return nil
	}

	matches, err := a.safeMatch(ctx, accountID, messages)
	if err != nil {
		a.logger.Error("Failed to match smart labels",
			zap.String("account_id", accountID),
			zap.Int("messages", len(messages)),
			zap.Error(err))
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	outcomes := applyAll(ctx, a.applier, accountID, matches, a.concurrency, a.logger)

	a.logger.Info("Applied smart labels",
		zap.String("account_id", accountID),
		zap.Int("threads", len(matches)),
		zap.Int("applied", countSucceeded(outcomes)),
		zap.Int("failed", len(outcomes)-countSucceeded(outcomes)))

	return outcomes
}

func (a *RealtimeApplicator) safeMatch(ctx context.Context, accountID string, messages []*NormalizedMessage) (matches []SmartLabelMatch, err error) {
	defer func() {
		if r := recover(); r != nil {
			matches = nil
			err = fmt.Errorf("matcher panicked: %v", r)
		}
	}()
	return a.matcher.MatchSmartLabels(ctx, accountID, messages)
}

// applyAll launches one application per (thread, label) pair and waits for
// all of them. A failure never cancels its siblings.
func applyAll(
	ctx context.Context,
	applier LabelApplier,
	accountID string,
	matches []SmartLabelMatch,
	concurrency int,
	logger *zap.Logger,
) []ApplyOutcome {
	p := pool.NewWithResults[ApplyOutcome]()
	if concurrency > 0 {
		p = p.WithMaxGoroutines(concurrency)
	}

	for _, match := range matches {
		for _, labelID := range match.LabelIDs {
			threadID, labelID := match.ThreadID, labelID
			p.Go(func() ApplyOutcome {
				err := applyOne(ctx, applier, accountID, threadID, labelID)
				if err != nil {
					logger.Error("Failed to apply smart label",
						zap.String("account_id", accountID),
						zap.String("thread_id", threadID),
						zap.String("label_id", labelID),
						zap.Error(err))
				}
				return ApplyOutcome{ThreadID: threadID, LabelID: labelID, Err: err}
			})
		}
	}

	return p.Wait()
}

func applyOne(ctx context.Context, applier LabelApplier, accountID, threadID, labelID string) (err error) {
	if applier == nil {
		return fmt.Errorf("no label applier configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("label applier panicked: %v", r)
		}
	}()
	return applier.AddLabelToThread(ctx, accountID, threadID, labelID)
}

func countSucceeded(outcomes []ApplyOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

func countLabels(matches []SmartLabelMatch) int {
	n := 0
	for _, m := range matches {
		n += len(m.LabelIDs)
	}
	return n
}
