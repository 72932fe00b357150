package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBackfillBatchSize is used when no batch size is given
const DefaultBackfillBatchSize = 50

// BackfillProcessor re-applies smart label rules over an account's inbox.
// Batches run strictly one after another; only label application within a
// batch is concurrent.
type BackfillProcessor struct {
	source           ThreadSource
	matcher          Matcher
	applier          LabelApplier
	logger           *zap.Logger
	defaultBatchSize int
	concurrency      int
}

// NewBackfillProcessor creates a new backfill processor
func NewBackfillProcessor(
	source ThreadSource,
	matcher Matcher,
	applier LabelApplier,
	logger *zap.Logger,
	defaultBatchSize int,
	concurrency int,
) *BackfillProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultBatchSize <= 0 {
		defaultBatchSize = DefaultBackfillBatchSize
	}
	return &BackfillProcessor{
		source:           source,
		matcher:          matcher,
		applier:          applier,
		logger:           logger,
		defaultBatchSize: defaultBatchSize,
		concurrency:      concurrency,
	}
}

// BackfillSmartLabels scans the inbox from the most recent thread and returns
// the number of labels matched across all batches. A zero batchSize selects
// the default. Fetch and rule store failures abort the run.
func (b *BackfillProcessor) BackfillSmartLabels(ctx context.Context, accountID string, batchSize int) (int, error) {
	if batchSize < 0 {
		return 0, ErrInvalidBatchSize
	}
	if batchSize == 0 {
		batchSize = b.defaultBatchSize
	}

	runID := uuid.NewString()
	logger := b.logger.With(zap.String("run_id", runID), zap.String("account_id", accountID))
	logger.Info("Starting smart label backfill", zap.Int("batch_size", batchSize))

	total := 0
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("backfill canceled at offset %d: %w", offset, err)
		}

		rows, err := b.source.FetchInboxThreadBatch(ctx, accountID, batchSize, offset)
		if err != nil {
			return total, fmt.Errorf("failed to fetch inbox batch at offset %d: %w", offset, err)
		}
		if len(rows) == 0 {
			break
		}

		messages := make([]*NormalizedMessage, 0, len(rows))
		for i := range rows {
			messages = append(messages, rowToMessage(&rows[i]))
		}

		matches, err := b.matcher.MatchSmartLabels(ctx, accountID, messages)
		if err != nil {
			return total, fmt.Errorf("failed to match batch at offset %d: %w", offset, err)
		}

		outcomes := applyAll(ctx, b.applier, accountID, matches, b.concurrency, logger)
		labels := countLabels(matches)
		total += labels

		logger.Info("Processed backfill batch",
			zap.Int("offset", offset),
			zap.Int("rows", len(rows)),
			zap.Int("labels", labels),
			zap.Int("failed", len(outcomes)-countSucceeded(outcomes)))

		offset += batchSize
		if len(rows) < batchSize {
			break
		}
	}

	logger.Info("Finished smart label backfill", zap.Int("total_labels", total))
	return total, nil
}

// rowToMessage builds the matcher view of a stored thread. When no body was
// stored the snippet stands in for it.
func rowToMessage(row *InboxThreadRow) *NormalizedMessage {
	msg := &NormalizedMessage{
		ID:            row.MessageID,
		ThreadID:      row.ThreadID,
		FromAddress:   row.FromAddress,
		FromName:      row.FromName,
		ToAddresses:   row.ToAddresses,
		Subject:       row.Subject,
		Snippet:       row.Snippet,
		BodyText:      row.BodyText,
		BodyHTML:      row.BodyHTML,
		HasAttachment: row.HasAttachment,
	}
	if msg.ID == "" {
		msg.ID = row.ThreadID
	}
	if msg.BodyText == "" && msg.BodyHTML == "" {
		msg.BodyText = row.Snippet
	}
	return msg
}
