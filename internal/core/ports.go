package core

import (
	"context"
)

// RuleStore supplies the enabled smart label rules of an account
type RuleStore interface {
	// GetEnabledRules returns only rules with IsEnabled set
	GetEnabledRules(ctx context.Context, accountID string) ([]SmartLabelRule, error)
}

// Classifier maps candidate threads to label ids using rule descriptions.
// Responses are best effort and may reference ids that were never sent.
type Classifier interface {
	Classify(ctx context.Context, req *ClassificationRequest) (map[string][]string, error)
}

// LabelApplier adds a label to a thread. Implementations must be idempotent.
type LabelApplier interface {
	AddLabelToThread(ctx context.Context, accountID, threadID, labelID string) error
}

// ThreadModifier applies a compiled label delta to a thread
type ThreadModifier interface {
	ModifyThread(ctx context.Context, accountID, threadID string, actions CompiledActions) error
}

// ThreadSource pages through an account's inbox threads, most recent first
type ThreadSource interface {
	FetchInboxThreadBatch(ctx context.Context, accountID string, limit, offset int) ([]InboxThreadRow, error)
}

// MessageSink records freshly ingested messages
type MessageSink interface {
	SaveMessage(ctx context.Context, accountID string, msg *NormalizedMessage) error
}

// CacheRepository stores classification answers per thread
type CacheRepository interface {
	// Get retrieves an unexpired entry
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores an entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes an entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// SenderFilter decides whether a sender may be sent to the classification path
type SenderFilter interface {
	IsExcluded(sender string) bool
}
