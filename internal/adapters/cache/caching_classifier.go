package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/mikey/llm-smart-labels/internal/core"
	"go.uber.org/zap"
)

const keyPrefix = "smartlabels:v1:"

// CachingClassifier remembers classifier answers per thread. Only threads without
// a live entry are sent to the wrapped classifier, and only successful answers
// are stored, empty ones included.
type CachingClassifier struct {
	next   core.Classifier
	repo   core.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewCachingClassifier wraps next with repo. A non-positive ttl stores entries without expiry.
func NewCachingClassifier(next core.Classifier, repo core.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachingClassifier {
	return &CachingClassifier{
		next:   next,
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Classify serves cached threads locally and classifies the rest
func (c *CachingClassifier) Classify(ctx context.Context, req *core.ClassificationRequest) (map[string][]string, error) {
	fingerprint := labelFingerprint(req.Labels)
	result := make(map[string][]string)

	var misses []core.ClassificationCandidate
	keys := make(map[string]string, len(req.Candidates))
	for _, candidate := range req.Candidates {
		key := cacheKey(req.AccountID, fingerprint, candidate)
		keys[candidate.ThreadID] = key

		entry, err := c.repo.Get(ctx, key)
		switch {
		case err == nil:
			if len(entry.LabelIDs) > 0 {
				result[candidate.ThreadID] = entry.LabelIDs
			}
		case errors.Is(err, ErrNotFound):
			misses = append(misses, candidate)
		default:
			c.logger.Warn("Classification cache read failed",
				zap.String("account_id", req.AccountID),
				zap.String("thread_id", candidate.ThreadID),
				zap.Error(err))
			misses = append(misses, candidate)
		}
	}

	c.logger.Debug("Classification cache lookup",
		zap.String("account_id", req.AccountID),
		zap.Int("hits", len(req.Candidates)-len(misses)),
		zap.Int("misses", len(misses)))

	if len(misses) == 0 {
		return result, nil
	}

	fresh, err := c.next.Classify(ctx, &core.ClassificationRequest{
		AccountID:  req.AccountID,
		Candidates: misses,
		Labels:     req.Labels,
	})
	if err != nil {
		return nil, err
	}

	var expiresAt int64
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl).Unix()
	}
	for _, candidate := range misses {
		labels := fresh[candidate.ThreadID]
		if len(labels) > 0 {
			result[candidate.ThreadID] = labels
		}
		entry := &core.CacheEntry{
			Key:       keys[candidate.ThreadID],
			LabelIDs:  labels,
			ExpiresAt: expiresAt,
		}
		if err := c.repo.Set(ctx, entry); err != nil {
			c.logger.Warn("Classification cache write failed",
				zap.String("account_id", req.AccountID),
				zap.String("thread_id", candidate.ThreadID),
				zap.Error(err))
		}
	}

	// ids the model invented for threads outside the request are kept so the
	// matcher can count and drop them
	for threadID, labels := range fresh {
		if _, ok := keys[threadID]; !ok {
			result[threadID] = labels
		}
	}

	return result, nil
}

// labelFingerprint hashes the label set independent of order, so editing any
// rule description invalidates earlier answers
func labelFingerprint(labels []core.LabelDefinition) string {
	lines := make([]string, 0, len(labels))
	for _, l := range labels {
		lines = append(lines, l.LabelID+"\x00"+l.Description)
	}
	sort.Strings(lines)

	sum := sha256.Sum256([]byte(strings.Join(lines, "\x01")))
	return hex.EncodeToString(sum[:8])
}

func cacheKey(accountID, fingerprint string, c core.ClassificationCandidate) string {
	content := sha256.Sum256([]byte(c.SenderAddress + "\x00" + c.Subject + "\x00" + c.Snippet))
	return keyPrefix + accountID + ":" + c.ThreadID + ":" + fingerprint + ":" + hex.EncodeToString(content[:8])
}
