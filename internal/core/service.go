package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoRuleStore is returned when a matcher is built without a rule store
	ErrNoRuleStore = errors.New("rule store is required")
	// ErrInvalidBatchSize is returned for a non-positive backfill batch size
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)

// SmartLabelMatcher decides which smart labels apply to a set of messages,
// using rule criteria first and the classifier for whatever remains.
type SmartLabelMatcher struct {
	rules           RuleStore
	classifier      Classifier
	logger          *zap.Logger
	classifyTimeout time.Duration
	exclusions      SenderFilter
}

// NewSmartLabelMatcher creates a new matcher. classifier may be nil, in which
// case only criteria matching is performed.
func NewSmartLabelMatcher(
	rules RuleStore,
	classifier Classifier,
	logger *zap.Logger,
	classifyTimeout time.Duration,
	exclusions SenderFilter,
) (*SmartLabelMatcher, error) {
	if rules == nil {
		return nil, ErrNoRuleStore
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SmartLabelMatcher{
		rules:           rules,
		classifier:      classifier,
		logger:          logger,
		classifyTimeout: classifyTimeout,
		exclusions:      exclusions,
	}, nil
}

// threadIndex keeps the first message seen for each thread, in arrival order.
// Later messages of an already indexed thread are ignored.
type threadIndex struct {
	order []string
	reps  map[string]*NormalizedMessage
}

func indexThreads(messages []*NormalizedMessage) *threadIndex {
	idx := &threadIndex{reps: make(map[string]*NormalizedMessage, len(messages))}
	for _, msg := range messages {
		if msg == nil || msg.ThreadID == "" {
			continue
		}
		if _, ok := idx.reps[msg.ThreadID]; ok {
			continue
		}
		idx.reps[msg.ThreadID] = msg
		idx.order = append(idx.order, msg.ThreadID)
	}
	return idx
}

// pairKey identifies one (thread, label) decision
type pairKey struct {
	threadID string
	labelID  string
}

// MatchSmartLabels returns the labels to apply per thread. Only a rule store
// failure is returned as an error; classification failures fall back to the
// criteria results.
func (s *SmartLabelMatcher) MatchSmartLabels(ctx context.Context, accountID string, messages []*NormalizedMessage) ([]SmartLabelMatch, error) {
	rules, err := s.rules.GetEnabledRules(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch smart label rules: %w", err)
	}
	rules = enabledOnly(rules)
	if len(rules) == 0 {
		return []SmartLabelMatch{}, nil
	}

	threads := indexThreads(messages)
	if len(threads.order) == 0 {
		return []SmartLabelMatch{}, nil
	}

	matched := make(map[string]*labelSet, len(threads.order))
	satisfied := make(map[pairKey]struct{})

	// Criteria pass
	for _, rule := range rules {
		if rule.Criteria.IsEmpty() {
			continue
		}
		for _, threadID := range threads.order {
			if !MatchesCriteria(threads.reps[threadID], rule.Criteria) {
				continue
			}
			set, ok := matched[threadID]
			if !ok {
				set = &labelSet{}
				matched[threadID] = set
			}
			set.put(rule.LabelID)
			satisfied[pairKey{threadID, rule.LabelID}] = struct{}{}
		}
	}

	// Classification pass over threads with at least one unsatisfied rule
	candidates := s.selectCandidates(threads, rules, satisfied)
	if len(candidates) > 0 && s.classifier != nil {
		s.mergeClassification(ctx, accountID, candidates, rules, satisfied, matched)
	}

	results := make([]SmartLabelMatch, 0, len(matched))
	for _, threadID := range threads.order {
		set, ok := matched[threadID]
		if !ok || set.len() == 0 {
			continue
		}
		results = append(results, SmartLabelMatch{
			ThreadID: threadID,
			LabelIDs: append([]string(nil), set.ids...),
		})
	}

	s.logger.Debug("Matched smart labels",
		zap.String("account_id", accountID),
		zap.Int("threads", len(threads.order)),
		zap.Int("rules", len(rules)),
		zap.Int("candidates", len(candidates)),
		zap.Int("matched_threads", len(results)))

	return results, nil
}

func (s *SmartLabelMatcher) selectCandidates(threads *threadIndex, rules []SmartLabelRule, satisfied map[pairKey]struct{}) []ClassificationCandidate {
	var candidates []ClassificationCandidate
	for _, threadID := range threads.order {
		msg := threads.reps[threadID]
		if s.exclusions != nil && s.exclusions.IsExcluded(msg.FromAddress) {
			continue
		}

		unmatched := false
		for _, rule := range rules {
			if _, ok := satisfied[pairKey{threadID, rule.LabelID}]; !ok {
				unmatched = true
				break
			}
		}
		if !unmatched {
			continue
		}

		candidates = append(candidates, ClassificationCandidate{
			ThreadID:      threadID,
			Subject:       msg.Subject,
			Snippet:       msg.Snippet,
			SenderAddress: msg.FromAddress,
		})
	}
	return candidates
}

func (s *SmartLabelMatcher) mergeClassification(
	ctx context.Context,
	accountID string,
	candidates []ClassificationCandidate,
	rules []SmartLabelRule,
	satisfied map[pairKey]struct{},
	matched map[string]*labelSet,
) {
	labels := labelDefinitions(rules)
	knownLabels := make(map[string]struct{}, len(labels))
	for _, def := range labels {
		knownLabels[def.LabelID] = struct{}{}
	}

	knownThreads := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		knownThreads[c.ThreadID] = struct{}{}
	}

	response, err := s.classify(ctx, &ClassificationRequest{
		AccountID:  accountID,
		Candidates: candidates,
		Labels:     labels,
	})
	if err != nil {
		s.logger.Warn("Classification failed, keeping criteria matches only",
			zap.String("account_id", accountID),
			zap.Int("candidates", len(candidates)),
			zap.Error(err))
		return
	}

	dropped := 0
	for threadID, labelIDs := range response {
		if _, ok := knownThreads[threadID]; !ok {
			dropped += len(labelIDs)
			continue
		}
		for _, labelID := range labelIDs {
			if _, ok := knownLabels[labelID]; !ok {
				dropped++
				continue
			}
			if _, ok := satisfied[pairKey{threadID, labelID}]; ok {
				continue
			}
			set, ok := matched[threadID]
			if !ok {
				set = &labelSet{}
				matched[threadID] = set
			}
			set.put(labelID)
		}
	}

	if dropped > 0 {
		s.logger.Debug("Dropped unknown ids from classification response",
			zap.String("account_id", accountID),
			zap.Int("dropped", dropped))
	}
}

// classify invokes the classifier, turning panics into ordinary failures
func (s *SmartLabelMatcher) classify(ctx context.Context, req *ClassificationRequest) (out map[string][]string, err error) {
	if s.classifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.classifyTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()

	return s.classifier.Classify(ctx, req)
}

// labelDefinitions sends each label once. Rules sharing a label contribute
// their distinct descriptions joined with "; ".
func labelDefinitions(rules []SmartLabelRule) []LabelDefinition {
	labels := make([]LabelDefinition, 0, len(rules))
	index := make(map[string]int, len(rules))
	type described struct{ labelID, desc string }
	seen := make(map[described]struct{}, len(rules))
	for _, rule := range rules {
		desc := strings.TrimSpace(rule.AIDescription)
		i, ok := index[rule.LabelID]
		if !ok {
			index[rule.LabelID] = len(labels)
			labels = append(labels, LabelDefinition{LabelID: rule.LabelID, Description: desc})
			seen[described{rule.LabelID, desc}] = struct{}{}
			continue
		}
		if desc == "" {
			continue
		}
		if _, dup := seen[described{rule.LabelID, desc}]; dup {
			continue
		}
		seen[described{rule.LabelID, desc}] = struct{}{}
		if labels[i].Description == "" {
			labels[i].Description = desc
		} else {
			labels[i].Description += "; " + desc
		}
	}
	return labels
}

func enabledOnly(rules []SmartLabelRule) []SmartLabelRule {
	out := rules[:0:0]
	for _, rule := range rules {
		if rule.IsEnabled && !isBlank(rule.LabelID) {
			out = append(out, rule)
		}
	}
	return out
}
