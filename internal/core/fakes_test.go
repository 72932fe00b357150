package core

import (
	"context"
	"sync"
)

type fakeRuleStore struct {
	rules []SmartLabelRule
	err   error
	calls int
}

func (f *fakeRuleStore) GetEnabledRules(_ context.Context, _ string) ([]SmartLabelRule, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rules, nil
}

type fakeClassifier struct {
	response map[string][]string
	err      error
	panicMsg string
	requests []*ClassificationRequest
}

func (f *fakeClassifier) Classify(_ context.Context, req *ClassificationRequest) (map[string][]string, error) {
	f.requests = append(f.requests, req)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type fakeApplier struct {
	mu      sync.Mutex
	applied []pairKey
	failOn  map[pairKey]error
}

func (f *fakeApplier) AddLabelToThread(_ context.Context, _, threadID, labelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey{threadID, labelID}
	if err, ok := f.failOn[key]; ok {
		return err
	}
	f.applied = append(f.applied, key)
	return nil
}

func (f *fakeApplier) has(threadID, labelID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.applied {
		if p.threadID == threadID && p.labelID == labelID {
			return true
		}
	}
	return false
}

type fakeMatcher struct {
	matches []SmartLabelMatch
	err     error
	calls   [][]*NormalizedMessage
}

func (f *fakeMatcher) MatchSmartLabels(_ context.Context, _ string, messages []*NormalizedMessage) ([]SmartLabelMatch, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type excludeAll struct{}

func (excludeAll) IsExcluded(string) bool {
	return true
}
