package core

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func scenarioMessages() []*NormalizedMessage {
	return []*NormalizedMessage{
		{ID: "m1", ThreadID: "t1", FromAddress: "boss@co.com", Subject: "Q1 plan", Snippet: "plan"},
		{ID: "m2", ThreadID: "t2", FromAddress: "noreply@shop.com", Subject: "Sale", Snippet: "50% off"},
	}
}

func bossRule(criteria *FilterCriteria) SmartLabelRule {
	return SmartLabelRule{
		RuleID:        "r1",
		AccountID:     "acc",
		LabelID:       "L1",
		AIDescription: "Messages from the boss",
		Criteria:      criteria,
		IsEnabled:     true,
	}
}

func newTestMatcher(t *testing.T, store RuleStore, classifier Classifier) *SmartLabelMatcher {
	t.Helper()
	m, err := NewSmartLabelMatcher(store, classifier, zaptest.NewLogger(t), 0, nil)
	if err != nil {
		t.Fatalf("NewSmartLabelMatcher() error = %v", err)
	}
	return m
}

func TestNewSmartLabelMatcherRequiresStore(t *testing.T) {
	if _, err := NewSmartLabelMatcher(nil, nil, nil, 0, nil); !errors.Is(err, ErrNoRuleStore) {
		t.Fatalf("expected ErrNoRuleStore, got %v", err)
	}
}

func TestMatchNoEnabledRulesSkipsClassifier(t *testing.T) {
	disabled := bossRule(nil)
	disabled.IsEnabled = false

	for _, rules := range [][]SmartLabelRule{nil, {disabled}} {
		classifier := &fakeClassifier{response: map[string][]string{"t1": {"L1"}}}
		m := newTestMatcher(t, &fakeRuleStore{rules: rules}, classifier)

		got, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages())
		if err != nil {
			t.Fatalf("MatchSmartLabels() error = %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no matches, got %+v", got)
		}
		if len(classifier.requests) != 0 {
			t.Fatal("classifier must not be called without enabled rules")
		}
	}
}

func TestMatchRuleStoreFailurePropagates(t *testing.T) {
	storeErr := errors.New("db down")
	m := newTestMatcher(t, &fakeRuleStore{err: storeErr}, &fakeClassifier{})

	_, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages())
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestMatchCriteriaScenario(t *testing.T) {
	classifier := &fakeClassifier{response: map[string][]string{}}
	m := newTestMatcher(t, &fakeRuleStore{rules: []SmartLabelRule{bossRule(&FilterCriteria{From: "boss"})}}, classifier)

	got, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages())
	if err != nil {
		t.Fatalf("MatchSmartLabels() error = %v", err)
	}
	want := []SmartLabelMatch{{ThreadID: "t1", LabelIDs: []string{"L1"}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MatchSmartLabels() = %+v, want %+v", got, want)
	}

	// The shop thread is sent because L1 is still unmatched for it; the boss
	// thread is not since its only rule is satisfied.
	if len(classifier.requests) != 1 {
		t.Fatalf("expected one classification call, got %d", len(classifier.requests))
	}
	req := classifier.requests[0]
	if len(req.Candidates) != 1 || req.Candidates[0].ThreadID != "t2" {
		t.Fatalf("unexpected candidates %+v", req.Candidates)
	}
	if req.Candidates[0].SenderAddress != "noreply@shop.com" || req.Candidates[0].Subject != "Sale" {
		t.Fatalf("candidate fields not populated: %+v", req.Candidates[0])
	}
	if !reflect.DeepEqual(req.Labels, []LabelDefinition{{LabelID: "L1", Description: "Messages from the boss"}}) {
		t.Fatalf("unexpected label definitions %+v", req.Labels)
	}
}

func TestMatchClassificationScenario(t *testing.T) {
	for _, response := range []map[string][]string{
		{"t1": {"L1"}},
		{"t1": {"L1", "UNKNOWN_LABEL"}},
		{"t1": {"L1", "L1"}, "t999": {"L1"}},
	} {
		classifier := &fakeClassifier{response: response}
		m := newTestMatcher(t, &fakeRuleStore{rules: []SmartLabelRule{bossRule(nil)}}, classifier)

		got, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages())
		if err != nil {
			t.Fatalf("MatchSmartLabels() error = %v", err)
		}
		want := []SmartLabelMatch{{ThreadID: "t1", LabelIDs: []string{"L1"}}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("response %v: got %+v, want %+v", response, got, want)
		}
		if len(classifier.requests[0].Candidates) != 2 {
			t.Fatalf("both threads should be candidates, got %+v", classifier.requests[0].Candidates)
		}
	}
}

func TestMatchEmptyCriteriaNeverAlwaysMatches(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("timeout")}
	m := newTestMatcher(t, &fakeRuleStore{rules: []SmartLabelRule{bossRule(&FilterCriteria{})}}, classifier)

	got, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages())
	if err != nil {
		t.Fatalf("MatchSmartLabels() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("rule without criteria must not match on classifier failure, got %+v", got)
	}
}

func TestMatchClassifierFailureKeepsCriteriaMatches(t *testing.T) {
	rules := []SmartLabelRule{
		bossRule(&FilterCriteria{From: "boss"}),
		{RuleID: "r2", LabelID: "L2", AIDescription: "Shopping", IsEnabled: true},
	}

	obsCore, logs := observer.New(zapcore.WarnLevel)
	for _, classifier := range []*fakeClassifier{
		{err: errors.New("network")},
		{panicMsg: "malformed"},
	} {
		m, err := NewSmartLabelMatcher(&fakeRuleStore{rules: rules}, classifier, zap.New(obsCore), 0, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages())
		if err != nil {
			t.Fatalf("MatchSmartLabels() error = %v", err)
		}
		want := []SmartLabelMatch{{ThreadID: "t1", LabelIDs: []string{"L1"}}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	}
	if logs.FilterMessage("Classification failed, keeping criteria matches only").Len() != 2 {
		t.Fatalf("expected a warning per failure, got %d entries", logs.Len())
	}
}

func TestMatchPartiallySatisfiedThreadStillClassified(t *testing.T) {
	rules := []SmartLabelRule{
		bossRule(&FilterCriteria{From: "boss"}),
		{RuleID: "r2", LabelID: "L2", AIDescription: "Planning documents", IsEnabled: true},
	}
	classifier := &fakeClassifier{response: map[string][]string{"t1": {"L1", "L2"}}}
	m := newTestMatcher(t, &fakeRuleStore{rules: rules}, classifier)

	got, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages())
	if err != nil {
		t.Fatalf("MatchSmartLabels() error = %v", err)
	}
	if len(got) != 1 || got[0].ThreadID != "t1" {
		t.Fatalf("unexpected matches %+v", got)
	}
	labels := append([]string(nil), got[0].LabelIDs...)
	sort.Strings(labels)
	if !reflect.DeepEqual(labels, []string{"L1", "L2"}) {
		t.Fatalf("expected L1 exactly once plus L2, got %v", got[0].LabelIDs)
	}

	var ids []string
	for _, c := range classifier.requests[0].Candidates {
		ids = append(ids, c.ThreadID)
	}
	if !reflect.DeepEqual(ids, []string{"t1", "t2"}) {
		t.Fatalf("unexpected candidates %v", ids)
	}
	if len(classifier.requests[0].Labels) != 2 {
		t.Fatalf("all enabled rules must be described, got %+v", classifier.requests[0].Labels)
	}
}

func TestMatchFullySatisfiedThreadNotSent(t *testing.T) {
	rules := []SmartLabelRule{
		bossRule(&FilterCriteria{From: "boss"}),
		{RuleID: "r2", LabelID: "L2", AIDescription: "Shop", Criteria: &FilterCriteria{From: "shop"}, IsEnabled: true},
	}
	classifier := &fakeClassifier{}
	m := newTestMatcher(t, &fakeRuleStore{rules: rules}, classifier)

	msgs := append(scenarioMessages(), &NormalizedMessage{ID: "m3", ThreadID: "t3", FromAddress: "friend@mail.com"})
	if _, err := m.MatchSmartLabels(context.Background(), "acc", msgs); err != nil {
		t.Fatal(err)
	}
	// t1 has L1 but not L2, t2 has L2 but not L1, t3 has neither
	if n := len(classifier.requests[0].Candidates); n != 3 {
		t.Fatalf("expected 3 candidates, got %d", n)
	}

	both := []SmartLabelRule{
		{RuleID: "r1", LabelID: "L1", AIDescription: "a", Criteria: &FilterCriteria{Subject: "plan"}, IsEnabled: true},
		{RuleID: "r2", LabelID: "L2", AIDescription: "b", Criteria: &FilterCriteria{From: "boss"}, IsEnabled: true},
	}
	classifier = &fakeClassifier{}
	m = newTestMatcher(t, &fakeRuleStore{rules: both}, classifier)
	if _, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages()[:1]); err != nil {
		t.Fatal(err)
	}
	if len(classifier.requests) != 0 {
		t.Fatal("a thread with every rule satisfied must not be classified")
	}
}

func TestMatchFirstMessagePerThreadWins(t *testing.T) {
	classifier := &fakeClassifier{}
	m := newTestMatcher(t, &fakeRuleStore{rules: []SmartLabelRule{bossRule(&FilterCriteria{From: "boss"})}}, classifier)

	msgs := []*NormalizedMessage{
		{ID: "m1", ThreadID: "t1", FromAddress: "colleague@co.com", Subject: "Re: plan"},
		{ID: "m2", ThreadID: "t1", FromAddress: "boss@co.com", Subject: "Re: Re: plan"},
	}
	got, err := m.MatchSmartLabels(context.Background(), "acc", msgs)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("later messages of a thread must be ignored, got %+v", got)
	}
	if len(classifier.requests) != 1 || classifier.requests[0].Candidates[0].Subject != "Re: plan" {
		t.Fatalf("representative should be the first message: %+v", classifier.requests)
	}
}

func TestMatchExcludedSendersNotClassified(t *testing.T) {
	classifier := &fakeClassifier{}
	m, err := NewSmartLabelMatcher(&fakeRuleStore{rules: []SmartLabelRule{bossRule(&FilterCriteria{From: "boss"})}}, classifier, zap.NewNop(), 0, excludeAll{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ThreadID != "t1" {
		t.Fatalf("criteria matching must still apply to excluded senders, got %+v", got)
	}
	if len(classifier.requests) != 0 {
		t.Fatal("excluded senders must not reach the classifier")
	}
}

func TestMatchWithoutClassifier(t *testing.T) {
	m := newTestMatcher(t, &fakeRuleStore{rules: []SmartLabelRule{bossRule(&FilterCriteria{From: "boss"}), {RuleID: "r2", LabelID: "L2", AIDescription: "x", IsEnabled: true}}}, nil)
	got, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []SmartLabelMatch{{ThreadID: "t1", LabelIDs: []string{"L1"}}}) {
		t.Fatalf("unexpected matches %+v", got)
	}
}

type blockingClassifier struct{}

func (blockingClassifier) Classify(ctx context.Context, _ *ClassificationRequest) (map[string][]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestMatchClassifierTimeoutKeepsCriteriaMatches(t *testing.T) {
	rules := []SmartLabelRule{
		bossRule(&FilterCriteria{From: "boss"}),
		{RuleID: "r2", LabelID: "L2", AIDescription: "Shopping", IsEnabled: true},
	}
	m, err := NewSmartLabelMatcher(&fakeRuleStore{rules: rules}, blockingClassifier{}, zaptest.NewLogger(t), 20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages())
	if err != nil {
		t.Fatalf("MatchSmartLabels() error = %v", err)
	}
	want := []SmartLabelMatch{{ThreadID: "t1", LabelIDs: []string{"L1"}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMatchSharedLabelJoinsDescriptions(t *testing.T) {
	rules := []SmartLabelRule{
		{RuleID: "r1", LabelID: "L1", AIDescription: "Invoices", IsEnabled: true},
		{RuleID: "r2", LabelID: "L1", AIDescription: "Receipts", IsEnabled: true},
		{RuleID: "r3", LabelID: "L1", AIDescription: "Invoices", IsEnabled: true},
		{RuleID: "r4", LabelID: "L2", AIDescription: "Shopping", IsEnabled: true},
	}
	classifier := &fakeClassifier{response: map[string][]string{}}
	m := newTestMatcher(t, &fakeRuleStore{rules: rules}, classifier)

	if _, err := m.MatchSmartLabels(context.Background(), "acc", scenarioMessages()); err != nil {
		t.Fatalf("MatchSmartLabels() error = %v", err)
	}
	want := []LabelDefinition{
		{LabelID: "L1", Description: "Invoices; Receipts"},
		{LabelID: "L2", Description: "Shopping"},
	}
	if !reflect.DeepEqual(classifier.requests[0].Labels, want) {
		t.Fatalf("label definitions = %+v, want %+v", classifier.requests[0].Labels, want)
	}
}
