package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikey/llm-smart-labels/internal/core"
	"go.uber.org/zap/zaptest"
)

type scriptedClassifier struct {
	response map[string][]string
	err      error
	requests []*core.ClassificationRequest
}

func (s *scriptedClassifier) Classify(_ context.Context, req *core.ClassificationRequest) (map[string][]string, error) {
	s.requests = append(s.requests, req)
	return s.response, s.err
}

func request(labelDescription string, threads ...string) *core.ClassificationRequest {
	req := &core.ClassificationRequest{
		AccountID: "acc",
		Labels:    []core.LabelDefinition{{LabelID: "L1", Description: labelDescription}},
	}
	for _, id := range threads {
		req.Candidates = append(req.Candidates, core.ClassificationCandidate{ThreadID: id, Subject: "subject " + id})
	}
	return req
}

func TestCachingClassifierServesHits(t *testing.T) {
	inner := &scriptedClassifier{response: map[string][]string{"t1": {"L1"}}}
	repo := NewMemoryCache(zaptest.NewLogger(t), 0)
	c := NewCachingClassifier(inner, repo, time.Hour, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := c.Classify(ctx, request("work", "t1", "t2"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(first["t1"]) != 1 || len(first["t2"]) != 0 {
		t.Fatalf("Classify() = %v", first)
	}

	second, err := c.Classify(ctx, request("work", "t1", "t2", "t3"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(inner.requests) != 2 {
		t.Fatalf("inner called %d times, want 2", len(inner.requests))
	}
	if got := inner.requests[1].Candidates; len(got) != 1 || got[0].ThreadID != "t3" {
		t.Fatalf("second call should only carry the uncached thread, got %+v", got)
	}
	if len(second["t1"]) != 1 || second["t1"][0] != "L1" {
		t.Fatalf("cached answer for t1 lost: %v", second)
	}
}

func TestCachingClassifierInvalidatesOnRuleEdit(t *testing.T) {
	inner := &scriptedClassifier{response: map[string][]string{}}
	c := NewCachingClassifier(inner, NewMemoryCache(zaptest.NewLogger(t), 0), time.Hour, zaptest.NewLogger(t))
	ctx := context.Background()

	_, _ = c.Classify(ctx, request("work", "t1"))
	_, _ = c.Classify(ctx, request("work mail from my team", "t1"))
	if len(inner.requests) != 2 {
		t.Fatalf("edited description should bypass the cache, inner calls = %d", len(inner.requests))
	}
}

func TestCachingClassifierDoesNotStoreFailures(t *testing.T) {
	inner := &scriptedClassifier{err: errors.New("timeout")}
	repo := NewMemoryCache(zaptest.NewLogger(t), 0)
	c := NewCachingClassifier(inner, repo, time.Hour, zaptest.NewLogger(t))

	if _, err := c.Classify(context.Background(), request("work", "t1")); err == nil {
		t.Fatal("expected inner error")
	}
	if repo.Len() != 0 {
		t.Fatalf("failed classification stored %d entries", repo.Len())
	}
}

func TestCachingClassifierPassesUnknownThreads(t *testing.T) {
	inner := &scriptedClassifier{response: map[string][]string{"ghost": {"L1"}}}
	c := NewCachingClassifier(inner, NewMemoryCache(zaptest.NewLogger(t), 0), time.Hour, zaptest.NewLogger(t))

	got, err := c.Classify(context.Background(), request("work", "t1"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if _, ok := got["ghost"]; !ok {
		t.Fatal("unknown thread ids should reach the matcher for filtering")
	}
}

func TestLabelFingerprintIgnoresOrder(t *testing.T) {
	a := []core.LabelDefinition{{LabelID: "L1", Description: "a"}, {LabelID: "L2", Description: "b"}}
	b := []core.LabelDefinition{{LabelID: "L2", Description: "b"}, {LabelID: "L1", Description: "a"}}
	if labelFingerprint(a) != labelFingerprint(b) {
		t.Fatal("fingerprint should not depend on label order")
	}
}
