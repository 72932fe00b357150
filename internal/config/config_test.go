package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	llm, err := cfg.GetLLM()
	if err != nil {
		t.Fatalf("GetLLM() error = %v", err)
	}
	if llm.Provider != "openai" || llm.Timeout != 30*time.Second {
		t.Fatalf("unexpected llm config %+v", llm)
	}

	sl := cfg.GetSmartLabels()
	if sl.BackfillBatchSize != 50 || sl.ApplyConcurrency != 8 || len(sl.AIExcludedDomains) != 0 {
		t.Fatalf("unexpected engine config %+v", sl)
	}

	cache, err := cfg.GetCache()
	if err != nil {
		t.Fatalf("GetCache() error = %v", err)
	}
	if cache.Type != "memory" || cache.TTL != 24*time.Hour {
		t.Fatalf("unexpected cache config %+v", cache)
	}

	if _, err := cfg.GetBreaker(); err != nil {
		t.Fatalf("GetBreaker() error = %v", err)
	}
	if _, err := cfg.GetIngest(); err != nil {
		t.Fatalf("GetIngest() error = %v", err)
	}
}

func TestInvalidDuration(t *testing.T) {
	v := NewEmptyViper()
	v.Set("llm.timeout", "soon")
	if _, err := NewFromViper(v).GetLLM(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
