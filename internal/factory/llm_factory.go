package factory

import (
	"context"
	"fmt"

	"github.com/mikey/llm-smart-labels/internal/adapters/bedrock"
	"github.com/mikey/llm-smart-labels/internal/adapters/cache"
	"github.com/mikey/llm-smart-labels/internal/adapters/gemini"
	"github.com/mikey/llm-smart-labels/internal/adapters/openai"
	"github.com/mikey/llm-smart-labels/internal/adapters/resilience"
	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/mikey/llm-smart-labels/internal/prompt"
	"go.uber.org/zap"
)

// LLMFactory creates classifiers
type LLMFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	prompts *prompt.Builder
	closers *Closers
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, prompts *prompt.Builder, closers *Closers) *LLMFactory {
	return &LLMFactory{
		cfg:     cfg,
		logger:  logger,
		prompts: prompts,
		closers: closers,
	}
}

// CreateProviderClassifier creates the bare classifier of the configured provider
func (f *LLMFactory) CreateProviderClassifier(ctx context.Context) (core.Classifier, error) {
	llmConfig, err := f.cfg.GetLLM()
	if err != nil {
		return nil, err
	}

	switch llmConfig.Provider {
	case "bedrock":
		c, err := bedrock.NewFactory(f.cfg, f.logger, f.prompts).CreateClassifier(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "gemini":
		c, err := gemini.NewFactory(f.cfg, f.logger, f.prompts).CreateClassifier(ctx)
		if err != nil {
			return nil, err
		}
		f.closers.Add(c.Close)
		return c, nil
	case "openai":
		c, err := openai.NewFactory(f.cfg, f.logger, f.prompts).CreateClassifier()
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}

// CreateClassifier creates the provider classifier wrapped in the configured
// circuit breaker and, when repo is non-nil, the result cache
func (f *LLMFactory) CreateClassifier(ctx context.Context, repo core.CacheRepository) (core.Classifier, error) {
	classifier, err := f.CreateProviderClassifier(ctx)
	if err != nil {
		return nil, err
	}

	breakerCfg, err := f.cfg.GetBreaker()
	if err != nil {
		return nil, err
	}
	if breakerCfg.Enabled {
		classifier = resilience.NewBreakerClassifier(f.cfg.GetString("llm.provider"), classifier, breakerCfg, f.logger)
	}

	if repo != nil {
		ttl, err := f.cfg.GetDuration("cache.ttl")
		if err != nil {
			return nil, err
		}
		classifier = cache.NewCachingClassifier(classifier, repo, ttl, f.logger)
	}

	f.logger.Info("Created classifier",
		zap.String("provider", f.cfg.GetString("llm.provider")),
		zap.Bool("breaker", breakerCfg.Enabled),
		zap.Bool("cache", repo != nil))
	return classifier, nil
}
