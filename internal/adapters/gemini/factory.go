package gemini

import (
	"context"

	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/prompt"
	"go.uber.org/zap"
)

// Factory creates Gemini classifiers
type Factory struct {
	cfg     *config.Config
	logger  *zap.Logger
	prompts *prompt.Builder
}

// NewFactory creates a new factory for Gemini classifiers
func NewFactory(cfg *config.Config, logger *zap.Logger, prompts *prompt.Builder) *Factory {
	return &Factory{
		cfg:     cfg,
		logger:  logger,
		prompts: prompts,
	}
}

// CreateClassifier creates a new Gemini classifier. The caller owns Close.
func (f *Factory) CreateClassifier(ctx context.Context) (*Classifier, error) {
	geminiCfg := f.cfg.GetGemini()
	return NewClassifier(
		ctx,
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		f.prompts,
		f.logger,
	)
}
