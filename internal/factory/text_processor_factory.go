package factory

import (
	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/prompt"
	"github.com/mikey/llm-smart-labels/internal/utils"
	"go.uber.org/zap"
)

// TextProcessorFactory creates text processors and the prompt builder built on them
type TextProcessorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new TextProcessorFactory
func NewTextProcessorFactory(cfg *config.Config, logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreatePromptBuilder creates the classification prompt builder
func (f *TextProcessorFactory) CreatePromptBuilder(tp *utils.TextProcessor) *prompt.Builder {
	return prompt.NewBuilder(tp, f.cfg.GetInt("llm.max_snippet_size"))
}
