package bedrock

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/prompt"
	"go.uber.org/zap"
)

// Factory creates Bedrock classifiers
type Factory struct {
	cfg     *config.Config
	logger  *zap.Logger
	prompts *prompt.Builder
}

// NewFactory creates a new factory for Bedrock classifiers
func NewFactory(cfg *config.Config, logger *zap.Logger, prompts *prompt.Builder) *Factory {
	return &Factory{
		cfg:     cfg,
		logger:  logger,
		prompts: prompts,
	}
}

// CreateClassifier loads AWS credentials from the default chain and creates a classifier
func (f *Factory) CreateClassifier(ctx context.Context) (*Classifier, error) {
	bedrockCfg := f.cfg.GetBedrock()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(bedrockCfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewClassifier(
		bedrockruntime.NewFromConfig(awsCfg),
		bedrockCfg.ModelID,
		bedrockCfg.MaxTokens,
		bedrockCfg.Temperature,
		bedrockCfg.TopP,
		f.prompts,
		f.logger,
	), nil
}
