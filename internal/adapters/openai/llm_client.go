package openai

import (
	"context"
	"fmt"

	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/mikey/llm-smart-labels/internal/prompt"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// chatCompleter is the part of *openai.Client used here
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Classifier implements core.Classifier using OpenAI chat completions
type Classifier struct {
	client      chatCompleter
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	prompts     *prompt.Builder
	logger      *zap.Logger
}

// NewClassifier creates a new OpenAI classifier
func NewClassifier(
	client chatCompleter,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	prompts *prompt.Builder,
	logger *zap.Logger,
) *Classifier {
	return &Classifier{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		prompts:     prompts,
		logger:      logger,
	}
}

// Classify asks the model which labels apply to each candidate thread
func (c *Classifier) Classify(ctx context.Context, req *core.ClassificationRequest) (map[string][]string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: c.prompts.Build(req),
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	c.logger.Debug("OpenAI classification completed",
		zap.String("account_id", req.AccountID),
		zap.String("response_id", resp.ID),
		zap.Int("candidates", len(req.Candidates)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return prompt.ParseResponse(resp.Choices[0].Message.Content)
}
