package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/mikey/llm-smart-labels/internal/prompt"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Classifier implements core.Classifier using Google Gemini
type Classifier struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	prompts   *prompt.Builder
	logger    *zap.Logger
}

// NewClassifier creates a new Gemini classifier
func NewClassifier(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	prompts *prompt.Builder,
	logger *zap.Logger,
) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompt.SystemPrompt)},
	}

	return &Classifier{
		client:    client,
		model:     model,
		modelName: modelName,
		prompts:   prompts,
		logger:    logger,
	}, nil
}

// Close closes the Gemini client
func (c *Classifier) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Classify asks the model which labels apply to each candidate thread
func (c *Classifier) Classify(ctx context.Context, req *core.ClassificationRequest) (map[string][]string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(c.prompts.Build(req)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	c.logger.Debug("Gemini classification completed",
		zap.String("account_id", req.AccountID),
		zap.String("model", c.modelName),
		zap.Int("candidates", len(req.Candidates)))

	return prompt.ParseResponse(text)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
