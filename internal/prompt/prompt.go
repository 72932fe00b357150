// Package prompt builds smart label classification prompts and parses the
// model responses shared by every LLM adapter.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/mikey/llm-smart-labels/internal/utils"
)

// ErrMalformedResponse is returned when a model reply holds no usable JSON
var ErrMalformedResponse = errors.New("malformed classification response")

// SystemPrompt is sent as the system role where the provider supports one
const SystemPrompt = "You are an email labeling system. Respond only with JSON."

const instructions = `You assign user-defined labels to email threads.
Each label has an id and a description of the mail it should be applied to.
A thread may receive any number of labels, including none.
Only use label ids and thread ids that appear below.

Labels:
%s
Threads:
%s
Respond with a JSON object of the form
{"classifications":[{"thread_id":"<thread id>","label_ids":["<label id>"]}]}
and include only threads that receive at least one label.
Respond only with the JSON object and nothing else.`

// Builder renders classification prompts
type Builder struct {
	textProcessor  *utils.TextProcessor
	maxSnippetSize int
}

// NewBuilder creates a new prompt builder
func NewBuilder(textProcessor *utils.TextProcessor, maxSnippetSize int) *Builder {
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(nil)
	}
	return &Builder{
		textProcessor:  textProcessor,
		maxSnippetSize: maxSnippetSize,
	}
}

// Build renders the user prompt for req
func (b *Builder) Build(req *core.ClassificationRequest) string {
	var labels strings.Builder
	for _, l := range req.Labels {
		fmt.Fprintf(&labels, "- id: %s\n  description: %s\n",
			l.LabelID, b.textProcessor.ProcessText(l.Description, 0))
	}

	var threads strings.Builder
	for _, c := range req.Candidates {
		fmt.Fprintf(&threads, "- thread_id: %s\n  from: %s\n  subject: %s\n  snippet: %s\n",
			c.ThreadID,
			b.textProcessor.ProcessText(c.SenderAddress, 320),
			b.textProcessor.ProcessText(c.Subject, 512),
			b.textProcessor.ProcessText(c.Snippet, b.maxSnippetSize))
	}

	return fmt.Sprintf(instructions, labels.String(), threads.String())
}

type classificationResponse struct {
	Classifications []struct {
		ThreadID string   `json:"thread_id"`
		LabelIDs []string `json:"label_ids"`
	} `json:"classifications"`
}

// ParseResponse decodes a model reply into thread id → label ids. Replies
// wrapping the JSON object in prose or code fences are accepted.
func ParseResponse(text string) (map[string][]string, error) {
	var resp classificationResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &resp); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}

	out := make(map[string][]string, len(resp.Classifications))
	for _, c := range resp.Classifications {
		if c.ThreadID == "" {
			continue
		}
		out[c.ThreadID] = append(out[c.ThreadID], c.LabelIDs...)
	}
	return out, nil
}
