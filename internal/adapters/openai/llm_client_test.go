package openai

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/mikey/llm-smart-labels/internal/prompt"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	resp openai.ChatCompletionResponse
	err  error
	req  openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func testRequest() *core.ClassificationRequest {
	return &core.ClassificationRequest{
		AccountID:  "acc",
		Candidates: []core.ClassificationCandidate{{ThreadID: "t1", Subject: "Q1 plan", SenderAddress: "boss@co.com"}},
		Labels:     []core.LabelDefinition{{LabelID: "L1", Description: "Messages from the boss"}},
	}
}

func TestClassify(t *testing.T) {
	completer := &fakeCompleter{resp: openai.ChatCompletionResponse{
		ID: "resp-1",
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: `{"classifications":[{"thread_id":"t1","label_ids":["L1"]}]}`},
		}},
	}}
	c := NewClassifier(completer, "gpt-test", 100, 0, 1, prompt.NewBuilder(nil, 0), zap.NewNop())

	got, err := c.Classify(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !reflect.DeepEqual(got, map[string][]string{"t1": {"L1"}}) {
		t.Fatalf("Classify() = %v", got)
	}
	if completer.req.Model != "gpt-test" || len(completer.req.Messages) != 2 {
		t.Fatalf("unexpected request %+v", completer.req)
	}
	if !strings.Contains(completer.req.Messages[1].Content, "thread_id: t1") {
		t.Fatal("user prompt should describe the candidate")
	}
}

func TestClassifyErrors(t *testing.T) {
	apiErr := errors.New("rate limited")
	for _, completer := range []*fakeCompleter{
		{err: apiErr},
		{resp: openai.ChatCompletionResponse{}},
		{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "I cannot help"}}}}},
	} {
		c := NewClassifier(completer, "gpt-test", 100, 0, 1, prompt.NewBuilder(nil, 0), zap.NewNop())
		if _, err := c.Classify(context.Background(), testRequest()); err == nil {
			t.Fatal("expected an error")
		}
	}
}
