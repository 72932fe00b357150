package prompt

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mikey/llm-smart-labels/internal/core"
)

func TestBuildIncludesIdsAndDescriptions(t *testing.T) {
	b := NewBuilder(nil, 10)
	got := b.Build(&core.ClassificationRequest{
		Candidates: []core.ClassificationCandidate{
			{ThreadID: "t1", Subject: "Q1 plan", Snippet: "a very long snippet that gets cut", SenderAddress: "boss@co.com"},
		},
		Labels: []core.LabelDefinition{{LabelID: "L1", Description: "Messages from\nthe boss"}},
	})

	for _, want := range []string{"thread_id: t1", "from: boss@co.com", "subject: Q1 plan", "id: L1", "description: Messages from the boss"} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "gets cut") {
		t.Fatal("snippet should be truncated")
	}
}

func TestParseResponse(t *testing.T) {
	want := map[string][]string{"t1": {"L1", "L2"}, "t2": {"L3"}}
	for _, text := range []string{
		`{"classifications":[{"thread_id":"t1","label_ids":["L1","L2"]},{"thread_id":"t2","label_ids":["L3"]}]}`,
		"Here you go:\n```json\n{\"classifications\":[{\"thread_id\":\"t1\",\"label_ids\":[\"L1\"]},{\"thread_id\":\"t1\",\"label_ids\":[\"L2\"]},{\"thread_id\":\"t2\",\"label_ids\":[\"L3\"]}]}\n```",
	} {
		got, err := ParseResponse(text)
		if err != nil {
			t.Fatalf("ParseResponse() error = %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("ParseResponse() = %v, want %v", got, want)
		}
	}
}

func TestParseResponseEmpty(t *testing.T) {
	got, err := ParseResponse(`{"classifications":[]}`)
	if err != nil || len(got) != 0 {
		t.Fatalf("ParseResponse() = %v, %v", got, err)
	}
}

func TestParseResponseMalformed(t *testing.T) {
	for _, text := range []string{"", "no json here", `{"classifications": [`, `{"classifications":"t1"}`} {
		if _, err := ParseResponse(text); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("ParseResponse(%q) error = %v, want ErrMalformedResponse", text, err)
		}
	}
}
