package ingest

import (
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/mikey/llm-smart-labels/internal/core"
)

// ReadMessagesFile loads messages for one-shot matching. The file is either a
// JSON array of messages or a single raw RFC 5322 message.
func (n *Normalizer) ReadMessagesFile(path string) ([]*core.NormalizedMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return n.ParseMessages(raw)
}

// ParseMessages decodes a JSON message array or a raw message
func (n *Normalizer) ParseMessages(raw []byte) ([]*core.NormalizedMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var messages []*core.NormalizedMessage
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return nil, fmt.Errorf("failed to decode messages: %w", err)
		}
		for i, msg := range messages {
			if msg == nil || msg.ThreadID == "" {
				return nil, fmt.Errorf("message %d has no threadId", i)
			}
			if msg.ID == "" {
				msg.ID = msg.ThreadID
			}
		}
		return messages, nil
	}

	msg, err := n.Normalize(raw, Envelope{})
	if err != nil {
		return nil, err
	}
	return []*core.NormalizedMessage{msg}, nil
}
