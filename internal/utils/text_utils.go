package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TextProcessor prepares message text for classification prompts
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText cuts text to at most maxSize bytes on a rune boundary.
// A non-positive maxSize disables truncation.
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "…"
}

// SanitizeUTF8 drops invalid UTF-8 bytes and control characters other than newlines and tabs
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	changed := false
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			changed = true
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			changed = true
			continue
		}
		b.WriteRune(r)
	}
	if !changed {
		return text
	}

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", b.Len()))

	return b.String()
}

// CollapseWhitespace folds runs of whitespace into single spaces
func (tp *TextProcessor) CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ProcessText sanitizes, flattens and truncates text for a single prompt line
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.TruncateText(tp.CollapseWhitespace(tp.SanitizeUTF8(text)), maxSize)
}
