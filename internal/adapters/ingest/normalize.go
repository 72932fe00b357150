package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/mikey/llm-smart-labels/internal/utils"
	"golang.org/x/net/html"
)

const (
	snippetSize  = 200
	maxPartBytes = 1 << 20
)

// Envelope carries the SMTP transaction addresses, used when headers lack them
type Envelope struct {
	From string
	To   []string
}

// Normalizer turns raw RFC 5322 messages into matcher messages
type Normalizer struct {
	textProcessor *utils.TextProcessor
	newID         func() string
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(textProcessor *utils.TextProcessor) *Normalizer {
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(nil)
	}
	return &Normalizer{
		textProcessor: textProcessor,
		newID:         uuid.NewString,
	}
}

// Normalize parses raw into a NormalizedMessage. Unknown charsets and transfer
// encodings are tolerated; the affected part is kept undecoded.
func (n *Normalizer) Normalize(raw []byte, env Envelope) (*core.NormalizedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil || (err != nil && !tolerable(err)) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	msg := &core.NormalizedMessage{}
	n.readHeader(&mr.Header, env, msg)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && (part == nil || !tolerable(err)) {
			// keep whatever was readable before the broken part
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, _ := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
			switch strings.ToLower(contentType) {
			case "text/plain", "":
				msg.BodyText = joinPart(msg.BodyText, string(body))
			case "text/html":
				msg.BodyHTML = joinPart(msg.BodyHTML, string(body))
			default:
				// inline images and the like
				if filename := inlineFilename(h); filename != "" {
					msg.HasAttachment = true
				}
			}
		case *mail.AttachmentHeader:
			msg.HasAttachment = true
		}
	}

	msg.Snippet = n.snippet(msg)
	return msg, nil
}

func (n *Normalizer) readHeader(h *mail.Header, env Envelope, msg *core.NormalizedMessage) {
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.FromAddress = from[0].Address
		msg.FromName = from[0].Name
	}
	if msg.FromAddress == "" {
		msg.FromAddress = env.From
	}

	for _, key := range []string{"To", "Cc"} {
		list, err := h.AddressList(key)
		if err != nil {
			continue
		}
		for _, addr := range list {
			msg.ToAddresses = append(msg.ToAddresses, addr.Address)
		}
	}
	if len(msg.ToAddresses) == 0 {
		msg.ToAddresses = append(msg.ToAddresses, env.To...)
	}

	if subject, err := h.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = h.Get("Subject")
	}

	msg.ID, _ = h.MessageID()
	if msg.ID == "" {
		msg.ID = n.newID()
	}
	msg.ThreadID = threadID(h, msg.ID)
}

// threadID groups replies with the message that started the conversation:
// the first References id, else In-Reply-To, else the message itself
func threadID(h *mail.Header, messageID string) string {
	for _, key := range []string{"References", "In-Reply-To"} {
		if ids, err := h.MsgIDList(key); err == nil && len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return messageID
}

func (n *Normalizer) snippet(msg *core.NormalizedMessage) string {
	text := msg.BodyText
	if strings.TrimSpace(text) == "" && msg.BodyHTML != "" {
		text = htmlText(msg.BodyHTML)
	}
	text = n.textProcessor.CollapseWhitespace(n.textProcessor.SanitizeUTF8(text))
	return n.textProcessor.TruncateText(text, snippetSize)
}

// htmlText returns the visible text of an HTML document
func htmlText(doc string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(doc))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			if name, _ := z.TagName(); isHiddenElement(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHiddenElement(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isHiddenElement(name []byte) bool {
	switch string(name) {
	case "script", "style", "head", "title":
		return true
	}
	return false
}

func inlineFilename(h *mail.InlineHeader) string {
	if _, params, err := h.ContentDisposition(); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	if _, params, err := h.ContentType(); err == nil {
		return params["name"]
	}
	return ""
}

func joinPart(existing, part string) string {
	if existing == "" {
		return part
	}
	return existing + "\n" + part
}

func tolerable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}
