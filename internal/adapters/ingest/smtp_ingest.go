// Package ingest receives delivered mail over SMTP and runs smart labeling on it.
package ingest

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/llm-smart-labels/internal/core"
	"go.uber.org/zap"
)

// Applicator runs realtime smart labeling over freshly delivered messages
type Applicator interface {
	ApplySmartLabelsToMessages(ctx context.Context, accountID string, messages []*core.NormalizedMessage) []core.ApplyOutcome
}

// Options configures the SMTP listener
type Options struct {
	ListenAddress   string
	Domain          string
	AccountID       string
	MaxMessageBytes int64
	ApplyTimeout    time.Duration
}

// SMTPIngest accepts mail on an SMTP port, normalizes it, optionally records
// it, and applies smart labels. Labeling problems never reject a message.
type SMTPIngest struct {
	applicator Applicator
	sink       core.MessageSink
	normalizer *Normalizer
	logger     *zap.Logger
	opts       Options
	server     *smtp.Server
}

// NewSMTPIngest creates a new SMTP ingest. sink may be nil.
func NewSMTPIngest(applicator Applicator, sink core.MessageSink, normalizer *Normalizer, logger *zap.Logger, opts Options) *SMTPIngest {
	if opts.Domain == "" {
		opts.Domain = "localhost"
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 30 * 1024 * 1024
	}
	if opts.ApplyTimeout <= 0 {
		opts.ApplyTimeout = time.Minute
	}

	in := &SMTPIngest{
		applicator: applicator,
		sink:       sink,
		normalizer: normalizer,
		logger:     logger,
		opts:       opts,
	}

	in.server = smtp.NewServer(&smtpBackend{ingest: in})
	in.server.Addr = opts.ListenAddress
	in.server.Domain = opts.Domain
	in.server.ReadTimeout = 30 * time.Second
	in.server.WriteTimeout = 30 * time.Second
	in.server.MaxMessageBytes = opts.MaxMessageBytes
	in.server.MaxRecipients = 50

	return in
}

// Start listens on the configured address in the background
func (in *SMTPIngest) Start() error {
	l, err := net.Listen("tcp", in.opts.ListenAddress)
	if err != nil {
		return err
	}
	in.Serve(l)
	return nil
}

// Serve accepts connections on l in the background
func (in *SMTPIngest) Serve(l net.Listener) {
	in.logger.Info("SMTP ingest starting",
		zap.String("address", l.Addr().String()),
		zap.String("account_id", in.opts.AccountID))

	go func() {
		if err := in.server.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			in.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
}

// Stop stops the listener and closes open sessions
func (in *SMTPIngest) Stop() error {
	return in.server.Close()
}

// Ingest handles one delivered message
func (in *SMTPIngest) Ingest(ctx context.Context, raw []byte, env Envelope) {
	msg, err := in.normalizer.Normalize(raw, env)
	if err != nil {
		in.logger.Warn("Skipping smart labels for unparseable message",
			zap.String("sender", env.From),
			zap.Error(err))
		return
	}

	logger := in.logger.With(
		zap.String("account_id", in.opts.AccountID),
		zap.String("thread_id", msg.ThreadID),
		zap.String("sender_domain", senderDomain(msg.FromAddress)))

	ctx, cancel := context.WithTimeout(ctx, in.opts.ApplyTimeout)
	defer cancel()

	if in.sink != nil {
		if err := in.sink.SaveMessage(ctx, in.opts.AccountID, msg); err != nil {
			logger.Error("Failed to record message", zap.Error(err))
		}
	}

	outcomes := in.applicator.ApplySmartLabelsToMessages(ctx, in.opts.AccountID, []*core.NormalizedMessage{msg})
	logger.Info("Processed message", zap.Int("labels", len(outcomes)))
}

func senderDomain(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i < len(address)-1 {
		return strings.ToLower(address[i+1:])
	}
	return "unknown"
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	ingest *SMTPIngest
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{ingest: b.ingest}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	ingest     *SMTPIngest
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data reads the message and labels it. Only a failed read is reported to the client.
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.ingest.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	s.ingest.Ingest(context.Background(), raw, Envelope{
		From: s.sender,
		To:   append([]string(nil), s.recipients...),
	})
	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
