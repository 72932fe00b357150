package factory

import (
	"github.com/mikey/llm-smart-labels/internal/adapters/ingest"
	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/mikey/llm-smart-labels/internal/utils"
	"go.uber.org/zap"
)

// IngestFactory creates the SMTP ingest listener
type IngestFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewIngestFactory creates a new ingest factory
func NewIngestFactory(cfg *config.Config, logger *zap.Logger) *IngestFactory {
	return &IngestFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateIngest creates the listener. sink is only used when ingest.record_messages is on.
func (f *IngestFactory) CreateIngest(applicator ingest.Applicator, sink core.MessageSink, tp *utils.TextProcessor) (*ingest.SMTPIngest, error) {
	ingestCfg, err := f.cfg.GetIngest()
	if err != nil {
		return nil, err
	}
	if !ingestCfg.RecordMessages {
		sink = nil
	}

	return ingest.NewSMTPIngest(applicator, sink, ingest.NewNormalizer(tp), f.logger, ingest.Options{
		ListenAddress:   ingestCfg.ListenAddress,
		Domain:          ingestCfg.Domain,
		AccountID:       ingestCfg.AccountID,
		MaxMessageBytes: ingestCfg.MaxMessageBytes,
		ApplyTimeout:    ingestCfg.ApplyTimeout,
	}), nil
}
