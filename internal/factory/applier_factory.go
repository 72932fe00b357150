package factory

import (
	"context"
	"fmt"

	"github.com/mikey/llm-smart-labels/internal/adapters/gmail"
	"github.com/mikey/llm-smart-labels/internal/adapters/store"
	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/core"
	"go.uber.org/zap"
)

// ApplierFactory creates the label applier
type ApplierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewApplierFactory creates a new applier factory
func NewApplierFactory(cfg *config.Config, logger *zap.Logger) *ApplierFactory {
	return &ApplierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLabelApplier creates the applier selected by applier.type
func (f *ApplierFactory) CreateLabelApplier(ctx context.Context, st *store.SQLStore) (core.LabelApplier, error) {
	switch applierType := f.cfg.GetString("applier.type"); applierType {
	case "store":
		return core.NewActionLabelApplier(st), nil
	case "gmail":
		gmailCfg := f.cfg.GetGmail()
		if gmailCfg.AccountID == "" {
			return nil, fmt.Errorf("gmail.account_id is required for the gmail applier")
		}
		svc, err := gmail.NewService(ctx, gmailCfg.CredentialsFile, gmailCfg.TokenFile)
		if err != nil {
			return nil, err
		}
		return gmail.NewLabelApplier(svc, gmailCfg.AccountID, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported applier type: %s", applierType)
	}
}
