// Package gmail applies smart label actions to threads in a Gmail mailbox.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/mikey/llm-smart-labels/internal/core"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// ErrAccountMismatch is returned for threads of an account the applier is not authorized for
var ErrAccountMismatch = errors.New("gmail applier is not authorized for this account")

const userID = "me"

// modifyFunc sends one users.threads.modify call
type modifyFunc func(ctx context.Context, threadID string, req *gmail.ModifyThreadRequest) error

// LabelApplier applies labels through the Gmail API for a single account
type LabelApplier struct {
	accountID string
	modify    modifyFunc
	logger    *zap.Logger
}

// NewLabelApplier creates an applier over an authorized Gmail service
func NewLabelApplier(svc *gmail.Service, accountID string, logger *zap.Logger) *LabelApplier {
	return newLabelApplier(accountID, func(ctx context.Context, threadID string, req *gmail.ModifyThreadRequest) error {
		_, err := svc.Users.Threads.Modify(userID, threadID, req).Context(ctx).Do()
		return err
	}, logger)
}

func newLabelApplier(accountID string, modify modifyFunc, logger *zap.Logger) *LabelApplier {
	return &LabelApplier{
		accountID: accountID,
		modify:    modify,
		logger:    logger,
	}
}

// NewService builds a Gmail service from an OAuth client secret file and a
// previously authorized token file
func NewService(ctx context.Context, credentialsFile, tokenFile string) (*gmail.Service, error) {
	secret, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read gmail credentials: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(secret, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gmail credentials: %w", err)
	}

	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read gmail token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("failed to parse gmail token: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return svc, nil
}

// AddLabelToThread applies labelID to the thread
func (a *LabelApplier) AddLabelToThread(ctx context.Context, accountID, threadID, labelID string) error {
	compiled := core.CompileActions(core.FilterActions{ApplyLabel: labelID})
	if len(compiled.AddLabelIDs) == 0 {
		return fmt.Errorf("invalid label id %q", labelID)
	}
	return a.ModifyThread(ctx, accountID, threadID, compiled)
}

// ModifyThread applies a compiled action set in a single modify call
func (a *LabelApplier) ModifyThread(ctx context.Context, accountID, threadID string, actions core.CompiledActions) error {
	if accountID != a.accountID {
		return fmt.Errorf("%w: %s", ErrAccountMismatch, accountID)
	}

	req := &gmail.ModifyThreadRequest{
		AddLabelIds:    actions.AddLabelIDs,
		RemoveLabelIds: actions.RemoveLabelIDs,
	}
	if actions.MarkRead {
		req.RemoveLabelIds = append(req.RemoveLabelIds[:len(req.RemoveLabelIds):len(req.RemoveLabelIds)], core.LabelUnread)
	}
	if len(req.AddLabelIds) == 0 && len(req.RemoveLabelIds) == 0 {
		return nil
	}

	if err := a.modify(ctx, threadID, req); err != nil {
		return fmt.Errorf("failed to modify gmail thread %s: %w", threadID, err)
	}

	a.logger.Debug("Modified gmail thread",
		zap.String("account_id", accountID),
		zap.String("thread_id", threadID),
		zap.Strings("add", req.AddLabelIds),
		zap.Strings("remove", req.RemoveLabelIds))
	return nil
}
