package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mikey/llm-smart-labels/internal/core"
	"go.uber.org/zap"
)

type ruleRow struct {
	RuleID        string         `db:"rule_id"`
	AccountID     string         `db:"account_id"`
	LabelID       string         `db:"label_id"`
	AIDescription sql.NullString `db:"ai_description"`
	Criteria      sql.NullString `db:"criteria"`
	IsEnabled     bool           `db:"is_enabled"`
	SortOrder     int            `db:"sort_order"`
}

// GetEnabledRules returns the account's enabled rules in sort order.
// Rules with unparseable criteria are kept without criteria.
func (s *SQLStore) GetEnabledRules(ctx context.Context, accountID string) ([]core.SmartLabelRule, error) {
	var rows []ruleRow
	query := s.db.Rebind(`
		SELECT rule_id, account_id, label_id, ai_description, criteria, is_enabled, sort_order
		FROM smart_label_rules
		WHERE account_id = ? AND is_enabled = ?
		ORDER BY sort_order ASC, rule_id ASC`)

	if err := s.db.SelectContext(ctx, &rows, query, accountID, true); err != nil {
		return nil, fmt.Errorf("failed to list smart label rules: %w", err)
	}

	rules := make([]core.SmartLabelRule, 0, len(rows))
	for _, row := range rows {
		criteria, err := core.ParseCriteria(row.Criteria.String)
		if err != nil {
			s.logger.Warn("Ignoring invalid smart label criteria",
				zap.String("account_id", accountID),
				zap.String("rule_id", row.RuleID),
				zap.Error(err))
			criteria = nil
		}
		rules = append(rules, core.SmartLabelRule{
			RuleID:        row.RuleID,
			AccountID:     row.AccountID,
			LabelID:       row.LabelID,
			AIDescription: row.AIDescription.String,
			Criteria:      criteria,
			IsEnabled:     row.IsEnabled,
			SortOrder:     row.SortOrder,
		})
	}

	return rules, nil
}

// SaveRule creates or replaces a rule
func (s *SQLStore) SaveRule(ctx context.Context, rule *core.SmartLabelRule) error {
	if rule.RuleID == "" || rule.AccountID == "" || rule.LabelID == "" {
		return fmt.Errorf("rule id, account id and label id are required")
	}

	var criteria sql.NullString
	if !rule.Criteria.IsEmpty() {
		encoded, err := core.EncodeCriteria(rule.Criteria)
		if err != nil {
			return fmt.Errorf("failed to encode criteria: %w", err)
		}
		criteria = sql.NullString{String: encoded, Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM smart_label_rules WHERE rule_id = ?`), rule.RuleID); err != nil {
		return fmt.Errorf("failed to replace smart label rule: %w", err)
	}
	insert := tx.Rebind(`
		INSERT INTO smart_label_rules (rule_id, account_id, label_id, ai_description, criteria, is_enabled, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert,
		rule.RuleID,
		rule.AccountID,
		rule.LabelID,
		rule.AIDescription,
		criteria,
		rule.IsEnabled,
		rule.SortOrder,
	); err != nil {
		return fmt.Errorf("failed to save smart label rule: %w", err)
	}

	return tx.Commit()
}

// DeleteRule removes a rule
func (s *SQLStore) DeleteRule(ctx context.Context, ruleID string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM smart_label_rules WHERE rule_id = ?`), ruleID); err != nil {
		return fmt.Errorf("failed to delete smart label rule: %w", err)
	}
	return nil
}
