package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/mikey/llm-smart-labels/internal/core"
)

type threadRow struct {
	ThreadID      string         `db:"thread_id"`
	MessageID     string         `db:"message_id"`
	FromAddress   string         `db:"from_address"`
	FromName      sql.NullString `db:"from_name"`
	ToAddresses   sql.NullString `db:"to_addresses"`
	Subject       sql.NullString `db:"subject"`
	Snippet       sql.NullString `db:"snippet"`
	BodyText      sql.NullString `db:"body_text"`
	BodyHTML      sql.NullString `db:"body_html"`
	HasAttachment bool           `db:"has_attachment"`
}

func (r *threadRow) toEntity() (core.InboxThreadRow, error) {
	row := core.InboxThreadRow{
		ThreadID:      r.ThreadID,
		MessageID:     r.MessageID,
		FromAddress:   r.FromAddress,
		FromName:      r.FromName.String,
		Subject:       r.Subject.String,
		Snippet:       r.Snippet.String,
		BodyText:      r.BodyText.String,
		BodyHTML:      r.BodyHTML.String,
		HasAttachment: r.HasAttachment,
	}
	if r.ToAddresses.Valid && r.ToAddresses.String != "" {
		if err := json.Unmarshal([]byte(r.ToAddresses.String), &row.ToAddresses); err != nil {
			return row, fmt.Errorf("failed to parse recipients of message %s: %w", r.MessageID, err)
		}
	}
	return row, nil
}

// FetchInboxThreadBatch returns one page of inbox threads, most recent first,
// each represented by its latest message
func (s *SQLStore) FetchInboxThreadBatch(ctx context.Context, accountID string, limit, offset int) ([]core.InboxThreadRow, error) {
	query := s.db.Rebind(`
		SELECT m.thread_id, m.message_id, m.from_address, m.from_name, m.to_addresses,
			m.subject, m.snippet, m.body_text, m.body_html, m.has_attachment
		FROM messages m
		JOIN thread_labels tl
			ON tl.account_id = m.account_id AND tl.thread_id = m.thread_id AND tl.label_id = ?
		WHERE m.account_id = ?
			AND m.message_id = (
				SELECT m2.message_id FROM messages m2
				WHERE m2.account_id = m.account_id AND m2.thread_id = m.thread_id
				ORDER BY m2.received_at DESC, m2.message_id DESC
				LIMIT 1)
		ORDER BY m.received_at DESC, m.thread_id ASC
		LIMIT ? OFFSET ?`)

	var rows []threadRow
	if err := s.db.SelectContext(ctx, &rows, query, core.LabelInbox, accountID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to fetch inbox threads: %w", err)
	}

	out := make([]core.InboxThreadRow, 0, len(rows))
	for i := range rows {
		row, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// SaveMessage records a delivered message and places its thread in the
// inbox as unread. Saving the same message twice is a no-op.
func (s *SQLStore) SaveMessage(ctx context.Context, accountID string, msg *core.NormalizedMessage) error {
	if msg.ID == "" || msg.ThreadID == "" {
		return fmt.Errorf("message id and thread id are required")
	}

	recipients, err := json.Marshal(msg.ToAddresses)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := tx.Rebind(s.insertIgnore("messages",
		"account_id, message_id, thread_id, from_address, from_name, to_addresses, subject, snippet, body_text, body_html, has_attachment, received_at",
		"?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?"))
	if _, err := tx.ExecContext(ctx, insert,
		accountID,
		msg.ID,
		msg.ThreadID,
		msg.FromAddress,
		msg.FromName,
		string(recipients),
		msg.Subject,
		msg.Snippet,
		msg.BodyText,
		msg.BodyHTML,
		msg.HasAttachment,
		s.now().UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	for _, labelID := range []string{core.LabelInbox, core.LabelUnread} {
		if err := s.addLabel(ctx, tx, accountID, msg.ThreadID, labelID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AddLabelToThread applies a label to a thread. Applying it again is a no-op.
func (s *SQLStore) AddLabelToThread(ctx context.Context, accountID, threadID, labelID string) error {
	return s.addLabel(ctx, s.db, accountID, threadID, labelID)
}

// ModifyThread applies a compiled action set in one transaction
func (s *SQLStore) ModifyThread(ctx context.Context, accountID, threadID string, actions core.CompiledActions) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, labelID := range actions.AddLabelIDs {
		if err := s.addLabel(ctx, tx, accountID, threadID, labelID); err != nil {
			return err
		}
	}

	remove := actions.RemoveLabelIDs
	if actions.MarkRead {
		remove = append(remove[:len(remove):len(remove)], core.LabelUnread)
	}
	del := tx.Rebind(`DELETE FROM thread_labels WHERE account_id = ? AND thread_id = ? AND label_id = ?`)
	for _, labelID := range remove {
		if _, err := tx.ExecContext(ctx, del, accountID, threadID, labelID); err != nil {
			return fmt.Errorf("failed to remove label %s: %w", labelID, err)
		}
	}

	return tx.Commit()
}

// ThreadLabels lists the labels currently on a thread
func (s *SQLStore) ThreadLabels(ctx context.Context, accountID, threadID string) ([]string, error) {
	var labels []string
	query := s.db.Rebind(`SELECT label_id FROM thread_labels WHERE account_id = ? AND thread_id = ? ORDER BY label_id`)
	if err := s.db.SelectContext(ctx, &labels, query, accountID, threadID); err != nil {
		return nil, fmt.Errorf("failed to list thread labels: %w", err)
	}
	return labels, nil
}

func (s *SQLStore) addLabel(ctx context.Context, exec sqlx.ExtContext, accountID, threadID, labelID string) error {
	insert := exec.Rebind(s.insertIgnore("thread_labels", "account_id, thread_id, label_id", "?, ?, ?"))
	if _, err := exec.ExecContext(ctx, insert, accountID, threadID, labelID); err != nil {
		return fmt.Errorf("failed to add label %s: %w", labelID, err)
	}
	return nil
}
