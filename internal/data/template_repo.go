package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
)

// TemplateRepo reads templates, their field sequences and notification content.
type TemplateRepo struct {
	DB *sql.DB
}

var (
	_ core.TemplateRepository      = (*TemplateRepo)(nil)
	_ core.FieldSequenceRepository = (*TemplateRepo)(nil)
	_ core.ContentRepository       = (*TemplateRepo)(nil)
)

// NewTemplateRepo creates a new TemplateRepo.
func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{DB: db}
}

// GetByID loads a template. Missing templates return ErrTemplateNotFound.
func (r *TemplateRepo) GetByID(ctx context.Context, id int64) (*model.Template, error) {
	var t model.Template
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name, is_active, updated_at
		FROM notification_templates
		WHERE id = $1`, id).Scan(&t.ID, &t.Name, &t.IsActive, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("get template %d: %w", id, apperrors.MapDBError(err))
	}
	return &t, nil
}

// ListEnabled returns the enabled field sequence for a template, ascending by sequence.
func (r *TemplateRepo) ListEnabled(ctx context.Context, templateID int64) ([]model.FieldSequenceEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT template_id, field_id, sequence, enabled
		FROM template_field_sequences
		WHERE template_id = $1 AND enabled = TRUE
		ORDER BY sequence ASC, field_id ASC`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list field sequence: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []model.FieldSequenceEntry
	for rows.Next() {
		var e model.FieldSequenceEntry
		if err := rows.Scan(&e.TemplateID, &e.FieldID, &e.Sequence, &e.Enabled); err != nil {
			return nil, fmt.Errorf("scan field sequence: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field sequence: %w", err)
	}
	return out, nil
}

// ListByNotification returns content values oldest first.
func (r *TemplateRepo) ListByNotification(ctx context.Context, notificationID int64) ([]model.ContentValue, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, notification_id, field_id, content, created_at
		FROM notification_contents
		WHERE notification_id = $1
		ORDER BY created_at ASC, id ASC`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("list contents: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []model.ContentValue
	for rows.Next() {
		var c model.ContentValue
		if err := rows.Scan(&c.ID, &c.NotificationID, &c.FieldID, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contents: %w", err)
	}
	return out, nil
}
