package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
)

// EnqueueRepo writes new notifications together with their content and delivery job.
type EnqueueRepo struct {
	DB    *sql.DB
	clock clock.Clock
}

var _ core.NotificationEnqueuer = (*EnqueueRepo)(nil)

// NewEnqueueRepo creates a new EnqueueRepo. A nil clock uses wall time.
func NewEnqueueRepo(db *sql.DB, c clock.Clock) *EnqueueRepo {
	return &EnqueueRepo{DB: db, clock: clock.OrReal(c)}
}

// Enqueue inserts the notification, its content values and one pending job in one transaction.
func (r *EnqueueRepo) Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.EnqueueResult, error) {
	if req == nil {
		return nil, ErrEnqueueRequestNil
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid enqueue request")
	}

	payload := []byte(req.Payload)
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	var templateID sql.NullInt64
	if req.TemplateID != nil {
		templateID = sql.NullInt64{Int64: *req.TemplateID, Valid: true}
	}
	now := r.clock.Now().UTC()

	var out model.EnqueueResult
	err := withTx(ctx, r.DB, txConfig{
		Fn: func(tx *sql.Tx) error {
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO notifications (user_id, template_id, channel, status, payload, created_at)
				VALUES ($1, $2, $3, 'PENDING', $4, $5)
				RETURNING id`,
				req.UserID, templateID, req.Channel, payload, now,
			).Scan(&out.NotificationID); err != nil {
				return fmt.Errorf("insert notification: %w", apperrors.MapDBError(err))
			}

			// Offsetting created_at keeps FIFO order stable for repeated field ids.
			for i, c := range req.Contents {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO notification_contents (notification_id, field_id, content, created_at)
					VALUES ($1, $2, $3, $4)`,
					out.NotificationID, c.FieldID, c.Content, now.Add(time.Duration(i)*time.Microsecond),
				); err != nil {
					return fmt.Errorf("insert content: %w", apperrors.MapDBError(err))
				}
			}

			if err := tx.QueryRowContext(ctx, `
				INSERT INTO notification_jobs (notification_id, channel, status, next_attempt_at, created_at, updated_at)
				VALUES ($1, $2, 'pending', $3, $3, $3)
				RETURNING id`,
				out.NotificationID, req.Channel, now,
			).Scan(&out.JobID); err != nil {
				return fmt.Errorf("insert job: %w", apperrors.MapDBError(err))
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
