package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/job"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
)

// JobQueueRepoConfig holds configuration options for the job queue repository.
type JobQueueRepoConfig struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// JobQueueRepo implements core.JobQueue and core.ReaperRepository on PostgreSQL.
type JobQueueRepo struct {
	DB     *sql.DB
	clock  clock.Clock
	logger *slog.Logger
}

var (
	_ core.JobQueue         = (*JobQueueRepo)(nil)
	_ core.ReaperRepository = (*JobQueueRepo)(nil)
)

// NewJobQueueRepo creates a new JobQueueRepo.
func NewJobQueueRepo(db *sql.DB, cfg JobQueueRepoConfig) *JobQueueRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobQueueRepo{
		DB:     db,
		clock:  clock.OrReal(cfg.Clock),
		logger: logger.With("component", "job_queue_repo"),
	}
}

const jobColumns = `
  j.id,
  j.notification_id,
  j.channel,
  j.status,
  j.retry_attempts,
  j.claimed_by,
  j.claimed_at,
  j.claim_expires_at,
  j.next_attempt_at,
  j.done_at,
  j.failed_at,
  j.failure_reason,
  j.created_at,
  j.updated_at`

const notificationColumns = `
  n.id,
  n.user_id,
  n.template_id,
  n.channel,
  n.status,
  n.payload,
  n.sent_at,
  n.failed_at,
  n.failed_reason,
  n.created_at`

// eligibleAtNow matches due jobs that are pending or whose claim lease has lapsed.
// It expects the current time as $1.
const eligibleAtNow = `
  j.next_attempt_at <= $1
  AND (j.status = 'pending' OR (j.status = 'claimed' AND j.claim_expires_at < $1))`

const fetchBatchSQL = `
  SELECT` + jobColumns + `,` + notificationColumns + `
  FROM notification_jobs j
  JOIN notifications n ON n.id = j.notification_id
  WHERE j.channel = $2 AND` + eligibleAtNow + `
  ORDER BY j.created_at ASC, j.id ASC
  LIMIT $3`

// FetchBatch selects eligible jobs without claiming them.
func (r *JobQueueRepo) FetchBatch(ctx context.Context, channel model.Channel, limit int) ([]*model.Job, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
	}
	if limit <= 0 {
		return nil, ErrNonPositiveBatchSize
	}

	rows, err := r.DB.QueryContext(ctx, fetchBatchSQL, r.now(), channel, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch batch: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	jobs, err := r.collectJobs(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("fetch batch: %w", err)
	}
	return jobs, nil
}

// takeoverAttempts spends one retry when the claim being replaced had lapsed: the previous
// claimant died or hung without recording an outcome. Pending jobs keep their counter.
const takeoverAttempts = `
      retry_attempts = CASE
        WHEN j.status = 'claimed' THEN LEAST(j.retry_attempts + 1, j.max_retries)
        ELSE j.retry_attempts
      END`

const claimSQL = `
  UPDATE notification_jobs j
  SET status = 'claimed',
      claimed_by = $2,
      claimed_at = $1,
      claim_expires_at = $3,
      max_retries = CASE WHEN $5::integer > 0 THEN $5::integer ELSE j.max_retries END,` + takeoverAttempts + `,
      updated_at = $1
  WHERE j.id = $4 AND` + eligibleAtNow + `
  RETURNING j.retry_attempts`

// Claim stamps owner on the job if it is still eligible and returns the counter the
// row holds after the claim, which may be ahead of any earlier FetchBatch snapshot.
func (r *JobQueueRepo) Claim(ctx context.Context, params core.ClaimParams) (core.ClaimResult, error) {
	if params.Owner == "" {
		return core.ClaimResult{}, ErrOwnerRequired
	}
	now := r.now()
	var attempts int
	err := r.DB.QueryRowContext(ctx, claimSQL,
		now, params.Owner, now.Add(params.Lease), params.JobID, params.MaxRetries,
	).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ClaimResult{}, nil
	}
	if err != nil {
		return core.ClaimResult{}, fmt.Errorf("claim job %d: %w", params.JobID, apperrors.MapDBError(err))
	}
	return core.ClaimResult{Claimed: true, RetryAttempts: attempts}, nil
}

const extendClaimSQL = `
  UPDATE notification_jobs
  SET claim_expires_at = $3,
      updated_at = $1
  WHERE id = $4 AND status = 'claimed' AND claimed_by = $2`

// ExtendClaim renews the lease on a claim owner still holds.
func (r *JobQueueRepo) ExtendClaim(ctx context.Context, params core.ClaimParams) (bool, error) {
	if params.Owner == "" {
		return false, ErrOwnerRequired
	}
	now := r.now()
	res, err := r.DB.ExecContext(ctx, extendClaimSQL, now, params.Owner, now.Add(params.Lease), params.JobID)
	if err != nil {
		return false, fmt.Errorf("extend claim on job %d: %w", params.JobID, apperrors.MapDBError(err))
	}
	return affectedOne(res)
}

const claimBatchSQL = `
  WITH cte AS (
    SELECT j.id FROM notification_jobs j
    WHERE j.channel = $2 AND` + eligibleAtNow + `
    ORDER BY j.created_at ASC, j.id ASC
    LIMIT $3
    FOR UPDATE SKIP LOCKED
  ), claimed AS (
    UPDATE notification_jobs j
    SET status = 'claimed',
        claimed_by = $4,
        claimed_at = $1,
        claim_expires_at = $5,
        max_retries = CASE WHEN $6::integer > 0 THEN $6::integer ELSE j.max_retries END,` + takeoverAttempts + `,
        updated_at = $1
    FROM cte
    WHERE j.id = cte.id
    RETURNING j.*
  )
  SELECT` + jobColumns + `,` + notificationColumns + `
  FROM claimed j
  JOIN notifications n ON n.id = j.notification_id
  ORDER BY j.created_at ASC, j.id ASC`

// ClaimBatch selects and claims up to Limit jobs in a single statement.
func (r *JobQueueRepo) ClaimBatch(ctx context.Context, params core.ClaimBatchParams) ([]*model.Job, error) {
	if !params.Channel.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, params.Channel)
	}
	if params.Owner == "" {
		return nil, ErrOwnerRequired
	}
	if params.Limit <= 0 {
		return nil, ErrNonPositiveBatchSize
	}

	now := r.now()
	rows, err := r.DB.QueryContext(ctx, claimBatchSQL,
		now, params.Channel, params.Limit, params.Owner, now.Add(params.Lease), params.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	jobs, err := r.collectJobs(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	return jobs, nil
}

const completeJobSQL = `
  UPDATE notification_jobs
  SET status = 'done',
      retry_attempts = $3,
      done_at = $4,
      claim_expires_at = NULL,
      updated_at = $4
  WHERE id = $1 AND status = 'claimed' AND claimed_by = $2`

const markSentSQL = `
  UPDATE notifications
  SET status = 'SENT', sent_at = $2
  WHERE id = $1 AND status = 'PENDING'`

// Complete marks the job done and its notification SENT. A notification that is
// already terminal keeps its status.
func (r *JobQueueRepo) Complete(ctx context.Context, params core.FinishParams) (bool, error) {
	return r.finish(ctx, params, finishStatements{
		job:          completeJobSQL,
		notification: markSentSQL,
		label:        "complete",
	})
}

const failJobSQL = `
  UPDATE notification_jobs
  SET status = 'failed',
      retry_attempts = $3,
      failed_at = $4,
      failure_reason = $5,
      claim_expires_at = NULL,
      updated_at = $4
  WHERE id = $1 AND status = 'claimed' AND claimed_by = $2`

const markFailedSQL = `
  UPDATE notifications
  SET status = 'FAILED', failed_at = $2, failed_reason = $3
  WHERE id = $1 AND status = 'PENDING'`

// Fail marks the job failed and its notification FAILED.
func (r *JobQueueRepo) Fail(ctx context.Context, params core.FinishParams) (bool, error) {
	return r.finish(ctx, params, finishStatements{
		job:          failJobSQL,
		notification: markFailedSQL,
		label:        "fail",
		failure:      true,
	})
}

type finishStatements struct {
	job          string
	notification string
	label        string
	failure      bool
}

func (r *JobQueueRepo) finish(ctx context.Context, params core.FinishParams, st finishStatements) (bool, error) {
	if params.Owner == "" {
		return false, ErrOwnerRequired
	}
	now := r.now()
	reason := job.TruncateReason(params.Reason)

	var owned bool
	err := withTx(ctx, r.DB, txConfig{
		Fn: func(tx *sql.Tx) error {
			jobArgs := []any{params.JobID, params.Owner, params.Attempts, now}
			if st.failure {
				jobArgs = append(jobArgs, reason)
			}
			res, err := tx.ExecContext(ctx, st.job, jobArgs...)
			if err != nil {
				return fmt.Errorf("%s job: %w", st.label, apperrors.MapDBError(err))
			}
			owned, err = affectedOne(res)
			if err != nil || !owned {
				return err
			}

			notifArgs := []any{params.NotificationID, now}
			if st.failure {
				notifArgs = append(notifArgs, reason)
			}
			res, err = tx.ExecContext(ctx, st.notification, notifArgs...)
			if err != nil {
				return fmt.Errorf("%s notification: %w", st.label, apperrors.MapDBError(err))
			}
			if n, _ := res.RowsAffected(); n == 0 {
				r.logger.DebugContext(ctx, "notification already terminal",
					"notification_id", params.NotificationID, "job_id", params.JobID)
			}
			return nil
		},
	})
	if err != nil {
		return false, err
	}
	if !owned {
		r.logger.WarnContext(ctx, "claim lost before terminal write",
			"job_id", params.JobID, "owner", params.Owner, "op", st.label)
	}
	return owned, nil
}

const recordRetrySQL = `
  UPDATE notification_jobs
  SET status = 'pending',
      retry_attempts = $3,
      next_attempt_at = $4,
      failure_reason = $5,
      claimed_by = NULL,
      claim_expires_at = NULL,
      updated_at = $6
  WHERE id = $1 AND status = 'claimed' AND claimed_by = $2`

// RecordRetry releases the claim with an incremented counter and the next eligible time.
func (r *JobQueueRepo) RecordRetry(ctx context.Context, params core.RetryParams) (bool, error) {
	if params.Owner == "" {
		return false, ErrOwnerRequired
	}
	res, err := r.DB.ExecContext(ctx, recordRetrySQL,
		params.JobID,
		params.Owner,
		params.Attempts,
		params.NextAttemptAt.UTC(),
		nullString(job.TruncateReason(params.Reason)),
		r.now(),
	)
	if err != nil {
		return false, fmt.Errorf("record retry for job %d: %w", params.JobID, apperrors.MapDBError(err))
	}
	return affectedOne(res)
}

const statsSQL = `
  SELECT status, COUNT(*)
  FROM notification_jobs
  WHERE channel = $1
  GROUP BY status`

// Stats counts jobs per status for channel.
func (r *JobQueueRepo) Stats(ctx context.Context, channel model.Channel) (*model.QueueStats, error) {
	rows, err := r.DB.QueryContext(ctx, statsSQL, channel)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	stats := &model.QueueStats{Channel: channel}
	for rows.Next() {
		var (
			status model.JobStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		switch status {
		case model.JobStatusPending:
			stats.Pending = count
		case model.JobStatusClaimed:
			stats.Claimed = count
		case model.JobStatusDone:
			stats.Done = count
		case model.JobStatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue stats: %w", err)
	}
	return stats, nil
}

func (r *JobQueueRepo) now() time.Time {
	return r.clock.Now().UTC()
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *JobQueueRepo) collectJobs(ctx context.Context, rows *sql.Rows) ([]*model.Job, error) {
	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJobWithNotification(rows)
		if err != nil {
			return nil, err
		}
		if j.PayloadErr != nil {
			r.logger.WarnContext(ctx, "notification payload rejected",
				"job_id", j.ID, "notification_id", j.NotificationID, "error", j.PayloadErr)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	claimedBy, failureReason                  sql.NullString
	claimedAt, claimExpiresAt, doneAt, failed sql.NullTime
	templateID                                sql.NullInt64
	payload                                   []byte
	sentAt, notifFailedAt                     sql.NullTime
	notifFailedReason                         sql.NullString
}

func scanJobWithNotification(scanner rowScanner) (*model.Job, error) {
	j := &model.Job{}
	var d jobRowData
	n := &j.Notification
	err := scanner.Scan(
		&j.ID,
		&j.NotificationID,
		&j.Channel,
		&j.Status,
		&j.RetryAttempts,
		&d.claimedBy,
		&d.claimedAt,
		&d.claimExpiresAt,
		&j.NextAttemptAt,
		&d.doneAt,
		&d.failed,
		&d.failureReason,
		&j.CreatedAt,
		&j.UpdatedAt,
		&n.ID,
		&n.UserID,
		&d.templateID,
		&n.Channel,
		&n.Status,
		&d.payload,
		&d.sentAt,
		&d.notifFailedAt,
		&d.notifFailedReason,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	j.ClaimedBy = cloneNullableString(d.claimedBy)
	j.ClaimedAt = cloneNullableTime(d.claimedAt)
	j.ClaimExpiresAt = cloneNullableTime(d.claimExpiresAt)
	j.DoneAt = cloneNullableTime(d.doneAt)
	j.FailedAt = cloneNullableTime(d.failed)
	j.FailureReason = cloneNullableString(d.failureReason)

	n.TemplateID = cloneNullableInt64(d.templateID)
	n.Payload = append([]byte(nil), d.payload...)
	n.SentAt = cloneNullableTime(d.sentAt)
	n.FailedAt = cloneNullableTime(d.notifFailedAt)
	n.FailedReason = cloneNullableString(d.notifFailedReason)

	// Decode once at the fetch boundary; a bad payload travels with the job.
	j.Payload, j.PayloadErr = model.DecodePayload(j.Channel, n.Payload)
	return j, nil
}
