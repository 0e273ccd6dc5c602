package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/academic360/notifier/internal/core"
	apperrors "github.com/academic360/notifier/internal/errors"
)

// Advisory lock keys serialising claim recovery across reaper instances.
const (
	advisoryLockReleaseMajor int32 = 2001
	advisoryLockReleaseMinor int32 = 1
)

// claimExpiredReason is stored on jobs recovered from a lapsed claim.
const claimExpiredReason = "claim lease expired before an outcome was recorded"

// releaseExpiredClaimsSQL spends one retry per recovered job. Jobs that reach their
// ceiling go terminal with their notification; the rest return to pending.
const releaseExpiredClaimsSQL = `
  WITH expired AS (
    SELECT id FROM notification_jobs
    WHERE status = 'claimed' AND claim_expires_at < $1
    ORDER BY claim_expires_at ASC
    LIMIT $2
    FOR UPDATE SKIP LOCKED
  ), released AS (
    UPDATE notification_jobs j
    SET retry_attempts = LEAST(j.retry_attempts + 1, j.max_retries),
        status = CASE WHEN j.retry_attempts + 1 >= j.max_retries THEN 'failed' ELSE 'pending' END,
        failed_at = CASE WHEN j.retry_attempts + 1 >= j.max_retries THEN $1 ELSE j.failed_at END,
        failure_reason = $3,
        claimed_by = NULL,
        claim_expires_at = NULL,
        updated_at = $1
    FROM expired e
    WHERE j.id = e.id
    RETURNING j.notification_id, j.status
  ), failed AS (
    UPDATE notifications n
    SET status = 'FAILED', failed_at = $1, failed_reason = $3
    FROM released r
    WHERE n.id = r.notification_id AND r.status = 'failed' AND n.status = 'PENDING'
    RETURNING n.id
  )
  SELECT
    (SELECT COUNT(*) FROM released),
    (SELECT COUNT(*) FROM released WHERE status = 'failed'),
    (SELECT COUNT(*) FROM failed)`

// ReleaseExpiredClaims recovers lapsed claims. When another instance holds the
// recovery lock it does nothing and reports zero.
func (r *JobQueueRepo) ReleaseExpiredClaims(ctx context.Context, batchSize int) (core.ReleaseResult, error) {
	if batchSize <= 0 {
		return core.ReleaseResult{}, ErrNonPositiveBatchSize
	}

	var res core.ReleaseResult
	err := withTx(ctx, r.DB, txConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx,
				"SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)",
				advisoryLockReleaseMajor, advisoryLockReleaseMinor,
			).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", apperrors.MapDBError(err))
			}
			if !locked {
				return nil
			}

			var notificationsFailed int64
			if err := tx.QueryRowContext(ctx, releaseExpiredClaimsSQL,
				r.now(), batchSize, claimExpiredReason,
			).Scan(&res.Released, &res.Failed, &notificationsFailed); err != nil {
				return fmt.Errorf("release expired claims: %w", apperrors.MapDBError(err))
			}
			if res.Failed > 0 {
				r.logger.WarnContext(ctx, "expired claims exhausted their retries",
					"jobs_failed", res.Failed, "notifications_failed", notificationsFailed)
			}
			return nil
		},
	})
	if err != nil {
		return core.ReleaseResult{}, err
	}
	return res, nil
}
