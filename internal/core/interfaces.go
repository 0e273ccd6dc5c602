package core

import (
	"context"
	"time"

	"github.com/academic360/notifier/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Services depend on these interfaces; the data layer and delivery adapters implement them.

// ClaimParams groups parameters for claiming a single job or extending a held claim.
type ClaimParams struct {
	JobID int64
	Owner string
	Lease time.Duration
	// MaxRetries is stamped on the job so claim recovery can apply the claimant's
	// ceiling. Zero keeps the stored value. Ignored by ExtendClaim.
	MaxRetries int
}

// ClaimResult reports whether a claim succeeded and the row's retry counter as of the claim.
type ClaimResult struct {
	Claimed       bool
	RetryAttempts int
}

// ClaimBatchParams groups parameters for ClaimBatch.
type ClaimBatchParams struct {
	Channel    model.Channel
	Owner      string
	Limit      int
	Lease      time.Duration
	MaxRetries int
}

// ReleaseResult counts what one claim recovery batch did.
type ReleaseResult struct {
	// Released is every expired claim the batch touched, Failed included.
	Released int64
	// Failed is the subset that reached the retry ceiling and went terminal.
	Failed int64
}

// FinishParams records a terminal outcome for a claimed job.
type FinishParams struct {
	JobID          int64
	NotificationID int64
	Owner          string
	// Attempts is the retry counter to persist with the terminal write.
	Attempts int
	// Reason is required for Fail and ignored by Complete.
	Reason string
}

// RetryParams records a non-terminal failed attempt.
type RetryParams struct {
	JobID         int64
	Owner         string
	Attempts      int
	NextAttemptAt time.Time
	Reason        string
}

// JobQueue is the persisted delivery job queue.
type JobQueue interface {
	// FetchBatch selects up to limit eligible jobs for channel, oldest first, joined with their
	// notification. Eligible means pending, or claimed with an expired lease, and due. It has no
	// side effects.
	FetchBatch(ctx context.Context, channel model.Channel, limit int) ([]*model.Job, error)
	// Claim atomically stamps the owner on a job that is still eligible and returns the
	// stored retry counter. Taking over an expired claim spends one retry. Claimed is false
	// when another worker holds the job or it went terminal.
	Claim(ctx context.Context, params ClaimParams) (ClaimResult, error)
	// ExtendClaim pushes the lease of a claim the owner still holds to now+Lease. It returns
	// false when the claim was lost.
	ExtendClaim(ctx context.Context, params ClaimParams) (bool, error)
	// ClaimBatch selects and claims in one statement using row locks with SKIP LOCKED.
	ClaimBatch(ctx context.Context, params ClaimBatchParams) ([]*model.Job, error)
	// Complete marks the job done and its notification SENT. It returns false when the caller
	// no longer owns the claim.
	Complete(ctx context.Context, params FinishParams) (bool, error)
	// Fail marks the job failed and its notification FAILED with the reason.
	Fail(ctx context.Context, params FinishParams) (bool, error)
	// RecordRetry persists the incremented counter, releases the claim and schedules the next attempt.
	RecordRetry(ctx context.Context, params RetryParams) (bool, error)
	// Stats counts jobs per status for channel.
	Stats(ctx context.Context, channel model.Channel) (*model.QueueStats, error)
}

// ReaperRepository defines the interface for claim recovery.
type ReaperRepository interface {
	// ReleaseExpiredClaims recovers up to batchSize claimed jobs whose lease has expired. Each
	// recovery spends one retry; a job that reaches its ceiling is marked failed along with its
	// notification, the rest return to pending. Jobs are never deleted.
	ReleaseExpiredClaims(ctx context.Context, batchSize int) (ReleaseResult, error)
}

// TemplateRepository reads the template registry.
type TemplateRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Template, error)
}

// FieldSequenceRepository reads per-template field sequences.
type FieldSequenceRepository interface {
	// ListEnabled returns enabled entries for the template in ascending sequence order.
	ListEnabled(ctx context.Context, templateID int64) ([]model.FieldSequenceEntry, error)
}

// ContentRepository reads notification content values.
type ContentRepository interface {
	// ListByNotification returns every content value for the notification, oldest first.
	ListByNotification(ctx context.Context, notificationID int64) ([]model.ContentValue, error)
}

// ContactDirectory is the read-only recipient lookup. Addresses are projected for the channel.
type ContactDirectory interface {
	Lookup(ctx context.Context, channel model.Channel, userID int64) (*model.Contact, error)
	// ListStagingRecipients returns STAFF contacts that opted in, are active and not suspended.
	ListStagingRecipients(ctx context.Context, channel model.Channel, limit int) ([]model.Contact, error)
}

// NotificationEnqueuer persists a notification, its contents and its job atomically.
type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.EnqueueResult, error)
}

// DeliveryClient sends one rendered message to one address. It performs no retry and no pacing.
type DeliveryClient interface {
	Send(ctx context.Context, msg model.Message) model.DeliveryResult
}
