// Package model defines the core data types shared by the notification delivery engine.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Channel identifies the outbound transport a job is delivered through.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Channel string

const (
	// ChannelWhatsApp delivers template messages through the WhatsApp provider.
	ChannelWhatsApp Channel = "whatsapp"
	// ChannelEmail delivers templated email.
	ChannelEmail Channel = "email"
	// ChannelSMS delivers plain text messages.
	ChannelSMS Channel = "sms"
)

// Channels returns every supported channel.
func Channels() []Channel {
	return []Channel{ChannelWhatsApp, ChannelEmail, ChannelSMS}
}

// Valid returns true if the Channel is supported.
func (c Channel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelEmail || c == ChannelSMS
}

// UnmarshalText implements encoding.TextUnmarshaler for env and flag parsing.
func (c *Channel) UnmarshalText(text []byte) error {
	v := Channel(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid channel: %q", string(text))
	}
	*c = v
	return nil
}

// JobStatus is the lifecycle state of a delivery job.
type JobStatus string

const (
	// JobStatusPending marks a job waiting for a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusClaimed marks a job owned by a worker until its claim expires.
	JobStatusClaimed JobStatus = "claimed"
	// JobStatusDone marks a job whose notification was delivered (or needed no delivery).
	JobStatusDone JobStatus = "done"
	// JobStatusFailed marks a job that failed permanently or exhausted its retries.
	JobStatusFailed JobStatus = "failed"
)

// Valid returns true if the JobStatus is known.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusClaimed || s == JobStatusDone || s == JobStatusFailed
}

// Terminal reports whether no further processing may happen for the job.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// ErrNoJobsAvailable is returned when a claim finds nothing to hand out.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Job is one attempt-series for delivering a notification. Jobs are never
// hard-deleted; the terminal status plus its timestamp is the audit trail.
type Job struct {
	ID             int64      `json:"id"                         db:"id"`
	NotificationID int64      `json:"notification_id"            db:"notification_id"`
	Channel        Channel    `json:"channel"                    db:"channel"`
	Status         JobStatus  `json:"status"                     db:"status"`
	RetryAttempts  int        `json:"retry_attempts"             db:"retry_attempts"`
	ClaimedBy      *string    `json:"claimed_by,omitempty"       db:"claimed_by"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"       db:"claimed_at"`
	ClaimExpiresAt *time.Time `json:"claim_expires_at,omitempty" db:"claim_expires_at"`
	NextAttemptAt  time.Time  `json:"next_attempt_at"            db:"next_attempt_at"`
	DoneAt         *time.Time `json:"done_at,omitempty"          db:"done_at"`
	FailedAt       *time.Time `json:"failed_at,omitempty"        db:"failed_at"`
	FailureReason  *string    `json:"failure_reason,omitempty"   db:"failure_reason"`
	CreatedAt      time.Time  `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"                 db:"updated_at"`

	// Notification is joined in by the batch fetcher.
	Notification Notification `json:"notification"`
	// Payload is the notification payload decoded once at fetch time.
	Payload Payload `json:"-"`
	// PayloadErr holds the decode failure, if any. Processing treats it as retryable.
	PayloadErr error `json:"-"`
}

// Terminal reports whether the job has reached done or failed.
func (j *Job) Terminal() bool {
	return j != nil && j.Status.Terminal()
}

// TerminalAt returns the timestamp at which the job went terminal, if it has.
func (j *Job) TerminalAt() *time.Time {
	if j == nil {
		return nil
	}
	switch j.Status {
	case JobStatusDone:
		return j.DoneAt
	case JobStatusFailed:
		return j.FailedAt
	case JobStatusPending, JobStatusClaimed:
		return nil
	}
	return nil
}

// ClaimedByOwner reports whether owner currently holds the claim.
func (j *Job) ClaimedByOwner(owner string) bool {
	return j != nil && j.Status == JobStatusClaimed && j.ClaimedBy != nil && *j.ClaimedBy == owner
}

// QueueStats summarises job counts per status for a channel.
type QueueStats struct {
	Channel Channel `json:"channel"`
	Pending int64   `json:"pending"`
	Claimed int64   `json:"claimed"`
	Done    int64   `json:"done"`
	Failed  int64   `json:"failed"`
}

// Total returns the sum of all statuses.
func (s QueueStats) Total() int64 {
	return s.Pending + s.Claimed + s.Done + s.Failed
}
