package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotificationStatus is the canonical lifecycle of a notification record.
// Transitions are monotonic: PENDING moves once to SENT or FAILED and never back.
type NotificationStatus string

const (
	// NotificationStatusPending marks a notification awaiting delivery.
	NotificationStatusPending NotificationStatus = "PENDING"
	// NotificationStatusSent marks a delivered notification.
	NotificationStatusSent NotificationStatus = "SENT"
	// NotificationStatusFailed marks a notification that will not be delivered.
	NotificationStatusFailed NotificationStatus = "FAILED"
)

// Terminal reports whether the status can no longer change.
func (s NotificationStatus) Terminal() bool {
	return s == NotificationStatusSent || s == NotificationStatusFailed
}

// Notification is a persisted outbound message request produced by another feature.
type Notification struct {
	ID           int64              `json:"id"                      db:"id"`
	UserID       int64              `json:"user_id"                 db:"user_id"`
	TemplateID   *int64             `json:"template_id,omitempty"   db:"template_id"`
	Channel      Channel            `json:"channel"                 db:"channel"`
	Status       NotificationStatus `json:"status"                  db:"status"`
	Payload      json.RawMessage    `json:"payload"                 db:"payload"`
	SentAt       *time.Time         `json:"sent_at,omitempty"       db:"sent_at"`
	FailedAt     *time.Time         `json:"failed_at,omitempty"     db:"failed_at"`
	FailedReason *string            `json:"failed_reason,omitempty" db:"failed_reason"`
	CreatedAt    time.Time          `json:"created_at"              db:"created_at"`
}

// ContentInput is a field value supplied when a notification is enqueued.
type ContentInput struct {
	FieldID int64  `json:"field_id"`
	Content string `json:"content"`
}

// EnqueueRequest describes a notification to persist together with its content and job.
type EnqueueRequest struct {
	UserID     int64           `json:"user_id"`
	TemplateID *int64          `json:"template_id,omitempty"`
	Channel    Channel         `json:"channel"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Contents   []ContentInput  `json:"contents,omitempty"`
}

// EnqueueResult reports the identifiers created by an enqueue.
type EnqueueResult struct {
	NotificationID int64 `json:"notification_id"`
	JobID          int64 `json:"job_id"`
}

// Validate checks the request shape and that the payload matches the channel schema.
func (r *EnqueueRequest) Validate() error {
	if r.UserID <= 0 {
		return errors.New("user id is required")
	}
	if !r.Channel.Valid() {
		return errors.New("invalid channel")
	}
	if r.TemplateID != nil && *r.TemplateID <= 0 {
		return errors.New("template id must be positive")
	}
	for i, c := range r.Contents {
		if c.FieldID <= 0 {
			return fmt.Errorf("contents[%d]: field id is required", i)
		}
		if strings.TrimSpace(c.Content) == "" {
			return fmt.Errorf("contents[%d]: content is required", i)
		}
	}
	if _, err := DecodePayload(r.Channel, r.Payload); err != nil {
		return err
	}
	return nil
}
