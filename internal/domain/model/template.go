package model

import "time"

// Template is a named provider template. The engine only reads templates.
type Template struct {
	ID        int64     `json:"id"         db:"id"`
	Name      string    `json:"name"       db:"name"`
	IsActive  bool      `json:"is_active"  db:"is_active"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FieldSequenceEntry places a template field at a position in the message body.
// Only enabled entries contribute body values.
type FieldSequenceEntry struct {
	TemplateID int64 `json:"template_id" db:"template_id"`
	FieldID    int64 `json:"field_id"    db:"field_id"`
	Sequence   int   `json:"sequence"    db:"sequence"`
	Enabled    bool  `json:"enabled"     db:"enabled"`
}

// ContentValue is one append-only value for a template field. Several values may
// share a field; they are consumed oldest first.
type ContentValue struct {
	ID             int64     `json:"id"              db:"id"`
	NotificationID int64     `json:"notification_id" db:"notification_id"`
	FieldID        int64     `json:"field_id"        db:"field_id"`
	Content        string    `json:"content"         db:"content"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
}

// ResolvedTemplate is the output of template resolution.
type ResolvedTemplate struct {
	TemplateName string
	BodyValues   []string
	// Expected is the number of enabled field entries, zero when a fallback list was used.
	Expected int
}
