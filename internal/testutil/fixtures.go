package testutil

import (
	"context"
	"database/sql"
)

// UserFixture describes a row in users.
type UserFixture struct {
	Name           string
	Email          string
	AlternateEmail string
	Phone          string
	WhatsApp       string
	Role           string
	StagingOptIn   bool
	Suspended      bool
}

// InsertUser writes a user and returns its id.
func InsertUser(t TestingTB, db *sql.DB, u UserFixture) int64 {
	t.Helper()
	if u.Role == "" {
		u.Role = "STUDENT"
	}
	var id int64
	err := db.QueryRowContext(context.Background(), `
		INSERT INTO users (name, email, alternate_email, phone, whatsapp_number, role, staging_opt_in, is_active, is_suspended)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, TRUE, $8)
		RETURNING id`,
		u.Name, u.Email, u.AlternateEmail, u.Phone, u.WhatsApp, u.Role, u.StagingOptIn, u.Suspended,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

// InsertTemplate writes a template with one enabled field per name, in order, and
// returns the template id and the field ids.
func InsertTemplate(t TestingTB, db *sql.DB, name string, active bool, fields ...string) (int64, []int64) {
	t.Helper()
	ctx := context.Background()

	var templateID int64
	if err := db.QueryRowContext(ctx,
		`INSERT INTO notification_templates (name, is_active) VALUES ($1, $2) RETURNING id`,
		name, active,
	).Scan(&templateID); err != nil {
		t.Fatalf("insert template: %v", err)
	}

	fieldIDs := make([]int64, 0, len(fields))
	for i, f := range fields {
		var fieldID int64
		if err := db.QueryRowContext(ctx,
			`INSERT INTO template_fields (template_id, name) VALUES ($1, $2) RETURNING id`,
			templateID, f,
		).Scan(&fieldID); err != nil {
			t.Fatalf("insert template field: %v", err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO template_field_sequences (template_id, field_id, sequence, enabled) VALUES ($1, $2, $3, TRUE)`,
			templateID, fieldID, i+1,
		); err != nil {
			t.Fatalf("insert field sequence: %v", err)
		}
		fieldIDs = append(fieldIDs, fieldID)
	}
	return templateID, fieldIDs
}
