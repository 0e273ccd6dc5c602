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

// addressColumns maps a channel to its primary and secondary address columns on users.
var addressColumns = map[model.Channel][2]string{
	model.ChannelWhatsApp: {"whatsapp_number", "phone"},
	model.ChannelEmail:    {"email", "alternate_email"},
	model.ChannelSMS:      {"phone", "whatsapp_number"},
}

// ContactRepo is the contact directory backed by the users table.
type ContactRepo struct {
	DB *sql.DB
}

var _ core.ContactDirectory = (*ContactRepo)(nil)

// NewContactRepo creates a new ContactRepo.
func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{DB: db}
}

func contactSelect(channel model.Channel) (string, error) {
	cols, ok := addressColumns[channel]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
	}
	return fmt.Sprintf(`
		SELECT id, COALESCE(%s, ''), COALESCE(%s, ''), role, staging_opt_in, is_active, is_suspended
		FROM users`, cols[0], cols[1]), nil
}

func scanContact(scanner rowScanner) (model.Contact, error) {
	var c model.Contact
	err := scanner.Scan(
		&c.UserID,
		&c.PrimaryAddress,
		&c.SecondaryAddress,
		&c.Role,
		&c.StagingOptIn,
		&c.Active,
		&c.Suspended,
	)
	return c, err
}

// Lookup returns the contact for userID with addresses for channel.
func (r *ContactRepo) Lookup(ctx context.Context, channel model.Channel, userID int64) (*model.Contact, error) {
	base, err := contactSelect(channel)
	if err != nil {
		return nil, err
	}
	c, err := scanContact(r.DB.QueryRowContext(ctx, base+` WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("lookup contact %d: %w", userID, apperrors.MapDBError(err))
	}
	return &c, nil
}

// ListStagingRecipients returns staff contacts eligible for staging traffic, by id.
func (r *ContactRepo) ListStagingRecipients(ctx context.Context, channel model.Channel, limit int) ([]model.Contact, error) {
	if limit <= 0 {
		return nil, ErrNonPositiveBatchSize
	}
	base, err := contactSelect(channel)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, base+`
		WHERE role = $1 AND staging_opt_in = TRUE AND is_active = TRUE AND is_suspended = FALSE
		ORDER BY id ASC
		LIMIT $2`, model.ContactRoleStaff, limit)
	if err != nil {
		return nil, fmt.Errorf("list staging recipients: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}
