package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic360/notifier/internal/domain/model"
)

var contactCols = []string{"id", "primary", "secondary", "role", "staging_opt_in", "is_active", "is_suspended"}

func newContactRepoMock(t *testing.T) (*ContactRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewContactRepo(db), mock
}

func TestContactRepo_Lookup_ChannelColumns(t *testing.T) {
	tests := []struct {
		channel model.Channel
		columns string
	}{
		{channel: model.ChannelWhatsApp, columns: "COALESCE(whatsapp_number, ''), COALESCE(phone, '')"},
		{channel: model.ChannelEmail, columns: "COALESCE(email, ''), COALESCE(alternate_email, '')"},
		{channel: model.ChannelSMS, columns: "COALESCE(phone, ''), COALESCE(whatsapp_number, '')"},
	}

	for _, tt := range tests {
		t.Run(string(tt.channel), func(t *testing.T) {
			repo, mock := newContactRepoMock(t)
			mock.ExpectQuery(q(tt.columns)).
				WithArgs(int64(3)).
				WillReturnRows(sqlmock.NewRows(contactCols).
					AddRow(int64(3), "primary", "", "STUDENT", false, true, false))

			c, err := repo.Lookup(context.Background(), tt.channel, 3)
			require.NoError(t, err)
			assert.Equal(t, "primary", c.Address())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestContactRepo_Lookup_NotFound(t *testing.T) {
	repo, mock := newContactRepoMock(t)
	mock.ExpectQuery(q("FROM users WHERE id = $1")).WillReturnError(sql.ErrNoRows)

	_, err := repo.Lookup(context.Background(), model.ChannelEmail, 5)
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestContactRepo_Lookup_UnsupportedChannel(t *testing.T) {
	repo, _ := newContactRepoMock(t)
	_, err := repo.Lookup(context.Background(), "pager", 5)
	assert.ErrorIs(t, err, ErrUnsupportedChannel)
}

func TestContactRepo_ListStagingRecipients(t *testing.T) {
	repo, mock := newContactRepoMock(t)
	mock.ExpectQuery(q("WHERE role = $1 AND staging_opt_in = TRUE AND is_active = TRUE AND is_suspended = FALSE")).
		WithArgs(model.ContactRoleStaff, 500).
		WillReturnRows(sqlmock.NewRows(contactCols).
			AddRow(int64(1), "+911", "", "STAFF", true, true, false).
			AddRow(int64(2), "", "+912", "STAFF", true, true, false))

	contacts, err := repo.ListStagingRecipients(context.Background(), model.ChannelWhatsApp, 500)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "+911", contacts[0].Address())
	assert.Equal(t, "+912", contacts[1].Address())
	assert.True(t, contacts[1].EligibleForStaging())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepo_ListStagingRecipients_RejectsZeroLimit(t *testing.T) {
	repo, _ := newContactRepoMock(t)
	_, err := repo.ListStagingRecipients(context.Background(), model.ChannelSMS, 0)
	assert.ErrorIs(t, err, ErrNonPositiveBatchSize)
}
