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

func newTemplateRepoMock(t *testing.T) (*TemplateRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTemplateRepo(db), mock
}

func TestTemplateRepo_GetByID(t *testing.T) {
	repo, mock := newTemplateRepoMock(t)
	mock.ExpectQuery(q("FROM notification_templates WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_active", "updated_at"}).
			AddRow(int64(7), "fee_reminder", true, testNow))

	tpl, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, &model.Template{ID: 7, Name: "fee_reminder", IsActive: true, UpdatedAt: testNow}, tpl)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepo_GetByID_NotFound(t *testing.T) {
	repo, mock := newTemplateRepoMock(t)
	mock.ExpectQuery(q("FROM notification_templates")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateRepo_ListEnabled(t *testing.T) {
	repo, mock := newTemplateRepoMock(t)
	mock.ExpectQuery(q("WHERE template_id = $1 AND enabled = TRUE ORDER BY sequence ASC, field_id ASC")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"template_id", "field_id", "sequence", "enabled"}).
			AddRow(int64(7), int64(11), int64(1), true).
			AddRow(int64(7), int64(12), int64(2), true))

	entries, err := repo.ListEnabled(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(11), entries[0].FieldID)
	assert.Equal(t, 2, entries[1].Sequence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepo_ListByNotification(t *testing.T) {
	repo, mock := newTemplateRepoMock(t)
	mock.ExpectQuery(q("FROM notification_contents WHERE notification_id = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "notification_id", "field_id", "content", "created_at"}).
			AddRow(int64(1), int64(42), int64(11), "Asha", testNow).
			AddRow(int64(2), int64(42), int64(11), "Ravi", testNow))

	values, err := repo.ListByNotification(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "Asha", values[0].Content)
	assert.Equal(t, "Ravi", values[1].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}
