package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/attendance/internal/model"
)

func TestCreateTxLoadsDatabaseTimestamps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Second)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at, updated_at FROM registrations WHERE id = ?")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(created, updated))

	tx, err := db.Begin()
	require.NoError(t, err)

	reg := &model.Registration{
		EventID:       1,
		AttendeeEmail: "a@x.com",
		Status:        model.StatusConfirmed,
		CheckInToken:  "c0ffee",
	}
	repo := NewRegistrationRepo(db)
	require.NoError(t, repo.CreateTx(context.Background(), tx, reg))

	assert.Equal(t, uint64(7), reg.ID)
	// The row is read back after insert so responses and confirmation
	// events carry the database clock, never the zero time.
	assert.Equal(t, created, reg.CreatedAt)
	assert.Equal(t, updated, reg.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
