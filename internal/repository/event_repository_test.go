package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventRow(capacity any) *sqlmock.Rows {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "title", "event_date", "registration_open", "registration_deadline",
		"capacity", "price_amount", "price_currency", "created_at", "updated_at",
	}).AddRow(1, "Go Systems Summit", now.AddDate(0, 0, 7), true, nil, capacity, nil, nil, now, now)
}

func TestGetByIDCapacitySentinels(t *testing.T) {
	cases := []struct {
		name   string
		column any
		want   *int64
	}{
		{name: "null is unlimited", column: nil, want: nil},
		{name: "legacy zero is unlimited", column: 0, want: nil},
		{name: "positive is the capacity", column: 12, want: capOf(12)},
		// Corrupt data fails safe to a full event, never unlimited.
		{name: "negative clamps to full", column: -5, want: capOf(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE id = ?")).
				WithArgs(uint64(1)).
				WillReturnRows(eventRow(tc.column))

			ev, err := NewEventRepo(db).GetByID(context.Background(), 1)
			require.NoError(t, err)
			if tc.want == nil {
				assert.Nil(t, ev.Capacity)
				assert.True(t, ev.Unlimited())
			} else {
				require.NotNil(t, ev.Capacity)
				assert.Equal(t, *tc.want, *ev.Capacity)
				assert.False(t, ev.Unlimited())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func capOf(n int64) *int64 { return &n }
