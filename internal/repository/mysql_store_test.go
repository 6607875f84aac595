package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/model"
)

var (
	june1 = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	june3 = time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewMySQLStore(db, nil), mock
}

func TestInTxCommitsAdjustedCounts(t *testing.T) {
	s, mock := newMock(t)
	r := model.DateRange{Start: june1, End: june3}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inventory")).
		WithArgs(-1, 1, 7, "2026-06-01", "2026-06-03").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.AdjustCounts(ctx, 7, r, -1, 1)
	})
	require.NoError(t, err)
}

func TestInTxRollsBackOnMissingRows(t *testing.T) {
	s, mock := newMock(t)
	r := model.DateRange{Start: june1, End: june3}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inventory")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.AdjustCounts(ctx, 7, r, 1, 0)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "updated 2 rows, want 3")
}

func TestLockInventoryScansRows(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "hotel_id", "room_id", "date", "total_count", "booked_count",
		"reserved_count", "surge_factor", "price", "closed", "city", "base_price"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF i")).
		WithArgs(7, "2026-06-01", "2026-06-01").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(11, 2, 7, june1.Add(3*time.Hour), 5, 1, 2, "1.25", "125.00", false, "Lisbon", "100.00"))
	mock.ExpectCommit()

	var rows []model.InventoryRow
	err := s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		rows, err = tx.LockInventory(ctx, 7, model.DateRange{Start: june1, End: june1})
		return err
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, june1, row.Date)
	assert.Equal(t, 2, row.Free())
	assert.True(t, row.SurgeFactor.Equal(decimal.RequireFromString("1.25")))
	assert.Equal(t, "100.00", row.BasePrice.StringFixed(2))
	assert.Equal(t, "Lisbon", row.City)
}

func TestGetBookingNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = ?")).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetBooking(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetBookingWithGuests(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2026, 5, 30, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = ?")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "hotel_id", "room_id", "user_id", "rooms_count",
			"check_in_date", "check_out_date", "status", "amount", "payment_session_id", "created_at", "updated_at"}).
			AddRow(5, 2, 7, 100, 1, june1, june3, "PAYMENT_PENDING", "345.00", "cs_1", created, created))
	mock.ExpectQuery(regexp.QuoteMeta("FROM guests g JOIN booking_guests")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "age", "gender"}).
			AddRow(1, 100, "Ana", 31, "FEMALE"))

	b, err := s.GetBooking(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaymentPending, b.Status)
	assert.Equal(t, "cs_1", b.PaymentSessionID)
	assert.Equal(t, "345.00", b.Amount.StringFixed(2))
	assert.Equal(t, 3, b.Range().Days())
	require.Len(t, b.Guests, 1)
	assert.Equal(t, model.GenderFemale, b.Guests[0].Gender)
}

func TestUpdateBookingDuplicateSession(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = ?")).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'cs_1' for key 'payment_session_id'"))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateBooking(ctx, &model.Booking{ID: 5, Status: model.StatusPaymentPending, PaymentSessionID: "cs_1"})
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestUpdateBookingMatchedRows(t *testing.T) {
	s, mock := newMock(t)
	b := &model.Booking{ID: 5, Status: model.StatusPaymentPending, PaymentSessionID: "cs_1", UpdatedAt: june1}

	// an identical rewrite still matches the row
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = ?")).
		WithArgs("PAYMENT_PENDING", "cs_1", june1, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateBooking(ctx, b)
	}))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	err := s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateBooking(ctx, b)
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchHotels(t *testing.T) {
	s, mock := newMock(t)
	q := SearchQuery{City: " Lisbon ", Range: model.DateRange{Start: june1, End: june3}, Rooms: 2, Page: 2, PageSize: 10}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM hotels h")).
		WithArgs("Lisbon", "2026-06-01", "2026-06-03", 2, 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN hotel_min_prices")).
		WithArgs("Lisbon", "2026-06-01", "2026-06-03", 2, 3, "2026-06-01", "2026-06-03", 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "city", "avg_price"}).
			AddRow(31, "Harbor", "Lisbon", "92.3333"))

	hits, total, err := s.SearchHotels(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(31), hits[0].HotelID)
	assert.Equal(t, "92.33", hits[0].Price.StringFixed(2))
}

func TestSearchHotelsSkipsListWhenEmpty(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM hotels h")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	hits, total, err := s.SearchHotels(context.Background(), SearchQuery{
		City: "Oslo", Range: model.DateRange{Start: june1, End: june1}, Rooms: 1, Page: 1, PageSize: 20,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, hits)
}

func TestUpsertMinPricesSingleStatement(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO hotel_min_prices (hotel_id, date, price) VALUES (?, ?, ?), (?, ?, ?) ON DUPLICATE KEY")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpsertMinPrices(ctx, []model.HotelMinPrice{
			{HotelID: 1, Date: june1, Price: decimal.NewFromInt(80)},
			{HotelID: 1, Date: june3, Price: decimal.NewFromInt(90)},
		})
	})
	require.NoError(t, err)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("ana@example.com", "Ana", sqlmock.AnyArg(), "GUEST").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry"))

	_, err = NewUserRepo(db).Create(context.Background(), " Ana@Example.com ", "Ana", "s3cret-pass", model.RoleGuest, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "(?, ?)", placeholders(1, 2))
	assert.Equal(t, "(?, ?, ?), (?, ?, ?)", placeholders(2, 3))
}
