package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
)

const bookingColumns = `id, hotel_id, room_id, user_id, rooms_count, check_in_date, check_out_date,
	status, amount, payment_session_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var (
		b       model.Booking
		status  string
		session sql.NullString
	)
	err := s.Scan(&b.ID, &b.HotelID, &b.RoomID, &b.UserID, &b.RoomsCount, &b.CheckIn, &b.CheckOut,
		&status, &b.Amount, &session, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.CheckIn = model.Day(b.CheckIn)
	b.CheckOut = model.Day(b.CheckOut)
	if session.Valid {
		b.PaymentSessionID = session.String
	}
	return b, nil
}

func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func loadGuests(ctx context.Context, q querier, bookingID uint64) ([]model.Guest, error) {
	const query = `SELECT g.id, g.user_id, g.name, g.age, g.gender
		FROM guests g JOIN booking_guests bg ON bg.guest_id = g.id
		WHERE bg.booking_id = ? ORDER BY g.id`
	rows, err := q.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Guest
	for rows.Next() {
		var (
			g      model.Guest
			gender string
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.Age, &gender); err != nil {
			return nil, err
		}
		g.Gender = model.Gender(gender)
		out = append(out, g)
	}
	return out, rows.Err()
}

// getBooking loads a booking and its guests; suffix may add a locking clause.
func getBooking(ctx context.Context, q querier, where string, arg any, suffix string) (model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + where + ` LIMIT 1` + suffix
	b, err := scanBooking(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		return model.Booking{}, notFound(err, "booking", arg)
	}
	guests, err := loadGuests(ctx, q, b.ID)
	if err != nil {
		return model.Booking{}, err
	}
	b.Guests = guests
	return b, nil
}

func nullableSession(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *MySQLStore) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	return getBooking(ctx, s.db, "id = ?", id, "")
}

func (s *MySQLStore) ListUserBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return queryBookings(ctx, s.db, `SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY id DESC`, userID)
}

func (s *MySQLStore) ListHotelBookings(ctx context.Context, hotelID uint64) ([]model.Booking, error) {
	return queryBookings(ctx, s.db, `SELECT `+bookingColumns+` FROM bookings WHERE hotel_id = ? ORDER BY id DESC`, hotelID)
}

func (s *MySQLStore) ListStaleBookings(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	const q = `SELECT id FROM bookings
		WHERE status IN ('RESERVED', 'GUESTS_ADDED', 'PAYMENT_PENDING') AND created_at < ?
		ORDER BY id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateBooking inserts b and sets its generated id.
func (t *mysqlTx) CreateBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (hotel_id, room_id, user_id, rooms_count, check_in_date, check_out_date,
		status, amount, payment_session_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := t.q.ExecContext(ctx, q, b.HotelID, b.RoomID, b.UserID, b.RoomsCount, dateArg(b.CheckIn),
		dateArg(b.CheckOut), string(b.Status), b.Amount, nullableSession(b.PaymentSessionID),
		b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

func (t *mysqlTx) LockBooking(ctx context.Context, id uint64) (model.Booking, error) {
	return getBooking(ctx, t.q, "id = ?", id, " FOR UPDATE")
}

func (t *mysqlTx) LockBookingBySession(ctx context.Context, sessionID string) (model.Booking, error) {
	return getBooking(ctx, t.q, "payment_session_id = ?", sessionID, " FOR UPDATE")
}

func (t *mysqlTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	const q = `UPDATE bookings SET status = ?, payment_session_id = ?, updated_at = ? WHERE id = ?`
	res, err := t.q.ExecContext(ctx, q, string(b.Status), nullableSession(b.PaymentSessionID), b.UpdatedAt.UTC(), b.ID)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("booking %d: %w", b.ID, ErrConflict)
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("booking %d: %w", b.ID, ErrNotFound)
	}
	return nil
}

func (t *mysqlTx) AttachGuests(ctx context.Context, bookingID uint64, guests []model.Guest) error {
	for i := range guests {
		g := &guests[i]
		res, err := t.q.ExecContext(ctx, `INSERT INTO guests (user_id, name, age, gender) VALUES (?, ?, ?, ?)`,
			g.UserID, g.Name, g.Age, string(g.Gender))
		if err != nil {
			return fmt.Errorf("insert guest: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		g.ID = uint64(id)
		if _, err := t.q.ExecContext(ctx, `INSERT INTO booking_guests (booking_id, guest_id) VALUES (?, ?)`,
			bookingID, g.ID); err != nil {
			return fmt.Errorf("link guest: %w", err)
		}
	}
	return nil
}

func (t *mysqlTx) CountOpenBookings(ctx context.Context, roomID uint64, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings
		WHERE room_id = ? AND (status IN ('RESERVED', 'GUESTS_ADDED', 'PAYMENT_PENDING')
		   OR (status = 'CONFIRMED' AND check_out_date >= ?))`
	var n int
	err := t.q.QueryRowContext(ctx, q, roomID, dateArg(since)).Scan(&n)
	return n, err
}
