package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// insertChunk bounds the number of rows per bulk statement.
const insertChunk = 500

const inventoryColumns = `i.id, i.hotel_id, i.room_id, i.date, i.total_count, i.booked_count,
	i.reserved_count, i.surge_factor, i.price, i.closed, i.city, r.base_price`

func scanInventory(rows *sql.Rows) ([]model.InventoryRow, error) {
	defer rows.Close()
	var out []model.InventoryRow
	for rows.Next() {
		var inv model.InventoryRow
		if err := rows.Scan(&inv.ID, &inv.HotelID, &inv.RoomID, &inv.Date, &inv.TotalCount, &inv.BookedCount,
			&inv.ReservedCount, &inv.SurgeFactor, &inv.Price, &inv.Closed, &inv.City, &inv.BasePrice); err != nil {
			return nil, err
		}
		inv.Date = model.Day(inv.Date)
		out = append(out, inv)
	}
	return out, rows.Err()
}

// LockInventory locks the room's rows in date order.  FOR UPDATE OF i keeps
// the rooms row unlocked so disjoint date ranges of the same room do not
// serialize on it.
func (t *mysqlTx) LockInventory(ctx context.Context, roomID uint64, r model.DateRange) ([]model.InventoryRow, error) {
	q := `SELECT ` + inventoryColumns + `
		FROM inventory i JOIN rooms r ON r.id = i.room_id
		WHERE i.room_id = ? AND i.date BETWEEN ? AND ?
		ORDER BY i.date ASC
		FOR UPDATE OF i`
	rows, err := t.q.QueryContext(ctx, q, roomID, dateArg(r.Start), dateArg(r.End))
	if err != nil {
		return nil, fmt.Errorf("lock inventory: %w", err)
	}
	return scanInventory(rows)
}

func (t *mysqlTx) AdjustCounts(ctx context.Context, roomID uint64, r model.DateRange, reservedDelta, bookedDelta int) error {
	const q = `UPDATE inventory
		SET reserved_count = reserved_count + ?, booked_count = booked_count + ?
		WHERE room_id = ? AND date BETWEEN ? AND ?`
	res, err := t.q.ExecContext(ctx, q, reservedDelta, bookedDelta, roomID, dateArg(r.Start), dateArg(r.End))
	if err != nil {
		return fmt.Errorf("adjust counts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if int(n) != r.Days() {
		return fmt.Errorf("adjust counts: updated %d rows, want %d", n, r.Days())
	}
	return nil
}

func (t *mysqlTx) SetControls(ctx context.Context, roomID uint64, r model.DateRange, surge decimal.Decimal, closed bool) error {
	const q = `UPDATE inventory SET surge_factor = ?, closed = ?
		WHERE room_id = ? AND date BETWEEN ? AND ?`
	_, err := t.q.ExecContext(ctx, q, surge, closed, roomID, dateArg(r.Start), dateArg(r.End))
	return err
}

// SetPrices writes only the price column of each row.
func (t *mysqlTx) SetPrices(ctx context.Context, rows []model.InventoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := t.q.PrepareContext(ctx, `UPDATE inventory SET price = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Price, row.ID); err != nil {
			return fmt.Errorf("set price of inventory %d: %w", row.ID, err)
		}
	}
	return nil
}

func (t *mysqlTx) UpsertMinPrices(ctx context.Context, prices []model.HotelMinPrice) error {
	for start := 0; start < len(prices); start += insertChunk {
		end := min(start+insertChunk, len(prices))
		chunk := prices[start:end]
		args := make([]any, 0, len(chunk)*3)
		for _, p := range chunk {
			args = append(args, p.HotelID, dateArg(p.Date), p.Price)
		}
		q := `INSERT INTO hotel_min_prices (hotel_id, date, price) VALUES ` + placeholders(len(chunk), 3) +
			` ON DUPLICATE KEY UPDATE price = VALUES(price)`
		if _, err := t.q.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("upsert min prices: %w", err)
		}
	}
	return nil
}

func (t *mysqlTx) InsertInventory(ctx context.Context, rows []model.InventoryRow) error {
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		chunk := rows[start:end]
		args := make([]any, 0, len(chunk)*10)
		for _, r := range chunk {
			args = append(args, r.HotelID, r.RoomID, dateArg(r.Date), r.TotalCount, r.BookedCount,
				r.ReservedCount, r.SurgeFactor, r.Price, r.Closed, r.City)
		}
		q := `INSERT INTO inventory (hotel_id, room_id, date, total_count, booked_count,
			reserved_count, surge_factor, price, closed, city) VALUES ` + placeholders(len(chunk), 10)
		if _, err := t.q.ExecContext(ctx, q, args...); err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("insert inventory: %w", ErrConflict)
			}
			return fmt.Errorf("insert inventory: %w", err)
		}
	}
	return nil
}

func (t *mysqlTx) DeleteRoomInventory(ctx context.Context, roomID uint64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM inventory WHERE room_id = ?`, roomID)
	return err
}

// ListHotelInventory reads every row of the hotel in r without locking.
func (s *MySQLStore) ListHotelInventory(ctx context.Context, hotelID uint64, r model.DateRange) ([]model.InventoryRow, error) {
	q := `SELECT ` + inventoryColumns + `
		FROM inventory i JOIN rooms r ON r.id = i.room_id
		WHERE i.hotel_id = ? AND i.date BETWEEN ? AND ?
		ORDER BY i.room_id, i.date`
	rows, err := s.db.QueryContext(ctx, q, hotelID, dateArg(r.Start), dateArg(r.End))
	if err != nil {
		return nil, err
	}
	return scanInventory(rows)
}

func (s *MySQLStore) ListRoomInventory(ctx context.Context, roomID uint64, r model.DateRange) ([]model.InventoryRow, error) {
	q := `SELECT ` + inventoryColumns + `
		FROM inventory i JOIN rooms r ON r.id = i.room_id
		WHERE i.room_id = ? AND i.date BETWEEN ? AND ?
		ORDER BY i.date`
	rows, err := s.db.QueryContext(ctx, q, roomID, dateArg(r.Start), dateArg(r.End))
	if err != nil {
		return nil, err
	}
	return scanInventory(rows)
}

// availableHotels selects hotels having at least one room type that is open
// with enough free rooms on every night of the range.
const availableHotels = `SELECT DISTINCT ok.hotel_id FROM (
		SELECT i.hotel_id, i.room_id FROM inventory i
		WHERE i.city = ? AND i.date BETWEEN ? AND ? AND i.closed = FALSE
		  AND (i.total_count - i.booked_count - i.reserved_count) >= ?
		GROUP BY i.hotel_id, i.room_id
		HAVING COUNT(i.date) = ?
	) ok`

// SearchHotels joins availability with the average of the published
// minimum prices over the range.
func (s *MySQLStore) SearchHotels(ctx context.Context, q SearchQuery) ([]model.HotelSummary, int, error) {
	availArgs := []any{strings.TrimSpace(q.City), dateArg(q.Range.Start), dateArg(q.Range.End), q.Rooms, q.Range.Days()}

	countQ := `SELECT COUNT(*) FROM hotels h JOIN (` + availableHotels + `) a ON a.hotel_id = h.id WHERE h.active = TRUE`
	var total int
	if err := s.db.QueryRowContext(ctx, countQ, availArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count hotels: %w", err)
	}
	if total == 0 {
		return []model.HotelSummary{}, 0, nil
	}

	listQ := `SELECT h.id, h.name, h.city, COALESCE(AVG(mp.price), 0) AS avg_price
		FROM hotels h
		JOIN (` + availableHotels + `) a ON a.hotel_id = h.id
		LEFT JOIN hotel_min_prices mp ON mp.hotel_id = h.id AND mp.date BETWEEN ? AND ?
		WHERE h.active = TRUE
		GROUP BY h.id, h.name, h.city
		ORDER BY avg_price ASC, h.id ASC
		LIMIT ? OFFSET ?`
	args := append(availArgs, dateArg(q.Range.Start), dateArg(q.Range.End), q.PageSize, (q.Page-1)*q.PageSize)
	rows, err := s.db.QueryContext(ctx, listQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search hotels: %w", err)
	}
	defer rows.Close()
	out := make([]model.HotelSummary, 0, q.PageSize)
	for rows.Next() {
		var h model.HotelSummary
		if err := rows.Scan(&h.HotelID, &h.Name, &h.City, &h.Price); err != nil {
			return nil, 0, err
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}
