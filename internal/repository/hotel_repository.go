package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/hotel-booking/internal/model"
)

const (
	hotelColumns = `id, name, city, active, owner_id, created_at, updated_at`
	roomColumns  = `id, hotel_id, type, base_price, total_count, capacity, created_at, updated_at`
)

func scanHotel(s rowScanner) (model.Hotel, error) {
	var h model.Hotel
	err := s.Scan(&h.ID, &h.Name, &h.City, &h.Active, &h.OwnerID, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

func scanRoom(s rowScanner) (model.Room, error) {
	var r model.Room
	err := s.Scan(&r.ID, &r.HotelID, &r.Type, &r.BasePrice, &r.TotalCount, &r.Capacity, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *MySQLStore) GetHotel(ctx context.Context, id uint64) (model.Hotel, error) {
	h, err := scanHotel(s.db.QueryRowContext(ctx, `SELECT `+hotelColumns+` FROM hotels WHERE id = ? LIMIT 1`, id))
	if err != nil {
		return model.Hotel{}, notFound(err, "hotel", id)
	}
	return h, nil
}

func (s *MySQLStore) GetRoom(ctx context.Context, id uint64) (model.Room, error) {
	r, err := scanRoom(s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ? LIMIT 1`, id))
	if err != nil {
		return model.Room{}, notFound(err, "room", id)
	}
	return r, nil
}

func (s *MySQLStore) ListRooms(ctx context.Context, hotelID uint64) ([]model.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE hotel_id = ? ORDER BY id`, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *MySQLStore) ListActiveHotelIDs(ctx context.Context, afterID uint64, limit int) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM hotels WHERE active = TRUE AND id > ? ORDER BY id LIMIT ?`, afterID, limit)
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

func (t *mysqlTx) CreateHotel(ctx context.Context, h *model.Hotel) error {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO hotels (name, city, active, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(h.Name), strings.TrimSpace(h.City), h.Active, h.OwnerID, h.CreatedAt.UTC(), h.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert hotel: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

func (t *mysqlTx) LockHotel(ctx context.Context, id uint64) (model.Hotel, error) {
	h, err := scanHotel(t.q.QueryRowContext(ctx, `SELECT `+hotelColumns+` FROM hotels WHERE id = ? LIMIT 1 FOR UPDATE`, id))
	if err != nil {
		return model.Hotel{}, notFound(err, "hotel", id)
	}
	return h, nil
}

func (t *mysqlTx) SetHotelActive(ctx context.Context, id uint64, active bool) error {
	_, err := t.q.ExecContext(ctx, `UPDATE hotels SET active = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, active, id)
	return err
}

func (t *mysqlTx) CreateRoom(ctx context.Context, r *model.Room) error {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO rooms (hotel_id, type, base_price, total_count, capacity, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.HotelID, r.Type, r.BasePrice, r.TotalCount, r.Capacity, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

func (t *mysqlTx) DeleteRoom(ctx context.Context, id uint64) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	return nil
}
