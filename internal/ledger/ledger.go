// Package ledger implements the per-(room, date) inventory operations.
// Every mutating operation runs against a repository.Tx owned by the caller
// and follows the same contract: lock the room's rows in ascending date
// order, validate every row, then apply one counter update for the whole
// range.  A failed validation leaves the rows untouched.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// DefaultHorizonDays is how far ahead inventory is created for a room.
const DefaultHorizonDays = 365

// Surge factors are stored as DECIMAL(6,3).
const surgeScale = 3

var maxSurge = decimal.NewFromInt(1000)

// Ledger holds no state of its own; it validates and sequences Tx calls.
type Ledger struct {
	log     *zap.Logger
	horizon int
}

// New returns a ledger that creates horizonDays of inventory per room.
func New(log *zap.Logger, horizonDays int) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Ledger{log: log.Named("ledger"), horizon: horizonDays}
}

func rangeFields(roomID uint64, r model.DateRange) []zap.Field {
	return []zap.Field{
		zap.Uint64("room_id", roomID),
		zap.String("start", r.Start.Format(model.DateLayout)),
		zap.String("end", r.End.Format(model.DateLayout)),
	}
}

// lockRange locks the range and fails with kind unless a row exists for
// every day.
func (l *Ledger) lockRange(ctx context.Context, tx repository.Tx, op string, kind error, roomID uint64, r model.DateRange) ([]model.InventoryRow, error) {
	rows, err := tx.LockInventory(ctx, roomID, r)
	if err != nil {
		return nil, fmt.Errorf("%s: lock room %d: %w", op, roomID, err)
	}
	if len(rows) != r.Days() {
		return nil, apperr.New(op, kind, fmt.Sprintf("inventory covers %d of %d days", len(rows), r.Days())).WithRoom(roomID, r)
	}
	return rows, nil
}

// LockAndCheck locks every row of the range and verifies each day is open
// with at least n free rooms.  Any missing or failing day makes the whole
// range unavailable.
func (l *Ledger) LockAndCheck(ctx context.Context, tx repository.Tx, roomID uint64, r model.DateRange, n int) ([]model.InventoryRow, error) {
	const op = "ledger.lock_and_check"
	if n < 1 {
		return nil, apperr.New(op, apperr.ErrInvalidInput, "rooms needed must be at least 1").WithRoom(roomID, r)
	}
	rows, err := l.lockRange(ctx, tx, op, apperr.ErrInsufficientInventory, roomID, r)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Closed {
			return nil, apperr.New(op, apperr.ErrInsufficientInventory,
				"closed on "+row.Date.Format(model.DateLayout)).WithRoom(roomID, r)
		}
		if row.Free() < n {
			return nil, apperr.New(op, apperr.ErrInsufficientInventory,
				fmt.Sprintf("%d free on %s, need %d", row.Free(), row.Date.Format(model.DateLayout), n)).WithRoom(roomID, r)
		}
	}
	return rows, nil
}

// Reserve moves n rooms per day to reserved.  rows must come from
// LockAndCheck in the same transaction; they are re-validated so that a
// caller that broke that contract gets ErrOversell instead of a corrupt
// counter.
func (l *Ledger) Reserve(ctx context.Context, tx repository.Tx, roomID uint64, r model.DateRange, rows []model.InventoryRow, n int) error {
	const op = "ledger.reserve"
	if len(rows) != r.Days() {
		return apperr.New(op, apperr.ErrOversell, "rows do not cover the range").WithRoom(roomID, r)
	}
	for _, row := range rows {
		if row.RoomID != roomID || row.Closed || row.Free() < n {
			return apperr.New(op, apperr.ErrOversell,
				"capacity consumed on "+row.Date.Format(model.DateLayout)).WithRoom(roomID, r)
		}
	}
	if err := tx.AdjustCounts(ctx, roomID, r, n, 0); err != nil {
		return apperr.Wrap(op, apperr.ErrOversell, err).WithRoom(roomID, r)
	}
	return nil
}

// Confirm turns n reserved rooms per day into booked ones.
func (l *Ledger) Confirm(ctx context.Context, tx repository.Tx, roomID uint64, r model.DateRange, n int) error {
	const op = "ledger.confirm"
	rows, err := l.lockRange(ctx, tx, op, apperr.ErrInvalidState, roomID, r)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.ReservedCount < n || row.BookedCount+n > row.TotalCount {
			return apperr.New(op, apperr.ErrInvalidState, fmt.Sprintf("reserved=%d booked=%d total=%d on %s, need %d",
				row.ReservedCount, row.BookedCount, row.TotalCount, row.Date.Format(model.DateLayout), n)).WithRoom(roomID, r)
		}
	}
	if err := tx.AdjustCounts(ctx, roomID, r, -n, n); err != nil {
		return apperr.Wrap(op, apperr.ErrInvalidState, err).WithRoom(roomID, r)
	}
	return nil
}

// ReleaseBooked gives n booked rooms per day back to the pool.
func (l *Ledger) ReleaseBooked(ctx context.Context, tx repository.Tx, roomID uint64, r model.DateRange, n int) error {
	const op = "ledger.release_booked"
	rows, err := l.lockRange(ctx, tx, op, apperr.ErrInvalidState, roomID, r)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.BookedCount < n {
			return apperr.New(op, apperr.ErrInvalidState, fmt.Sprintf("booked=%d on %s, need %d",
				row.BookedCount, row.Date.Format(model.DateLayout), n)).WithRoom(roomID, r)
		}
	}
	if err := tx.AdjustCounts(ctx, roomID, r, 0, -n); err != nil {
		return apperr.Wrap(op, apperr.ErrInvalidState, err).WithRoom(roomID, r)
	}
	return nil
}

// ReleaseReserved gives n reserved rooms per day back to the pool.  Used
// by the expiry sweep for bookings that never paid.
func (l *Ledger) ReleaseReserved(ctx context.Context, tx repository.Tx, roomID uint64, r model.DateRange, n int) error {
	const op = "ledger.release_reserved"
	rows, err := l.lockRange(ctx, tx, op, apperr.ErrInvalidState, roomID, r)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.ReservedCount < n {
			return apperr.New(op, apperr.ErrInvalidState, fmt.Sprintf("reserved=%d on %s, need %d",
				row.ReservedCount, row.Date.Format(model.DateLayout), n)).WithRoom(roomID, r)
		}
	}
	if err := tx.AdjustCounts(ctx, roomID, r, -n, 0); err != nil {
		return apperr.Wrap(op, apperr.ErrInvalidState, err).WithRoom(roomID, r)
	}
	return nil
}

// AdminUpdate overwrites surge factor and closed flag for every row of the
// range regardless of bookings.  Days without a row are left alone.
func (l *Ledger) AdminUpdate(ctx context.Context, tx repository.Tx, roomID uint64, r model.DateRange, surge decimal.Decimal, closed bool) error {
	const op = "ledger.admin_update"
	if surge.IsNegative() || !surge.LessThan(maxSurge) {
		return apperr.New(op, apperr.ErrInvalidInput, "surge factor must be in [0, 1000)").WithRoom(roomID, r)
	}
	if !surge.Equal(surge.Truncate(surgeScale)) {
		return apperr.New(op, apperr.ErrInvalidInput, "surge factor allows at most 3 decimal places").WithRoom(roomID, r)
	}
	if _, err := tx.LockInventory(ctx, roomID, r); err != nil {
		return fmt.Errorf("%s: lock room %d: %w", op, roomID, err)
	}
	if err := tx.SetControls(ctx, roomID, r, surge, closed); err != nil {
		return fmt.Errorf("%s: room %d: %w", op, roomID, err)
	}
	l.log.Info("inventory controls updated", append(rangeFields(roomID, r),
		zap.String("surge_factor", surge.String()), zap.Bool("closed", closed))...)
	return nil
}

// SearchAvailable returns one page of active hotels in city with a room
// type free on every night of r for n rooms, plus the total match count.
func (l *Ledger) SearchAvailable(ctx context.Context, store repository.Reader, q repository.SearchQuery) ([]model.HotelSummary, int, error) {
	if q.Rooms < 1 {
		return nil, 0, apperr.New("ledger.search_available", apperr.ErrInvalidInput, "rooms must be at least 1")
	}
	return store.SearchHotels(ctx, q)
}

// InitializeRoom creates rows for [from, from+horizon] with the room's
// capacity, surge 1 and the base price.
func (l *Ledger) InitializeRoom(ctx context.Context, tx repository.Tx, hotel model.Hotel, room model.Room, from time.Time) error {
	start := model.Day(from)
	r := model.DateRange{Start: start, End: start.AddDate(0, 0, l.horizon)}
	rows := make([]model.InventoryRow, 0, r.Days())
	for _, d := range r.Dates() {
		rows = append(rows, model.InventoryRow{
			HotelID:     hotel.ID,
			RoomID:      room.ID,
			Date:        d,
			TotalCount:  room.TotalCount,
			SurgeFactor: decimal.NewFromInt(1),
			Price:       room.BasePrice.Round(2),
			City:        hotel.City,
		})
	}
	if err := tx.InsertInventory(ctx, rows); err != nil {
		return fmt.Errorf("ledger.initialize_room %d %s: %w", room.ID, r, err)
	}
	l.log.Info("inventory initialized", rangeFields(room.ID, r)...)
	return nil
}

// LockRoom locks the room's rows for [from, from+horizon] in date order.
// Taking it before counting a room's bookings makes a concurrent
// reservation either commit first or find no rows once the room is gone.
func (l *Ledger) LockRoom(ctx context.Context, tx repository.Tx, roomID uint64, from time.Time) error {
	start := model.Day(from)
	r := model.DateRange{Start: start, End: start.AddDate(0, 0, l.horizon)}
	if _, err := tx.LockInventory(ctx, roomID, r); err != nil {
		return fmt.Errorf("ledger.lock_room %d %s: %w", roomID, r, err)
	}
	return nil
}

// RemoveRoom deletes every inventory row of the room.  Callers hold the
// room's locks from LockRoom.
func (l *Ledger) RemoveRoom(ctx context.Context, tx repository.Tx, roomID uint64) error {
	if err := tx.DeleteRoomInventory(ctx, roomID); err != nil {
		return fmt.Errorf("ledger.remove_room %d: %w", roomID, err)
	}
	l.log.Info("inventory removed", zap.Uint64("room_id", roomID))
	return nil
}
