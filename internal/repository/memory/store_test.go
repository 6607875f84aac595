package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

var day0 = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, city string, total, days int) (model.Hotel, model.Room) {
	t.Helper()
	ctx := context.Background()
	h := model.Hotel{Name: "Harbor", City: city, Active: true, OwnerID: 1}
	r := model.Room{Type: "double", BasePrice: decimal.NewFromInt(100), TotalCount: total, Capacity: 2}
	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateHotel(ctx, &h); err != nil {
			return err
		}
		r.HotelID = h.ID
		if err := tx.CreateRoom(ctx, &r); err != nil {
			return err
		}
		rows := make([]model.InventoryRow, 0, days)
		for i := 0; i < days; i++ {
			rows = append(rows, model.InventoryRow{
				HotelID: h.ID, RoomID: r.ID, Date: day0.AddDate(0, 0, i), TotalCount: total,
				SurgeFactor: decimal.NewFromInt(1), Price: r.BasePrice, City: city,
			})
		}
		return tx.InsertInventory(ctx, rows)
	})
	require.NoError(t, err)
	return h, r
}

func rng(from, to int) model.DateRange {
	return model.DateRange{Start: day0.AddDate(0, 0, from), End: day0.AddDate(0, 0, to)}
}

func TestLockInventoryReturnsRowsInDateOrderWithBasePrice(t *testing.T) {
	s := New()
	_, room := seed(t, s, "Lisbon", 3, 5)

	err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		rows, err := tx.LockInventory(ctx, room.ID, rng(1, 3))
		require.NoError(t, err)
		require.Len(t, rows, 3)
		for i, row := range rows {
			assert.Equal(t, day0.AddDate(0, 0, i+1), row.Date)
			assert.Equal(t, "100", row.BasePrice.String())
		}
		// dates outside the seeded horizon are simply absent
		rows, err = tx.LockInventory(ctx, room.ID, rng(4, 6))
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := New()
	_, room := seed(t, s, "Lisbon", 3, 2)
	boom := errors.New("boom")

	err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.LockInventory(ctx, room.ID, rng(0, 1)); err != nil {
			return err
		}
		if err := tx.AdjustCounts(ctx, room.ID, rng(0, 1), 2, 0); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	row, ok := s.Inventory(room.ID, day0)
	require.True(t, ok)
	assert.Equal(t, 0, row.ReservedCount)
}

func TestAdjustCountsEnforcesCapacityInvariant(t *testing.T) {
	s := New()
	_, room := seed(t, s, "Lisbon", 2, 2)
	err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.LockInventory(ctx, room.ID, rng(0, 1)); err != nil {
			return err
		}
		return tx.AdjustCounts(ctx, room.ID, rng(0, 1), 3, 0)
	})
	assert.Error(t, err)
	row, _ := s.Inventory(room.ID, day0)
	assert.Equal(t, 0, row.ReservedCount)
}

func TestRowLocksSerializeWriters(t *testing.T) {
	s := New()
	_, room := seed(t, s, "Lisbon", 5, 1)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			if _, err := tx.LockInventory(ctx, room.ID, rng(0, 0)); err != nil {
				return err
			}
			close(locked)
			<-release
			return tx.AdjustCounts(ctx, room.ID, rng(0, 0), 1, 0)
		})
	}()
	<-locked

	go func() {
		defer close(done)
		_ = s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			rows, err := tx.LockInventory(ctx, room.ID, rng(0, 0))
			if err != nil {
				return err
			}
			// the first writer has committed by the time we hold the lock
			assert.Equal(t, 1, rows[0].ReservedCount)
			return nil
		})
	}()

	select {
	case <-done:
		t.Fatal("second transaction acquired a held row lock")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done
}

func TestPaymentSessionIsUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	var first, second model.Booking
	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		first = model.Booking{Status: model.StatusReserved, PaymentSessionID: "cs_1"}
		second = model.Booking{Status: model.StatusReserved}
		if err := tx.CreateBooking(ctx, &first); err != nil {
			return err
		}
		return tx.CreateBooking(ctx, &second)
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.LockBooking(ctx, second.ID)
		if err != nil {
			return err
		}
		b.PaymentSessionID = "cs_1"
		return tx.UpdateBooking(ctx, &b)
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.LockBookingBySession(ctx, "cs_missing")
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSearchHotelsRequiresEveryNight(t *testing.T) {
	s := New()
	ctx := context.Background()
	h, room := seed(t, s, "Porto", 2, 3)

	hits, total, err := s.SearchHotels(ctx, repository.SearchQuery{City: "Porto", Range: rng(0, 2), Rooms: 2, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, hits, 1)
	assert.Equal(t, h.ID, hits[0].HotelID)

	// one fully booked night removes the hotel
	err = s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.LockInventory(ctx, room.ID, rng(1, 1)); err != nil {
			return err
		}
		return tx.AdjustCounts(ctx, room.ID, rng(1, 1), 1, 0)
	})
	require.NoError(t, err)

	_, total, err = s.SearchHotels(ctx, repository.SearchQuery{City: "Porto", Range: rng(0, 2), Rooms: 2, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	// the range beyond the seeded horizon never matches
	_, total, err = s.SearchHotels(ctx, repository.SearchQuery{City: "Porto", Range: rng(0, 3), Rooms: 1, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
