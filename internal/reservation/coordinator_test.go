package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/ledger"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/pricing"
	"github.com/iliyamo/hotel-booking/internal/repository"
	"github.com/iliyamo/hotel-booking/internal/repository/memory"
)

var day0 = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func span(from, to int) model.DateRange {
	return model.DateRange{Start: day0.AddDate(0, 0, from), End: day0.AddDate(0, 0, to)}
}

func setup(t *testing.T, total int) (*Coordinator, *memory.Store, model.Room) {
	t.Helper()
	s := memory.New()
	l := ledger.New(zap.NewNop(), 10)
	// far from the stay so that urgency never applies
	engine := pricing.NewEngine(nil, pricing.WithClock(func() time.Time { return day0.AddDate(0, 0, -60) }))
	c := New(s, l, engine, zap.NewNop())

	h := model.Hotel{Name: "Harbor", City: "Lisbon", Active: true, OwnerID: 1}
	room := model.Room{Type: "double", BasePrice: decimal.RequireFromString("80.50"), TotalCount: total, Capacity: 2}
	require.NoError(t, s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateHotel(ctx, &h); err != nil {
			return err
		}
		room.HotelID = h.ID
		if err := tx.CreateRoom(ctx, &room); err != nil {
			return err
		}
		return l.InitializeRoom(ctx, tx, h, room, day0)
	}))
	return c, s, room
}

func initiate(c *Coordinator, roomID uint64, r model.DateRange, n int) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := c.Atomically(context.Background(), "initiate", func(ctx context.Context, tx repository.Tx) error {
		var err error
		amount, err = c.Initiate(ctx, tx, roomID, r, n)
		return err
	})
	return amount, err
}

func TestInitiatePricesLockedNights(t *testing.T) {
	c, s, room := setup(t, 4)

	amount, err := initiate(c, room.ID, span(2, 4), 2)
	require.NoError(t, err)
	// 3 nights x 2 rooms x 80.50
	assert.Equal(t, "483", amount.String())

	row, _ := s.Inventory(room.ID, day0.AddDate(0, 0, 3))
	assert.Equal(t, 2, row.ReservedCount)
}

func TestAtomicallyRollsBackReservationOnLaterFailure(t *testing.T) {
	c, s, room := setup(t, 2)
	boom := errors.New("booking insert failed")

	err := c.Atomically(context.Background(), "initiate", func(ctx context.Context, tx repository.Tx) error {
		if _, err := c.Initiate(ctx, tx, room.ID, span(0, 1), 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	row, _ := s.Inventory(room.ID, day0)
	assert.Zero(t, row.ReservedCount)
}

func TestConcurrentInitiateNeverOversells(t *testing.T) {
	const capacity = 5
	c, s, room := setup(t, capacity)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		won          int
		insufficient int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// overlapping ranges, all covering night 3
			from, to := i%3+1, 3+i%2
			_, err := initiate(c, room.ID, span(from, to), 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, apperr.ErrInsufficientInventory):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, won)
	assert.Equal(t, 20-capacity, insufficient)
	for d := 0; d <= 10; d++ {
		row, ok := s.Inventory(room.ID, day0.AddDate(0, 0, d))
		require.True(t, ok)
		assert.True(t, row.Consistent(), "day %d: %+v", d, row)
	}
	row, _ := s.Inventory(room.ID, day0.AddDate(0, 0, 3))
	assert.Equal(t, capacity, row.ReservedCount)
}

func TestConfirmTwiceIsRejectedWithoutDoubleCounting(t *testing.T) {
	c, s, room := setup(t, 3)
	_, err := initiate(c, room.ID, span(0, 2), 1)
	require.NoError(t, err)
	b := model.Booking{ID: 42, RoomID: room.ID, RoomsCount: 1, CheckIn: day0, CheckOut: day0.AddDate(0, 0, 2)}

	confirm := func() error {
		return c.Atomically(context.Background(), "confirm", func(ctx context.Context, tx repository.Tx) error {
			return c.Confirm(ctx, tx, b)
		})
	}
	require.NoError(t, confirm())
	err = confirm()
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, uint64(42), ae.BookingID)
	assert.Equal(t, room.ID, ae.RoomID)

	row, _ := s.Inventory(room.ID, day0.AddDate(0, 0, 1))
	assert.Equal(t, 1, row.BookedCount)
	assert.Equal(t, 0, row.ReservedCount)
}

func TestCancelAndExpireReturnCapacity(t *testing.T) {
	c, s, room := setup(t, 2)
	ctx := context.Background()
	_, err := initiate(c, room.ID, span(0, 1), 1)
	require.NoError(t, err)
	_, err = initiate(c, room.ID, span(0, 1), 1)
	require.NoError(t, err)
	paid := model.Booking{ID: 1, RoomID: room.ID, RoomsCount: 1, CheckIn: day0, CheckOut: day0.AddDate(0, 0, 1)}
	unpaid := paid
	unpaid.ID = 2

	require.NoError(t, c.Atomically(ctx, "confirm", func(ctx context.Context, tx repository.Tx) error {
		return c.Confirm(ctx, tx, paid)
	}))
	require.NoError(t, c.Atomically(ctx, "cancel", func(ctx context.Context, tx repository.Tx) error {
		return c.Cancel(ctx, tx, paid)
	}))
	require.NoError(t, c.Atomically(ctx, "expire", func(ctx context.Context, tx repository.Tx) error {
		return c.Expire(ctx, tx, unpaid)
	}))

	row, _ := s.Inventory(room.ID, day0)
	assert.Equal(t, 2, row.Free())

	// the release cannot be applied twice
	err = c.Atomically(ctx, "cancel", func(ctx context.Context, tx repository.Tx) error {
		return c.Cancel(ctx, tx, paid)
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestOutcomeLabels(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "insufficient", outcome(apperr.New("x", apperr.ErrInsufficientInventory, "")))
	assert.Equal(t, "invalid_state", outcome(apperr.New("x", apperr.ErrInvalidState, "")))
	assert.Equal(t, "oversell", outcome(apperr.New("x", apperr.ErrOversell, "")))
	assert.Equal(t, "error", outcome(errors.New("db down")))
}
