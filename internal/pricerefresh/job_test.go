package pricerefresh

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/ledger"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/pricing"
	"github.com/iliyamo/hotel-booking/internal/repository"
	"github.com/iliyamo/hotel-booking/internal/repository/memory"
)

var today = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func clock() time.Time { return today.Add(10 * time.Hour) }

func dayN(n int) time.Time { return today.AddDate(0, 0, n) }

// addHotel creates a hotel with one room per base price and inventory for
// [today, today+10].
func addHotel(t *testing.T, s *memory.Store, active bool, bases ...int64) (model.Hotel, []model.Room) {
	t.Helper()
	l := ledger.New(zap.NewNop(), 10)
	h := model.Hotel{Name: "Hotel", City: "Madrid", Active: active, OwnerID: 1}
	var rooms []model.Room
	require.NoError(t, s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateHotel(ctx, &h); err != nil {
			return err
		}
		for _, base := range bases {
			room := model.Room{HotelID: h.ID, Type: "std", BasePrice: decimal.NewFromInt(base), TotalCount: 10, Capacity: 2}
			if err := tx.CreateRoom(ctx, &room); err != nil {
				return err
			}
			if err := l.InitializeRoom(ctx, tx, h, room, today); err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	}))
	return h, rooms
}

func newJob(t *testing.T, s *memory.Store, opts ...Option) *Job {
	t.Helper()
	cal, err := pricing.ParseCalendar([]string{dayN(9).Format(model.DateLayout)})
	require.NoError(t, err)
	engine := pricing.NewEngine(cal, pricing.WithClock(clock))
	return New(s, engine, zap.NewNop(), append([]Option{WithClock(clock), WithHorizon(10)}, opts...)...)
}

func price(t *testing.T, s *memory.Store, roomID uint64, day int) string {
	t.Helper()
	row, ok := s.Inventory(roomID, dayN(day))
	require.True(t, ok)
	return row.Price.StringFixed(2)
}

func minPrice(t *testing.T, s *memory.Store, hotelID uint64, day int) string {
	t.Helper()
	p, ok := s.MinPrice(hotelID, dayN(day))
	require.True(t, ok, "min price for day %d", day)
	return p.StringFixed(2)
}

func TestRefreshHotelRepricesAndPublishesMinimum(t *testing.T) {
	s := memory.New()
	h, rooms := addHotel(t, s, true, 100, 80)
	a, b := rooms[0], rooms[1]

	// double the cheap room on day 8 so the other room becomes the minimum
	require.NoError(t, s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		r := model.DateRange{Start: dayN(8), End: dayN(8)}
		return tx.SetControls(ctx, b.ID, r, decimal.NewFromInt(2), false)
	}))

	n, err := newJob(t, s).RefreshHotel(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, 22, n)

	// urgency window
	assert.Equal(t, "115.00", price(t, s, a.ID, 0))
	assert.Equal(t, "92.00", price(t, s, b.ID, 6))
	assert.Equal(t, "92.00", minPrice(t, s, h.ID, 6))
	// outside it
	assert.Equal(t, "80.00", price(t, s, b.ID, 7))
	assert.Equal(t, "80.00", minPrice(t, s, h.ID, 7))
	// surge
	assert.Equal(t, "160.00", price(t, s, b.ID, 8))
	assert.Equal(t, "100.00", minPrice(t, s, h.ID, 8))
	// holiday
	assert.Equal(t, "125.00", price(t, s, a.ID, 9))
	assert.Equal(t, "100.00", minPrice(t, s, h.ID, 9))
}

func TestRefreshAllPagesThroughActiveHotels(t *testing.T) {
	s := memory.New()
	var active []model.Hotel
	for i := 0; i < 3; i++ {
		h, _ := addHotel(t, s, true, 50)
		active = append(active, h)
	}
	inactive, rooms := addHotel(t, s, false, 50)

	res, err := newJob(t, s, WithBatch(2)).RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Hotels: 3, Rows: 33}, res)

	for _, h := range active {
		assert.Equal(t, "50.00", minPrice(t, s, h.ID, 10))
	}
	_, ok := s.MinPrice(inactive.ID, dayN(10))
	assert.False(t, ok, "inactive hotels are skipped")
	assert.Equal(t, "50.00", price(t, s, rooms[0].ID, 0), "untouched base price")
}

func TestRefreshHotelWithoutInventory(t *testing.T) {
	s := memory.New()
	h, _ := addHotel(t, s, true)

	n, err := newJob(t, s).RefreshHotel(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunStopsWithContext(t *testing.T) {
	s := memory.New()
	h, _ := addHotel(t, s, true, 70)
	job := newJob(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, ok := s.MinPrice(h.ID, dayN(0))
		return ok
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
