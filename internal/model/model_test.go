package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2026-03-01", "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Days())
	assert.Len(t, r.Dates(), 3)
	assert.Equal(t, "2026-03-01..2026-03-03", r.String())
	assert.True(t, r.Contains(time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)))

	_, err = ParseDateRange("2026-03-03", "2026-03-01")
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ParseDateRange("03/01/2026", "2026-03-01")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestDateRangeLengthCap(t *testing.T) {
	r, err := ParseDateRange("2026-01-01", "2027-01-01")
	require.NoError(t, err)
	assert.Equal(t, MaxRangeDays, r.Days())

	_, err = ParseDateRange("2026-01-01", "2027-01-02")
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = ParseDateRange("0001-01-01", "9999-12-31")
	assert.ErrorIs(t, err, ErrInvalidRange)

	// wider than time.Duration can hold
	wide := DateRange{Start: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(1001, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 365243, wide.Days())
}

func TestDateRangeAcrossMonth(t *testing.T) {
	r, err := NewDateRange(time.Date(2026, 1, 30, 9, 0, 0, 0, time.UTC), time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	dates := r.Dates()
	require.Len(t, dates, 4)
	assert.Equal(t, time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), dates[3])
}

func TestIsExpired(t *testing.T) {
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	b := Booking{Status: StatusGuestsAdded, CreatedAt: created}

	assert.False(t, IsExpired(b, created.Add(9*time.Minute), DefaultBookingTTL))
	assert.False(t, IsExpired(b, created.Add(10*time.Minute), DefaultBookingTTL))
	assert.True(t, IsExpired(b, created.Add(11*time.Minute), DefaultBookingTTL))

	b.Status = StatusConfirmed
	assert.False(t, IsExpired(b, created.Add(time.Hour), DefaultBookingTTL))
	b.Status = StatusCancelled
	assert.False(t, IsExpired(b, created.Add(time.Hour), DefaultBookingTTL))
	b.Status = StatusExpired
	assert.True(t, IsExpired(b, created, DefaultBookingTTL))
}

func TestInventoryRowCounters(t *testing.T) {
	r := InventoryRow{TotalCount: 5, BookedCount: 2, ReservedCount: 1}
	assert.Equal(t, 2, r.Free())
	assert.True(t, r.Consistent())

	r.ReservedCount = 4
	assert.False(t, r.Consistent())
	r.ReservedCount = -1
	assert.False(t, r.Consistent())
}

func TestPrincipalOwns(t *testing.T) {
	h := Hotel{ID: 1, OwnerID: 7}
	assert.True(t, Principal{UserID: 7, Role: RoleHotelManager}.Owns(h))
	assert.False(t, Principal{UserID: 8, Role: RoleHotelManager}.Owns(h))
	assert.False(t, Principal{}.Owns(Hotel{}))
}

func TestParseGenderAndRole(t *testing.T) {
	assert.Equal(t, GenderFemale, ParseGender(" female "))
	assert.Equal(t, GenderOther, ParseGender("unknown"))
	assert.Equal(t, RoleHotelManager, ParseRole("HOTEL_MANAGER"))
	assert.Equal(t, RoleGuest, ParseRole("ADMIN"))
}
