package model

import "strings"

// Gender of a guest as stored in guests.gender.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

// ParseGender normalizes free-form input; unknown values map to OTHER.
func ParseGender(s string) Gender {
	switch g := Gender(strings.ToUpper(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale:
		return g
	}
	return GenderOther
}

// Valid reports whether g is one of the stored values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Guest is a person staying under a booking.  Guests belong to the user
// that registered them and are linked to bookings through booking_guests.
type Guest struct {
	ID     uint64 // guests.id
	UserID uint64 // guests.user_id
	Name   string // guests.name
	Age    int    // guests.age
	Gender Gender // guests.gender
}
