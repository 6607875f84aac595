// Package repository defines the persistence contracts of the service and
// their MySQL implementation.  The sentinel values below wrap the shared
// error kinds so that handlers can match them with errors.Is regardless of
// which store produced them.
package repository

import (
	"fmt"

	"github.com/iliyamo/hotel-booking/internal/apperr"
)

// ErrNotFound is returned when a hotel, room, booking or user row does
// not exist.  Handlers translate it into an HTTP 404 response.
var ErrNotFound = fmt.Errorf("record %w", apperr.ErrNotFound)

// ErrConflict is returned when a write violates a uniqueness constraint,
// such as a payment session id that is already attached to another
// booking.  Handlers translate it into an HTTP 409 response.
var ErrConflict = fmt.Errorf("duplicate record: %w", apperr.ErrInvalidState)

// ErrEmailExists is returned by user creation for a taken email.
var ErrEmailExists = fmt.Errorf("email already exists: %w", apperr.ErrInvalidInput)
