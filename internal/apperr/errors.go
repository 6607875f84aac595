// Package apperr defines the error kinds shared by the ledger, the booking
// services and the HTTP layer.  Higher layers compare against the sentinel
// kinds with errors.Is; *Error adds the booking, room and date range needed
// to reconstruct a failure from the logs.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/hotel-booking/internal/model"
)

var (
	// ErrNotFound: hotel, room or booking absent.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized: no authenticated principal.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden: the principal does not own the booking or hotel.
	ErrForbidden = errors.New("forbidden")
	// ErrInsufficientInventory: a capacity check failed.  Clients may retry
	// with other dates or fewer rooms.
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrOversell: a reserve found capacity consumed after the check.
	ErrOversell = errors.New("oversell")
	// ErrInvalidState: a lifecycle guard or ledger precondition failed.
	ErrInvalidState = errors.New("invalid state")
	// ErrExpiredBooking: the booking outlived its reservation TTL.
	ErrExpiredBooking = errors.New("booking expired")
	// ErrPaymentGateway: the payment provider failed or rejected a call.
	ErrPaymentGateway = errors.New("payment gateway error")
	// ErrInvalidInput: malformed request values.
	ErrInvalidInput = errors.New("invalid input")
)

// Error is a kind plus the audit context of the failing operation.
type Error struct {
	Op        string // operation, e.g. "ledger.confirm"
	Kind      error  // one of the sentinel kinds above
	BookingID uint64
	RoomID    uint64
	Range     *model.DateRange
	Msg       string
	Err       error // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	var ctx []string
	if e.BookingID != 0 {
		ctx = append(ctx, fmt.Sprintf("booking=%d", e.BookingID))
	}
	if e.RoomID != 0 {
		ctx = append(ctx, fmt.Sprintf("room=%d", e.RoomID))
	}
	if e.Range != nil {
		ctx = append(ctx, "range="+e.Range.String())
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, " "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New builds an *Error of the given kind.
func New(op string, kind error, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(op string, kind error, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// WithRoom returns a copy of e annotated with a room and date range.
func (e *Error) WithRoom(roomID uint64, r model.DateRange) *Error {
	cp := *e
	cp.RoomID = roomID
	cp.Range = &r
	return &cp
}

// WithBooking returns a copy of e annotated with a booking id.
func (e *Error) WithBooking(id uint64) *Error {
	cp := *e
	cp.BookingID = id
	return &cp
}

// Annotate adds booking context to err when it is an *Error, or wraps it
// otherwise.  Used by callers that learn the booking id after the ledger
// has already reported the room and range.
func Annotate(err error, bookingID uint64) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae.BookingID == 0 {
		return ae.WithBooking(bookingID)
	}
	return err
}
