// Package hotel covers the catalog and inventory administration done by
// hotel managers, the public hotel views and availability search.
package hotel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/ledger"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/pricing"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Service struct {
	store  repository.Store
	ledger *ledger.Ledger
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store repository.Store, l *ledger.Ledger, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{store: store, ledger: l, log: log.Named("hotel"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireManager(op string, p model.Principal) error {
	if p.UserID == 0 {
		return apperr.New(op, apperr.ErrUnauthorized, "no principal")
	}
	if p.Role != model.RoleHotelManager {
		return apperr.New(op, apperr.ErrForbidden, "hotel manager role required")
	}
	return nil
}

func requireOwner(op string, p model.Principal, h model.Hotel) error {
	if err := requireManager(op, p); err != nil {
		return err
	}
	if !p.Owns(h) {
		return apperr.New(op, apperr.ErrForbidden, fmt.Sprintf("hotel %d is owned by another manager", h.ID))
	}
	return nil
}

// ownedHotel loads a hotel and checks that p owns it.
func (s *Service) ownedHotel(ctx context.Context, op string, p model.Principal, hotelID uint64) (model.Hotel, error) {
	h, err := s.store.GetHotel(ctx, hotelID)
	if err != nil {
		return model.Hotel{}, err
	}
	return h, requireOwner(op, p, h)
}

// ownedRoom loads a room and checks that p owns its hotel.
func (s *Service) ownedRoom(ctx context.Context, op string, p model.Principal, roomID uint64) (model.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return model.Room{}, err
	}
	if _, err := s.ownedHotel(ctx, op, p, room.HotelID); err != nil {
		return model.Room{}, err
	}
	return room, nil
}

// CreateHotel registers an inactive hotel owned by p.
func (s *Service) CreateHotel(ctx context.Context, p model.Principal, name, city string) (model.Hotel, error) {
	const op = "hotel.create"
	if err := requireManager(op, p); err != nil {
		return model.Hotel{}, err
	}
	name, city = strings.TrimSpace(name), strings.TrimSpace(city)
	if name == "" || city == "" {
		return model.Hotel{}, apperr.New(op, apperr.ErrInvalidInput, "name and city are required")
	}
	now := s.now().UTC()
	h := model.Hotel{Name: name, City: city, OwnerID: p.UserID, CreatedAt: now, UpdatedAt: now}
	if err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateHotel(ctx, &h)
	}); err != nil {
		return model.Hotel{}, err
	}
	s.log.Info("hotel created", zap.Uint64("hotel_id", h.ID), zap.Uint64("owner_id", p.UserID))
	return h, nil
}

// ActivateHotel marks the hotel active and creates a year of inventory for
// each of its rooms.  Activating an active hotel is a no-op.
func (s *Service) ActivateHotel(ctx context.Context, p model.Principal, hotelID uint64) (model.Hotel, error) {
	const op = "hotel.activate"
	var h model.Hotel
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if h, err = tx.LockHotel(ctx, hotelID); err != nil {
			return err
		}
		if err := requireOwner(op, p, h); err != nil {
			return err
		}
		if h.Active {
			return nil
		}
		// AddRoom takes the same hotel lock, so this list is complete
		rooms, err := s.store.ListRooms(ctx, h.ID)
		if err != nil {
			return err
		}
		if err := tx.SetHotelActive(ctx, h.ID, true); err != nil {
			return err
		}
		h.Active = true
		for _, room := range rooms {
			if err := s.ledger.InitializeRoom(ctx, tx, h, room, s.now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Hotel{}, err
	}
	s.log.Info("hotel activated", zap.Uint64("hotel_id", h.ID))
	return h, nil
}

// RoomInput describes a new room type.
type RoomInput struct {
	Type       string
	BasePrice  decimal.Decimal
	TotalCount int
	Capacity   int
}

func (in RoomInput) validate() error {
	switch {
	case strings.TrimSpace(in.Type) == "":
		return fmt.Errorf("type is required")
	case !in.BasePrice.IsPositive():
		return fmt.Errorf("base_price must be positive")
	case in.TotalCount < 1:
		return fmt.Errorf("total_count must be at least 1")
	case in.Capacity < 1:
		return fmt.Errorf("capacity must be at least 1")
	}
	return nil
}

// AddRoom creates a room type; an active hotel gets its inventory at once.
func (s *Service) AddRoom(ctx context.Context, p model.Principal, hotelID uint64, in RoomInput) (model.Room, error) {
	const op = "hotel.add_room"
	if err := in.validate(); err != nil {
		return model.Room{}, apperr.Wrap(op, apperr.ErrInvalidInput, err)
	}
	now := s.now().UTC()
	room := model.Room{
		HotelID:    hotelID,
		Type:       strings.TrimSpace(in.Type),
		BasePrice:  pricing.Round(in.BasePrice),
		TotalCount: in.TotalCount,
		Capacity:   in.Capacity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		h, err := tx.LockHotel(ctx, hotelID)
		if err != nil {
			return err
		}
		if err := requireOwner(op, p, h); err != nil {
			return err
		}
		if err := tx.CreateRoom(ctx, &room); err != nil {
			return err
		}
		if !h.Active {
			return nil
		}
		return s.ledger.InitializeRoom(ctx, tx, h, room, s.now())
	})
	if err != nil {
		return model.Room{}, err
	}
	s.log.Info("room added", zap.Uint64("hotel_id", hotelID), zap.Uint64("room_id", room.ID))
	return room, nil
}

// DeleteRoom removes a room and its inventory.  Rooms still holding
// reserved or booked capacity for current stays cannot be removed.
func (s *Service) DeleteRoom(ctx context.Context, p model.Principal, roomID uint64) error {
	const op = "hotel.delete_room"
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		h, err := tx.LockHotel(ctx, room.HotelID)
		if err != nil {
			return err
		}
		if err := requireOwner(op, p, h); err != nil {
			return err
		}
		if err := s.ledger.LockRoom(ctx, tx, roomID, s.now()); err != nil {
			return err
		}
		open, err := tx.CountOpenBookings(ctx, roomID, s.now())
		if err != nil {
			return err
		}
		if open > 0 {
			return apperr.New(op, apperr.ErrInvalidState, fmt.Sprintf("room %d has %d open bookings", roomID, open))
		}
		if err := s.ledger.RemoveRoom(ctx, tx, roomID); err != nil {
			return err
		}
		return tx.DeleteRoom(ctx, roomID)
	})
	if err != nil {
		return err
	}
	s.log.Info("room deleted", zap.Uint64("hotel_id", room.HotelID), zap.Uint64("room_id", roomID))
	return nil
}

// UpdateInventory sets surge factor and closed flag over a range of a
// room's inventory.
func (s *Service) UpdateInventory(ctx context.Context, p model.Principal, roomID uint64, r model.DateRange, surge decimal.Decimal, closed bool) error {
	if _, err := s.ownedRoom(ctx, "hotel.update_inventory", p, roomID); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return s.ledger.AdminUpdate(ctx, tx, roomID, r, surge, closed)
	})
}

// ListRoomInventory returns a room's inventory rows in date order.
func (s *Service) ListRoomInventory(ctx context.Context, p model.Principal, roomID uint64, r model.DateRange) ([]model.InventoryRow, error) {
	if _, err := s.ownedRoom(ctx, "hotel.list_inventory", p, roomID); err != nil {
		return nil, err
	}
	return s.store.ListRoomInventory(ctx, roomID, r)
}

// ListBookings returns every booking of the hotel, newest first.
func (s *Service) ListBookings(ctx context.Context, p model.Principal, hotelID uint64) ([]model.Booking, error) {
	if _, err := s.ownedHotel(ctx, "hotel.list_bookings", p, hotelID); err != nil {
		return nil, err
	}
	return s.store.ListHotelBookings(ctx, hotelID)
}

// Report aggregates the CONFIRMED bookings created within r.
func (s *Service) Report(ctx context.Context, p model.Principal, hotelID uint64, r model.DateRange) (model.HotelReport, error) {
	if _, err := s.ownedHotel(ctx, "hotel.report", p, hotelID); err != nil {
		return model.HotelReport{}, err
	}
	bookings, err := s.store.ListHotelBookings(ctx, hotelID)
	if err != nil {
		return model.HotelReport{}, err
	}
	rep := model.HotelReport{TotalRevenue: decimal.Zero, AverageRevenue: decimal.Zero}
	for _, b := range bookings {
		if b.Status != model.StatusConfirmed || !r.Contains(b.CreatedAt) {
			continue
		}
		rep.BookingCount++
		rep.TotalRevenue = rep.TotalRevenue.Add(b.Amount)
	}
	if rep.BookingCount > 0 {
		rep.AverageRevenue = pricing.Round(rep.TotalRevenue.Div(decimal.NewFromInt(int64(rep.BookingCount))))
	}
	return rep, nil
}

// SearchRequest is a paged availability query.  Page starts at 1.
type SearchRequest struct {
	City     string
	Range    model.DateRange
	Rooms    int
	Page     int
	PageSize int
}

// SearchResult is one page of hits.
type SearchResult struct {
	Hotels   []model.HotelSummary
	Total    int
	Page     int
	PageSize int
}

// Search lists active hotels in a city with a room type free for every
// night of the range, cheapest first.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	const op = "hotel.search"
	city := strings.TrimSpace(req.City)
	if city == "" {
		return SearchResult{}, apperr.New(op, apperr.ErrInvalidInput, "city is required")
	}
	if req.Page < 1 {
		req.Page = 1
	}
	switch {
	case req.PageSize <= 0:
		req.PageSize = DefaultPageSize
	case req.PageSize > MaxPageSize:
		req.PageSize = MaxPageSize
	}
	if req.Rooms == 0 {
		req.Rooms = 1
	}
	hits, total, err := s.ledger.SearchAvailable(ctx, s.store, repository.SearchQuery{
		City: city, Range: req.Range, Rooms: req.Rooms, Page: req.Page, PageSize: req.PageSize,
	})
	if err != nil {
		return SearchResult{}, err
	}
	for i := range hits {
		hits[i].Price = pricing.Round(hits[i].Price)
	}
	return SearchResult{Hotels: hits, Total: total, Page: req.Page, PageSize: req.PageSize}, nil
}

// Info returns an active hotel and its rooms.
func (s *Service) Info(ctx context.Context, hotelID uint64) (model.Hotel, []model.Room, error) {
	h, err := s.store.GetHotel(ctx, hotelID)
	if err != nil {
		return model.Hotel{}, nil, err
	}
	if !h.Active {
		return model.Hotel{}, nil, fmt.Errorf("hotel %d is not active: %w", hotelID, repository.ErrNotFound)
	}
	rooms, err := s.store.ListRooms(ctx, hotelID)
	if err != nil {
		return model.Hotel{}, nil, err
	}
	return h, rooms, nil
}
