// Package memory is an in-process implementation of repository.Store.  It
// keeps one mutex per inventory row, booking and hotel so that transactions
// block exactly where InnoDB row locks would, and buffers writes until
// commit.  It backs the test suites and STORE_DRIVER=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

type rowKey struct {
	room uint64
	day  int64 // unix seconds of midnight UTC
}

func keyOf(roomID uint64, d time.Time) rowKey {
	return rowKey{room: roomID, day: model.Day(d).Unix()}
}

type minKey struct {
	hotel uint64
	day   int64
}

// Store holds committed state.  mu guards the maps; the per-entity mutexes
// are the transactional locks and are never acquired while mu is held.
type Store struct {
	mu sync.Mutex

	hotels    map[uint64]model.Hotel
	rooms     map[uint64]model.Room
	inventory map[rowKey]model.InventoryRow
	minPrices map[minKey]model.HotelMinPrice
	bookings  map[uint64]model.Booking
	guests    map[uint64]model.Guest
	links     map[uint64][]uint64 // booking id -> guest ids

	rowLocks     map[rowKey]*sync.Mutex
	bookingLocks map[uint64]*sync.Mutex
	hotelLocks   map[uint64]*sync.Mutex

	nextID uint64
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		hotels:       map[uint64]model.Hotel{},
		rooms:        map[uint64]model.Room{},
		inventory:    map[rowKey]model.InventoryRow{},
		minPrices:    map[minKey]model.HotelMinPrice{},
		bookings:     map[uint64]model.Booking{},
		guests:       map[uint64]model.Guest{},
		links:        map[uint64][]uint64{},
		rowLocks:     map[rowKey]*sync.Mutex{},
		bookingLocks: map[uint64]*sync.Mutex{},
		hotelLocks:   map[uint64]*sync.Mutex{},
	}
}

// id hands out a store-wide unique id; callers hold s.mu.
func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

func lockFor[K comparable](s *Store, m map[K]*sync.Mutex, k K) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := m[k]
	if !ok {
		l = &sync.Mutex{}
		m[k] = l
	}
	return l
}

// InTx runs fn with a fresh transaction.  Buffered writes are applied
// atomically on success; every lock taken by fn is released on return.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	t := &tx{
		s:        s,
		held:     map[*sync.Mutex]bool{},
		rows:     map[rowKey]*model.InventoryRow{},
		bookings: map[uint64]*model.Booking{},
	}
	defer t.release()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range t.ops {
		op(s)
	}
	return nil
}

// tx buffers writes as ops applied under s.mu at commit.  rows and bookings
// are the transaction's own view of what it has locked or created.
type tx struct {
	s        *Store
	held     map[*sync.Mutex]bool
	order    []*sync.Mutex
	rows     map[rowKey]*model.InventoryRow
	bookings map[uint64]*model.Booking
	ops      []func(s *Store)
}

func (t *tx) lock(l *sync.Mutex) {
	if t.held[l] {
		return
	}
	l.Lock()
	t.held[l] = true
	t.order = append(t.order, l)
}

func (t *tx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.order[i].Unlock()
	}
	t.order = nil
	t.held = nil
}

func (t *tx) later(op func(s *Store)) { t.ops = append(t.ops, op) }

// ---- inventory ----

func (s *Store) withBase(row model.InventoryRow) model.InventoryRow {
	if room, ok := s.rooms[row.RoomID]; ok {
		row.BasePrice = room.BasePrice
	}
	return row
}

func (t *tx) LockInventory(_ context.Context, roomID uint64, r model.DateRange) ([]model.InventoryRow, error) {
	t.s.mu.Lock()
	var keys []rowKey
	for _, d := range r.Dates() {
		k := keyOf(roomID, d)
		if _, ok := t.s.inventory[k]; ok || t.rows[k] != nil {
			keys = append(keys, k)
		}
	}
	t.s.mu.Unlock()

	// keys are already in ascending date order
	for _, k := range keys {
		t.lock(lockFor(t.s, t.s.rowLocks, k))
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := make([]model.InventoryRow, 0, len(keys))
	for _, k := range keys {
		if v := t.rows[k]; v != nil {
			out = append(out, *v)
			continue
		}
		row, ok := t.s.inventory[k]
		if !ok {
			continue
		}
		row = t.s.withBase(row)
		t.rows[k] = &row
		out = append(out, row)
	}
	return out, nil
}

// view returns the transaction's copy of a row, loading it when needed.
// Callers hold s.mu.
func (t *tx) view(k rowKey) *model.InventoryRow {
	if v := t.rows[k]; v != nil {
		return v
	}
	row, ok := t.s.inventory[k]
	if !ok {
		return nil
	}
	row = t.s.withBase(row)
	t.rows[k] = &row
	return &row
}

func (t *tx) AdjustCounts(_ context.Context, roomID uint64, r model.DateRange, reservedDelta, bookedDelta int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	keys := make([]rowKey, 0, r.Days())
	for _, d := range r.Dates() {
		k := keyOf(roomID, d)
		v := t.view(k)
		if v == nil {
			return fmt.Errorf("adjust counts: no inventory for room %d on %s", roomID, d.Format(model.DateLayout))
		}
		next := *v
		next.ReservedCount += reservedDelta
		next.BookedCount += bookedDelta
		if !next.Consistent() {
			return fmt.Errorf("adjust counts: check constraint violated for room %d on %s", roomID, d.Format(model.DateLayout))
		}
		keys = append(keys, k)
	}
	for _, k := range keys {
		v := t.rows[k]
		v.ReservedCount += reservedDelta
		v.BookedCount += bookedDelta
	}
	t.later(func(s *Store) {
		for _, k := range keys {
			if row, ok := s.inventory[k]; ok {
				row.ReservedCount += reservedDelta
				row.BookedCount += bookedDelta
				s.inventory[k] = row
			}
		}
	})
	return nil
}

func (t *tx) SetControls(_ context.Context, roomID uint64, r model.DateRange, surge decimal.Decimal, closed bool) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, d := range r.Dates() {
		if v := t.view(keyOf(roomID, d)); v != nil {
			v.SurgeFactor = surge
			v.Closed = closed
		}
	}
	t.later(func(s *Store) {
		for _, d := range r.Dates() {
			k := keyOf(roomID, d)
			if row, ok := s.inventory[k]; ok {
				row.SurgeFactor = surge
				row.Closed = closed
				s.inventory[k] = row
			}
		}
	})
	return nil
}

func (t *tx) SetPrices(_ context.Context, rows []model.InventoryRow) error {
	prices := make(map[rowKey]decimal.Decimal, len(rows))
	for _, row := range rows {
		prices[keyOf(row.RoomID, row.Date)] = row.Price
	}
	t.later(func(s *Store) {
		for k, p := range prices {
			if row, ok := s.inventory[k]; ok {
				row.Price = p
				s.inventory[k] = row
			}
		}
	})
	return nil
}

func (t *tx) UpsertMinPrices(_ context.Context, prices []model.HotelMinPrice) error {
	cp := append([]model.HotelMinPrice(nil), prices...)
	t.later(func(s *Store) {
		for _, p := range cp {
			p.Date = model.Day(p.Date)
			s.minPrices[minKey{hotel: p.HotelID, day: p.Date.Unix()}] = p
		}
	})
	return nil
}

func (t *tx) InsertInventory(_ context.Context, rows []model.InventoryRow) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	prepared := make([]model.InventoryRow, 0, len(rows))
	seen := make(map[rowKey]bool, len(rows))
	for _, row := range rows {
		k := keyOf(row.RoomID, row.Date)
		if _, dup := t.s.inventory[k]; dup || seen[k] {
			return fmt.Errorf("insert inventory: %w", repository.ErrConflict)
		}
		seen[k] = true
		row.ID = t.s.id()
		row.Date = model.Day(row.Date)
		row.BasePrice = decimal.Decimal{}
		prepared = append(prepared, row)
	}
	t.later(func(s *Store) {
		for _, row := range prepared {
			s.inventory[keyOf(row.RoomID, row.Date)] = row
		}
	})
	return nil
}

func (t *tx) DeleteRoomInventory(_ context.Context, roomID uint64) error {
	t.later(func(s *Store) {
		for k := range s.inventory {
			if k.room == roomID {
				delete(s.inventory, k)
			}
		}
	})
	return nil
}

// ---- bookings ----

func (t *tx) CreateBooking(_ context.Context, b *model.Booking) error {
	t.s.mu.Lock()
	b.ID = t.s.id()
	t.s.mu.Unlock()
	cp := *b
	t.bookings[b.ID] = &cp
	t.later(func(s *Store) { s.bookings[cp.ID] = cp })
	return nil
}

func (t *tx) LockBooking(_ context.Context, id uint64) (model.Booking, error) {
	if v := t.bookings[id]; v != nil {
		return *v, nil
	}
	t.lock(lockFor(t.s, t.s.bookingLocks, id))
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	b, ok := t.s.bookings[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %d: %w", id, repository.ErrNotFound)
	}
	b.Guests = t.s.guestsOf(id)
	t.bookings[id] = &b
	return b, nil
}

func (t *tx) LockBookingBySession(ctx context.Context, sessionID string) (model.Booking, error) {
	t.s.mu.Lock()
	var id uint64
	for _, b := range t.s.bookings {
		if sessionID != "" && b.PaymentSessionID == sessionID {
			id = b.ID
			break
		}
	}
	t.s.mu.Unlock()
	if id == 0 {
		return model.Booking{}, fmt.Errorf("booking with session %q: %w", sessionID, repository.ErrNotFound)
	}
	b, err := t.LockBooking(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.PaymentSessionID != sessionID {
		return model.Booking{}, fmt.Errorf("booking with session %q: %w", sessionID, repository.ErrNotFound)
	}
	return b, nil
}

func (t *tx) UpdateBooking(_ context.Context, b *model.Booking) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.bookings[b.ID]; !ok && t.bookings[b.ID] == nil {
		return fmt.Errorf("booking %d: %w", b.ID, repository.ErrNotFound)
	}
	if b.PaymentSessionID != "" {
		for _, other := range t.s.bookings {
			if other.ID != b.ID && other.PaymentSessionID == b.PaymentSessionID {
				return fmt.Errorf("booking %d: %w", b.ID, repository.ErrConflict)
			}
		}
	}
	cp := *b
	t.bookings[b.ID] = &cp
	t.later(func(s *Store) {
		cur := s.bookings[cp.ID]
		cur.Status = cp.Status
		cur.PaymentSessionID = cp.PaymentSessionID
		cur.UpdatedAt = cp.UpdatedAt
		s.bookings[cp.ID] = cur
	})
	return nil
}

func (t *tx) AttachGuests(_ context.Context, bookingID uint64, guests []model.Guest) error {
	t.s.mu.Lock()
	for i := range guests {
		guests[i].ID = t.s.id()
	}
	t.s.mu.Unlock()
	cp := append([]model.Guest(nil), guests...)
	if v := t.bookings[bookingID]; v != nil {
		v.Guests = append(v.Guests, cp...)
	}
	t.later(func(s *Store) {
		for _, g := range cp {
			s.guests[g.ID] = g
			s.links[bookingID] = append(s.links[bookingID], g.ID)
		}
	})
	return nil
}

func (t *tx) CountOpenBookings(_ context.Context, roomID uint64, since time.Time) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	since = model.Day(since)
	n := 0
	for _, b := range t.s.bookings {
		if v := t.bookings[b.ID]; v != nil {
			b = *v
		}
		if b.RoomID != roomID {
			continue
		}
		if b.Status.PrePayment() || (b.Status == model.StatusConfirmed && !b.CheckOut.Before(since)) {
			n++
		}
	}
	return n, nil
}

// guestsOf lists a booking's guests; callers hold s.mu.
func (s *Store) guestsOf(bookingID uint64) []model.Guest {
	ids := s.links[bookingID]
	if len(ids) == 0 {
		return nil
	}
	out := make([]model.Guest, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.guests[id])
	}
	return out
}

// ---- catalog ----

func (t *tx) CreateHotel(_ context.Context, h *model.Hotel) error {
	t.s.mu.Lock()
	h.ID = t.s.id()
	t.s.mu.Unlock()
	h.Name = strings.TrimSpace(h.Name)
	h.City = strings.TrimSpace(h.City)
	cp := *h
	t.later(func(s *Store) { s.hotels[cp.ID] = cp })
	return nil
}

func (t *tx) LockHotel(_ context.Context, id uint64) (model.Hotel, error) {
	t.lock(lockFor(t.s, t.s.hotelLocks, id))
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	h, ok := t.s.hotels[id]
	if !ok {
		return model.Hotel{}, fmt.Errorf("hotel %d: %w", id, repository.ErrNotFound)
	}
	return h, nil
}

func (t *tx) SetHotelActive(_ context.Context, id uint64, active bool) error {
	t.later(func(s *Store) {
		if h, ok := s.hotels[id]; ok {
			h.Active = active
			h.UpdatedAt = time.Now().UTC()
			s.hotels[id] = h
		}
	})
	return nil
}

func (t *tx) CreateRoom(_ context.Context, r *model.Room) error {
	t.s.mu.Lock()
	r.ID = t.s.id()
	t.s.mu.Unlock()
	cp := *r
	t.later(func(s *Store) { s.rooms[cp.ID] = cp })
	return nil
}

func (t *tx) DeleteRoom(_ context.Context, id uint64) error {
	t.s.mu.Lock()
	_, ok := t.s.rooms[id]
	t.s.mu.Unlock()
	if !ok {
		return fmt.Errorf("room %d: %w", id, repository.ErrNotFound)
	}
	t.later(func(s *Store) { delete(s.rooms, id) })
	return nil
}

// ---- reads ----

func (s *Store) GetHotel(_ context.Context, id uint64) (model.Hotel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hotels[id]
	if !ok {
		return model.Hotel{}, fmt.Errorf("hotel %d: %w", id, repository.ErrNotFound)
	}
	return h, nil
}

func (s *Store) GetRoom(_ context.Context, id uint64) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return model.Room{}, fmt.Errorf("room %d: %w", id, repository.ErrNotFound)
	}
	return r, nil
}

func (s *Store) ListRooms(_ context.Context, hotelID uint64) ([]model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Room
	for _, r := range s.rooms {
		if r.HotelID == hotelID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActiveHotelIDs(_ context.Context, afterID uint64, limit int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, h := range s.hotels {
		if h.Active && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) listInventory(match func(model.InventoryRow) bool, r model.DateRange) []model.InventoryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.InventoryRow
	for _, row := range s.inventory {
		if match(row) && r.Contains(row.Date) {
			out = append(out, s.withBase(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoomID != out[j].RoomID {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (s *Store) ListHotelInventory(_ context.Context, hotelID uint64, r model.DateRange) ([]model.InventoryRow, error) {
	return s.listInventory(func(row model.InventoryRow) bool { return row.HotelID == hotelID }, r), nil
}

func (s *Store) ListRoomInventory(_ context.Context, roomID uint64, r model.DateRange) ([]model.InventoryRow, error) {
	return s.listInventory(func(row model.InventoryRow) bool { return row.RoomID == roomID }, r), nil
}

// Inventory returns the committed row for a room and day.
func (s *Store) Inventory(roomID uint64, day time.Time) (model.InventoryRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.inventory[keyOf(roomID, day)]
	return row, ok
}

// MinPrice returns the published minimum price of a hotel on a day.
func (s *Store) MinPrice(hotelID uint64, day time.Time) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.minPrices[minKey{hotel: hotelID, day: model.Day(day).Unix()}]
	return p.Price, ok
}

func (s *Store) SearchHotels(_ context.Context, q repository.SearchQuery) ([]model.HotelSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	city := strings.TrimSpace(q.City)
	type hr struct{ hotel, room uint64 }
	nights := map[hr]int{}
	for _, row := range s.inventory {
		if row.City != city || !q.Range.Contains(row.Date) || row.Closed || row.Free() < q.Rooms {
			continue
		}
		nights[hr{row.HotelID, row.RoomID}]++
	}
	qualifying := map[uint64]bool{}
	for k, n := range nights {
		if n == q.Range.Days() {
			qualifying[k.hotel] = true
		}
	}
	var hits []model.HotelSummary
	for id := range qualifying {
		h, ok := s.hotels[id]
		if !ok || !h.Active {
			continue
		}
		sum, count := decimal.Zero, 0
		for _, d := range q.Range.Dates() {
			if p, ok := s.minPrices[minKey{hotel: id, day: d.Unix()}]; ok {
				sum = sum.Add(p.Price)
				count++
			}
		}
		avg := decimal.Zero
		if count > 0 {
			avg = sum.Div(decimal.NewFromInt(int64(count)))
		}
		hits = append(hits, model.HotelSummary{HotelID: id, Name: h.Name, City: h.City, Price: avg})
	}
	sort.Slice(hits, func(i, j int) bool {
		if c := hits[i].Price.Cmp(hits[j].Price); c != 0 {
			return c < 0
		}
		return hits[i].HotelID < hits[j].HotelID
	})
	total := len(hits)
	from := min((q.Page-1)*q.PageSize, total)
	to := min(from+q.PageSize, total)
	return append([]model.HotelSummary{}, hits[from:to]...), total, nil
}

func (s *Store) GetBooking(_ context.Context, id uint64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %d: %w", id, repository.ErrNotFound)
	}
	b.Guests = s.guestsOf(id)
	return b, nil
}

func (s *Store) filterBookings(match func(model.Booking) bool) []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if match(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Store) ListUserBookings(_ context.Context, userID uint64) ([]model.Booking, error) {
	return s.filterBookings(func(b model.Booking) bool { return b.UserID == userID }), nil
}

func (s *Store) ListHotelBookings(_ context.Context, hotelID uint64) ([]model.Booking, error) {
	return s.filterBookings(func(b model.Booking) bool { return b.HotelID == hotelID }), nil
}

func (s *Store) ListStaleBookings(_ context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	stale := s.filterBookings(func(b model.Booking) bool {
		return b.Status.PrePayment() && b.CreatedAt.Before(cutoff)
	})
	ids := make([]uint64, 0, len(stale))
	for i := len(stale) - 1; i >= 0 && len(ids) < limit; i-- {
		ids = append(ids, stale[i].ID)
	}
	return ids, nil
}
