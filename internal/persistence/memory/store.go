// Package memory provides a process-local persistence.Store used by tests and
// the CLI's ephemeral mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

type slotKey struct {
	key   scheduler.Key
	start calendar.Minute
}

// Store keeps reservations and patterns in maps. Commitments serialise per
// room/day through one-slot channels so that a waiting commitment can give up
// when its context ends.
type Store struct {
	mu           sync.RWMutex
	reservations map[string]scheduler.Reservation
	byKey        map[scheduler.Key]map[string]struct{}
	starts       map[slotKey]string
	patterns     map[string]persistence.PatternRecord
	exceptions   map[string]map[calendar.Anchor]persistence.ExceptionRecord

	locksMu sync.Mutex
	locks   map[scheduler.Key]chan struct{}
}

var _ persistence.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		reservations: make(map[string]scheduler.Reservation),
		byKey:        make(map[scheduler.Key]map[string]struct{}),
		starts:       make(map[slotKey]string),
		patterns:     make(map[string]persistence.PatternRecord),
		exceptions:   make(map[string]map[calendar.Anchor]persistence.ExceptionRecord),
		locks:        make(map[scheduler.Key]chan struct{}),
	}
}

// Close releases resources held by the store. No-op.
func (s *Store) Close() error {
	return nil
}

// --- scheduler.Store implementation ---

// FindForRoomOnDate returns the committed reservations for one room/day.
func (s *Store) FindForRoomOnDate(ctx context.Context, roomID string, on calendar.Anchor) ([]scheduler.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(scheduler.Key{RoomID: roomID, Date: on}), nil
}

// Get retrieves a reservation by ID.
func (s *Store) Get(ctx context.Context, id string) (scheduler.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return scheduler.Reservation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return scheduler.Reservation{}, fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, id)
	}
	return r.Clone(), nil
}

// Delete removes a reservation by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, id)
	}
	s.deleteLocked(id)
	return nil
}

// ListByPattern returns reservations created from patternID on or after from.
func (s *Store) ListByPattern(ctx context.Context, patternID string, from calendar.Anchor) ([]scheduler.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]scheduler.Reservation, 0)
	for _, r := range s.reservations {
		if r.OriginPatternID == nil || *r.OriginPatternID != patternID || r.OnDate < from {
			continue
		}
		out = append(out, r.Clone())
	}
	scheduler.SortReservations(out)
	return out, nil
}

// WithExclusiveCommitment runs body while holding every key. Writes are
// staged on the Tx and applied only when body succeeds.
func (s *Store) WithExclusiveCommitment(ctx context.Context, keys []scheduler.Key, body func(ctx context.Context, tx scheduler.Tx) error) error {
	sorted := scheduler.SortKeys(keys)
	release, err := s.acquire(ctx, sorted)
	if err != nil {
		return err
	}
	defer release()

	tx := &memoryTx{store: s, held: make(map[scheduler.Key]struct{}, len(sorted)), deleted: make(map[string]struct{})}
	for _, k := range sorted {
		tx.held[k] = struct{}{}
	}
	if err := body(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.apply(tx)
}

func (s *Store) lockFor(k scheduler.Key) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[k]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[k] = ch
	}
	return ch
}

func (s *Store) acquire(ctx context.Context, sorted []scheduler.Key) (func(), error) {
	held := make([]chan struct{}, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, k := range sorted {
		ch := s.lockFor(k)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func (s *Store) apply(tx *memoryTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.deleted {
		if _, ok := s.reservations[id]; !ok {
			return fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, id)
		}
	}
	for _, r := range tx.inserted {
		if _, ok := s.reservations[r.ID]; ok {
			if _, gone := tx.deleted[r.ID]; !gone {
				return fmt.Errorf("%w: reservation %s", persistence.ErrDuplicate, r.ID)
			}
		}
		sk := slotKey{key: r.Key(), start: r.Interval.Start()}
		if other, ok := s.starts[sk]; ok {
			if _, gone := tx.deleted[other]; !gone {
				return fmt.Errorf("%w: room %s on %s at %s", scheduler.ErrSlotTaken, r.RoomID, r.OnDate, r.Interval.Start())
			}
		}
	}

	for id := range tx.deleted {
		s.deleteLocked(id)
	}
	for _, r := range tx.inserted {
		s.insertLocked(r)
	}
	return nil
}

func (s *Store) findLocked(k scheduler.Key) []scheduler.Reservation {
	ids := s.byKey[k]
	out := make([]scheduler.Reservation, 0, len(ids))
	for id := range ids {
		out = append(out, s.reservations[id].Clone())
	}
	scheduler.SortReservations(out)
	return out
}

func (s *Store) insertLocked(r scheduler.Reservation) {
	k := r.Key()
	s.reservations[r.ID] = r.Clone()
	if s.byKey[k] == nil {
		s.byKey[k] = make(map[string]struct{})
	}
	s.byKey[k][r.ID] = struct{}{}
	s.starts[slotKey{key: k, start: r.Interval.Start()}] = r.ID
}

func (s *Store) deleteLocked(id string) {
	r, ok := s.reservations[id]
	if !ok {
		return
	}
	k := r.Key()
	delete(s.reservations, id)
	delete(s.byKey[k], id)
	if len(s.byKey[k]) == 0 {
		delete(s.byKey, k)
	}
	sk := slotKey{key: k, start: r.Interval.Start()}
	if s.starts[sk] == id {
		delete(s.starts, sk)
	}
}

type memoryTx struct {
	store    *Store
	held     map[scheduler.Key]struct{}
	inserted []scheduler.Reservation
	deleted  map[string]struct{}
}

func (tx *memoryTx) checkHeld(k scheduler.Key) error {
	if _, ok := tx.held[k]; !ok {
		return fmt.Errorf("%w: room %s on %s", scheduler.ErrKeyNotHeld, k.RoomID, k.Date)
	}
	return nil
}

func (tx *memoryTx) FindForRoomOnDate(ctx context.Context, roomID string, on calendar.Anchor) ([]scheduler.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := scheduler.Key{RoomID: roomID, Date: on}
	if err := tx.checkHeld(k); err != nil {
		return nil, err
	}

	tx.store.mu.RLock()
	committed := tx.store.findLocked(k)
	tx.store.mu.RUnlock()

	out := make([]scheduler.Reservation, 0, len(committed)+len(tx.inserted))
	for _, r := range committed {
		if _, gone := tx.deleted[r.ID]; !gone {
			out = append(out, r)
		}
	}
	for _, r := range tx.inserted {
		if r.Key() == k {
			out = append(out, r.Clone())
		}
	}
	scheduler.SortReservations(out)
	return out, nil
}

func (tx *memoryTx) Insert(ctx context.Context, r scheduler.Reservation) (scheduler.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return scheduler.Reservation{}, err
	}
	if err := tx.checkHeld(r.Key()); err != nil {
		return scheduler.Reservation{}, err
	}
	for _, staged := range tx.inserted {
		if staged.ID == r.ID {
			return scheduler.Reservation{}, fmt.Errorf("%w: reservation %s", persistence.ErrDuplicate, r.ID)
		}
		if staged.Key() == r.Key() && staged.Interval.Start() == r.Interval.Start() {
			return scheduler.Reservation{}, fmt.Errorf("%w: room %s on %s at %s", scheduler.ErrSlotTaken, r.RoomID, r.OnDate, r.Interval.Start())
		}
	}
	tx.inserted = append(tx.inserted, r.Clone())
	return r.Clone(), nil
}

func (tx *memoryTx) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.store.mu.RLock()
	r, ok := tx.store.reservations[id]
	tx.store.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, id)
	}
	if err := tx.checkHeld(r.Key()); err != nil {
		return err
	}
	tx.deleted[id] = struct{}{}
	return nil
}

// --- persistence.PatternRepository implementation ---

// SavePattern stores a new pattern.
func (s *Store) SavePattern(ctx context.Context, pattern persistence.PatternRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patterns[pattern.ID]; ok {
		return fmt.Errorf("%w: pattern %s", persistence.ErrDuplicate, pattern.ID)
	}
	s.patterns[pattern.ID] = pattern.Clone()
	return nil
}

// GetPattern retrieves a pattern by ID.
func (s *Store) GetPattern(ctx context.Context, id string) (persistence.PatternRecord, error) {
	if err := ctx.Err(); err != nil {
		return persistence.PatternRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patterns[id]
	if !ok {
		return persistence.PatternRecord{}, fmt.Errorf("%w: pattern %s", persistence.ErrNotFound, id)
	}
	return p.Clone(), nil
}

// DeletePattern removes a pattern and its exceptions. Reservations created
// from it are left in place.
func (s *Store) DeletePattern(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patterns[id]; !ok {
		return fmt.Errorf("%w: pattern %s", persistence.ErrNotFound, id)
	}
	delete(s.patterns, id)
	delete(s.exceptions, id)
	return nil
}

// ListExceptions returns the exceptions of a pattern ordered by date.
func (s *Store) ListExceptions(ctx context.Context, patternID string) ([]persistence.ExceptionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.patterns[patternID]; !ok {
		return nil, fmt.Errorf("%w: pattern %s", persistence.ErrNotFound, patternID)
	}
	out := make([]persistence.ExceptionRecord, 0, len(s.exceptions[patternID]))
	for _, ex := range s.exceptions[patternID] {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OnDate < out[j].OnDate })
	return out, nil
}

// UpsertException creates or replaces the exception for its date.
func (s *Store) UpsertException(ctx context.Context, exception persistence.ExceptionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patterns[exception.PatternID]; !ok {
		return fmt.Errorf("%w: pattern %s", persistence.ErrForeignKeyViolation, exception.PatternID)
	}
	if s.exceptions[exception.PatternID] == nil {
		s.exceptions[exception.PatternID] = make(map[calendar.Anchor]persistence.ExceptionRecord)
	}
	s.exceptions[exception.PatternID][exception.OnDate] = exception
	return nil
}

// DeleteException removes the exception on a date.
func (s *Store) DeleteException(ctx context.Context, patternID string, on calendar.Anchor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exceptions[patternID][on]; !ok {
		return fmt.Errorf("%w: exception %s on %s", persistence.ErrNotFound, patternID, on)
	}
	delete(s.exceptions[patternID], on)
	return nil
}
