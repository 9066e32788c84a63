package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/logging"
	"github.com/jae1jeong/meeting-resv-sub001/internal/recurrence"
)

// DefaultMaxSeriesOccurrences caps how many occurrences a single series
// request may materialise.
const DefaultMaxSeriesOccurrences = 366

// CommitPolicy decides how a series commits when only some of its
// occurrences are free.
type CommitPolicy int

const (
	// AllOrNothing commits a series only when every occurrence is free.
	AllOrNothing CommitPolicy = iota
	// Partial commits every free occurrence and reports the rest.
	Partial
)

func (p CommitPolicy) String() string {
	switch p {
	case AllOrNothing:
		return "all_or_nothing"
	case Partial:
		return "partial"
	default:
		return fmt.Sprintf("CommitPolicy(%d)", int(p))
	}
}

// ParseCommitPolicy accepts "all_or_nothing" or "partial", case-insensitively.
func ParseCommitPolicy(s string) (CommitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all_or_nothing", "all-or-nothing", "":
		return AllOrNothing, nil
	case "partial":
		return Partial, nil
	default:
		return AllOrNothing, fmt.Errorf("scheduler: unknown commit policy %q", s)
	}
}

// Config wires an Engine.
type Config struct {
	Store                Store
	Clock                calendar.Clock
	NewID                func() string
	Policy               CommitPolicy
	MaxSeriesOccurrences int
	RejectPast           bool
	Logger               *slog.Logger
}

// Engine runs reservation transactions: each call moves one attempt from
// Pending to exactly one of Committed, Conflicted, or Aborted.
type Engine struct {
	store      Store
	clock      calendar.Clock
	newID      func() string
	policy     CommitPolicy
	maxSeries  int
	rejectPast bool
	logger     *slog.Logger
}

// NewEngine constructs an Engine. Store is required.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("scheduler: store is required")
	}
	e := &Engine{
		store:      cfg.Store,
		clock:      cfg.Clock,
		newID:      cfg.NewID,
		policy:     cfg.Policy,
		maxSeries:  cfg.MaxSeriesOccurrences,
		rejectPast: cfg.RejectPast,
		logger:     cfg.Logger,
	}
	if e.clock == nil {
		e.clock = calendar.ClockFunc(time.Now)
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.maxSeries <= 0 {
		e.maxSeries = DefaultMaxSeriesOccurrences
	}
	return e, nil
}

// Policy returns the engine's default series commit policy.
func (e *Engine) Policy() CommitPolicy {
	return e.policy
}

// Request describes a single reservation attempt.
type Request struct {
	RoomID          string
	OwnerID         string
	Date            calendar.Anchor
	Interval        calendar.Interval
	OriginPatternID *string
}

func (r Request) slot() Slot {
	return Slot{RoomID: r.RoomID, Date: r.Date, Interval: r.Interval}
}

func (r Request) validate() error {
	var missing []string
	if strings.TrimSpace(r.RoomID) == "" {
		missing = append(missing, "room")
	}
	if strings.TrimSpace(r.OwnerID) == "" {
		missing = append(missing, "owner")
	}
	if r.Interval.IsZero() {
		missing = append(missing, "interval")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// Reserve attempts to book one slot.
func (e *Engine) Reserve(ctx context.Context, req Request) Outcome {
	logger := e.log(ctx, "reserve", "room_id", req.RoomID, "date", req.Date.String(), "interval", req.Interval.String())
	slot := req.slot()

	if err := req.validate(); err != nil {
		return aborted(slot, err)
	}
	if err := e.checkNotPast(req.Date); err != nil {
		return aborted(slot, err)
	}
	if err := ctx.Err(); err != nil {
		return aborted(slot, err)
	}

	var committed Reservation
	err := e.store.WithExclusiveCommitment(ctx, []Key{slot.Key()}, func(ctx context.Context, tx Tx) error {
		snapshot, err := tx.FindForRoomOnDate(ctx, slot.RoomID, slot.Date)
		if err != nil {
			return err
		}
		if av := CheckAvailability(snapshot, slot, ""); !av.Free {
			return &SchedulingConflict{Slot: slot, Conflicts: av.Conflicts}
		}
		committed, err = tx.Insert(ctx, e.build(req))
		return err
	})

	out := e.resolve(ctx, slot, "", committed, err)
	logOutcome(logger, out)
	return out
}

// Cancel destroys a reservation.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	logger := e.log(ctx, "cancel", "reservation_id", id)
	if err := e.store.Delete(ctx, id); err != nil {
		logger.Warn("cancel failed", "error", err)
		return err
	}
	logger.Info("reservation cancelled")
	return nil
}

// Availability reports whether a slot is free, ignoring excludeID.
func (e *Engine) Availability(ctx context.Context, slot Slot, excludeID string) (Availability, error) {
	snapshot, err := e.store.FindForRoomOnDate(ctx, slot.RoomID, slot.Date)
	if err != nil {
		return Availability{}, err
	}
	return CheckAvailability(snapshot, slot, excludeID), nil
}

// Reschedule moves a reservation to a new day and interval. The old
// reservation is cancelled and a new one created inside a single commitment
// over both keys, checked against everything but the reservation itself.
func (e *Engine) Reschedule(ctx context.Context, id string, date calendar.Anchor, iv calendar.Interval) Outcome {
	logger := e.log(ctx, "reschedule", "reservation_id", id, "date", date.String(), "interval", iv.String())

	existing, err := e.store.Get(ctx, id)
	if err != nil {
		return aborted(Slot{Date: date, Interval: iv}, err)
	}
	slot := Slot{RoomID: existing.RoomID, Date: date, Interval: iv}
	if iv.IsZero() {
		return aborted(slot, fmt.Errorf("%w: missing interval", ErrInvalidRequest))
	}
	if err := e.checkNotPast(date); err != nil {
		return aborted(slot, err)
	}
	if err := ctx.Err(); err != nil {
		return aborted(slot, err)
	}

	var committed Reservation
	err = e.store.WithExclusiveCommitment(ctx, []Key{existing.Key(), slot.Key()}, func(ctx context.Context, tx Tx) error {
		current, err := tx.FindForRoomOnDate(ctx, existing.RoomID, existing.OnDate)
		if err != nil {
			return err
		}
		if !containsID(current, id) {
			return fmt.Errorf("%w: %s", ErrReservationGone, id)
		}
		snapshot := current
		if slot.Key() != existing.Key() {
			if snapshot, err = tx.FindForRoomOnDate(ctx, slot.RoomID, slot.Date); err != nil {
				return err
			}
		}
		if av := CheckAvailability(snapshot, slot, id); !av.Free {
			return &SchedulingConflict{Slot: slot, Conflicts: av.Conflicts}
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		committed, err = tx.Insert(ctx, e.build(Request{
			RoomID:          existing.RoomID,
			OwnerID:         existing.OwnerID,
			Date:            date,
			Interval:        iv,
			OriginPatternID: existing.OriginPatternID,
		}))
		return err
	})

	out := e.resolve(ctx, slot, id, committed, err)
	out.Replaced = id
	logOutcome(logger, out)
	return out
}

// SeriesRequest describes a recurring reservation attempt.
type SeriesRequest struct {
	RoomID    string
	OwnerID   string
	PatternID string
	Expander  *recurrence.Expander
	// Until bounds expansion of unbounded patterns, inclusive.
	Until *calendar.Anchor
	// Policy overrides the engine default when set.
	Policy *CommitPolicy
}

// ReserveSeries materialises the occurrences of a pattern and commits them
// under the chosen policy.
func (e *Engine) ReserveSeries(ctx context.Context, req SeriesRequest) (SeriesOutcome, error) {
	policy := e.policy
	if req.Policy != nil {
		policy = *req.Policy
	}
	logger := e.log(ctx, "reserve_series", "room_id", req.RoomID, "pattern_id", req.PatternID, "policy", policy.String())

	occurrences, err := e.materialise(req)
	if err != nil {
		logger.Warn("series rejected before commitment", "error", err)
		return SeriesOutcome{}, err
	}

	var result SeriesOutcome
	switch policy {
	case Partial:
		result = e.reservePartial(ctx, req, occurrences)
	default:
		result = e.reserveAllOrNothing(ctx, req, occurrences)
	}
	result.Policy = policy

	logger.Info("series resolved",
		"status", result.Status.String(),
		"committed", result.Count(Committed),
		"conflicted", result.Count(Conflicted),
		"aborted", result.Count(Aborted),
	)
	return result, nil
}

func (e *Engine) materialise(req SeriesRequest) ([]recurrence.Occurrence, error) {
	var missing []string
	if strings.TrimSpace(req.RoomID) == "" {
		missing = append(missing, "room")
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		missing = append(missing, "owner")
	}
	if req.Expander == nil {
		missing = append(missing, "pattern")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	pattern := req.Expander.Pattern()
	if pattern.Unbounded() && req.Until == nil {
		return nil, ErrUnboundedSeries
	}

	var occurrences []recurrence.Occurrence
	for occ := range req.Expander.All() {
		if req.Until != nil && occ.Date > *req.Until {
			break
		}
		if len(occurrences) == e.maxSeries {
			return nil, fmt.Errorf("%w: more than %d occurrences", ErrSeriesTooLong, e.maxSeries)
		}
		occurrences = append(occurrences, occ)
	}
	if len(occurrences) == 0 {
		return nil, fmt.Errorf("%w: pattern produces no occurrences", ErrInvalidRequest)
	}
	if err := e.checkNotPast(occurrences[0].Date); err != nil {
		return nil, err
	}
	return occurrences, nil
}

func (e *Engine) reserveAllOrNothing(ctx context.Context, req SeriesRequest, occurrences []recurrence.Occurrence) SeriesOutcome {
	result := SeriesOutcome{Outcomes: make([]Outcome, len(occurrences))}
	keys := make([]Key, len(occurrences))
	for i, occ := range occurrences {
		slot := Slot{RoomID: req.RoomID, Date: occ.Date, Interval: occ.Interval}
		result.Outcomes[i] = Outcome{State: Pending, Slot: slot, Occurrence: occ.Index}
		keys[i] = slot.Key()
	}

	if err := ctx.Err(); err != nil {
		result.abortPending(err)
		result.Status = SeriesRejected
		return result
	}

	errSeriesConflict := errors.New("series conflict")
	committed := make([]Reservation, len(occurrences))
	err := e.store.WithExclusiveCommitment(ctx, keys, func(ctx context.Context, tx Tx) error {
		result.resetPending()
		snapshots := make(map[Key][]Reservation, len(keys))
		for _, k := range SortKeys(keys) {
			rs, err := tx.FindForRoomOnDate(ctx, k.RoomID, k.Date)
			if err != nil {
				return err
			}
			snapshots[k] = rs
		}

		conflicted := false
		for i, av := range CheckOccurrences(snapshots, req.RoomID, occurrences) {
			if !av.Free {
				result.Outcomes[i].State = Conflicted
				result.Outcomes[i].Conflicts = av.Conflicts
				result.Outcomes[i].Err = &SchedulingConflict{Slot: av.Slot, Conflicts: av.Conflicts}
				conflicted = true
			}
		}
		if conflicted {
			return errSeriesConflict
		}

		for i, occ := range occurrences {
			r, err := tx.Insert(ctx, e.build(seriesRequest(req, occ)))
			if err != nil {
				return err
			}
			committed[i] = r
		}
		return nil
	})

	switch {
	case err == nil:
		for i := range result.Outcomes {
			result.Outcomes[i].State = Committed
			result.Outcomes[i].Reservation = committed[i]
		}
		result.Status = SeriesCommitted
	case errors.Is(err, errSeriesConflict):
		result.abortPending(ErrSeriesRejected)
		result.Status = SeriesRejected
	case errors.Is(err, ErrSlotTaken):
		result.resetPending()
		e.markStoreConflicts(ctx, &result)
		result.abortPending(ErrSeriesRejected)
		result.Status = SeriesRejected
	default:
		result.resetPending()
		result.abortPending(err)
		result.Status = SeriesRejected
	}
	return result
}

func (e *Engine) reservePartial(ctx context.Context, req SeriesRequest, occurrences []recurrence.Occurrence) SeriesOutcome {
	result := SeriesOutcome{Outcomes: make([]Outcome, 0, len(occurrences))}
	for _, occ := range occurrences {
		out := e.Reserve(ctx, seriesRequest(req, occ))
		out.Occurrence = occ.Index
		result.Outcomes = append(result.Outcomes, out)
	}
	switch n := result.Count(Committed); {
	case n == len(result.Outcomes):
		result.Status = SeriesCommitted
	case n == 0:
		result.Status = SeriesRejected
	default:
		result.Status = SeriesPartiallyCommitted
	}
	return result
}

// markStoreConflicts re-reads each pending occurrence's day after a storage
// guard fired and marks those that now collide.
func (e *Engine) markStoreConflicts(ctx context.Context, result *SeriesOutcome) {
	for i := range result.Outcomes {
		out := &result.Outcomes[i]
		av, err := e.Availability(ctx, out.Slot, "")
		if err != nil || av.Free {
			continue
		}
		out.State = Conflicted
		out.Conflicts = av.Conflicts
		out.Err = &SchedulingConflict{Slot: out.Slot, Conflicts: av.Conflicts}
	}
}

func seriesRequest(req SeriesRequest, occ recurrence.Occurrence) Request {
	r := Request{
		RoomID:   req.RoomID,
		OwnerID:  req.OwnerID,
		Date:     occ.Date,
		Interval: occ.Interval,
	}
	if req.PatternID != "" {
		id := req.PatternID
		r.OriginPatternID = &id
	}
	return r
}

// resolve maps the result of a single-slot commitment onto an Outcome.
func (e *Engine) resolve(ctx context.Context, slot Slot, excludeID string, committed Reservation, err error) Outcome {
	if err == nil {
		return Outcome{State: Committed, Slot: slot, Reservation: committed}
	}
	var conflict *SchedulingConflict
	if errors.As(err, &conflict) {
		return Outcome{State: Conflicted, Slot: slot, Conflicts: conflict.Conflicts, Err: conflict}
	}
	if errors.Is(err, ErrSlotTaken) {
		// The storage guard caught a race the snapshot missed.
		conflicts := []Reservation(nil)
		if av, aErr := e.Availability(ctx, slot, excludeID); aErr == nil {
			conflicts = av.Conflicts
		}
		return Outcome{State: Conflicted, Slot: slot, Conflicts: conflicts, Err: &SchedulingConflict{Slot: slot, Conflicts: conflicts}}
	}
	return aborted(slot, err)
}

func (e *Engine) build(req Request) Reservation {
	r := Reservation{
		ID:        e.newID(),
		RoomID:    req.RoomID,
		OnDate:    req.Date,
		Interval:  req.Interval,
		OwnerID:   req.OwnerID,
		CreatedAt: e.clock.Now().UTC(),
	}
	if req.OriginPatternID != nil {
		id := *req.OriginPatternID
		r.OriginPatternID = &id
	}
	return r
}

func (e *Engine) checkNotPast(date calendar.Anchor) error {
	if !e.rejectPast {
		return nil
	}
	if today := calendar.Today(e.clock); date < today {
		return fmt.Errorf("%w: %s is before %s", ErrPastDate, date, today)
	}
	return nil
}

func (e *Engine) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = e.logger
	}
	if logger == nil {
		logger = slog.Default()
	}
	pairs := append([]any{"component", "scheduler", "operation", operation}, attrs...)
	return logger.With(pairs...)
}

func logOutcome(logger *slog.Logger, out Outcome) {
	switch out.State {
	case Committed:
		logger.Info("reservation committed", "reservation_id", out.Reservation.ID)
	case Conflicted:
		logger.Info("reservation conflicted", "conflicts", len(out.Conflicts))
	default:
		logger.Warn("reservation aborted", "error", out.Err)
	}
}

func containsID(rs []Reservation, id string) bool {
	for _, r := range rs {
		if r.ID == id {
			return true
		}
	}
	return false
}
