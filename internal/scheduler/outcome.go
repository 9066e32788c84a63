package scheduler

import "fmt"

// State is the lifecycle position of a reservation attempt.
type State int

const (
	Pending State = iota
	Committed
	Conflicted
	Aborted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Conflicted:
		return "conflicted"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the terminal result of one attempt.
//
// Committed carries the stored Reservation. Conflicted carries the blocking
// reservations and a *SchedulingConflict in Err. Aborted carries the reason
// in Err and guarantees nothing was written.
type Outcome struct {
	State       State
	Slot        Slot
	Reservation Reservation
	Conflicts   []Reservation
	Err         error
	// Occurrence is the series index for series attempts.
	Occurrence int
	// Replaced is the cancelled reservation ID for reschedules.
	Replaced string
}

// Error returns nil for committed outcomes and the failure otherwise.
func (o Outcome) Error() error {
	if o.State == Committed {
		return nil
	}
	return o.Err
}

func aborted(slot Slot, err error) Outcome {
	return Outcome{State: Aborted, Slot: slot, Err: err}
}

// SeriesStatus summarises a series attempt.
type SeriesStatus int

const (
	SeriesRejected SeriesStatus = iota
	SeriesCommitted
	SeriesPartiallyCommitted
)

func (s SeriesStatus) String() string {
	switch s {
	case SeriesCommitted:
		return "committed"
	case SeriesPartiallyCommitted:
		return "partially_committed"
	case SeriesRejected:
		return "rejected"
	default:
		return fmt.Sprintf("SeriesStatus(%d)", int(s))
	}
}

// SeriesOutcome holds one Outcome per occurrence in expansion order.
type SeriesOutcome struct {
	Status   SeriesStatus
	Policy   CommitPolicy
	Outcomes []Outcome
}

// Count returns how many occurrences ended in state.
func (s SeriesOutcome) Count(state State) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// Reservations returns the committed reservations.
func (s SeriesOutcome) Reservations() []Reservation {
	var out []Reservation
	for _, o := range s.Outcomes {
		if o.State == Committed {
			out = append(out, o.Reservation)
		}
	}
	return out
}

func (s *SeriesOutcome) resetPending() {
	for i := range s.Outcomes {
		s.Outcomes[i].State = Pending
		s.Outcomes[i].Conflicts = nil
		s.Outcomes[i].Err = nil
	}
}

func (s *SeriesOutcome) abortPending(err error) {
	for i := range s.Outcomes {
		if s.Outcomes[i].State == Pending {
			s.Outcomes[i].State = Aborted
			s.Outcomes[i].Err = err
		}
	}
}
