package recurrence

import (
	"iter"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
)

// Occurrence is one concrete instance produced by an Expander.
type Occurrence struct {
	// Index is the zero-based ordinal among emitted occurrences. Skipped
	// dates do not consume an index.
	Index    int
	Date     calendar.Anchor
	Interval calendar.Interval
	// Modified is set when an exception replaced the base interval.
	Modified bool
}

// Expander turns a pattern and its exceptions into a lazy occurrence
// sequence.
//
// Termination semantics:
//   - EndsOn bounds candidate dates inclusively.
//   - Limit bounds the number of emitted occurrences. A Skip exception
//     removes its date without counting toward the limit, so the series
//     still yields Limit occurrences.
//   - Exceptions on dates the pattern never produces are inert.
type Expander struct {
	pattern    Pattern
	exceptions map[calendar.Anchor]Exception
}

// NewExpander validates the exception set against duplicates and returns an
// expander. The expander holds no iteration state and may be shared.
func NewExpander(pattern Pattern, exceptions []Exception) (*Expander, error) {
	index, err := indexExceptions(exceptions)
	if err != nil {
		return nil, err
	}
	return &Expander{pattern: pattern, exceptions: index}, nil
}

// Pattern returns the underlying pattern.
func (e *Expander) Pattern() Pattern { return e.pattern }

// Iterator returns a fresh iterator positioned before the first occurrence.
func (e *Expander) Iterator() *Iterator {
	return &Iterator{expander: e, next: e.pattern.startsOn}
}

// All yields every occurrence in date order. For unbounded patterns the
// caller must stop ranging.
func (e *Expander) All() iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		it := e.Iterator()
		for {
			occ, ok := it.Next()
			if !ok || !yield(occ) {
				return
			}
		}
	}
}

// Take materializes at most n occurrences.
func (e *Expander) Take(n int) []Occurrence {
	out := make([]Occurrence, 0, max(n, 0))
	if n <= 0 {
		return out
	}
	for occ := range e.All() {
		out = append(out, occ)
		if len(out) == n {
			break
		}
	}
	return out
}

// Window materializes the occurrences dated within [from, to]. Indexes keep
// counting from the start of the series.
func (e *Expander) Window(from, to calendar.Anchor) []Occurrence {
	var out []Occurrence
	for occ := range e.All() {
		if occ.Date > to {
			break
		}
		if occ.Date >= from {
			out = append(out, occ)
		}
	}
	return out
}

// Iterator walks an expander's occurrences. Its state is only the next
// candidate date and the emitted count.
type Iterator struct {
	expander *Expander
	next     calendar.Anchor
	emitted  int
	done     bool
}

// Next returns the next occurrence, or false once the series is exhausted.
func (it *Iterator) Next() (Occurrence, bool) {
	if it.done {
		return Occurrence{}, false
	}
	p := it.expander.pattern
	for {
		if p.limit > 0 && it.emitted >= p.limit {
			it.done = true
			return Occurrence{}, false
		}
		day := p.nextCandidate(it.next)
		if p.endsOn != nil && day > *p.endsOn {
			it.done = true
			return Occurrence{}, false
		}
		it.next = day.AddDays(1)

		occ := Occurrence{Index: it.emitted, Date: day, Interval: p.interval}
		if ex, ok := it.expander.exceptions[day]; ok {
			if ex.Action == Skip {
				continue
			}
			occ.Interval = ex.Interval
			occ.Modified = true
		}
		it.emitted++
		return occ, true
	}
}
