// Package availability computes bookable appointment start times for a staff
// member on a civil date. Everything here is pure: no I/O, no clock reads,
// and identical inputs always give identical output.
package availability

import (
	"sort"
	"time"
)

// DefaultStep is the spacing between candidate start times.
const DefaultStep = 30

// Window is one recurring weekly working block. Weekday uses time.Weekday
// numbering: 0 is Sunday and 6 is Saturday.
type Window struct {
	Weekday time.Weekday `json:"weekday"`
	Start   Clock        `json:"start_time"`
	End     Clock        `json:"end_time"`
}

// Interval is a half-open [Start, End) span on a single day.
type Interval struct {
	Start Clock `json:"start_time"`
	End   Clock `json:"end_time"`
}

// Overlaps reports whether [i.Start, i.End) and [o.Start, o.End) intersect.
// Touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && i.End > o.Start
}

type options struct {
	step int
}

// Option tunes ComputeAvailableSlots.
type Option func(*options)

// WithStep sets the candidate granularity in minutes. Non-positive values
// keep DefaultStep.
func WithStep(minutes int) Option {
	return func(o *options) {
		if minutes > 0 {
			o.step = minutes
		}
	}
}

// ComputeAvailableSlots returns the start times on date at which a booking of
// requiredMinutes fits inside one of the windows for date's weekday without
// overlapping any of existing.
//
// existing must already be restricted to confirmed appointments of the same
// staff member on date. A window whose end is not after its start yields no
// candidates. requiredMinutes must be positive; callers validate that.
//
// Candidates from every matching window are merged in ascending order.
// Overlapping windows may produce repeated times and these are kept.
func ComputeAvailableSlots(date time.Time, windows []Window, existing []Interval, requiredMinutes int, opts ...Option) []Clock {
	o := options{step: DefaultStep}
	for _, opt := range opts {
		opt(&o)
	}

	weekday := date.Weekday()
	slots := make([]Clock, 0)
	for _, w := range windows {
		if w.Weekday != weekday || w.End <= w.Start {
			continue
		}
		for start := w.Start; start.Add(requiredMinutes) <= w.End; start = start.Add(o.step) {
			candidate := Interval{Start: start, End: start.Add(requiredMinutes)}
			if !blocked(candidate, existing) {
				slots = append(slots, start)
			}
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

func blocked(candidate Interval, existing []Interval) bool {
	for _, e := range existing {
		if candidate.Overlaps(e) {
			return true
		}
	}
	return false
}

// Contains reports whether c is one of slots.
func Contains(slots []Clock, c Clock) bool {
	for _, s := range slots {
		if s == c {
			return true
		}
	}
	return false
}
