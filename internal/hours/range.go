// Package hours models the hour-of-day filter applied to weather observations.
package hours

import (
	"errors"
	"fmt"
)

// Hour bounds.
const (
	MinHour = 0
	MaxHour = 23
)

// Range errors.
var (
	ErrInvalidRange  = errors.New("invalid hour range")
	ErrUnknownPreset = errors.New("unknown hour preset")
)

// Range is a closed interval of hours of day. Start <= End always holds for
// values built with NewRange.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// All covers the whole day.
var All = Range{Start: MinHour, End: MaxHour}

// NewRange validates and returns a Range.
func NewRange(start, end int) (Range, error) {
	if start < MinHour || start > MaxHour || end < MinHour || end > MaxHour {
		return Range{}, fmt.Errorf("%w: hours must be within %d-%d, got %d-%d", ErrInvalidRange, MinHour, MaxHour, start, end)
	}
	if start > end {
		return Range{}, fmt.Errorf("%w: start %d is after end %d", ErrInvalidRange, start, end)
	}
	return Range{Start: start, End: end}, nil
}

// Valid reports whether r satisfies the Range invariants.
func (r Range) Valid() bool {
	_, err := NewRange(r.Start, r.End)
	return err == nil
}

// Contains reports whether hour falls inside the range.
func (r Range) Contains(hour int) bool {
	return hour >= r.Start && hour <= r.End
}

// Hours returns the number of hours covered.
func (r Range) Hours() int {
	return r.End - r.Start + 1
}

// Text renders the range the way the dashboard labels it.
func (r Range) Text() string {
	if r.Start == r.End {
		return fmt.Sprintf("Hour %d:00", r.Start)
	}
	return fmt.Sprintf("Hours %d:00-%d:00", r.Start, r.End)
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return fmt.Sprintf("%02d-%02d", r.Start, r.End)
}
