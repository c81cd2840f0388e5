// Package timeslot turns wall-clock windows into fixed-width viewing slots.
package timeslot

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/beesaferoot/rentals/internal/apperr"
)

// Width is the length of a generated slot in minutes.
const Width = 30

var clockRegexp = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Slot is one generated interval. Start and End are HH:mm strings.
type Slot struct {
	Start string
	End   string
}

// Overlaps reports whether s and o share any minute.
func (s Slot) Overlaps(o Slot) bool {
	a0, _ := ParseClock(s.Start)
	a1, _ := ParseClock(s.End)
	b0, _ := ParseClock(o.Start)
	b1, _ := ParseClock(o.End)
	return a0 < b1 && b0 < a1
}

// ParseClock converts an HH:mm string into minutes since midnight.
func ParseClock(v string) (int, error) {
	m := clockRegexp.FindStringSubmatch(v)
	if m == nil {
		return 0, apperr.WithMetadata(apperr.CodeInvalidFormat,
			fmt.Sprintf("time %q must be HH:mm (24-hour)", v),
			map[string]string{"value": v})
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	return h*60 + mins, nil
}

// FormatClock converts minutes since midnight into HH:mm.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Generate splits [start, end) into Width-minute slots. The last slot is
// clamped to end when the window is not a multiple of Width.
func Generate(start, end string) ([]Slot, error) {
	from, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	if to <= from {
		return nil, apperr.WithMetadata(apperr.CodeInvalidRange,
			fmt.Sprintf("end %s must be after start %s", end, start),
			map[string]string{"start": start, "end": end})
	}

	slots := make([]Slot, 0, (to-from+Width-1)/Width)
	for t := from; t < to; t += Width {
		slotEnd := t + Width
		if slotEnd > to {
			slotEnd = to
		}
		slots = append(slots, Slot{Start: FormatClock(t), End: FormatClock(slotEnd)})
	}
	return slots, nil
}

// Covers reports whether slots exactly reconstruct [start, end) with no gaps
// or overlaps, in order.
func Covers(slots []Slot, start, end string) bool {
	if len(slots) == 0 {
		return false
	}
	from, err := ParseClock(start)
	if err != nil {
		return false
	}
	to, err := ParseClock(end)
	if err != nil {
		return false
	}
	cursor := from
	for _, s := range slots {
		s0, err := ParseClock(s.Start)
		if err != nil || s0 != cursor {
			return false
		}
		s1, err := ParseClock(s.End)
		if err != nil || s1 <= s0 {
			return false
		}
		cursor = s1
	}
	return cursor == to
}
