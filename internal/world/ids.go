package world

import "fmt"

// UnitID identifies a resource unit, e.g. "u07".
type UnitID string

// TimeID identifies a time step, e.g. "0042". Zero-padded so that lexical
// order matches step order.
type TimeID string

// PadWidth returns the number of digits needed to print n-1 (minimum 1).
func PadWidth(n int) int {
	w := 1
	for v := n - 1; v >= 10; v /= 10 {
		w++
	}
	return w
}

// FormatUnitID returns the id of the unit at ordinal i out of n.
func FormatUnitID(i, n int) UnitID {
	return UnitID(fmt.Sprintf("u%0*d", PadWidth(n), i))
}

// FormatTimeID returns the id of step t in a run of the given duration.
func FormatTimeID(t, duration int) TimeID {
	return TimeID(fmt.Sprintf("%0*d", PadWidth(duration), t))
}
