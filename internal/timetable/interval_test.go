package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalOverlaps(t *testing.T) {
	base := NewInterval(at(9, 0), time.Hour)

	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"same span", NewInterval(at(9, 0), time.Hour), true},
		{"starts inside", NewInterval(at(9, 30), time.Hour), true},
		{"ends inside", NewInterval(at(8, 30), time.Hour), true},
		{"back to back after", NewInterval(at(10, 0), time.Hour), false},
		{"back to back before", NewInterval(at(8, 0), time.Hour), false},
		{"disjoint", NewInterval(at(12, 0), time.Hour), false},
		{"unplaced", NewInterval(time.Time{}, time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(tc.other))
		})
	}
}

func TestIntervalOverlapsIsAsymmetricForEnclosingSpans(t *testing.T) {
	inner := NewInterval(at(10, 0), time.Hour)
	outer := NewInterval(at(9, 0), 3*time.Hour)

	assert.True(t, outer.Overlaps(inner))
	assert.False(t, inner.Overlaps(outer))
}

func TestIntervalCompareAndEnd(t *testing.T) {
	a := NewInterval(at(9, 0), time.Hour)
	b := NewInterval(at(9, 0), 2*time.Hour)
	c := NewInterval(at(8, 0), 5*time.Hour)

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, a.Compare(c))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, at(10, 0), a.End())
	assert.True(t, NewInterval(time.Time{}, time.Hour).End().IsZero())
	assert.Equal(t, time.Duration(0), NewInterval(at(9, 0), -time.Hour).Duration)
}

func TestIntervalContains(t *testing.T) {
	outer := IntervalBetween(at(9, 0), at(12, 0))

	assert.True(t, outer.Contains(NewInterval(at(11, 0), time.Hour)))
	assert.False(t, outer.Contains(NewInterval(at(11, 30), time.Hour)))
	assert.False(t, outer.Contains(NewInterval(at(8, 59), time.Minute*10)))
}
