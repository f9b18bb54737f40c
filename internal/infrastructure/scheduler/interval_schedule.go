package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule fires at a fixed period measured from the previous
// run. It drives the recurring sync ticks, the 15-minute current-week
// refresh being the main one.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a schedule that fires every interval.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the run time one interval after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String renders the schedule in the job listing's "@every 15m0s" form.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}
