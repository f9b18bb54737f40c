package scheduler

import (
	"fmt"
	"time"
)

// WeeklySchedule runs a job once per week at a fixed weekday and clock
// time. The archive transition uses Monday shortly after midnight, when
// the remote view has just slid and last week's data is final.
type WeeklySchedule struct {
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

// NewWeeklySchedule creates a WeeklySchedule.
func NewWeeklySchedule(weekday time.Weekday, hour, minute int, loc *time.Location) *WeeklySchedule {
	if loc == nil {
		loc = time.UTC
	}
	return &WeeklySchedule{
		Weekday:  weekday,
		Hour:     hour,
		Minute:   minute,
		Location: loc,
	}
}

// Next returns the next occurrence strictly after t.
func (s *WeeklySchedule) Next(t time.Time) time.Time {
	t = t.In(s.Location)
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, s.Location)

	days := (int(s.Weekday) - int(t.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// String returns the string representation of the schedule.
func (s *WeeklySchedule) String() string {
	return fmt.Sprintf("@weekly %s %02d:%02d", s.Weekday, s.Hour, s.Minute)
}
