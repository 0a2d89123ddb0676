package scheduler

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// five or six fields (leading seconds optional) plus @every/@hourly style descriptors
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule computes run times in the event's timezone
type Schedule struct {
	spec     cron.Schedule
	location *time.Location
}

// ParseSchedule parses a cron spec; an empty timezone means UTC
func ParseSchedule(spec, timezone string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Schedule{}, fmt.Errorf("schedule is required")
	}
	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		loc = l
	}
	s, err := parser.Parse(spec)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return Schedule{spec: s, location: loc}, nil
}

// Next returns the first run strictly after t, in UTC
func (s Schedule) Next(t time.Time) time.Time {
	return s.spec.Next(t.In(s.location)).UTC()
}

// NextRun parses and evaluates in one call
func NextRun(spec, timezone string, after time.Time) (time.Time, error) {
	s, err := ParseSchedule(spec, timezone)
	if err != nil {
		return time.Time{}, err
	}
	next := s.Next(after)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("schedule %q never fires", spec)
	}
	return next, nil
}
