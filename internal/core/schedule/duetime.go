package schedule

import (
	"fmt"
	"time"
)

// ComputeDueTime produces the next send time for a schedule.
//
// base is the trigger time (event time, or "now" for sweep-detected
// eligibility). reference is an optional future timestamp supplied by the
// triggering condition (e.g. a session start) used by "before" delays.
//
// A "before" delay without a usable reference degrades to "none"; the
// degradation is returned as a configuration warning rather than an error so
// delivery still happens.
func ComputeDueTime(cfg Config, base time.Time, reference *time.Time) (time.Time, []string) {
	var warnings []string

	due := base
	switch cfg.Delay {
	case DelayAfter:
		due = base.Add(time.Duration(cfg.DelaySeconds) * time.Second)

	case DelayBefore:
		if reference == nil || !reference.After(base) {
			warnings = append(warnings, "delay policy 'before' has no future reference timestamp, treated as 'none'")
		} else {
			due = reference.Add(-time.Duration(cfg.DelaySeconds) * time.Second)
			if due.Before(base) {
				due = base
			}
		}
	}

	return alignToInterval(cfg, due, &warnings), warnings
}

// NextCycle computes the due time for the next recurring cycle. The result is
// always strictly later than previous.
func NextCycle(cfg Config, previous time.Time) time.Time {
	switch cfg.Interval {
	case IntervalDaily:
		return previous.AddDate(0, 0, 1)
	case IntervalWeekly:
		return previous.AddDate(0, 0, 7)
	case IntervalMonthly:
		return previous.AddDate(0, 1, 0)
	default:
		// Once schedules have no next cycle; keep the caller honest
		return previous
	}
}

// alignToInterval moves t forward to the configured weekday/monthday/clock
func alignToInterval(cfg Config, t time.Time, warnings *[]string) time.Time {
	hour, minute, ok := parseClock(cfg.TimeOfDay)
	if cfg.TimeOfDay != "" && !ok {
		*warnings = append(*warnings, fmt.Sprintf("invalid time_of_day %q ignored", cfg.TimeOfDay))
	}

	switch cfg.Interval {
	case IntervalOnce:
		return t

	case IntervalDaily:
		if !ok {
			return t
		}
		aligned := time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
		if aligned.Before(t) {
			aligned = aligned.AddDate(0, 0, 1)
		}
		return aligned

	case IntervalWeekly:
		weekday := int(t.Weekday())
		if cfg.Weekday != nil {
			weekday = *cfg.Weekday
		}
		if !ok {
			hour, minute = t.Hour(), t.Minute()
		}
		days := (weekday - int(t.Weekday()) + 7) % 7
		aligned := time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location()).AddDate(0, 0, days)
		if aligned.Before(t) {
			aligned = aligned.AddDate(0, 0, 7)
		}
		return aligned

	case IntervalMonthly:
		day := t.Day()
		if cfg.MonthDay != nil {
			day = *cfg.MonthDay
		}
		if !ok {
			hour, minute = t.Hour(), t.Minute()
		}
		aligned := time.Date(t.Year(), t.Month(), day, hour, minute, 0, 0, t.Location())
		if aligned.Before(t) {
			aligned = aligned.AddDate(0, 1, 0)
		}
		return aligned
	}

	return t
}

// parseClock parses "15:04" into an hour/minute pair
func parseClock(clock string) (hour, minute int, ok bool) {
	if clock == "" {
		return 0, 0, false
	}
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, 0, false
	}
	return parsed.Hour(), parsed.Minute(), true
}
