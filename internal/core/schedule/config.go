package schedule

import (
	"fmt"
	"time"
)

// Interval controls how often a notification schedule fires
type Interval string

const (
	IntervalOnce    Interval = "once"
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// DelayPolicy shifts the computed send time relative to the trigger
type DelayPolicy string

const (
	DelayNone   DelayPolicy = "none"
	DelayBefore DelayPolicy = "before"
	DelayAfter  DelayPolicy = "after"
)

// Config is the timing portion of an action configuration
type Config struct {
	Interval     Interval    `json:"interval"`
	Weekday      *int        `json:"weekday,omitempty"`   // 0 = Sunday, for weekly interval
	MonthDay     *int        `json:"month_day,omitempty"` // 1-28, for monthly interval
	TimeOfDay    string      `json:"time_of_day,omitempty"` // "15:04", empty keeps the trigger clock
	Delay        DelayPolicy `json:"delay"`
	DelaySeconds int64       `json:"delay_seconds,omitempty"`
	NotifyLimit  int         `json:"notify_limit"` // 0 = unlimited, only meaningful for recurring intervals
}

// Validate checks the config for values that cannot be saved
func (c Config) Validate() error {
	switch c.Interval {
	case IntervalOnce, IntervalDaily, IntervalWeekly, IntervalMonthly:
	default:
		return fmt.Errorf("unknown interval: %q", c.Interval)
	}

	switch c.Delay {
	case "", DelayNone, DelayBefore, DelayAfter:
	default:
		return fmt.Errorf("unknown delay policy: %q", c.Delay)
	}

	if c.Delay == DelayBefore || c.Delay == DelayAfter {
		if c.DelaySeconds <= 0 {
			return fmt.Errorf("delay policy %q requires a positive delay_seconds", c.Delay)
		}
	}

	if c.Weekday != nil && (*c.Weekday < 0 || *c.Weekday > 6) {
		return fmt.Errorf("weekday must be 0-6, got %d", *c.Weekday)
	}

	if c.MonthDay != nil && (*c.MonthDay < 1 || *c.MonthDay > 28) {
		return fmt.Errorf("month_day must be 1-28, got %d", *c.MonthDay)
	}

	if c.TimeOfDay != "" {
		if _, err := time.Parse("15:04", c.TimeOfDay); err != nil {
			return fmt.Errorf("invalid time_of_day %q: %w", c.TimeOfDay, err)
		}
	}

	if c.NotifyLimit < 0 {
		return fmt.Errorf("notify_limit must not be negative, got %d", c.NotifyLimit)
	}

	return nil
}

// Recurring reports whether the schedule fires more than once
func (c Config) Recurring() bool {
	return c.Interval != IntervalOnce
}
