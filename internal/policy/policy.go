package policy

import (
	"fmt"
	"time"
)

// Config holds the workday thresholds used to classify check-ins and
// check-outs. It is fixed for the life of the process.
type Config struct {
	CheckInHour        int
	CheckInMinute      int
	GracePeriodMinutes int
	CheckOutHour       int
	CheckOutMinute     int
}

// Default returns the standard 9:00 start with a 10 minute grace period and
// a 17:00 end of day.
func Default() Config {
	return Config{
		CheckInHour:        9,
		CheckInMinute:      0,
		GracePeriodMinutes: 10,
		CheckOutHour:       17,
		CheckOutMinute:     0,
	}
}

// IsCheckInLate reports whether a check-in at t falls after the grace period.
// The boundary is exclusive: checking in at exactly start+grace is on time.
// Comparison uses t's own wall clock, so the caller decides the time zone.
func (c Config) IsCheckInLate(t time.Time) bool {
	deadline := c.CheckInHour*60 + c.CheckInMinute + c.GracePeriodMinutes
	return minutesSinceMidnight(t) > deadline
}

// IsCheckOutEarly reports whether a check-out at t falls before the end of
// the workday. Checking out at exactly the threshold is not early.
func (c Config) IsCheckOutEarly(t time.Time) bool {
	threshold := c.CheckOutHour*60 + c.CheckOutMinute
	return minutesSinceMidnight(t) < threshold
}

// Requirements formats the configured thresholds for display on the kiosk.
func (c Config) Requirements() string {
	return fmt.Sprintf("Check-in by %s (grace period until %s), check-out after %s",
		clock(c.CheckInHour, c.CheckInMinute),
		clock(c.CheckInHour, c.CheckInMinute+c.GracePeriodMinutes),
		clock(c.CheckOutHour, c.CheckOutMinute))
}

func minutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func clock(hour, minute int) string {
	hour += minute / 60
	minute %= 60
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
