package timeutils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HourSlot formats t as the hourly slot used by sending rules ("09:00").
func HourSlot(t time.Time) string {
	return fmt.Sprintf("%02d:00", t.Hour())
}

// ParseHourSlot validates an "HH:00" slot and returns its hour.
func ParseHourSlot(slot string) (int, error) {
	parts := strings.Split(strings.TrimSpace(slot), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || parts[1] != "00" {
		return 0, fmt.Errorf("invalid time slot %q, expected HH:00", slot)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in slot %q", slot)
	}
	return hour, nil
}

// ParseWeekDays parses a comma separated list of weekday indexes (0=Sunday ... 6=Saturday).
func ParseWeekDays(csv string) ([]int, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, nil
	}
	seen := make(map[int]bool)
	var days []int
	for _, p := range strings.Split(csv, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday: %s", p)
		}
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("weekday must be between 0 and 6, got %d", d)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, nil
}

// FormatWeekDays is the inverse of ParseWeekDays.
func FormatWeekDays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

func ContainsWeekday(days []int, wd time.Weekday) bool {
	for _, d := range days {
		if d == int(wd) {
			return true
		}
	}
	return false
}

// DayBounds returns [00:00:00, 23:59:59.999999999] of t's calendar day in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// NextHour returns the next whole hour strictly after t.
func NextHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}

// CeilDays returns ceil((to - from) / 24h). Negative when to is in the past.
func CeilDays(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

// LoadLocation resolves an IANA zone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logrus.WithError(err).Warnf("[TIME] Unknown timezone %q, using UTC", name)
		return time.UTC
	}
	return loc
}
