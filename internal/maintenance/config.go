// Package maintenance parses the maintenance-window configuration file and
// evaluates the window predicate described in SPEC_FULL.md §6.3. The file
// format and the ordinal-day algorithm mirror original_source/rr/
// maintenance_windows.py; the config shape is reparsed here as TOML via
// github.com/BurntSushi/toml instead of Python's tomllib.
package maintenance

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/crateops/rolling-restart/internal/model"
)

// ClusterConfig is one cluster's entry in the maintenance-window file.
type ClusterConfig struct {
	Windows           []WindowConfig `toml:"windows"`
	Timezone          string         `toml:"timezone"`
	MinWindowDuration int            `toml:"min_window_duration"` // minutes
	DCUtilTimeout     int            `toml:"dc_util_timeout"`     // seconds
	MinAvailability   string         `toml:"min_availability"`
}

// WindowConfig is the TOML shape of one window entry.
type WindowConfig struct {
	Start       string   `toml:"start"`
	End         string   `toml:"end"`
	Weekdays    []string `toml:"weekdays"`
	OrdinalDays []string `toml:"ordinal_days"`
	Description string   `toml:"description"`
}

// File is the top-level TOML document: a table of cluster name -> config.
type File struct {
	Clusters map[string]ClusterConfig `toml:"clusters"`
}

// Load parses a maintenance-window TOML file from disk.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parse maintenance config %s: %w", path, err)
	}
	return &f, nil
}

// sampleConfig mirrors create_sample_config in original_source/rr/
// maintenance_windows.py, reshaped to this package's start/end field names.
const sampleConfig = `# Maintenance windows configuration. All times are UTC.

[clusters.aqua-darth-vader]
timezone = "UTC"
min_window_duration = 30

[[clusters.aqua-darth-vader.windows]]
start = "18:00"
end = "24:00"
weekdays = ["mon", "tue", "wed"]
description = "Evening maintenance window"

[[clusters.aqua-darth-vader.windows]]
start = "17:00"
end = "21:00"
ordinal_days = ["2nd tue", "3rd mon"]
description = "Monthly maintenance slots"

[clusters.production-cluster]
timezone = "UTC"
min_window_duration = 60

[[clusters.production-cluster.windows]]
start = "02:00"
end = "04:00"
weekdays = ["sat", "sun"]
description = "Weekend early morning maintenance"
`

// WriteSampleConfig writes a sample configuration file to path, for the
// `maintenance create-config` CLI subcommand.
func WriteSampleConfig(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample maintenance config %s: %w", path, err)
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

var ordinalNames = map[string]int{
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5, "last": -1,
}

// window is the in-memory, validated form of WindowConfig.
type window struct {
	start       time.Duration // offset since midnight
	end         time.Duration
	weekdays    map[time.Weekday]struct{}
	ordinalDays []ordinalDay
	description string
}

type ordinalDay struct {
	ordinal int // 1..5, or -1 for "last"
	weekday time.Weekday
}

func parseOrdinalDay(spec string) (ordinalDay, error) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(spec)))
	if len(parts) != 2 {
		return ordinalDay{}, fmt.Errorf("malformed ordinal day spec %q", spec)
	}
	ord, ok := ordinalNames[parts[0]]
	if !ok {
		return ordinalDay{}, fmt.Errorf("unknown ordinal %q in %q", parts[0], spec)
	}
	wd, ok := weekdayNames[parts[1]]
	if !ok {
		return ordinalDay{}, fmt.Errorf("unknown weekday %q in %q", parts[1], spec)
	}
	return ordinalDay{ordinal: ord, weekday: wd}, nil
}

// parseClock parses "HH:MM" or "HH:MM:SS"; "24:00" normalizes to 23:59:59.
func parseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" || s == "24:00:00" {
		return 23*time.Hour + 59*time.Minute + 59*time.Second, nil
	}
	fields := strings.Split(s, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0, fmt.Errorf("malformed clock time %q", s)
	}
	h, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("malformed hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("malformed minute in %q: %w", s, err)
	}
	sec := 0
	if len(fields) == 3 {
		sec, err = strconv.Atoi(fields[2])
		if err != nil {
			return 0, fmt.Errorf("malformed second in %q: %w", s, err)
		}
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

func compileWindow(wc WindowConfig) (window, error) {
	start, err := parseClock(wc.Start)
	if err != nil {
		return window{}, err
	}
	end, err := parseClock(wc.End)
	if err != nil {
		return window{}, err
	}
	w := window{start: start, end: end, description: wc.Description}
	if len(wc.Weekdays) > 0 {
		w.weekdays = make(map[time.Weekday]struct{}, len(wc.Weekdays))
		for _, wd := range wc.Weekdays {
			d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(wd))]
			if !ok {
				return window{}, fmt.Errorf("unknown weekday %q", wd)
			}
			w.weekdays[d] = struct{}{}
		}
	}
	for _, od := range wc.OrdinalDays {
		parsed, err := parseOrdinalDay(od)
		if err != nil {
			return window{}, err
		}
		w.ordinalDays = append(w.ordinalDays, parsed)
	}
	return w, nil
}

// crossesMidnight implements §6.3: "end_time <= start_time crosses midnight".
func (w window) crossesMidnight() bool { return w.end <= w.start }

// matchesOrdinalDay checks whether t's calendar date is the nth (or last)
// occurrence of the window's weekday in its month, mirroring
// _is_nth_weekday_of_month in the original implementation.
func matchesOrdinalDay(t time.Time, od ordinalDay) bool {
	if t.Weekday() != od.weekday {
		return false
	}
	if od.ordinal == -1 {
		next := t.AddDate(0, 0, 7)
		return next.Month() != t.Month()
	}
	occurrence := (t.Day()-1)/7 + 1
	return occurrence == od.ordinal
}

// isTimeInWindow checks the time-of-day and, for midnight-crossing windows,
// considers the previous calendar day too (so 00:30 on day D matches a
// window that started 23:00 on day D-1).
func (w window) isTimeInWindow(t time.Time) bool {
	tod := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second

	if !w.crossesMidnight() {
		if tod < w.start || tod > w.end {
			return false
		}
		return w.dayMatches(t)
	}

	// crosses midnight: admitted if tod is in [start, 23:59:59] on the
	// starting day, or in [00:00, end] on the day after the starting day.
	if tod >= w.start {
		return w.dayMatches(t)
	}
	if tod <= w.end {
		prev := t.AddDate(0, 0, -1)
		return w.dayMatches(prev)
	}
	return false
}

func (w window) dayMatches(startingDay time.Time) bool {
	if len(w.weekdays) > 0 {
		if _, ok := w.weekdays[startingDay.Weekday()]; !ok {
			return false
		}
	}
	if len(w.ordinalDays) > 0 {
		matched := false
		for _, od := range w.ordinalDays {
			if matchesOrdinalDay(startingDay, od) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// CheckResult is what the maintenance-window predicate reports.
type CheckResult struct {
	ShouldWait      bool
	Reason          string
	NextWindowStart *time.Time
	InWindow        bool
}

// Checker evaluates the predicate for all clusters in a loaded file.
type Checker struct {
	file *File
}

func NewChecker(f *File) *Checker { return &Checker{file: f} }

// Check implements §6.3's (a)/(b)/(c). now must be UTC (invariant 5).
func (c *Checker) Check(clusterName string, now time.Time) (CheckResult, error) {
	if c.file == nil {
		return CheckResult{ShouldWait: false}, nil
	}
	cc, ok := c.file.Clusters[clusterName]
	if !ok {
		return CheckResult{ShouldWait: false}, nil
	}
	windows := make([]window, 0, len(cc.Windows))
	for _, wc := range cc.Windows {
		w, err := compileWindow(wc)
		if err != nil {
			return CheckResult{}, err
		}
		windows = append(windows, w)
	}

	inWindow := false
	for _, w := range windows {
		if w.isTimeInWindow(now) {
			inWindow = true
			break
		}
	}
	if inWindow {
		return CheckResult{ShouldWait: false, InWindow: true}, nil
	}

	next := nextWindowStart(windows, now)
	minDur := time.Duration(cc.MinWindowDuration) * time.Minute
	if next == nil {
		return CheckResult{ShouldWait: true, Reason: "no upcoming maintenance window configured"}, nil
	}
	untilWindow := next.Sub(now)
	shouldWait := minDur <= 0 || untilWindow >= minDur
	return CheckResult{
		ShouldWait:      shouldWait,
		NextWindowStart: next,
		Reason:          fmt.Sprintf("next maintenance window starts at %s", next.Format(time.RFC3339)),
	}, nil
}

// nextWindowStart scans forward up to 35 days, matching the original
// implementation's lookahead bound in get_next_maintenance_window.
func nextWindowStart(windows []window, from time.Time) *time.Time {
	for day := 0; day <= 35; day++ {
		candidateDay := from.AddDate(0, 0, day)
		for _, w := range windows {
			start := time.Date(candidateDay.Year(), candidateDay.Month(), candidateDay.Day(),
				0, 0, 0, 0, time.UTC).Add(w.start)
			if start.Before(from) {
				continue
			}
			if !w.dayMatches(candidateDay) {
				continue
			}
			t := start
			return &t
		}
	}
	return nil
}

// MinAvailabilityOrDefault returns the configured floor, defaulting to PRIMARIES
// the way the discovery activity's fallback does.
func (cc ClusterConfig) MinAvailabilityOrDefault() model.MinAvailability {
	switch strings.ToUpper(cc.MinAvailability) {
	case string(model.MinAvailabilityNone):
		return model.MinAvailabilityNone
	case string(model.MinAvailabilityFull):
		return model.MinAvailabilityFull
	default:
		return model.MinAvailabilityPrimaries
	}
}
