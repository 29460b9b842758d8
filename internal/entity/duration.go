package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration is a media length in whole seconds. UnknownDuration marks a
// length that could not be determined.
type Duration int

// UnknownDuration is the sentinel for an undetermined duration.
const UnknownDuration Duration = -1

// Seconds returns a Duration of s seconds.
func Seconds(s int) Duration {
	if s < 0 {
		return UnknownDuration
	}
	return Duration(s)
}

// FromTimeDuration converts d, truncating to whole seconds.
func FromTimeDuration(d time.Duration) Duration {
	return Seconds(int(d / time.Second))
}

// IsKnown reports whether the duration was determined.
func (d Duration) IsKnown() bool { return d >= 0 }

// Minutes returns the whole minutes of d, or -1 when unknown.
func (d Duration) Minutes() int {
	if !d.IsKnown() {
		return -1
	}
	return int(d) / 60
}

func (d Duration) String() string {
	if !d.IsKnown() {
		return "unknown"
	}
	h, rest := int(d)/3600, int(d)%3600
	m, s := rest/60, rest%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISO8601 parses durations such as "PT1H2M3S". It returns
// UnknownDuration for anything it cannot read.
func ParseISO8601(s string) Duration {
	s = strings.ToUpper(strings.TrimSpace(s))
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || strings.HasSuffix(s, "T") {
		return UnknownDuration
	}
	total := 0.0
	for i, mult := range []float64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return UnknownDuration
		}
		total += v * mult
	}
	return Seconds(int(total))
}

// ParseClock parses "ss", "mm:ss" or "hh:mm:ss". It returns
// UnknownDuration for anything it cannot read.
func ParseClock(s string) Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return UnknownDuration
	}
	total := 0
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return UnknownDuration
		}
		total = total*60 + v
	}
	return Seconds(total)
}

// ParseSeconds parses an integer or decimal number of seconds, as used by
// music:duration meta tags.
func ParseSeconds(s string) Duration {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return UnknownDuration
	}
	return Seconds(int(v))
}
