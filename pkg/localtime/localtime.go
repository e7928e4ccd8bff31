package localtime

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// serviceZone is the fixed operating timezone of the upstream service (UTC+8).
// Expiry timestamps are wall-clock values in that zone, never in the host zone.
var serviceZone = time.FixedZone("UTC+8", 8*60*60)

// expireAtPattern tolerates `/` or `-` date separators, a space or `T` before
// the time, and an optional seconds component.
var expireAtPattern = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})[ T](\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// ParseExpireAt parses a loosely formatted local timestamp into an absolute
// instant. The second return value is false when the input is empty, does not
// match the expected shape, or carries an out-of-range field; callers must
// treat that as "unknown expiry", not as an error.
func ParseExpireAt(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}

	match := expireAtPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	day, _ := strconv.Atoi(match[3])
	hour, _ := strconv.Atoi(match[4])
	minute, _ := strconv.Atoi(match[5])
	second := 0
	if match[6] != "" {
		second, _ = strconv.Atoi(match[6])
	}

	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	if hour > 23 {
		return time.Time{}, false
	}
	if minute > 59 || second > 59 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, serviceZone), true
}
