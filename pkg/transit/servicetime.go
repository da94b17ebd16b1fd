package transit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseServiceDayOffset parses an HH:MM:SS timetable time as an offset from
// the service day midnight. Hours can exceed 24 for runs belonging to the
// previous service day. An empty value parses as zero.
func ParseServiceDayOffset(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid service day time %q", value)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid service day time %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid service day time %q", value)
	}
	seconds, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("invalid service day time %q", value)
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second, nil
}
