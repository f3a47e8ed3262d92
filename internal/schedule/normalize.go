package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultTime is substituted for empty or unparseable time strings so a
// single bad field never breaks the whole schedule.
const DefaultTime = "08:00"

var (
	time24Pattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	time12Pattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s?([APap][Mm])$`)
)

// NormalizeTime parses an arbitrary caregiver-entered time string into a
// canonical 24-hour HH:MM value. It is total: any shape it does not
// recognize yields DefaultTime, never an error.
func NormalizeTime(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DefaultTime
	}

	if m := time24Pattern.FindStringSubmatch(s); m != nil {
		hour := m[1]
		if len(hour) == 1 {
			hour = "0" + hour
		}
		return hour + ":" + m[2]
	}

	if m := time12Pattern.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		switch strings.ToUpper(m[3]) {
		case "PM":
			if hour != 12 {
				hour += 12
			}
		case "AM":
			if hour == 12 {
				hour = 0
			}
		}
		return fmt.Sprintf("%02d:%s", hour, m[2])
	}

	return DefaultTime
}
