package sweep

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// cronSpec normalizes a schedule string to a robfig/cron spec.
//
// Accepted forms:
//   - cron: "*/30 * * * *", "0 */5 * * * *", "@hourly", "@every 15m"
//   - interval duration: "15m", "1h30m"
//   - interval HH:MM: "00:30"
//
// Intervals become "@every <d>".
func cronSpec(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("schedule required")
	}
	if strings.HasPrefix(strings.ToLower(s), "cron:") {
		s = strings.TrimSpace(s[len("cron:"):])
		if s == "" {
			return "", fmt.Errorf("cron schedule required after 'cron:'")
		}
		return s, nil
	}
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return s, nil
	}

	var d time.Duration
	if m := reHHMM.FindStringSubmatch(s); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return "", fmt.Errorf("invalid minutes in %q", raw)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		d, err = time.ParseDuration(s)
		if err != nil {
			return "", fmt.Errorf("invalid schedule %q (use cron like '*/30 * * * *', HH:MM like '00:30', or duration like '15m')", raw)
		}
	}
	if d < time.Minute {
		return "", fmt.Errorf("interval must be at least 1m, got %s", d)
	}
	return "@every " + d.String(), nil
}
