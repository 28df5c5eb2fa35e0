package utils

import "time"

// DateToUnix converts a YYYY-MM-DD date string to a Unix timestamp at
// midnight UTC. Returns 0 for unparseable input.
func DateToUnix(date string) int64 {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// UnixToDate converts a Unix timestamp to a YYYY-MM-DD date string in UTC.
func UnixToDate(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
