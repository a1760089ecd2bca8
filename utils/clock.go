package utils

import "time"

const RFC3339Micro = "2006-01-02T15:04:05.000000-07:00"

func FormattedNow() string {
	return time.Now().UTC().Format(RFC3339Micro)
}
