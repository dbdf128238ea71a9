package utils

import (
	"fmt"
	"time"
)

// BusinessDateFormat is the layout for business-day dates as stored and
// exchanged over the API.
const BusinessDateFormat = "2006-01-02"

// ParseBusinessDate parses a YYYY-MM-DD date string.
func ParseBusinessDate(dateStr string) (time.Time, error) {
	t, err := time.Parse(BusinessDateFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected format %s: %w", dateStr, BusinessDateFormat, err)
	}
	return t, nil
}

// BusinessDate formats a timestamp as its business-day date.
func BusinessDate(t time.Time) string {
	return t.Format(BusinessDateFormat)
}
