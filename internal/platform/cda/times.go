package cda

import (
	"fmt"
	"strings"
	"time"
)

// HL7 TS layouts, longest first. Offsets are preserved so a timestamp
// recorded in one timezone survives format conversion intact.
var tsLayouts = []string{
	"20060102150405.000-0700",
	"20060102150405-0700",
	"20060102150405",
	"200601021504-0700",
	"200601021504",
	"2006010215",
	"20060102",
	"200601",
	"2006",
}

// ParseTime parses an HL7 TS value (YYYYMMDDHHMMSS[.SSS][±ZZZZ], truncatable
// from the right). Date-only values are anchored at midnight UTC.
func ParseTime(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range tsLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatDate renders an HL7 date value as YYYY-MM-DD for identity fields
// that are dates by definition (birth time).
func FormatDate(s string) string {
	v := strings.TrimSpace(s)
	if len(v) >= 8 {
		return v[:4] + "-" + v[4:6] + "-" + v[6:8]
	}
	return v
}
