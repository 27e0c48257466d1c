package cda

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		wantUTC string
		wantErr bool
	}{
		{"20230407120000+0200", "2023-04-07T10:00:00Z", false},
		{"20230407120000-0500", "2023-04-07T17:00:00Z", false},
		{"20230407120000", "2023-04-07T12:00:00Z", false},
		{"202304071200", "2023-04-07T12:00:00Z", false},
		{"20230407", "2023-04-07T00:00:00Z", false},
		{"202304", "2023-04-01T00:00:00Z", false},
		{"2023", "2023-01-01T00:00:00Z", false},
		{"", "", true},
		{"yesterday", "", true},
		{"2023-04-07", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTime(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTime(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTime(%q): %v", tt.in, err)
			continue
		}
		if got.UTC().Format(time.RFC3339) != tt.wantUTC {
			t.Errorf("ParseTime(%q) = %s, want %s", tt.in, got.UTC().Format(time.RFC3339), tt.wantUTC)
		}
	}
}

func TestParseTimePreservesOffset(t *testing.T) {
	got, err := ParseTime("20231105233000+0100")
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	_, offset := got.Zone()
	if offset != 3600 {
		t.Fatalf("offset = %d, want 3600", offset)
	}
	// The local calendar date must not shift even though UTC rolls back.
	if got.Day() != 5 {
		t.Fatalf("local day = %d, want 5", got.Day())
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate("19750321"); got != "1975-03-21" {
		t.Fatalf("FormatDate = %q", got)
	}
	if got := FormatDate("1975"); got != "1975" {
		t.Fatalf("short FormatDate = %q", got)
	}
}
