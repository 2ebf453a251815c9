package utils

import (
	"testing"
	"time"
)

func TestLoadLocation(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{name: "empty string returns local", timezone: "", wantErr: false},
		{name: "Local returns local", timezone: "Local", wantErr: false},
		{name: "valid timezone UTC", timezone: "UTC", wantErr: false},
		{name: "valid timezone Asia/Seoul", timezone: "Asia/Seoul", wantErr: false},
		{name: "invalid timezone", timezone: "Invalid/Timezone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadLocation(tt.timezone)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadLocation() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && loc == nil {
				t.Errorf("LoadLocation() returned nil location without error")
			}
		})
	}
}

func TestDayOf(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2024-03-09 23:30 UTC is already 2024-03-10 08:30 in Seoul.
	ms := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC).UnixMilli()

	if got := DayOf(ms, time.UTC); got != "2024-03-09" {
		t.Errorf("DayOf(UTC) = %s, want 2024-03-09", got)
	}
	if got := DayOf(ms, seoul); got != "2024-03-10" {
		t.Errorf("DayOf(Seoul) = %s, want 2024-03-10", got)
	}
}

func TestMidnight(t *testing.T) {
	ts := time.Date(2024, 5, 1, 17, 42, 3, 999, time.UTC)
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if got := Midnight(ts); !got.Equal(want) {
		t.Errorf("Midnight() = %v, want %v", got, want)
	}
}

func TestShiftDate(t *testing.T) {
	tests := []struct {
		in   string
		days int
		want string
	}{
		{"2024-01-01", -1, "2023-12-31"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2024-03-10", 0, "2024-03-10"},
	}
	for _, tt := range tests {
		got, err := ShiftDate(tt.in, tt.days)
		if err != nil {
			t.Fatalf("ShiftDate(%s, %d) error: %v", tt.in, tt.days, err)
		}
		if got != tt.want {
			t.Errorf("ShiftDate(%s, %d) = %s, want %s", tt.in, tt.days, got, tt.want)
		}
	}

	if _, err := ShiftDate("not-a-date", 1); err == nil {
		t.Error("ShiftDate() should reject malformed dates")
	}
}

func TestMonthRange(t *testing.T) {
	first, last, err := MonthRange("2024-02")
	if err != nil {
		t.Fatalf("MonthRange() error: %v", err)
	}
	if first != "2024-02-01" || last != "2024-02-29" {
		t.Errorf("MonthRange(2024-02) = %s..%s, want 2024-02-01..2024-02-29", first, last)
	}

	if _, _, err := MonthRange("2024/02"); err == nil {
		t.Error("MonthRange() should reject malformed months")
	}
}

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0m 00s"},
		{90 * 1000, "1m 30s"},
		{(2*60 + 5) * 60 * 1000, "2h 05m"},
	}
	for _, tt := range tests {
		if got := FormatMillis(tt.ms); got != tt.want {
			t.Errorf("FormatMillis(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestValidateTimezone(t *testing.T) {
	if !ValidateTimezone("Local") || !ValidateTimezone("") || !ValidateTimezone("UTC") {
		t.Error("ValidateTimezone() rejected a valid timezone")
	}
	if ValidateTimezone("Mars/Olympus") {
		t.Error("ValidateTimezone() accepted an invalid timezone")
	}
}
