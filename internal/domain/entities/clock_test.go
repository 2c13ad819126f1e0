package entities

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "00:00", want: 0},
		{in: "23:59", want: 1439},
		{in: "24:00", want: 1440},
		{in: "09:20:00", want: 560},
		{in: "24:01", wantErr: true},
		{in: "9:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "09:00:30", wantErr: true},
		{in: "noon", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestTimeOfDay_JSONAndScan(t *testing.T) {
	data, err := json.Marshal(MustTimeOfDay("09:40"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"09:40"` {
		t.Errorf("expected \"09:40\", got %s", data)
	}

	var parsed TimeOfDay
	if err := json.Unmarshal([]byte(`"14:05"`), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.String() != "14:05" {
		t.Errorf("expected 14:05, got %s", parsed)
	}

	var scanned TimeOfDay
	if err := scanned.Scan(time.Date(0, 1, 1, 10, 30, 0, 0, time.UTC)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if scanned != MustTimeOfDay("10:30") {
		t.Errorf("expected 10:30, got %s", scanned)
	}
	if err := scanned.Scan([]byte("08:15:00")); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if scanned != MustTimeOfDay("08:15") {
		t.Errorf("expected 08:15, got %s", scanned)
	}
}

func TestDate_AtUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+1", 3600)
	d := NewDate(2025, time.March, 3)

	at := d.At(MustTimeOfDay("09:20"), loc)
	if at.Hour() != 9 || at.Minute() != 20 || at.Location() != loc {
		t.Errorf("unexpected instant %v", at)
	}
	if !at.Equal(time.Date(2025, time.March, 3, 8, 20, 0, 0, time.UTC)) {
		t.Errorf("expected 08:20 UTC, got %v", at.UTC())
	}
	if d.Weekday() != time.Monday {
		t.Errorf("expected Monday, got %v", d.Weekday())
	}
}

func TestDate_ParseAndScan(t *testing.T) {
	d, err := ParseDate("2025-02-28")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2025-02-28" {
		t.Errorf("expected 2025-02-28, got %s", d)
	}
	if _, err := ParseDate("28/02/2025"); err == nil {
		t.Error("expected error for malformed date")
	}

	var scanned Date
	if err := scanned.Scan(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !scanned.Equal(d) {
		t.Errorf("expected %s, got %s", d, scanned)
	}
	if !NewDate(2025, 2, 27).Before(d) {
		t.Error("expected 2025-02-27 before 2025-02-28")
	}
}
