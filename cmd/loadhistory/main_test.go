package main

import (
	"testing"
)

func btsColumns(t *testing.T) map[string]int {
	t.Helper()
	columns, err := columnIndex([]string{
		"FL_DATE", "OP_UNIQUE_CARRIER", "ORIGIN", "DEST", "CRS_DEP_TIME",
		"ARR_DELAY", "CARRIER_DELAY", "WEATHER_DELAY", "NAS_DELAY",
		"SECURITY_DELAY", "LATE_AIRCRAFT_DELAY",
	})
	if err != nil {
		t.Fatalf("columnIndex() failed: %v", err)
	}
	return columns
}

func TestColumnIndex_MissingRequired(t *testing.T) {
	_, err := columnIndex([]string{"FL_DATE", "ORIGIN", "DEST"})
	if err == nil {
		t.Error("expected error for missing required columns")
	}
}

func TestRecordFromRow(t *testing.T) {
	columns := btsColumns(t)

	row := []string{"2024-01-15", "UA", "JFK", "LAX", "0835", "22.0", "10.0", "12.0", "", "", ""}
	record, err := recordFromRow(row, columns)
	if err != nil {
		t.Fatalf("recordFromRow() failed: %v", err)
	}

	if record.Route != "JFK-LAX" {
		t.Errorf("Route = %s, want JFK-LAX", record.Route)
	}
	if record.Airline != "UA" {
		t.Errorf("Airline = %s, want UA", record.Airline)
	}
	if record.Hour != 8 {
		t.Errorf("Hour = %d, want 8", record.Hour)
	}
	if record.Month != 1 || record.Year != 2024 {
		t.Errorf("Month/Year = %d/%d, want 1/2024", record.Month, record.Year)
	}
	if record.DelayMinutes != 22 {
		t.Errorf("DelayMinutes = %v, want 22", record.DelayMinutes)
	}
	if record.CarrierDelay != 10 || record.WeatherDelay != 12 {
		t.Errorf("cause breakdown = %v/%v, want 10/12", record.CarrierDelay, record.WeatherDelay)
	}
	if record.NASDelay != 0 {
		t.Errorf("empty NAS delay should parse as 0, got %v", record.NASDelay)
	}
}

func TestRecordFromRow_SkipsCancelledFlights(t *testing.T) {
	columns := btsColumns(t)

	// Cancelled flights carry an empty ARR_DELAY.
	row := []string{"2024-01-15", "UA", "JFK", "LAX", "0835", "", "", "", "", "", ""}
	if _, err := recordFromRow(row, columns); err == nil {
		t.Error("expected error for empty arrival delay")
	}
}

func TestDepartureHour(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"0835", 8},
		{"835", 8},
		{"1759", 17},
		{"2400", 0},
		{"", 0},
		{"xx", 0},
	}
	for _, tt := range tests {
		if got := departureHour(tt.in); got != tt.want {
			t.Errorf("departureHour(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
