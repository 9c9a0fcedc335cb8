package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NT710/willmyflightbelate/internal/store"
	"github.com/NT710/willmyflightbelate/internal/types"
)

// progressInterval controls how often the loader reports progress.
const progressInterval = 500

// Column names from the BTS on-time performance CSV export.
var requiredColumns = []string{
	"FL_DATE", "OP_UNIQUE_CARRIER", "ORIGIN", "DEST", "CRS_DEP_TIME", "ARR_DELAY",
}

func main() {
	dbURL := flag.String("db", os.Getenv("DB_CONN_STR"), "Database connection string")
	file := flag.String("file", "", "BTS on-time performance CSV file")
	flag.Parse()

	if *dbURL == "" || *file == "" {
		log.Println("Usage: loadhistory -db <conn-string> -file <bts.csv>")
		os.Exit(1)
	}

	dbClient, err := store.New(*dbURL)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	input, err := os.Open(*file)
	if err != nil {
		log.Printf("Failed to open CSV file: %v", err)
		os.Exit(1)
	}
	defer input.Close()

	loaded, skipped, err := load(context.Background(), dbClient, input)
	if err != nil {
		log.Printf("Load failed: %v", err)
		os.Exit(1)
	}
	log.Printf("Loaded %d records, skipped %d rows", loaded, skipped)
}

// load streams the CSV into the historical store. Rows missing required
// fields are skipped and counted, not fatal: BTS exports routinely carry
// cancelled flights with empty delay columns.
func load(ctx context.Context, dbClient *store.Client, input io.Reader) (loaded, skipped int, err error) {
	reader := csv.NewReader(input)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns, err := columnIndex(header)
	if err != nil {
		return 0, 0, err
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return loaded, skipped, fmt.Errorf("failed to read CSV row: %w", err)
		}

		record, err := recordFromRow(row, columns)
		if err != nil {
			skipped++
			continue
		}

		if err := dbClient.UpsertRecord(ctx, record); err != nil {
			return loaded, skipped, fmt.Errorf("failed to store record: %w", err)
		}
		loaded++

		if loaded%progressInterval == 0 {
			log.Printf("Loaded %d records...", loaded)
		}
	}

	return loaded, skipped, nil
}

// columnIndex maps column names to positions, verifying required columns.
func columnIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("CSV missing required column %s", name)
		}
	}
	return columns, nil
}

// recordFromRow builds one HistoricalRecord from a BTS row.
func recordFromRow(row []string, columns map[string]int) (*types.HistoricalRecord, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	date, err := time.Parse("2006-01-02", field("FL_DATE"))
	if err != nil {
		return nil, fmt.Errorf("bad flight date %q: %w", field("FL_DATE"), err)
	}

	delay, err := strconv.ParseFloat(field("ARR_DELAY"), 64)
	if err != nil {
		return nil, fmt.Errorf("bad arrival delay %q: %w", field("ARR_DELAY"), err)
	}

	origin := field("ORIGIN")
	dest := field("DEST")
	airline := field("OP_UNIQUE_CARRIER")
	if origin == "" || dest == "" || airline == "" {
		return nil, fmt.Errorf("row missing route or carrier")
	}

	return &types.HistoricalRecord{
		Route:         fmt.Sprintf("%s-%s", origin, dest),
		Airline:       airline,
		Date:          date,
		Month:         int(date.Month()),
		Year:          date.Year(),
		Hour:          departureHour(field("CRS_DEP_TIME")),
		DelayMinutes:  delay,
		CarrierDelay:  optionalFloat(field("CARRIER_DELAY")),
		WeatherDelay:  optionalFloat(field("WEATHER_DELAY")),
		NASDelay:      optionalFloat(field("NAS_DELAY")),
		SecurityDelay: optionalFloat(field("SECURITY_DELAY")),
		LateAircraft:  optionalFloat(field("LATE_AIRCRAFT_DELAY")),
		TotalFlights:  1,
		LastUpdated:   time.Now().UTC(),
	}, nil
}

// departureHour extracts the hour from BTS HHMM local time ("0835" -> 8).
// "2400" wraps to 0 per the BTS convention for midnight.
func departureHour(hhmm string) int {
	if len(hhmm) < 3 {
		return 0
	}
	hour, err := strconv.Atoi(hhmm[:len(hhmm)-2])
	if err != nil || hour < 0 {
		return 0
	}
	if hour >= 24 {
		return 0
	}
	return hour
}

// optionalFloat parses cause-breakdown columns that are empty for on-time
// flights.
func optionalFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
