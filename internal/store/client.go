package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/NT710/willmyflightbelate/internal/types"
)

const recordColumns = `
	route, airline, date, month, year, hour,
	delay_minutes, avg_delay, on_time_frequency, total_flights,
	carrier_delay, weather_delay, nas_delay, security_delay, late_aircraft_delay,
	congestion, equipment_issues, peak_factor, weather_impact, last_updated`

// Client reads and writes historical delay records in Postgres.
type Client struct {
	db *sql.DB
}

// New creates a new store client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// NewWithDB creates a store client from an existing handle (useful for testing)
func NewWithDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// QueryRouteSince returns route records newer than since.
func (c *Client) QueryRouteSince(ctx context.Context, route string, since time.Time) ([]types.HistoricalRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM historical_delays
		WHERE route = $1 AND date >= $2
		ORDER BY date`
	return c.queryRecords(ctx, query, route, since)
}

// QueryAirlineSince returns airline records newer than since.
func (c *Client) QueryAirlineSince(ctx context.Context, airline string, since time.Time) ([]types.HistoricalRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM historical_delays
		WHERE airline = $1 AND date >= $2
		ORDER BY date`
	return c.queryRecords(ctx, query, airline, since)
}

// QueryRouteHours returns route records whose departure hour falls in
// [hourMin, hourMax], newer than since.
func (c *Client) QueryRouteHours(ctx context.Context, route string, hourMin, hourMax int, since time.Time) ([]types.HistoricalRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM historical_delays
		WHERE route = $1 AND hour BETWEEN $2 AND $3 AND date >= $4
		ORDER BY date`
	return c.queryRecords(ctx, query, route, hourMin, hourMax, since)
}

// QueryRouteMonths returns route records for the given calendar months,
// any year.
func (c *Client) QueryRouteMonths(ctx context.Context, route string, months []int) ([]types.HistoricalRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM historical_delays
		WHERE route = $1 AND month = ANY($2)
		ORDER BY date`

	monthArray := make([]int64, len(months))
	for i, m := range months {
		monthArray[i] = int64(m)
	}
	return c.queryRecords(ctx, query, route, pq.Array(monthArray))
}

// QueryRouteMonthYear returns records for one route/month/year cell.
func (c *Client) QueryRouteMonthYear(ctx context.Context, route string, month, year int) ([]types.HistoricalRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM historical_delays
		WHERE route = $1 AND month = $2 AND year = $3
		ORDER BY date`
	return c.queryRecords(ctx, query, route, month, year)
}

// UpsertRecord inserts or replaces one historical record, keyed by
// route/airline/date/hour. Used by the batch loader.
func (c *Client) UpsertRecord(ctx context.Context, rec *types.HistoricalRecord) error {
	query := `
		INSERT INTO historical_delays (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (route, airline, date, hour) DO UPDATE SET
			delay_minutes = EXCLUDED.delay_minutes,
			avg_delay = EXCLUDED.avg_delay,
			on_time_frequency = EXCLUDED.on_time_frequency,
			total_flights = EXCLUDED.total_flights,
			carrier_delay = EXCLUDED.carrier_delay,
			weather_delay = EXCLUDED.weather_delay,
			nas_delay = EXCLUDED.nas_delay,
			security_delay = EXCLUDED.security_delay,
			late_aircraft_delay = EXCLUDED.late_aircraft_delay,
			congestion = EXCLUDED.congestion,
			equipment_issues = EXCLUDED.equipment_issues,
			peak_factor = EXCLUDED.peak_factor,
			weather_impact = EXCLUDED.weather_impact,
			last_updated = EXCLUDED.last_updated
	`
	_, err := c.db.ExecContext(ctx, query,
		rec.Route, rec.Airline, rec.Date, rec.Month, rec.Year, rec.Hour,
		rec.DelayMinutes, rec.AvgDelay, rec.OnTimeFrequency, rec.TotalFlights,
		rec.CarrierDelay, rec.WeatherDelay, rec.NASDelay, rec.SecurityDelay, rec.LateAircraft,
		rec.Congestion, rec.EquipmentIssues, rec.PeakFactor, rec.WeatherImpact, rec.LastUpdated,
	)
	return err
}

// StoreServiceStats persists one service statistics snapshot.
func (c *Client) StoreServiceStats(ctx context.Context, snapshot map[string]uint64) error {
	query := `
		INSERT INTO service_stats (
			time, total_requests, cache_hits, computed, degraded,
			flight_not_found, upstream_errors
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := c.db.ExecContext(ctx, query,
		time.Now(),
		snapshot["total_requests"],
		snapshot["cache_hits"],
		snapshot["computed"],
		snapshot["degraded"],
		snapshot["flight_not_found"],
		snapshot["upstream_errors"],
	)
	return err
}

func (c *Client) queryRecords(ctx context.Context, query string, args ...interface{}) ([]types.HistoricalRecord, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical records: %w", err)
	}
	defer rows.Close()

	var records []types.HistoricalRecord
	for rows.Next() {
		var r types.HistoricalRecord
		if err := rows.Scan(
			&r.Route, &r.Airline, &r.Date, &r.Month, &r.Year, &r.Hour,
			&r.DelayMinutes, &r.AvgDelay, &r.OnTimeFrequency, &r.TotalFlights,
			&r.CarrierDelay, &r.WeatherDelay, &r.NASDelay, &r.SecurityDelay, &r.LateAircraft,
			&r.Congestion, &r.EquipmentIssues, &r.PeakFactor, &r.WeatherImpact, &r.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan historical record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
