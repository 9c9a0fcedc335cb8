package migrations

// HistoricalDelays creates the historical delay records table
var HistoricalDelays = &Migration{
	Name: "001_historical_delays",
	Up: `
		CREATE TABLE IF NOT EXISTS historical_delays (
			route TEXT NOT NULL,
			airline TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			month INTEGER NOT NULL,
			year INTEGER NOT NULL,
			hour INTEGER NOT NULL,
			delay_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_delay DOUBLE PRECISION NOT NULL DEFAULT 0,
			on_time_frequency DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_flights INTEGER NOT NULL DEFAULT 0,
			carrier_delay DOUBLE PRECISION NOT NULL DEFAULT 0,
			weather_delay DOUBLE PRECISION NOT NULL DEFAULT 0,
			nas_delay DOUBLE PRECISION NOT NULL DEFAULT 0,
			security_delay DOUBLE PRECISION NOT NULL DEFAULT 0,
			late_aircraft_delay DOUBLE PRECISION NOT NULL DEFAULT 0,
			congestion DOUBLE PRECISION NOT NULL DEFAULT 1,
			equipment_issues DOUBLE PRECISION NOT NULL DEFAULT 1,
			peak_factor DOUBLE PRECISION NOT NULL DEFAULT 1,
			weather_impact DOUBLE PRECISION NOT NULL DEFAULT 1,
			last_updated TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (route, airline, date, hour)
		);

		-- Query windows: by route+date, airline+date, route+hour, route+month
		CREATE INDEX IF NOT EXISTS idx_historical_delays_route_date ON historical_delays (route, date);
		CREATE INDEX IF NOT EXISTS idx_historical_delays_airline_date ON historical_delays (airline, date);
		CREATE INDEX IF NOT EXISTS idx_historical_delays_route_hour ON historical_delays (route, hour);
		CREATE INDEX IF NOT EXISTS idx_historical_delays_route_month ON historical_delays (route, month);
	`,
	Down: `
		DROP TABLE IF EXISTS historical_delays;
	`,
}
