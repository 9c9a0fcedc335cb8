package migrations

// ServiceStats creates the service statistics table
var ServiceStats = &Migration{
	Name: "002_service_stats",
	Up: `
		CREATE TABLE IF NOT EXISTS service_stats (
			time TIMESTAMPTZ NOT NULL,
			total_requests BIGINT NOT NULL,
			cache_hits BIGINT NOT NULL,
			computed BIGINT NOT NULL,
			degraded BIGINT NOT NULL,
			flight_not_found BIGINT NOT NULL,
			upstream_errors BIGINT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_service_stats_time ON service_stats (time DESC);
	`,
	Down: `
		DROP TABLE IF EXISTS service_stats;
	`,
}
