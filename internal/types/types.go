package types

import (
	"errors"
	"time"
)

// Error taxonomy for the prediction pipeline. Callers discriminate with
// errors.Is; adapters wrap these with fmt.Errorf("...: %w", ...).
var (
	// ErrFlightNotFound means the flight identifier could not be resolved.
	// Fatal to the prediction, never retried.
	ErrFlightNotFound = errors.New("flight not found")

	// ErrRateLimited means an upstream rejected the call for quota reasons.
	// Distinct from generic failure so callers can back off.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrAuthFailed means upstream credentials were rejected.
	ErrAuthFailed = errors.New("upstream authentication failed")

	// ErrMissingConfig means required configuration is absent.
	ErrMissingConfig = errors.New("missing required configuration")

	// ErrUpstreamUnavailable covers transient upstream failures that the
	// pipeline recovers from with neutral defaults.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// FlightSnapshot is a single point-in-time observation of a flight.
// Immutable once fetched; downstream scorers only read it.
type FlightSnapshot struct {
	FlightNumber     string    `json:"flight_number"`
	Airline          string    `json:"airline"`
	DepartureAirport string    `json:"departure_airport"`
	ArrivalAirport   string    `json:"arrival_airport"`
	ScheduledDep     time.Time `json:"scheduled_departure"`
	ScheduledArr     time.Time `json:"scheduled_arrival"`
	ObservedAt       time.Time `json:"observed_at"`
	OnGround         bool      `json:"on_ground"`
	Altitude         int       `json:"altitude"`
	VerticalRate     int       `json:"vertical_rate"`
	Velocity         float64   `json:"velocity"`
	DelayMinutes     int       `json:"delay_minutes"`
}

// WeatherObservation is one airport's weather at prediction time.
type WeatherObservation struct {
	AirportCode   string    `json:"airport_code"`
	Condition     string    `json:"condition"`
	Temperature   float64   `json:"temperature"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection string    `json:"wind_direction"`
	Precipitation float64   `json:"precipitation"`
	Visibility    float64   `json:"visibility"`
	AgeSeconds    int       `json:"age_seconds"`
	ObservedAt    time.Time `json:"observed_at"`
}

// HistoricalRecord is one aggregated delay record for a route. Loaded by
// cmd/loadhistory from BTS on-time data; read-only to the core.
type HistoricalRecord struct {
	Route           string    `json:"route"`
	Airline         string    `json:"airline"`
	Date            time.Time `json:"date"`
	Month           int       `json:"month"`
	Year            int       `json:"year"`
	Hour            int       `json:"hour"`
	DelayMinutes    float64   `json:"delay_minutes"`
	AvgDelay        float64   `json:"avg_delay"`
	OnTimeFrequency float64   `json:"on_time_frequency"`
	TotalFlights    int       `json:"total_flights"`
	CarrierDelay    float64   `json:"carrier_delay"`
	WeatherDelay    float64   `json:"weather_delay"`
	NASDelay        float64   `json:"nas_delay"`
	SecurityDelay   float64   `json:"security_delay"`
	LateAircraft    float64   `json:"late_aircraft_delay"`
	Congestion      float64   `json:"congestion"`
	EquipmentIssues float64   `json:"equipment_issues"`
	PeakFactor      float64   `json:"peak_factor"`
	WeatherImpact   float64   `json:"weather_impact"`
	LastUpdated     time.Time `json:"last_updated"`
}

// DelayPattern is one reduced data point inside an analysis window.
type DelayPattern struct {
	Date   time.Time `json:"date"`
	Delay  float64   `json:"delay"`
	Factor float64   `json:"factor"`
}

// WindowSummary is the reduction of one historical query window.
type WindowSummary struct {
	Pattern      []DelayPattern `json:"pattern"`
	TotalFlights int            `json:"total_flights"`
	LastUpdated  time.Time      `json:"last_updated"`
	Reliability  float64        `json:"reliability"`
}

// PatternScores holds the per-dimension reliability scores, each in [0,1].
// A dimension with no data carries the neutral 0.5 prior.
type PatternScores struct {
	RouteReliability    float64 `json:"route_reliability"`
	AirlinePerformance  float64 `json:"airline_performance"`
	TimeBasedLikelihood float64 `json:"time_based_likelihood"`
	SeasonalImpact      float64 `json:"seasonal_impact"`
}

// PatternAnalysis is the ephemeral result of historical analysis.
// Computed fresh per request, never persisted.
type PatternAnalysis struct {
	Scores     PatternScores `json:"scores"`
	Confidence int           `json:"confidence"`
	Route      WindowSummary `json:"route"`
	Airline    WindowSummary `json:"airline"`
	Time       WindowSummary `json:"time"`
	Seasonal   WindowSummary `json:"seasonal"`
}

// PredictionFactors is the factor breakdown attached to every result, so a
// degraded number is still explainable.
type PredictionFactors struct {
	Weather    float64 `json:"weather"`
	Historical float64 `json:"historical"`
	TimeOfDay  float64 `json:"time_of_day"`
	Congestion float64 `json:"congestion"`
}

// PredictionResult is the unit cached and returned to callers.
type PredictionResult struct {
	ID             string            `json:"id"`
	FlightNumber   string            `json:"flight_number"`
	Probability    int               `json:"probability"`
	EstimatedDelay int               `json:"estimated_delay"`
	Confidence     int               `json:"confidence"`
	Factors        PredictionFactors `json:"factors"`
	Warnings       []string          `json:"warnings,omitempty"`
	Strengths      []string          `json:"strengths,omitempty"`
	Degraded       bool              `json:"degraded"`
	Source         string            `json:"source"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
