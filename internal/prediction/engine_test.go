package prediction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NT710/willmyflightbelate/internal/cache"
	"github.com/NT710/willmyflightbelate/internal/confidence"
	"github.com/NT710/willmyflightbelate/internal/retry"
	"github.com/NT710/willmyflightbelate/internal/stats"
	"github.com/NT710/willmyflightbelate/internal/types"
)

type fakeFlights struct {
	snapshot *types.FlightSnapshot
	err      error
	calls    int
}

func (f *fakeFlights) GetFlight(ctx context.Context, flightNumber string) (*types.FlightSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

type fakeWeather struct {
	byAirport map[string]*types.WeatherObservation
	errFor    map[string]error
}

func (f *fakeWeather) GetAirportWeather(ctx context.Context, airportCode string) (*types.WeatherObservation, error) {
	if err, ok := f.errFor[airportCode]; ok {
		return nil, err
	}
	if obs, ok := f.byAirport[airportCode]; ok {
		return obs, nil
	}
	return nil, types.ErrUpstreamUnavailable
}

type fakeHistory struct {
	analysis *types.PatternAnalysis
	err      error
}

func (f *fakeHistory) AnalyzePatterns(ctx context.Context, departure, arrival string, scheduled time.Time, airline string) (*types.PatternAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func observation(airport, condition string) *types.WeatherObservation {
	return &types.WeatherObservation{
		AirportCode: airport,
		Condition:   condition,
		ObservedAt:  time.Now(),
	}
}

func peakSnapshot() *types.FlightSnapshot {
	return &types.FlightSnapshot{
		FlightNumber:     "UA123",
		Airline:          "UA",
		DepartureAirport: "JFK",
		ArrivalAirport:   "LAX",
		ScheduledDep:     time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC),
		ScheduledArr:     time.Date(2024, 6, 15, 11, 30, 0, 0, time.UTC),
	}
}

func routeAnalysis(reliability float64, routeFlights int) *types.PatternAnalysis {
	return &types.PatternAnalysis{
		Scores: types.PatternScores{
			RouteReliability:    reliability,
			AirlinePerformance:  0.7,
			TimeBasedLikelihood: 0.7,
			SeasonalImpact:      0.7,
		},
		Route: types.WindowSummary{TotalFlights: routeFlights, Reliability: reliability, LastUpdated: time.Now()},
	}
}

func newTestEngine(t *testing.T, deps Deps) *Engine {
	t.Helper()

	scorer, err := confidence.New()
	if err != nil {
		t.Fatalf("confidence.New() failed: %v", err)
	}
	deps.Scorer = scorer
	if deps.Cache == nil {
		deps.Cache = cache.NewMemory()
	}

	engine, err := New(deps)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	// No backoff sleeps in unit tests.
	engine.retryPolicy = retry.Policy{Attempts: 1, Backoff: 0}
	return engine
}

func TestPredict_WorkedScenario(t *testing.T) {
	// Departure Clear (0), arrival Rain (0.5), hour 8 peak (0.8),
	// historical 0.6, congestion 0.5:
	// 0.30*0.35 + 0.6*0.30 + 0.8*0.20 + 0.5*0.15 = 0.52 -> 52% -> 30 min.
	engine := newTestEngine(t, Deps{
		Flights: &fakeFlights{snapshot: peakSnapshot()},
		Weather: &fakeWeather{byAirport: map[string]*types.WeatherObservation{
			"JFK": observation("JFK", "Clear"),
			"LAX": observation("LAX", "Rain"),
		}},
		History: &fakeHistory{analysis: routeAnalysis(0.6, 120)},
	})

	result, err := engine.Predict(context.Background(), "UA123")
	if err != nil {
		t.Fatalf("Predict() failed: %v", err)
	}

	if result.Probability != 52 {
		t.Errorf("Probability = %d, want 52", result.Probability)
	}
	if result.EstimatedDelay != 30 {
		t.Errorf("EstimatedDelay = %d, want 30", result.EstimatedDelay)
	}
	if result.Source != "api" {
		t.Errorf("Source = %s, want api", result.Source)
	}
	if result.Degraded {
		t.Error("fully-served prediction should not be degraded")
	}
	if result.Factors.Weather != 0.30 {
		t.Errorf("weather factor = %v, want 0.30", result.Factors.Weather)
	}
}

func TestPredict_CacheIdempotence(t *testing.T) {
	flights := &fakeFlights{snapshot: peakSnapshot()}
	engine := newTestEngine(t, Deps{
		Flights: flights,
		Weather: &fakeWeather{byAirport: map[string]*types.WeatherObservation{
			"JFK": observation("JFK", "Clear"),
			"LAX": observation("LAX", "Rain"),
		}},
		History: &fakeHistory{analysis: routeAnalysis(0.6, 120)},
	})
	ctx := context.Background()

	first, err := engine.Predict(ctx, "UA123")
	if err != nil {
		t.Fatalf("first Predict() failed: %v", err)
	}
	second, err := engine.Predict(ctx, "UA123")
	if err != nil {
		t.Fatalf("second Predict() failed: %v", err)
	}

	if second.Source != "cache" {
		t.Errorf("second Source = %s, want cache", second.Source)
	}
	if flights.calls != 1 {
		t.Errorf("flight source called %d times, want 1", flights.calls)
	}
	if first.ID != second.ID || first.Probability != second.Probability || first.Confidence != second.Confidence {
		t.Errorf("cached result differs: first %+v, second %+v", first, second)
	}
}

func TestPredict_ArrivalWeatherDegrades(t *testing.T) {
	engine := newTestEngine(t, Deps{
		Flights: &fakeFlights{snapshot: peakSnapshot()},
		Weather: &fakeWeather{
			byAirport: map[string]*types.WeatherObservation{
				"JFK": observation("JFK", "Clear"),
			},
			errFor: map[string]error{"LAX": types.ErrUpstreamUnavailable},
		},
		History: &fakeHistory{analysis: routeAnalysis(0.6, 120)},
	})

	result, err := engine.Predict(context.Background(), "UA123")
	if err != nil {
		t.Fatalf("Predict() must not fail on weather loss: %v", err)
	}

	// Missing arrival side scores the 0.5 neutral midpoint.
	if result.Factors.Weather != 0.4*0+0.6*0.5 {
		t.Errorf("weather factor = %v, want 0.30 from neutral arrival", result.Factors.Weather)
	}
	if !result.Degraded {
		t.Error("result should be flagged degraded")
	}
	if len(result.Warnings) == 0 {
		t.Error("degraded result should carry a warning")
	}
}

func TestPredict_HistoricalFailureDegrades(t *testing.T) {
	engine := newTestEngine(t, Deps{
		Flights: &fakeFlights{snapshot: peakSnapshot()},
		Weather: &fakeWeather{byAirport: map[string]*types.WeatherObservation{
			"JFK": observation("JFK", "Clear"),
			"LAX": observation("LAX", "Clear"),
		}},
		History: &fakeHistory{err: errors.New("store down")},
	})

	result, err := engine.Predict(context.Background(), "UA123")
	if err != nil {
		t.Fatalf("Predict() must not fail on historical loss: %v", err)
	}

	if result.Factors.Historical != 0.5 {
		t.Errorf("historical factor = %v, want neutral 0.5", result.Factors.Historical)
	}
	if !result.Degraded {
		t.Error("result should be flagged degraded")
	}
}

func TestPredict_FlightNotFoundIsFatal(t *testing.T) {
	engine := newTestEngine(t, Deps{
		Flights: &fakeFlights{err: types.ErrFlightNotFound},
		Weather: &fakeWeather{},
		History: &fakeHistory{},
	})

	result, err := engine.Predict(context.Background(), "UA999")
	if !errors.Is(err, types.ErrFlightNotFound) {
		t.Fatalf("expected ErrFlightNotFound, got %v", err)
	}
	if result != nil {
		t.Error("no placeholder result may accompany a fatal miss")
	}
}

func TestPredict_CountsStats(t *testing.T) {
	serviceStats := stats.New()
	engine := newTestEngine(t, Deps{
		Flights: &fakeFlights{snapshot: peakSnapshot()},
		Weather: &fakeWeather{byAirport: map[string]*types.WeatherObservation{
			"JFK": observation("JFK", "Clear"),
			"LAX": observation("LAX", "Rain"),
		}},
		History: &fakeHistory{analysis: routeAnalysis(0.6, 120)},
		Stats:   serviceStats,
	})
	ctx := context.Background()

	if _, err := engine.Predict(ctx, "UA123"); err != nil {
		t.Fatalf("Predict() failed: %v", err)
	}
	if _, err := engine.Predict(ctx, "UA123"); err != nil {
		t.Fatalf("Predict() failed: %v", err)
	}

	snapshot := serviceStats.Snapshot()
	if snapshot["total_requests"] != 2 {
		t.Errorf("total_requests = %d, want 2", snapshot["total_requests"])
	}
	if snapshot["computed"] != 1 {
		t.Errorf("computed = %d, want 1", snapshot["computed"])
	}
	if snapshot["cache_hits"] != 1 {
		t.Errorf("cache_hits = %d, want 1", snapshot["cache_hits"])
	}
}

func TestProbabilityFrom_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		factors types.PredictionFactors
		want    int
	}{
		{"all zero", types.PredictionFactors{}, 0},
		{"all max", types.PredictionFactors{Weather: 1, Historical: 1, TimeOfDay: 1, Congestion: 1}, 100},
		{"worked example", types.PredictionFactors{Weather: 0.30, Historical: 0.6, TimeOfDay: 0.8, Congestion: 0.5}, 52},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := probabilityFrom(tt.factors)
			if got != tt.want {
				t.Errorf("probabilityFrom() = %d, want %d", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("probability %d out of [0,100]", got)
			}
		})
	}
}

func TestDelayBucket_Monotonic(t *testing.T) {
	previous := 0
	for p := 0; p <= 100; p++ {
		delay := delayBucket(p)
		if delay < previous {
			t.Fatalf("delayBucket(%d) = %d decreased below %d", p, delay, previous)
		}
		previous = delay
	}

	boundaries := map[int]int{0: 0, 29: 0, 30: 15, 49: 15, 50: 30, 69: 30, 70: 45, 84: 45, 85: 60, 100: 60}
	for p, want := range boundaries {
		if got := delayBucket(p); got != want {
			t.Errorf("delayBucket(%d) = %d, want %d", p, got, want)
		}
	}
}

func TestTimeScore_PeakWindows(t *testing.T) {
	peaks := []int{7, 8, 9, 16, 17, 18, 19}
	for _, h := range peaks {
		if timeScore(h) != 0.8 {
			t.Errorf("timeScore(%d) = %v, want 0.8", h, timeScore(h))
		}
	}
	offPeaks := []int{0, 6, 10, 15, 20, 23}
	for _, h := range offPeaks {
		if timeScore(h) != 0.2 {
			t.Errorf("timeScore(%d) = %v, want 0.2", h, timeScore(h))
		}
	}
}

func TestConditionScore(t *testing.T) {
	tests := []struct {
		condition string
		want      float64
	}{
		{"Clear", 0},
		{"Cloudy", 0.2},
		{"Rain", 0.5},
		{"Snow", 0.8},
		{"Thunderstorm", 0.9},
		{"Fog", 0.7},
		{"Unknown", 0.5},
		{"Martian Dust", 0.5},
	}
	for _, tt := range tests {
		if got := conditionScore(observation("JFK", tt.condition)); got != tt.want {
			t.Errorf("conditionScore(%s) = %v, want %v", tt.condition, got, tt.want)
		}
	}
	if got := conditionScore(nil); got != 0.5 {
		t.Errorf("conditionScore(nil) = %v, want 0.5", got)
	}
}
