package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NT710/willmyflightbelate/internal/cache"
	"github.com/NT710/willmyflightbelate/internal/confidence"
	"github.com/NT710/willmyflightbelate/internal/retry"
	"github.com/NT710/willmyflightbelate/internal/stats"
	"github.com/NT710/willmyflightbelate/internal/types"
)

// Factor weights for the probability blend. Arrival-side weather dominates
// gate and runway delay, so weather carries the largest share.
const (
	weightWeather    = 0.35
	weightHistorical = 0.30
	weightTimeOfDay  = 0.20
	weightCongestion = 0.15
)

// neutralScore substitutes for any signal the pipeline could not fetch.
const neutralScore = 0.5

// congestionScore is a fixed placeholder until real-time congestion
// telemetry lands. Documented limitation, not a bug.
const congestionScore = 0.5

// conditionScores maps normalized weather conditions to delay severities.
var conditionScores = map[string]float64{
	"Clear":        0,
	"Cloudy":       0.2,
	"Rain":         0.5,
	"Snow":         0.8,
	"Thunderstorm": 0.9,
	"Fog":          0.7,
}

// FlightSource resolves a flight identifier to a snapshot.
type FlightSource interface {
	GetFlight(ctx context.Context, flightNumber string) (*types.FlightSnapshot, error)
}

// WeatherSource returns current weather for an airport.
type WeatherSource interface {
	GetAirportWeather(ctx context.Context, airportCode string) (*types.WeatherObservation, error)
}

// PatternSource runs the historical pattern analysis for a route.
type PatternSource interface {
	AnalyzePatterns(ctx context.Context, departure, arrival string, scheduled time.Time, airline string) (*types.PatternAnalysis, error)
}

// Publisher emits computed predictions for downstream consumers.
type Publisher interface {
	PublishPrediction(result *types.PredictionResult) error
}

// Auditor records served predictions for later accuracy replay.
type Auditor interface {
	Record(result *types.PredictionResult) error
}

// Deps wires an Engine. Flights, Weather, History, Cache, and Scorer are
// required; Publisher, Audit, and Stats are optional.
type Deps struct {
	Flights   FlightSource
	Weather   WeatherSource
	History   PatternSource
	Cache     cache.Cache
	Scorer    *confidence.Scorer
	Publisher Publisher
	Audit     Auditor
	Stats     *stats.Stats

	// ResultTTL bounds how long a prediction is served from cache.
	ResultTTL time.Duration
	// Timeout bounds one whole prediction pipeline run.
	Timeout time.Duration
}

// Engine orchestrates the prediction pipeline: flight lookup, concurrent
// weather and historical fetches, factor blending, confidence scoring, and
// result caching.
type Engine struct {
	deps        Deps
	retryPolicy retry.Policy
	now         func() time.Time
}

// New creates an Engine from deps.
func New(deps Deps) (*Engine, error) {
	if deps.Flights == nil || deps.Weather == nil || deps.History == nil {
		return nil, fmt.Errorf("prediction engine requires flight, weather, and history sources")
	}
	if deps.Cache == nil || deps.Scorer == nil {
		return nil, fmt.Errorf("prediction engine requires a cache and a confidence scorer")
	}
	if deps.ResultTTL <= 0 {
		deps.ResultTTL = 5 * time.Minute
	}
	return &Engine{
		deps:        deps,
		retryPolicy: retry.DefaultPolicy,
		now:         time.Now,
	}, nil
}

// Predict returns the delay prediction for flightNumber, served from cache
// when a fresh result exists. A missing flight is fatal; weather and
// historical failures degrade the result instead of aborting it.
func (e *Engine) Predict(ctx context.Context, flightNumber string) (*types.PredictionResult, error) {
	if e.deps.Stats != nil {
		e.deps.Stats.IncrementTotalRequests()
	}

	flightNumber = strings.ToUpper(strings.TrimSpace(flightNumber))
	key := "prediction:" + flightNumber

	if cached := e.fromCache(ctx, key); cached != nil {
		if e.deps.Stats != nil {
			e.deps.Stats.IncrementCacheHits()
		}
		cached.Source = "cache"
		return cached, nil
	}

	if e.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.deps.Timeout)
		defer cancel()
	}

	// Flight lookup is mandatory and never retried: a miss is authoritative.
	snapshot, err := e.deps.Flights.GetFlight(ctx, flightNumber)
	if err != nil {
		if e.deps.Stats != nil {
			if errors.Is(err, types.ErrFlightNotFound) {
				e.deps.Stats.IncrementFlightNotFound()
			} else {
				e.deps.Stats.IncrementUpstreamErrors()
			}
		}
		return nil, fmt.Errorf("failed to resolve flight %s: %w", flightNumber, err)
	}

	result := e.score(ctx, snapshot)

	if e.deps.Stats != nil {
		e.deps.Stats.IncrementComputed()
		if result.Degraded {
			e.deps.Stats.IncrementDegraded()
		}
	}

	e.storeResult(ctx, key, result)
	e.announce(result)

	return result, nil
}

// score runs the concurrent fetch phase and blends the four factors. Every
// fetch completes (or degrades) before scoring begins, so scoring never
// observes a partial set.
func (e *Engine) score(ctx context.Context, snapshot *types.FlightSnapshot) *types.PredictionResult {
	var (
		wg       sync.WaitGroup
		depObs   *types.WeatherObservation
		arrObs   *types.WeatherObservation
		depErr   error
		arrErr   error
		analysis *types.PatternAnalysis
		histErr  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		depObs, depErr = e.fetchWeather(ctx, snapshot.DepartureAirport)
	}()
	go func() {
		defer wg.Done()
		arrObs, arrErr = e.fetchWeather(ctx, snapshot.ArrivalAirport)
	}()
	go func() {
		defer wg.Done()
		analysis, histErr = e.deps.History.AnalyzePatterns(ctx,
			snapshot.DepartureAirport, snapshot.ArrivalAirport, snapshot.ScheduledDep, snapshot.Airline)
	}()
	wg.Wait()

	var warnings []string
	degraded := false

	depScore := conditionScore(depObs)
	if depErr != nil {
		degraded = true
		warnings = append(warnings, fmt.Sprintf("departure weather unavailable for %s, using neutral estimate", snapshot.DepartureAirport))
	}
	arrScore := conditionScore(arrObs)
	if arrErr != nil {
		degraded = true
		warnings = append(warnings, fmt.Sprintf("arrival weather unavailable for %s, using neutral estimate", snapshot.ArrivalAirport))
	}

	historicalScore := neutralScore
	if histErr != nil {
		degraded = true
		warnings = append(warnings, "historical patterns unavailable, using neutral estimate")
		log.Printf("Warning: %v", histErr)
	} else {
		historicalScore = analysis.Scores.RouteReliability
	}

	factors := types.PredictionFactors{
		Weather:    0.4*depScore + 0.6*arrScore,
		Historical: historicalScore,
		TimeOfDay:  timeScore(snapshot.ScheduledDep.Hour()),
		Congestion: congestionScore,
	}

	probability := probabilityFrom(factors)

	conf := e.deps.Scorer.Calculate(confidence.Input{
		Historical: historicalInput(analysis),
		Weather:    weatherInput(depObs, arrObs, depScore, arrScore),
		Factors:    factors,
	})

	return &types.PredictionResult{
		ID:             uuid.New().String(),
		FlightNumber:   snapshot.FlightNumber,
		Probability:    probability,
		EstimatedDelay: delayBucket(probability),
		Confidence:     conf.Confidence,
		Factors:        factors,
		Warnings:       append(warnings, conf.Warnings...),
		Strengths:      conf.Strengths,
		Degraded:       degraded,
		Source:         "api",
		UpdatedAt:      e.now().UTC(),
	}
}

// fetchWeather retries transient weather failures before giving up; the
// caller degrades a failed side to the neutral midpoint.
func (e *Engine) fetchWeather(ctx context.Context, airportCode string) (*types.WeatherObservation, error) {
	if airportCode == "" {
		return nil, fmt.Errorf("no airport code in flight snapshot: %w", types.ErrUpstreamUnavailable)
	}

	var obs *types.WeatherObservation
	err := retry.Do(ctx, e.retryPolicy, func(ctx context.Context) error {
		var fetchErr error
		obs, fetchErr = e.deps.Weather.GetAirportWeather(ctx, airportCode)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// fromCache returns an unexpired cached result, or nil.
func (e *Engine) fromCache(ctx context.Context, key string) *types.PredictionResult {
	data, err := e.deps.Cache.Get(ctx, key)
	if err != nil {
		log.Printf("Warning: cache lookup failed for %s: %v", key, err)
		return nil
	}
	if data == nil {
		return nil
	}

	var result types.PredictionResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Printf("Warning: discarding corrupt cache entry %s: %v", key, err)
		return nil
	}
	return &result
}

// storeResult caches the result for the configured TTL. Concurrent requests
// for the same flight may race here; last writer wins and that is fine,
// because both computed the same inputs within the TTL window.
func (e *Engine) storeResult(ctx context.Context, key string, result *types.PredictionResult) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Printf("Warning: failed to marshal prediction for cache: %v", err)
		return
	}
	if err := e.deps.Cache.Set(ctx, key, data, e.deps.ResultTTL); err != nil {
		log.Printf("Warning: failed to cache prediction %s: %v", key, err)
	}
}

// announce pushes the result to the optional event stream and audit log.
// Neither failure affects the response.
func (e *Engine) announce(result *types.PredictionResult) {
	if e.deps.Publisher != nil {
		if err := e.deps.Publisher.PublishPrediction(result); err != nil {
			log.Printf("Warning: failed to publish prediction event: %v", err)
		}
	}
	if e.deps.Audit != nil {
		if err := e.deps.Audit.Record(result); err != nil {
			log.Printf("Warning: failed to audit prediction: %v", err)
		}
	}
}

// probabilityFrom blends the factors into a 0-100 probability. The x100
// scaling applies to the full weighted sum, not the last term.
func probabilityFrom(f types.PredictionFactors) int {
	sum := f.Weather*weightWeather +
		f.Historical*weightHistorical +
		f.TimeOfDay*weightTimeOfDay +
		f.Congestion*weightCongestion

	p := int(math.Round(sum * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// delayBucket maps a probability to an estimated delay in minutes. Fixed
// monotonic buckets.
func delayBucket(probability int) int {
	switch {
	case probability < 30:
		return 0
	case probability < 50:
		return 15
	case probability < 70:
		return 30
	case probability < 85:
		return 45
	default:
		return 60
	}
}

// conditionScore maps an observation to a delay severity. Missing or
// unknown conditions score the neutral midpoint.
func conditionScore(obs *types.WeatherObservation) float64 {
	if obs == nil {
		return neutralScore
	}
	if score, ok := conditionScores[obs.Condition]; ok {
		return score
	}
	return neutralScore
}

// timeScore is the binary peak/off-peak model: morning (7-9) and evening
// (16-19) departure banks score high, everything else low.
func timeScore(hour int) float64 {
	if (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 19) {
		return 0.8
	}
	return 0.2
}

// historicalInput maps the pattern analysis onto the scorer's view of data
// sufficiency. A nil analysis (degraded run) reports zero data points.
func historicalInput(analysis *types.PatternAnalysis) confidence.HistoricalInput {
	if analysis == nil {
		return confidence.HistoricalInput{}
	}

	newest := analysis.Route.LastUpdated
	for _, w := range []types.WindowSummary{analysis.Airline, analysis.Time, analysis.Seasonal} {
		if w.LastUpdated.After(newest) {
			newest = w.LastUpdated
		}
	}

	return confidence.HistoricalInput{
		RoutePoints:    analysis.Route.TotalFlights,
		AirlinePoints:  analysis.Airline.TotalFlights,
		SeasonalPoints: analysis.Seasonal.TotalFlights,
		LastUpdated:    newest,
	}
}

// weatherInput derives the scorer's weather signals from the two
// observations: freshness from the staler side, stability and trend from
// how much the two sides disagree.
func weatherInput(depObs, arrObs *types.WeatherObservation, depScore, arrScore float64) confidence.WeatherInput {
	stations := 0
	maxAge := 0
	for _, obs := range []*types.WeatherObservation{depObs, arrObs} {
		if obs == nil {
			continue
		}
		stations++
		if obs.AgeSeconds > maxAge {
			maxAge = obs.AgeSeconds
		}
	}

	trend := "stable"
	if math.Abs(depScore-arrScore) > 0.2 {
		trend = "changing"
	}

	return confidence.WeatherInput{
		ForecastAgeSeconds: float64(maxAge),
		Stability:          1 - math.Abs(depScore-arrScore),
		Stations:           stations,
		Trend:              trend,
	}
}
