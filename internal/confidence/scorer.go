package confidence

import (
	"fmt"
	"math"
	"time"

	"github.com/NT710/willmyflightbelate/internal/types"
)

// Weights for combining the four sub-scores. Must sum to 1.0.
const (
	weightDataQuality         = 0.35
	weightPredictionStability = 0.25
	weightWeatherConfidence   = 0.25
	weightSeasonalConfidence  = 0.15
)

// Minimum sample counts for full data-quality credit.
const (
	minRoutePoints    = 50
	minAirlinePoints  = 100
	minSeasonalPoints = 90
)

// fallbackConfidence is returned when the calculation itself faults.
// Confidence is advisory, so a conservative number beats an error.
const fallbackConfidence = 50

// HistoricalInput describes the historical data backing a prediction.
type HistoricalInput struct {
	RoutePoints    int
	AirlinePoints  int
	SeasonalPoints int
	LastUpdated    time.Time

	// Optional seasonal diagnostics; nil means unknown and defaults to 0.5.
	SeasonalCorrelations  []float64
	SeasonalVariability   *float64
	YearOverYearStability *float64
}

// WeatherInput describes the weather data backing a prediction.
type WeatherInput struct {
	ForecastAgeSeconds float64
	Stability          float64
	Stations           int
	Trend              string // "stable", "changing", or anything else
}

// Input bundles everything the scorer inspects.
type Input struct {
	Historical HistoricalInput
	Weather    WeatherInput
	Factors    types.PredictionFactors
}

// Factors carries the four sub-scores, each on the 0-100 scale.
type Factors struct {
	DataQuality         float64 `json:"data_quality"`
	PredictionStability float64 `json:"prediction_stability"`
	WeatherConfidence   float64 `json:"weather_confidence"`
	SeasonalConfidence  float64 `json:"seasonal_confidence"`
}

// Result is the scorer's output: a 0-100 confidence plus explainability
// metadata.
type Result struct {
	Confidence int       `json:"confidence"`
	Factors    Factors   `json:"factors"`
	Warnings   []string  `json:"warnings,omitempty"`
	Strengths  []string  `json:"strengths,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Scorer computes confidence scores from data-sufficiency, staleness, and
// variance signals.
type Scorer struct {
	now func() time.Time
}

// New creates a Scorer, verifying the weight-sum invariant.
func New() (*Scorer, error) {
	sum := weightDataQuality + weightPredictionStability + weightWeatherConfidence + weightSeasonalConfidence
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("confidence weights sum to %v, want 1.0", sum)
	}
	return &Scorer{now: time.Now}, nil
}

// Calculate turns the input signals into a single 0-100 confidence number.
// Internal faults never propagate: the scorer recovers and returns the
// conservative fallback with a warning annotation.
func (s *Scorer) Calculate(input Input) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Confidence: fallbackConfidence,
				Warnings: []string{
					"Confidence calculation error, returning conservative estimate",
					fmt.Sprintf("error: %v", r),
				},
				Timestamp: time.Now(),
			}
		}
	}()

	factors := Factors{
		DataQuality:         s.assessDataQuality(input.Historical),
		PredictionStability: s.assessPredictionStability(input.Factors),
		WeatherConfidence:   s.assessWeatherConfidence(input.Weather),
		SeasonalConfidence:  s.assessSeasonalConfidence(input.Historical),
	}

	weighted := factors.DataQuality*weightDataQuality +
		factors.PredictionStability*weightPredictionStability +
		factors.WeatherConfidence*weightWeatherConfidence +
		factors.SeasonalConfidence*weightSeasonalConfidence

	warnings, strengths := describeFactors(factors)

	return Result{
		Confidence: clampScore(int(math.Round(weighted))),
		Factors:    factors,
		Warnings:   warnings,
		Strengths:  strengths,
		Timestamp:  s.now(),
	}
}

// assessDataQuality scores sample completeness against the minimum
// thresholds plus a freshness term. Sub-scores are computed in [0,1] and
// scaled to 0-100 once, here; the final weighting operates only on the
// 0-100 scale.
func (s *Scorer) assessDataQuality(h HistoricalInput) float64 {
	routeCompleteness := math.Min(float64(h.RoutePoints)/minRoutePoints, 1)
	airlineCompleteness := math.Min(float64(h.AirlinePoints)/minAirlinePoints, 1)
	seasonalCompleteness := math.Min(float64(h.SeasonalPoints)/minSeasonalPoints, 1)

	ageDays := s.now().Sub(h.LastUpdated).Hours() / 24
	freshness := math.Max(0, 1-ageDays/90)

	return (routeCompleteness*0.4 +
		airlineCompleteness*0.3 +
		seasonalCompleteness*0.2 +
		freshness*0.1) * 100
}

// assessPredictionStability penalizes extreme factor values and high
// variance across the four prediction factors.
func (s *Scorer) assessPredictionStability(f types.PredictionFactors) float64 {
	values := []float64{f.Weather, f.Historical, f.TimeOfDay, f.Congestion}

	extremes := 0
	for _, v := range values {
		if v > 0.9 || v < 0.1 {
			extremes++
		}
	}
	extremePenalty := float64(extremes) * 0.1

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	variancePenalty := math.Min(variance*2, 0.3)

	return math.Max(0, 1-extremePenalty-variancePenalty) * 100
}

// assessWeatherConfidence blends forecast freshness, reported stability,
// station coverage, and trend predictability.
func (s *Scorer) assessWeatherConfidence(w WeatherInput) float64 {
	freshness := math.Max(0, 1-w.ForecastAgeSeconds/3600)
	coverage := math.Min(float64(w.Stations)/3, 1)

	var trend float64
	switch w.Trend {
	case "stable":
		trend = 1
	case "changing":
		trend = 0.7
	default:
		trend = 0.4
	}

	return (freshness*0.4 + w.Stability*0.3 + coverage*0.2 + trend*0.1) * 100
}

// assessSeasonalConfidence blends pattern correlation strength, inverse
// variability, and year-over-year stability; each defaults to 0.5 when its
// source metric is absent.
func (s *Scorer) assessSeasonalConfidence(h HistoricalInput) float64 {
	patternStrength := 0.5
	if len(h.SeasonalCorrelations) > 0 {
		sum := 0.0
		for _, c := range h.SeasonalCorrelations {
			sum += c
		}
		patternStrength = sum / float64(len(h.SeasonalCorrelations))
	}

	variability := 0.5
	if h.SeasonalVariability != nil {
		variability = *h.SeasonalVariability
	}
	variabilityScore := 1 - variability

	stability := 0.5
	if h.YearOverYearStability != nil {
		stability = *h.YearOverYearStability
	}

	return (patternStrength*0.4 + variabilityScore*0.3 + stability*0.3) * 100
}

// describeFactors emits a warning for every sub-score below 60 and a
// strength for every one above 80. The 60-80 band stays silent.
func describeFactors(f Factors) (warnings, strengths []string) {
	named := []struct {
		name  string
		score float64
	}{
		{"data quality", f.DataQuality},
		{"prediction stability", f.PredictionStability},
		{"weather confidence", f.WeatherConfidence},
		{"seasonal confidence", f.SeasonalConfidence},
	}

	for _, n := range named {
		switch {
		case n.score < 60:
			warnings = append(warnings, fmt.Sprintf("Low %s score: %d%%", n.name, int(math.Round(n.score))))
		case n.score > 80:
			strengths = append(strengths, fmt.Sprintf("Strong %s: %d%%", n.name, int(math.Round(n.score))))
		}
	}
	return warnings, strengths
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
