package history

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/NT710/willmyflightbelate/internal/types"
)

const (
	routeWindowDays = 90
	shortWindowDays = 30

	// A flight more than 15 minutes late counts against reliability.
	delayThresholdMinutes = 15.0

	// Seasonal patterns drift; only the most recent records inform the score.
	seasonalRecentCount = 30

	// neutralScore is the prior for a dimension with no data. Biasing
	// toward neither optimism nor pessimism keeps absent data honest.
	neutralScore = 0.5
)

// Store is the slice of the historical store the analyzer needs.
type Store interface {
	QueryRouteSince(ctx context.Context, route string, since time.Time) ([]types.HistoricalRecord, error)
	QueryAirlineSince(ctx context.Context, airline string, since time.Time) ([]types.HistoricalRecord, error)
	QueryRouteHours(ctx context.Context, route string, hourMin, hourMax int, since time.Time) ([]types.HistoricalRecord, error)
	QueryRouteMonths(ctx context.Context, route string, months []int) ([]types.HistoricalRecord, error)
}

// Analyzer aggregates historical delay records across four overlapping
// windows into per-dimension reliability scores.
type Analyzer struct {
	store Store
	now   func() time.Time
}

// New creates an Analyzer over store.
func New(store Store) *Analyzer {
	return &Analyzer{
		store: store,
		now:   time.Now,
	}
}

// windowKind selects which secondary signal a window extracts.
type windowKind int

const (
	windowRoute windowKind = iota
	windowAirline
	windowTime
	windowSeasonal
)

// AnalyzePatterns queries the four historical windows concurrently and
// reduces them into a PatternAnalysis. Any store failure is fatal: mixing a
// partially-failed fetch into a weighted average would silently corrupt the
// downstream confidence math.
func (a *Analyzer) AnalyzePatterns(ctx context.Context, departure, arrival string, scheduled time.Time, airline string) (*types.PatternAnalysis, error) {
	route := fmt.Sprintf("%s-%s", departure, arrival)
	now := a.now()

	var (
		wg        sync.WaitGroup
		summaries [4]types.WindowSummary
		errs      [4]error
	)

	fetch := func(slot int, kind windowKind, query func() ([]types.HistoricalRecord, error)) {
		defer wg.Done()
		records, err := query()
		if err != nil {
			errs[slot] = err
			return
		}
		summaries[slot] = reduceWindow(records, kind)
	}

	wg.Add(4)
	go fetch(0, windowRoute, func() ([]types.HistoricalRecord, error) {
		return a.store.QueryRouteSince(ctx, route, now.AddDate(0, 0, -routeWindowDays))
	})
	go fetch(1, windowAirline, func() ([]types.HistoricalRecord, error) {
		return a.store.QueryAirlineSince(ctx, airline, now.AddDate(0, 0, -shortWindowDays))
	})
	go fetch(2, windowTime, func() ([]types.HistoricalRecord, error) {
		hour := scheduled.Hour()
		return a.store.QueryRouteHours(ctx, route, clampHour(hour-1), clampHour(hour+1), now.AddDate(0, 0, -shortWindowDays))
	})
	go fetch(3, windowSeasonal, func() ([]types.HistoricalRecord, error) {
		return a.store.QueryRouteMonths(ctx, route, adjacentMonths(int(scheduled.Month())))
	})
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("unable to analyze historical patterns: %w", err)
		}
	}

	routeWindow, airlineWindow, timeWindow, seasonalWindow := summaries[0], summaries[1], summaries[2], summaries[3]

	analysis := &types.PatternAnalysis{
		Scores: types.PatternScores{
			RouteReliability:    dimensionScore(routeWindow),
			AirlinePerformance:  dimensionScore(airlineWindow),
			TimeBasedLikelihood: dimensionScore(timeWindow),
			SeasonalImpact:      seasonalScore(seasonalWindow),
		},
		Confidence: a.confidence(routeWindow, airlineWindow, timeWindow),
		Route:      routeWindow,
		Airline:    airlineWindow,
		Time:       timeWindow,
		Seasonal:   seasonalWindow,
	}

	return analysis, nil
}

// reduceWindow collapses raw records into a WindowSummary, extracting the
// window-specific secondary factor per record.
func reduceWindow(records []types.HistoricalRecord, kind windowKind) types.WindowSummary {
	if len(records) == 0 {
		return types.WindowSummary{}
	}

	summary := types.WindowSummary{
		Pattern:      make([]types.DelayPattern, 0, len(records)),
		TotalFlights: len(records),
	}

	delayed := 0
	for _, r := range records {
		summary.Pattern = append(summary.Pattern, types.DelayPattern{
			Date:   r.Date,
			Delay:  r.DelayMinutes,
			Factor: delayFactor(r, kind),
		})
		if r.DelayMinutes > delayThresholdMinutes {
			delayed++
		}
		if r.Date.After(summary.LastUpdated) {
			summary.LastUpdated = r.Date
		}
	}

	summary.Reliability = 1 - float64(delayed)/float64(len(records))
	return summary
}

// delayFactor picks the secondary signal for a window: congestion for
// routes, equipment issues for airlines, peak-hour factor for time,
// weather impact for seasonal.
func delayFactor(r types.HistoricalRecord, kind windowKind) float64 {
	var factor float64
	switch kind {
	case windowRoute:
		factor = r.Congestion
	case windowAirline:
		factor = r.EquipmentIssues
	case windowTime:
		factor = r.PeakFactor
	case windowSeasonal:
		factor = r.WeatherImpact
	}
	if factor == 0 {
		return 1
	}
	return factor
}

// dimensionScore is the window's reliability, or the neutral prior when the
// window saw no flights.
func dimensionScore(w types.WindowSummary) float64 {
	if w.TotalFlights == 0 {
		return neutralScore
	}
	return w.Reliability
}

// seasonalScore recomputes reliability over only the most recent records,
// because seasonal patterns drift and old years mislead.
func seasonalScore(w types.WindowSummary) float64 {
	if len(w.Pattern) == 0 {
		return neutralScore
	}

	recent := w.Pattern
	if len(recent) > seasonalRecentCount {
		recent = recent[len(recent)-seasonalRecentCount:]
	}

	delayed := 0
	for _, p := range recent {
		if p.Delay > delayThresholdMinutes {
			delayed++
		}
	}
	return 1 - float64(delayed)/float64(len(recent))
}

// confidence is the multiplicative penalty model: any starved dimension caps
// the result, and stale data is floored at half weight rather than
// discounted to zero.
func (a *Analyzer) confidence(route, airline, timeWindow types.WindowSummary) int {
	confidence := 90.0
	confidence *= math.Min(float64(route.TotalFlights)/100, 1)
	confidence *= math.Min(float64(airline.TotalFlights)/50, 1)
	confidence *= math.Min(float64(timeWindow.TotalFlights)/30, 1)

	newest := route.LastUpdated
	if airline.LastUpdated.After(newest) {
		newest = airline.LastUpdated
	}
	if timeWindow.LastUpdated.After(newest) {
		newest = timeWindow.LastUpdated
	}

	ageDays := a.now().Sub(newest).Hours() / 24
	confidence *= math.Max(0.5, 1-ageDays/90)

	return int(math.Round(confidence))
}

func clampHour(h int) int {
	if h < 0 {
		return 0
	}
	if h > 23 {
		return 23
	}
	return h
}

// adjacentMonths returns the scheduled month and its calendar neighbors,
// wrapping across year boundaries.
func adjacentMonths(month int) []int {
	prev := month - 1
	if prev < 1 {
		prev = 12
	}
	next := month + 1
	if next > 12 {
		next = 1
	}
	return []int{prev, month, next}
}
