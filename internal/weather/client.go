package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NT710/willmyflightbelate/internal/cache"
	"github.com/NT710/willmyflightbelate/internal/types"
)

const requestTimeout = 10 * time.Second

// Client fetches airport weather from a weather.gov-compatible API.
// Observations are cached per airport code to respect upstream quotas;
// the TTL (~30 min) is independent of the prediction result TTL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	cacheTTL   time.Duration
	now        func() time.Time
}

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		UpdateTime string `json:"updateTime"`
		Periods    []struct {
			ShortForecast   string `json:"shortForecast"`
			Temperature     float64 `json:"temperature"`
			WindSpeed       string `json:"windSpeed"`
			WindDirection   string `json:"windDirection"`
			ProbabilityOfPrecipitation struct {
				Value *float64 `json:"value"`
			} `json:"probabilityOfPrecipitation"`
		} `json:"periods"`
	} `json:"properties"`
}

// New creates a weather client. cacheTTL bounds how often the same airport
// hits the upstream.
func New(baseURL string, c cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		cache:    c,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// GetAirportWeather returns the current observation for airportCode,
// served from cache when fresh.
func (c *Client) GetAirportWeather(ctx context.Context, airportCode string) (*types.WeatherObservation, error) {
	key := "weather:" + strings.ToUpper(strings.TrimSpace(airportCode))
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key); err == nil && data != nil {
			var obs types.WeatherObservation
			if err := json.Unmarshal(data, &obs); err == nil {
				obs.AgeSeconds = int(c.now().Sub(obs.ObservedAt).Seconds())
				return &obs, nil
			}
		}
	}

	coords, err := LookupAirport(airportCode)
	if err != nil {
		return nil, fmt.Errorf("failed to locate airport: %w", err)
	}

	forecastURL, err := c.fetchForecastURL(ctx, coords)
	if err != nil {
		return nil, err
	}

	obs, err := c.fetchForecast(ctx, forecastURL, airportCode)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(obs); err == nil {
			if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
				log.Printf("Warning: failed to cache weather for %s: %v", airportCode, err)
			}
		}
	}

	return obs, nil
}

func (c *Client) fetchForecastURL(ctx context.Context, coords Coordinates) (string, error) {
	url := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, coords.Latitude, coords.Longitude)
	var points pointsResponse
	if err := c.getJSON(ctx, url, &points); err != nil {
		return "", err
	}
	if points.Properties.Forecast == "" {
		return "", fmt.Errorf("weather point has no forecast: %w", types.ErrUpstreamUnavailable)
	}
	return points.Properties.Forecast, nil
}

func (c *Client) fetchForecast(ctx context.Context, url, airportCode string) (*types.WeatherObservation, error) {
	var forecast forecastResponse
	if err := c.getJSON(ctx, url, &forecast); err != nil {
		return nil, err
	}
	if len(forecast.Properties.Periods) == 0 {
		return nil, fmt.Errorf("forecast has no periods: %w", types.ErrUpstreamUnavailable)
	}

	period := forecast.Properties.Periods[0]
	now := c.now()

	observedAt := now
	if t, err := time.Parse(time.RFC3339, forecast.Properties.UpdateTime); err == nil {
		observedAt = t
	}

	precipitation := 0.0
	if period.ProbabilityOfPrecipitation.Value != nil {
		precipitation = *period.ProbabilityOfPrecipitation.Value
	}

	return &types.WeatherObservation{
		AirportCode:   strings.ToUpper(strings.TrimSpace(airportCode)),
		Condition:     NormalizeCondition(period.ShortForecast),
		Temperature:   period.Temperature,
		WindSpeed:     parseWindSpeed(period.WindSpeed),
		WindDirection: period.WindDirection,
		Precipitation: precipitation,
		AgeSeconds:    int(now.Sub(observedAt).Seconds()),
		ObservedAt:    observedAt,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch weather data: %w", types.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("weather source quota exhausted: %w", types.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather source returned %d: %w", resp.StatusCode, types.ErrUpstreamUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read weather response: %w", types.ErrUpstreamUnavailable)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode weather response: %w", types.ErrUpstreamUnavailable)
	}
	return nil
}

// NormalizeCondition folds a free-form short forecast into the fixed
// condition vocabulary the scorer understands. Order matters: a
// "Thunderstorms and Rain" forecast is a thunderstorm, not rain.
func NormalizeCondition(shortForecast string) string {
	s := strings.ToLower(shortForecast)
	switch {
	case strings.Contains(s, "thunder"):
		return "Thunderstorm"
	case strings.Contains(s, "snow") || strings.Contains(s, "sleet") || strings.Contains(s, "ice"):
		return "Snow"
	case strings.Contains(s, "fog") || strings.Contains(s, "mist") || strings.Contains(s, "haze"):
		return "Fog"
	case strings.Contains(s, "rain") || strings.Contains(s, "shower") || strings.Contains(s, "drizzle"):
		return "Rain"
	case strings.Contains(s, "cloud") || strings.Contains(s, "overcast"):
		return "Cloudy"
	case strings.Contains(s, "clear") || strings.Contains(s, "sunny") || strings.Contains(s, "fair"):
		return "Clear"
	default:
		return "Unknown"
	}
}

// parseWindSpeed extracts the leading number from strings like "10 mph" or
// "5 to 10 mph".
func parseWindSpeed(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}
