package flight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NT710/willmyflightbelate/internal/types"
)

const (
	// Lookback window for the flights feed. A flight being predicted is
	// either on the ground pre-departure or airborne, so two hours of
	// history is enough to find it.
	lookbackWindow = 2 * time.Hour

	requestTimeout = 10 * time.Second
)

// Client resolves flight identifiers against an OpenSky-compatible API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	now        func() time.Time
}

// openskyFlight mirrors one entry of the /flights/all response.
type openskyFlight struct {
	Icao24              string `json:"icao24"`
	Callsign            string `json:"callsign"`
	FirstSeen           int64  `json:"firstSeen"`
	LastSeen            int64  `json:"lastSeen"`
	EstDepartureAirport string `json:"estDepartureAirport"`
	EstArrivalAirport   string `json:"estArrivalAirport"`
}

// New creates a flight client against baseURL with basic-auth credentials.
func New(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		now: time.Now,
	}
}

// GetFlight resolves flightNumber to a point-in-time snapshot. A missing
// flight is authoritative: it returns ErrFlightNotFound and is not retried.
func (c *Client) GetFlight(ctx context.Context, flightNumber string) (*types.FlightSnapshot, error) {
	now := c.now()
	begin := now.Add(-lookbackWindow).Unix()
	end := now.Unix()

	url := fmt.Sprintf("%s/flights/all?begin=%d&end=%d", c.baseURL, begin, end)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build flight request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flight data: %w", types.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("flight source rejected credentials: %w", types.ErrAuthFailed)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("flight source quota exhausted: %w", types.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("no flights in window: %w", types.ErrFlightNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("flight source returned %d: %w", resp.StatusCode, types.ErrUpstreamUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read flight response: %w", types.ErrUpstreamUnavailable)
	}

	var flights []openskyFlight
	if err := json.Unmarshal(body, &flights); err != nil {
		return nil, fmt.Errorf("failed to decode flight response: %w", types.ErrUpstreamUnavailable)
	}

	match := findByCallsign(flights, flightNumber)
	if match == nil {
		return nil, fmt.Errorf("flight %s: %w", flightNumber, types.ErrFlightNotFound)
	}

	return snapshotFrom(match, flightNumber, now), nil
}

// findByCallsign matches flightNumber against padded callsigns, most recent
// sighting first.
func findByCallsign(flights []openskyFlight, flightNumber string) *openskyFlight {
	wanted := normalizeCallsign(flightNumber)
	var best *openskyFlight
	for i := range flights {
		if !strings.Contains(normalizeCallsign(flights[i].Callsign), wanted) {
			continue
		}
		if best == nil || flights[i].LastSeen > best.LastSeen {
			best = &flights[i]
		}
	}
	return best
}

func normalizeCallsign(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

func snapshotFrom(f *openskyFlight, flightNumber string, observedAt time.Time) *types.FlightSnapshot {
	snapshot := &types.FlightSnapshot{
		FlightNumber:     flightNumber,
		Airline:          airlinePrefix(flightNumber),
		DepartureAirport: iataCode(f.EstDepartureAirport),
		ArrivalAirport:   iataCode(f.EstArrivalAirport),
		ScheduledDep:     time.Unix(f.FirstSeen, 0).UTC(),
		ScheduledArr:     time.Unix(f.LastSeen, 0).UTC(),
		ObservedAt:       observedAt.UTC(),
		OnGround:         observedAt.Unix() >= f.LastSeen,
	}

	// The feed carries no schedule baseline; accumulated delay stays 0
	// until a schedule-aware source replaces this adapter.
	return snapshot
}

// iataCode folds the feed's ICAO airport codes ("KJFK") onto the IATA codes
// the historical store and weather lookup key on ("JFK").
func iataCode(code string) string {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) == 4 && normalized[0] == 'K' {
		return normalized[1:]
	}
	return normalized
}

// airlinePrefix extracts the carrier designator from a flight number
// ("UA123" -> "UA").
func airlinePrefix(flightNumber string) string {
	normalized := normalizeCallsign(flightNumber)
	for i, r := range normalized {
		if r >= '0' && r <= '9' {
			return normalized[:i]
		}
	}
	return normalized
}
