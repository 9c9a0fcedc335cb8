package weather

import (
	"fmt"
	"strings"
)

// Coordinates locates an airport for the weather point lookup.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// airportCoordinates covers the major US airports the historical dataset
// reports on. ICAO codes carry a K prefix over the IATA code; both resolve.
var airportCoordinates = map[string]Coordinates{
	"ATL": {33.6407, -84.4277},
	"BOS": {42.3656, -71.0096},
	"DEN": {39.8561, -104.6737},
	"DFW": {32.8998, -97.0403},
	"EWR": {40.6895, -74.1745},
	"IAD": {38.9531, -77.4565},
	"IAH": {29.9902, -95.3368},
	"JFK": {40.6413, -73.7781},
	"LAS": {36.0840, -115.1537},
	"LAX": {33.9416, -118.4085},
	"LGA": {40.7769, -73.8740},
	"MCO": {28.4312, -81.3081},
	"MIA": {25.7959, -80.2870},
	"MSP": {44.8848, -93.2223},
	"ORD": {41.9742, -87.9073},
	"PHL": {39.8744, -75.2424},
	"PHX": {33.4352, -112.0101},
	"SEA": {47.4502, -122.3088},
	"SFO": {37.6213, -122.3790},
	"SLC": {40.7899, -111.9791},
}

// LookupAirport resolves an IATA or ICAO airport code to coordinates.
func LookupAirport(code string) (Coordinates, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if c, ok := airportCoordinates[normalized]; ok {
		return c, nil
	}
	// ICAO form of a US IATA code
	if len(normalized) == 4 && normalized[0] == 'K' {
		if c, ok := airportCoordinates[normalized[1:]]; ok {
			return c, nil
		}
	}
	return Coordinates{}, fmt.Errorf("airport %q not found", code)
}
