package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomy_Distinguishable(t *testing.T) {
	sentinels := []error{
		ErrFlightNotFound,
		ErrRateLimited,
		ErrAuthFailed,
		ErrMissingConfig,
		ErrUpstreamUnavailable,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			if errors.Is(a, b) {
				t.Errorf("sentinel %v should not match %v", a, b)
			}
		}
	}
}

func TestErrorTaxonomy_WrappedMatch(t *testing.T) {
	wrapped := fmt.Errorf("failed to resolve flight UA123: %w", ErrFlightNotFound)

	if !errors.Is(wrapped, ErrFlightNotFound) {
		t.Error("wrapped error should match ErrFlightNotFound")
	}
	if errors.Is(wrapped, ErrRateLimited) {
		t.Error("wrapped error should not match ErrRateLimited")
	}
}
