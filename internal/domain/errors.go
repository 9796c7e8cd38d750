package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidAddressKey is returned when the client location is not "<lat>,<lon>"
	ErrInvalidAddressKey = errors.New("invalid address key")

	// ErrIncompleteAddress is returned when reverse geocoding yields no city or street
	ErrIncompleteAddress = errors.New("reverse geocoded address is incomplete")

	// ErrGeocoderFailure is returned when the geocoding service request fails
	ErrGeocoderFailure = errors.New("geocoding request failed")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrScraperTimeout is returned when the scraper process exceeds its deadline
	ErrScraperTimeout = errors.New("scraper timed out")

	// ErrScraperFailed is returned when the scraper process cannot run or exits non-zero
	ErrScraperFailed = errors.New("scraper process failed")

	// ErrScraperOutput is returned when the scraper prints malformed JSON
	ErrScraperOutput = errors.New("scraper output malformed")

	// ErrNoOffers is returned when the scraper output has no usable rows
	ErrNoOffers = errors.New("no store offers found")

	// ErrResolveTimeout is returned when the whole resolve exceeds its deadline
	ErrResolveTimeout = errors.New("store resolve timed out")
)

// IsRetryable reports whether a scrape failure is process-level and worth
// another attempt. Empty results and malformed output are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrScraperTimeout) || errors.Is(err, ErrScraperFailed)
}
