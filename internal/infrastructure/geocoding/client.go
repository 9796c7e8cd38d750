package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/basketscout/backend/internal/domain"
	"github.com/basketscout/backend/pkg/logger"
)

const (
	maxAttempts      = 3
	maxBodyBytes     = 1 << 20
	defaultUserAgent = "BasketScout/1.0"
)

// Client talks to a Nominatim-compatible geocoding API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	rateLimiter *rate.Limiter
	backoffBase time.Duration
	debug       bool
	log         logger.Logger
}

// NewClient creates a geocoding client allowing requestsPerSecond outbound
// calls. The public Nominatim instance allows one per second.
func NewClient(baseURL, userAgent string, requestsPerSecond float64) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:     baseURL,
		userAgent:   userAgent,
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		backoffBase: 500 * time.Millisecond,
		log:         logger.Named("geocoding"),
	}
}

// SetDebug enables request-level debug logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) debugLog(format string, args ...any) {
	if c.debug {
		c.log.Debug(context.Background(), fmt.Sprintf(format, args...))
	}
}

// ReverseGeocode resolves coordinates to a street and city. Both must be
// present; a partial address is reported as domain.ErrIncompleteAddress.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Address, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("addressdetails", "1")

	body, err := c.get(ctx, "/reverse", params)
	if err != nil {
		return domain.Address{}, err
	}

	var resp reverseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Address{}, fmt.Errorf("%w: failed to decode response: %v", domain.ErrGeocoderFailure, err)
	}
	return mapAddress(resp)
}

// ForwardGeocode resolves a free-text address to coordinates. It returns
// nil, nil when the service has no match.
func (c *Client) ForwardGeocode(ctx context.Context, address string) (*domain.GeoPoint, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("q", address)

	body, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var places []searchResult
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrGeocoderFailure, err)
	}
	if len(places) == 0 {
		c.debugLog("no match for %q", address)
		return nil, nil
	}
	return places[0].point()
}

// get performs a rate-limited GET, retrying transport errors, 429 and 5xx.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, c.exponentialBackoff(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrGeocoderFailure, err)
			}
		}
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrGeocoderFailure, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrGeocoderFailure, err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		c.debugLog("GET %s (attempt %d)", reqURL, attempt)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrGeocoderFailure, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		body, err := readLimitedBody(resp.Body, maxBodyBytes)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read body: %v", domain.ErrGeocoderFailure, err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: status %d", domain.ErrGeocoderFailure, resp.StatusCode)
			c.debugLog("retryable status %d: %s", resp.StatusCode, string(body))
		default:
			return nil, fmt.Errorf("%w: status %d: %s", domain.ErrGeocoderFailure, resp.StatusCode, string(body))
		}
	}

	return nil, lastErr
}

// exponentialBackoff returns the wait before retry number attempt (1-based).
func (c *Client) exponentialBackoff(attempt int) time.Duration {
	return c.backoffBase * time.Duration(1<<(attempt-1))
}

func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
