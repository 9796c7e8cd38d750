// Package scraper runs the external price scraper and parses its output.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/basketscout/backend/internal/domain"
	"github.com/basketscout/backend/pkg/logger"
	"github.com/basketscout/backend/pkg/metrics"
)

const (
	defaultTimeout = 60 * time.Second
	stderrTailSize = 512
)

// Config describes how to invoke the scraper. Args are passed before the
// item code and locality.
type Config struct {
	Command string
	Args    []string
	Timeout time.Duration
	Dir     string
}

// Runner is the process-backed Scrape Port. It never retries.
type Runner struct {
	cfg     Config
	log     logger.Logger
	metrics *metrics.Recorder
}

// NewRunner creates a scraper runner. metrics may be nil.
func NewRunner(cfg Config, recorder *metrics.Recorder) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Runner{
		cfg:     cfg,
		log:     logger.Named("scraper"),
		metrics: recorder,
	}
}

// Fetch runs the scraper for one item and returns its parsed offers.
func (r *Runner) Fetch(ctx context.Context, itemcode, locality string) ([]domain.RawStoreOffer, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	args := append(append([]string{}, r.cfg.Args...), itemcode, locality)
	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	cmd.Dir = r.cfg.Dir
	// Stop waiting for inherited pipes shortly after the process is killed.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.metrics.Scrape(metrics.ScrapeTimeout, elapsed)
			return nil, fmt.Errorf("%w: item %s after %s", domain.ErrScraperTimeout, itemcode, r.cfg.Timeout)
		}
		r.metrics.Scrape(metrics.ScrapeFailed, elapsed)
		r.log.Warn(ctx, "scraper process failed",
			logger.String("itemcode", itemcode),
			logger.String("stderr", tail(stderr.String(), stderrTailSize)),
			logger.Error(err))
		return nil, fmt.Errorf("%w: item %s: %v", domain.ErrScraperFailed, itemcode, err)
	}

	offers, err := ParseOutput(stdout.Bytes())
	switch {
	case errors.Is(err, domain.ErrNoOffers):
		r.metrics.Scrape(metrics.ScrapeEmpty, elapsed)
		return nil, err
	case err != nil:
		r.metrics.Scrape(metrics.ScrapeInvalid, elapsed)
		return nil, err
	}

	r.metrics.Scrape(metrics.ScrapeOK, elapsed)
	r.log.Debug(ctx, "scraped offers",
		logger.String("itemcode", itemcode),
		logger.Int("offers", len(offers)),
		logger.Any("elapsed", elapsed))
	return offers, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
