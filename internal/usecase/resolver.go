package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/basketscout/backend/internal/domain"
	"github.com/basketscout/backend/pkg/logger"
	"github.com/basketscout/backend/pkg/metrics"
)

// ResolverConfig holds configuration for the store resolver
type ResolverConfig struct {
	// RequestTimeout bounds one whole Resolve call.
	RequestTimeout time.Duration
	// MaxConcurrentScrapes bounds the scraper processes run per request.
	MaxConcurrentScrapes int
	// ScrapeRetries is the number of extra attempts after a process-level
	// scrape failure.
	ScrapeRetries int
	Scoring       ScoringConfig
	Filter        *CandidateFilter
}

// StoreResolver answers "which nearby stores carry my basket, and which is
// best" by combining the geocoder, price cache and scraper.
type StoreResolver struct {
	geocoder domain.Geocoder
	cache    domain.PriceCache
	scraper  domain.Scraper
	scorer   *Scorer
	filter   *CandidateFilter

	requestTimeout time.Duration
	maxScrapes     int
	scrapeRetries  int

	log     logger.Logger
	metrics *metrics.Recorder
}

// NewStoreResolver creates a resolver with its collaborators. recorder may be nil.
func NewStoreResolver(
	geocoder domain.Geocoder,
	cache domain.PriceCache,
	scraper domain.Scraper,
	config ResolverConfig,
	recorder *metrics.Recorder,
) *StoreResolver {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	maxScrapes := config.MaxConcurrentScrapes
	if maxScrapes <= 0 {
		maxScrapes = 4
	}
	retries := config.ScrapeRetries
	if retries < 0 {
		retries = 0
	}

	return &StoreResolver{
		geocoder:       geocoder,
		cache:          cache,
		scraper:        scraper,
		scorer:         NewScorer(config.Scoring),
		filter:         config.Filter,
		requestTimeout: timeout,
		maxScrapes:     maxScrapes,
		scrapeRetries:  retries,
		log:            logger.Named("resolver"),
		metrics:        recorder,
	}
}

// resolveRequest carries per-request state explicitly through the pipeline
type resolveRequest struct {
	origin    domain.GeoPoint
	address   domain.Address
	cacheKey  string
	requested []string
	quantity  func(string) int
}

// Resolve looks up offers for every requested item near the client's
// location and returns them with the ranked stores.
// Flow: parse location -> reverse geocode -> cache lookup -> scrape misses
// -> aggregate -> score
func (s *StoreResolver) Resolve(ctx context.Context, request *domain.ResolveRequest) (*domain.ResolveResponse, error) {
	start := time.Now()
	resp, err := s.resolve(ctx, request)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.Resolve(status, time.Since(start))
	return resp, err
}

func (s *StoreResolver) resolve(ctx context.Context, request *domain.ResolveRequest) (*domain.ResolveResponse, error) {
	if request == nil {
		return nil, domain.ErrInvalidRequest
	}
	origin, err := ParseAddressKey(request.AddressKey)
	if err != nil {
		return nil, err
	}
	requested := request.RequestedItems()
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: no item codes", domain.ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	address, err := s.geocoder.ReverseGeocode(ctx, origin.Lat, origin.Lon)
	if err != nil {
		return nil, s.wrapTimeout(ctx, fmt.Errorf("reverse geocode: %w", err))
	}

	req := &resolveRequest{
		origin:    origin,
		address:   address,
		cacheKey:  address.Key(),
		requested: requested,
		quantity:  request.Quantity,
	}

	lookup := s.lookupCache(ctx, req)
	scraped := s.scrapeMissing(ctx, req, lookup.Missing)
	if err := ctx.Err(); err != nil {
		return nil, s.wrapTimeout(ctx, err)
	}

	items := make([]domain.ItemResult, 0, len(requested))
	for _, code := range requested {
		if offers, ok := lookup.Found[code]; ok {
			items = append(items, domain.ItemResult{ItemCode: code, Stores: offers, Source: domain.SourceCache})
			continue
		}
		items = append(items, domain.ItemResult{ItemCode: code, Stores: scraped[code], Source: domain.SourceScrape})
	}

	stores := Aggregate(items, requested)
	stores, err = s.filter.Apply(stores, origin, len(requested))
	if err != nil {
		return nil, err
	}
	scored := s.scorer.Score(ScoreInput{
		Stores:         stores,
		Origin:         origin,
		RequestedCount: len(requested),
		Quantity:       req.quantity,
	})

	s.log.Info(ctx, "resolved stores",
		logger.String("addressKey", req.cacheKey),
		logger.Int("items", len(requested)),
		logger.Int("cached", len(lookup.Found)),
		logger.Int("scraped", len(lookup.Missing)),
		logger.Int("stores", len(scored)))

	return &domain.ResolveResponse{Items: items, ScoredStores: scored}, nil
}

// lookupCache reads the price cache; a failing cache counts as all misses.
func (s *StoreResolver) lookupCache(ctx context.Context, req *resolveRequest) domain.CacheLookup {
	lookup, err := s.cache.Lookup(ctx, req.cacheKey, req.requested)
	if err != nil {
		s.log.Warn(ctx, "price cache lookup failed, scraping all items",
			logger.String("addressKey", req.cacheKey), logger.Error(err))
		lookup = domain.CacheLookup{Missing: req.requested}
	}
	if lookup.Found == nil {
		lookup.Found = make(map[string][]domain.RawStoreOffer)
	}
	s.metrics.CacheHits(len(lookup.Found))
	s.metrics.CacheMisses(len(lookup.Missing))
	return lookup
}

// scrapeMissing fetches every missing item with at most maxScrapes scrapes
// in flight. A failed item maps to no offers.
func (s *StoreResolver) scrapeMissing(ctx context.Context, req *resolveRequest, missing []string) map[string][]domain.RawStoreOffer {
	results := make([][]domain.RawStoreOffer, len(missing))

	var g errgroup.Group
	g.SetLimit(s.maxScrapes)
	for i, code := range missing {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = s.scrapeItem(ctx, req, code)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]domain.RawStoreOffer, len(missing))
	for i, code := range missing {
		out[code] = results[i]
	}
	return out
}

// scrapeItem runs one item through scrape, geocode and cache write.
func (s *StoreResolver) scrapeItem(ctx context.Context, req *resolveRequest, itemcode string) []domain.RawStoreOffer {
	log := s.log.With(logger.String("itemcode", itemcode))

	raw, err := s.fetchWithRetry(ctx, req.address.Locality(), itemcode)
	if err != nil {
		if errors.Is(err, domain.ErrNoOffers) {
			log.Info(ctx, "no offers for item")
		} else {
			log.Warn(ctx, "scrape failed, item marked unavailable", logger.Error(err))
		}
		return []domain.RawStoreOffer{}
	}

	offers := make([]domain.RawStoreOffer, 0, len(raw))
	geocodeFailed := false
	for _, offer := range raw {
		if offer.Geo == nil {
			point, err := s.geocoder.ForwardGeocode(ctx, offer.Address)
			if err != nil {
				geocodeFailed = true
			}
			if err != nil || point == nil {
				log.Debug(ctx, "dropping ungeocodable offer",
					logger.String("chain", offer.Chain),
					logger.String("address", offer.Address),
					logger.Any("error", err))
				s.metrics.DroppedOffer()
				continue
			}
			offer.Geo = point
		}
		offers = append(offers, offer)
	}
	if ctx.Err() != nil {
		// geocoding was cut short; don't persist a partial list
		return offers
	}
	if geocodeFailed {
		// offers were lost to a geocoder error, not a missing match
		log.Warn(ctx, "geocoder errors while locating offers, result not cached")
		return offers
	}

	if err := s.cache.Write(ctx, req.cacheKey, itemcode, offers); err != nil {
		s.metrics.CacheWriteError()
		log.Warn(ctx, "price cache write failed", logger.Error(err))
	}
	return offers
}

func (s *StoreResolver) fetchWithRetry(ctx context.Context, locality, itemcode string) ([]domain.RawStoreOffer, error) {
	var err error
	for attempt := 0; attempt <= s.scrapeRetries; attempt++ {
		var offers []domain.RawStoreOffer
		offers, err = s.scraper.Fetch(ctx, itemcode, locality)
		if err == nil {
			return offers, nil
		}
		if !domain.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, err
}

// wrapTimeout marks err as a resolve timeout when the request deadline
// has passed.
func (s *StoreResolver) wrapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrResolveTimeout, err)
	}
	return err
}
