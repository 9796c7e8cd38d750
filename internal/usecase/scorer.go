package usecase

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/basketscout/backend/internal/domain"
)

const (
	earthRadiusKm = 6371.0

	minScore          = 1
	maxScore          = 100
	maxScoreIfMissing = 95

	midTierFactor = 0.7
	farTierFactor = 0.4
)

// ScoringConfig holds the weights and thresholds of the store ranking
type ScoringConfig struct {
	AvailabilityMax       float64
	PriceMax              float64
	DistanceMax           float64
	PenaltyPerMissingItem float64
	// Scale is the sigmoid spread around the median raw score.
	Scale float64

	NearKm float64
	MidKm  float64
	FarKm  float64
}

// DefaultScoringConfig returns the production weights.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		AvailabilityMax:       50,
		PriceMax:              30,
		DistanceMax:           20,
		PenaltyPerMissingItem: 10,
		Scale:                 10,
		NearKm:                1,
		MidKm:                 3,
		FarKm:                 5,
	}
}

// withDefaults fills zero values from DefaultScoringConfig.
func (c ScoringConfig) withDefaults() ScoringConfig {
	d := DefaultScoringConfig()
	if c.AvailabilityMax <= 0 {
		c.AvailabilityMax = d.AvailabilityMax
	}
	if c.PriceMax <= 0 {
		c.PriceMax = d.PriceMax
	}
	if c.DistanceMax <= 0 {
		c.DistanceMax = d.DistanceMax
	}
	if c.PenaltyPerMissingItem <= 0 {
		c.PenaltyPerMissingItem = d.PenaltyPerMissingItem
	}
	if c.Scale <= 0 {
		c.Scale = d.Scale
	}
	if c.NearKm <= 0 || c.MidKm < c.NearKm || c.FarKm < c.MidKm {
		c.NearKm, c.MidKm, c.FarKm = d.NearKm, d.MidKm, d.FarKm
	}
	return c
}

// Scorer ranks aggregated stores relative to the current candidate set
type Scorer struct {
	cfg ScoringConfig
}

// NewScorer creates a scorer; zero config fields take default values.
func NewScorer(cfg ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg.withDefaults()}
}

// ScoreInput is everything the scorer needs for one request
type ScoreInput struct {
	Stores         []domain.AggregatedStore
	Origin         domain.GeoPoint
	RequestedCount int
	// Quantity returns the requested quantity for an item code.
	Quantity func(itemcode string) int
}

// Score computes raw scores, normalizes them with a sigmoid centred on the
// candidates' median raw score and returns the stores best first. Ties keep
// input order.
func (s *Scorer) Score(in ScoreInput) []domain.ScoredStore {
	if len(in.Stores) == 0 {
		return []domain.ScoredStore{}
	}
	quantity := in.Quantity
	if quantity == nil {
		quantity = func(string) int { return 1 }
	}

	minPrice, maxPrice := priceBounds(in.Stores)

	scored := make([]domain.ScoredStore, len(in.Stores))
	raw := make([]float64, len(in.Stores))
	for i, store := range in.Stores {
		scored[i] = s.rawScore(store, in, minPrice, maxPrice, quantity)
		raw[i] = scored[i].RawScore
	}

	mid := median(raw)
	for i := range scored {
		scored[i].Score = s.normalize(scored[i].RawScore, mid, scored[i].ItemsMissing)
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	return scored
}

func (s *Scorer) rawScore(store domain.AggregatedStore, in ScoreInput, minPrice, maxPrice float64, quantity func(string) int) domain.ScoredStore {
	availability := float64(store.ItemsFound) / float64(max(in.RequestedCount, 1)) * s.cfg.AvailabilityMax

	priceScore := 0.0
	if len(store.Offers) > 0 {
		sum := 0.0
		for _, offer := range store.Offers {
			sum += offer.Price
		}
		avg := sum / float64(len(store.Offers))
		priceScore = s.cfg.PriceMax * (1 - (avg-minPrice)/math.Max(maxPrice-minPrice, 1))
	}

	distanceKm := Haversine(in.Origin, store.Geo)
	distanceScore := s.distanceScore(distanceKm)

	penalty := float64(-store.ItemsMissing) * s.cfg.PenaltyPerMissingItem

	total := decimal.Zero
	for _, offer := range store.Offers {
		line := decimal.NewFromFloat(offer.Price).Mul(decimal.NewFromInt(int64(quantity(offer.ItemCode))))
		total = total.Add(line)
	}

	return domain.ScoredStore{
		AggregatedStore: store,
		RawScore:        availability + priceScore + distanceScore + penalty,
		Breakdown: domain.ScoreBreakdown{
			Availability: int(math.Round(availability)),
			Price:        int(math.Round(priceScore)),
			Distance:     int(math.Round(distanceScore)),
			Penalty:      penalty,
		},
		TotalPrice: total.Round(2).InexactFloat64(),
		DistanceKm: math.Round(distanceKm*1000) / 1000,
	}
}

// distanceScore is a step function: full within near, 0.7 within mid,
// 0.4 within far, nothing beyond.
func (s *Scorer) distanceScore(km float64) float64 {
	switch {
	case km <= s.cfg.NearKm:
		return s.cfg.DistanceMax
	case km <= s.cfg.MidKm:
		return s.cfg.DistanceMax * midTierFactor
	case km <= s.cfg.FarKm:
		return s.cfg.DistanceMax * farTierFactor
	default:
		return 0
	}
}

func (s *Scorer) normalize(raw, mid float64, missing int) int {
	sig := 100 / (1 + math.Exp(-(raw-mid)/s.cfg.Scale))
	score := int(math.Round(sig))
	score = min(max(score, minScore), maxScore)
	if missing > 0 {
		score = min(score, maxScoreIfMissing)
	}
	return score
}

// priceBounds returns the lowest and highest price over every offer of
// every candidate store.
func priceBounds(stores []domain.AggregatedStore) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, store := range stores {
		for _, offer := range store.Offers {
			lo = math.Min(lo, offer.Price)
			hi = math.Max(hi, offer.Price)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b domain.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
