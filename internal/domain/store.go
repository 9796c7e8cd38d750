package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GeoPoint is a WGS84 coordinate pair
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RawStoreOffer is one store's price for one item, as returned by the
// scraper or stored in the price cache.
type RawStoreOffer struct {
	StoreID string    `json:"storeId,omitempty"`
	Chain   string    `json:"chain"`
	Branch  string    `json:"branch,omitempty"`
	Address string    `json:"address"`
	Price   float64   `json:"price"`
	Geo     *GeoPoint `json:"geo,omitempty"`
}

// StoreKey identifies the physical store an offer belongs to.
// An explicit store id wins; otherwise chain and address are combined.
func (o RawStoreOffer) StoreKey() string {
	if id := strings.TrimSpace(o.StoreID); id != "" {
		return id
	}
	chain := strings.ToLower(strings.TrimSpace(o.Chain))
	address := strings.ToLower(strings.TrimSpace(o.Address))
	return chain + "|" + address
}

// Source tells where an item's offers came from
type Source int

const (
	SourceCache Source = iota + 1
	SourceScrape
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceScrape:
		return "scrape"
	default:
		return "unknown"
	}
}

// MarshalText encodes the source as "cache" or "scrape".
func (s Source) MarshalText() ([]byte, error) {
	switch s {
	case SourceCache, SourceScrape:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid source: %d", int(s))
	}
}

// UnmarshalText decodes "cache" or "scrape".
func (s *Source) UnmarshalText(text []byte) error {
	switch string(text) {
	case "cache":
		*s = SourceCache
	case "scrape":
		*s = SourceScrape
	default:
		return fmt.Errorf("invalid source: %q", string(text))
	}
	return nil
}

// ItemResult is the offer list resolved for one requested item code
type ItemResult struct {
	ItemCode string          `json:"itemcode"`
	Stores   []RawStoreOffer `json:"stores"`
	Source   Source          `json:"source"`
}

// MarshalJSON keeps an empty offer list as [] instead of null.
func (r ItemResult) MarshalJSON() ([]byte, error) {
	type alias ItemResult
	if r.Stores == nil {
		r.Stores = []RawStoreOffer{}
	}
	return json.Marshal(alias(r))
}

// ItemOffer is a single item price inside an aggregated store
type ItemOffer struct {
	ItemCode string  `json:"itemcode"`
	Price    float64 `json:"price"`
}

// AggregatedStore consolidates the offers of one physical store across all
// requested items.
type AggregatedStore struct {
	StoreKey     string            `json:"storeKey"`
	StoreID      string            `json:"storeId,omitempty"`
	Chain        string            `json:"chain"`
	Branch       string            `json:"branch,omitempty"`
	Address      string            `json:"address"`
	Geo          GeoPoint          `json:"geo"`
	Offers       []ItemOffer       `json:"offers"`
	ItemsFound   int               `json:"itemsFound"`
	ItemsMissing int               `json:"itemsMissing"`
	Sources      map[string]Source `json:"sources"`
}

// HasItem reports whether the store already carries an offer for itemcode.
func (s *AggregatedStore) HasItem(itemcode string) bool {
	for _, offer := range s.Offers {
		if offer.ItemCode == itemcode {
			return true
		}
	}
	return false
}

// ScoreBreakdown holds the score components of a store
type ScoreBreakdown struct {
	Availability int     `json:"availability"`
	Price        int     `json:"price"`
	Distance     int     `json:"distance"`
	Penalty      float64 `json:"penalty"`
}

// ScoredStore is an AggregatedStore ranked for the current request.
// It is never persisted.
type ScoredStore struct {
	AggregatedStore
	Score      int            `json:"score"`
	RawScore   float64        `json:"rawScore"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	TotalPrice float64        `json:"totalPrice"`
	DistanceKm float64        `json:"distanceKm"`
}
