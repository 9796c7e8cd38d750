package domain

import "context"

// Geocoder translates between coordinates and free-text addresses
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error)
	// ForwardGeocode returns nil when the address cannot be resolved.
	ForwardGeocode(ctx context.Context, address string) (*GeoPoint, error)
}

// PriceCache stores per-item offer lists keyed by address and item code
type PriceCache interface {
	Lookup(ctx context.Context, addressKey string, itemcodes []string) (CacheLookup, error)
	Write(ctx context.Context, addressKey, itemcode string, offers []RawStoreOffer) error
}

// Scraper fetches the current offers for one item around a locality
type Scraper interface {
	Fetch(ctx context.Context, itemcode, locality string) ([]RawStoreOffer, error)
}
