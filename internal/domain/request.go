package domain

import "strings"

// Address is a reverse-geocoded locality with the parts needed to key
// the price cache.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
}

// Key returns the normalized cache key for the address.
func (a Address) Key() string {
	street := strings.ToLower(strings.Join(strings.Fields(a.Street), " "))
	city := strings.ToLower(strings.Join(strings.Fields(a.City), " "))
	return street + ", " + city
}

// Locality returns the human-readable locality passed to the scraper.
func (a Address) Locality() string {
	return strings.TrimSpace(a.Street) + ", " + strings.TrimSpace(a.City)
}

// ResolveRequest asks for the stores near a location carrying the given items
type ResolveRequest struct {
	// AddressKey is "<lat>,<lon>" as sent by the client.
	AddressKey string         `json:"addressKey" binding:"required"`
	ItemCodes  []string       `json:"itemcodes" binding:"required"`
	Quantities map[string]int `json:"quantities,omitempty"`
}

// Quantity returns the requested quantity for itemcode, defaulting to 1.
func (r *ResolveRequest) Quantity(itemcode string) int {
	if q, ok := r.Quantities[itemcode]; ok && q > 0 {
		return q
	}
	return 1
}

// RequestedItems returns the item codes without blanks or duplicates,
// in request order.
func (r *ResolveRequest) RequestedItems() []string {
	seen := make(map[string]bool, len(r.ItemCodes))
	items := make([]string, 0, len(r.ItemCodes))
	for _, code := range r.ItemCodes {
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		items = append(items, code)
	}
	return items
}

// ResolveResponse is the per-item offer listing plus the ranked stores
type ResolveResponse struct {
	Items        []ItemResult  `json:"items"`
	ScoredStores []ScoredStore `json:"scoredStores"`
}

// CacheLookup splits requested items into fresh cached offers and misses
type CacheLookup struct {
	Found   map[string][]RawStoreOffer
	Missing []string
}
