package geocoding

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/basketscout/backend/internal/domain"
)

// reverseResponse is the subset of a /reverse reply we use
type reverseResponse struct {
	Error   string         `json:"error,omitempty"`
	Address reverseAddress `json:"address"`
}

type reverseAddress struct {
	Road         string `json:"road"`
	Pedestrian   string `json:"pedestrian"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
}

// searchResult is one /search hit; coordinates arrive as strings
type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// mapAddress extracts street and city, falling back across the settlement
// fields Nominatim uses for smaller places.
func mapAddress(resp reverseResponse) (domain.Address, error) {
	if resp.Error != "" {
		return domain.Address{}, fmt.Errorf("%w: %s", domain.ErrIncompleteAddress, resp.Error)
	}

	a := resp.Address
	addr := domain.Address{
		Street: firstNonEmpty(a.Road, a.Pedestrian),
		City:   firstNonEmpty(a.City, a.Town, a.Village, a.Municipality),
	}
	if addr.Street == "" || addr.City == "" {
		return domain.Address{}, fmt.Errorf("%w: street=%q city=%q", domain.ErrIncompleteAddress, addr.Street, addr.City)
	}
	return addr, nil
}

func (r searchResult) point() (*domain.GeoPoint, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad latitude %q", domain.ErrGeocoderFailure, r.Lat)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad longitude %q", domain.ErrGeocoderFailure, r.Lon)
	}
	return &domain.GeoPoint{Lat: lat, Lon: lon}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
