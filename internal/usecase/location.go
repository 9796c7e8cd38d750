package usecase

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/basketscout/backend/internal/domain"
)

// ParseAddressKey reads the client's "<lat>,<lon>" location.
func ParseAddressKey(key string) (domain.GeoPoint, error) {
	parts := strings.Split(key, ",")
	if len(parts) != 2 {
		return domain.GeoPoint{}, fmt.Errorf("%w: %q is not \"<lat>,<lon>\"", domain.ErrInvalidAddressKey, key)
	}

	lat, err := parseCoordinate(parts[0], 90)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: latitude: %v", domain.ErrInvalidAddressKey, err)
	}
	lon, err := parseCoordinate(parts[1], 180)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: longitude: %v", domain.ErrInvalidAddressKey, err)
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, nil
}

func parseCoordinate(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return 0, fmt.Errorf("%v out of range", v)
	}
	return v, nil
}
