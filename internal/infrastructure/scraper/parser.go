package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/basketscout/backend/internal/domain"
)

// Row layout of the scraper output: chain, branch, address, unused,
// regular price, optional special price.
const (
	colChain = iota
	colBranch
	colAddress
	_
	colPrice
	colSpecialPrice

	minColumns = colPrice + 1
)

// output is the single JSON document the scraper prints to stdout
type output struct {
	Stores [][]string `json:"stores"`
}

// ParseOutput turns scraper stdout into offers. Rows that are too short or
// have no numeric price are skipped. Malformed JSON is domain.ErrScraperOutput;
// zero usable rows is domain.ErrNoOffers.
func ParseOutput(data []byte) ([]domain.RawStoreOffer, error) {
	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrScraperOutput, err)
	}

	offers := make([]domain.RawStoreOffer, 0, len(out.Stores))
	for _, row := range out.Stores {
		offer, ok := parseRow(row)
		if ok {
			offers = append(offers, offer)
		}
	}
	if len(offers) == 0 {
		return nil, fmt.Errorf("%w: %d rows, none usable", domain.ErrNoOffers, len(out.Stores))
	}
	return offers, nil
}

func parseRow(row []string) (domain.RawStoreOffer, bool) {
	if len(row) < minColumns {
		return domain.RawStoreOffer{}, false
	}

	raw := row[colPrice]
	if len(row) > colSpecialPrice && strings.TrimSpace(row[colSpecialPrice]) != "" {
		raw = row[colSpecialPrice]
	}
	price, err := parsePrice(raw)
	if err != nil {
		return domain.RawStoreOffer{}, false
	}

	return domain.RawStoreOffer{
		Chain:   strings.TrimSpace(row[colChain]),
		Branch:  strings.TrimSpace(row[colBranch]),
		Address: strings.TrimSpace(row[colAddress]),
		Price:   price,
	}, true
}

// parsePrice accepts "1.29", "1,29" and an optional trailing currency.
func parsePrice(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimRightFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != ','
	}))
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative price %q", raw)
	}
	return d.Round(2).InexactFloat64(), nil
}
