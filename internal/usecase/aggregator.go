package usecase

import "github.com/basketscout/backend/internal/domain"

// Aggregate merges per-item offer lists into one record per physical store.
//
// Offers without coordinates are skipped. Stores are keyed by
// RawStoreOffer.StoreKey and appear in first-discovery order; for a given
// store and item the first offer seen wins. ItemsFound and ItemsMissing are
// computed against the deduplicated requested set, so they always sum to
// its size.
func Aggregate(results []domain.ItemResult, requested []string) []domain.AggregatedStore {
	wanted := make(map[string]bool, len(requested))
	for _, code := range requested {
		wanted[code] = true
	}

	index := make(map[string]int)
	stores := make([]domain.AggregatedStore, 0)

	for _, result := range results {
		for _, offer := range result.Stores {
			if offer.Geo == nil {
				continue
			}

			key := offer.StoreKey()
			i, seen := index[key]
			if !seen {
				i = len(stores)
				index[key] = i
				stores = append(stores, newAggregatedStore(key, offer))
			}

			store := &stores[i]
			if store.HasItem(result.ItemCode) {
				continue
			}
			store.Offers = append(store.Offers, domain.ItemOffer{
				ItemCode: result.ItemCode,
				Price:    offer.Price,
			})
			store.Sources[result.ItemCode] = result.Source
		}
	}

	for i := range stores {
		found := 0
		for _, offer := range stores[i].Offers {
			if wanted[offer.ItemCode] {
				found++
			}
		}
		stores[i].ItemsFound = found
		stores[i].ItemsMissing = len(wanted) - found
	}

	return stores
}

func newAggregatedStore(key string, offer domain.RawStoreOffer) domain.AggregatedStore {
	return domain.AggregatedStore{
		StoreKey: key,
		StoreID:  offer.StoreID,
		Chain:    offer.Chain,
		Branch:   offer.Branch,
		Address:  offer.Address,
		Geo:      *offer.Geo,
		Offers:   make([]domain.ItemOffer, 0, 4),
		Sources:  make(map[string]domain.Source),
	}
}
