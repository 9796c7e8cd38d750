package usecase

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/basketscout/backend/internal/domain"
)

// candidateEnv is the variable set a candidate filter expression sees
type candidateEnv struct {
	Chain        string  `expr:"chain"`
	Address      string  `expr:"address"`
	DistanceKm   float64 `expr:"distanceKm"`
	ItemsFound   int     `expr:"itemsFound"`
	ItemsMissing int     `expr:"itemsMissing"`
	Requested    int     `expr:"requested"`
}

// CandidateFilter decides which aggregated stores enter scoring, e.g.
// `distanceKm <= 10 && itemsFound >= requested / 2`.
type CandidateFilter struct {
	source  string
	program *vm.Program
}

// CompileCandidateFilter compiles source. An empty source yields a nil
// filter that keeps every store.
func CompileCandidateFilter(source string) (*CandidateFilter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(candidateEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile candidate filter %q: %w", source, err)
	}
	return &CandidateFilter{source: source, program: program}, nil
}

// String returns the filter expression.
func (f *CandidateFilter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Apply returns the stores the expression accepts, keeping their order.
func (f *CandidateFilter) Apply(stores []domain.AggregatedStore, origin domain.GeoPoint, requested int) ([]domain.AggregatedStore, error) {
	if f == nil {
		return stores, nil
	}

	kept := make([]domain.AggregatedStore, 0, len(stores))
	for _, store := range stores {
		env := candidateEnv{
			Chain:        store.Chain,
			Address:      store.Address,
			DistanceKm:   Haversine(origin, store.Geo),
			ItemsFound:   store.ItemsFound,
			ItemsMissing: store.ItemsMissing,
			Requested:    requested,
		}
		out, err := expr.Run(f.program, env)
		if err != nil {
			return nil, fmt.Errorf("run candidate filter on %s: %w", store.StoreKey, err)
		}
		if keep, _ := out.(bool); keep {
			kept = append(kept, store)
		}
	}
	return kept, nil
}
