package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basketscout/backend/internal/domain"
	"github.com/basketscout/backend/pkg/logger"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS %s (
	address_key TEXT        NOT NULL,
	itemcode    TEXT        NOT NULL,
	offers      JSONB       NOT NULL,
	fetched_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (address_key, itemcode)
)`

// pgxDB is the subset of *pgxpool.Pool the cache needs.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresPriceCache keeps offer lists in a Postgres table keyed by
// (address_key, itemcode). Writes are atomic upserts so concurrent scrapes
// of the same item never interleave.
type PostgresPriceCache struct {
	db    pgxDB
	table string
	ttl   time.Duration
	now   func() time.Time
	log   logger.Logger
}

// OpenPool connects to Postgres. Set simpleProtocol when running behind
// PgBouncer in transaction mode.
func OpenPool(ctx context.Context, dsn string, maxConns int, simpleProtocol bool) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %v", domain.ErrCacheUnavailable, err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	if simpleProtocol {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", domain.ErrCacheUnavailable, err)
	}
	return pool, nil
}

// NewPostgresPriceCache wraps db. table defaults to "price_cache".
func NewPostgresPriceCache(db pgxDB, table string, ttl time.Duration) *PostgresPriceCache {
	if table == "" {
		table = "price_cache"
	}
	return &PostgresPriceCache{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
		ttl:   ttl,
		now:   time.Now,
		log:   logger.Named("pricecache"),
	}
}

// EnsureSchema creates the cache table if it does not exist.
func (c *PostgresPriceCache) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, fmt.Sprintf(createTableSQL, c.table)); err != nil {
		return fmt.Errorf("%w: create table: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Lookup returns fresh offer lists for itemcodes; codes without a fresh
// record are reported as missing, in request order.
func (c *PostgresPriceCache) Lookup(ctx context.Context, addressKey string, itemcodes []string) (domain.CacheLookup, error) {
	result := domain.CacheLookup{Found: make(map[string][]domain.RawStoreOffer)}
	if len(itemcodes) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(
		`SELECT itemcode, offers FROM %s WHERE address_key = $1 AND itemcode = ANY($2) AND fetched_at >= $3`,
		c.table)
	cutoff := c.now().Add(-c.ttl)

	rows, err := c.db.Query(ctx, query, addressKey, itemcodes, cutoff)
	if err != nil {
		return result, fmt.Errorf("%w: lookup: %v", domain.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		var raw []byte
		if err := rows.Scan(&code, &raw); err != nil {
			return result, fmt.Errorf("%w: scan: %v", domain.ErrCacheUnavailable, err)
		}
		var offers []domain.RawStoreOffer
		if err := json.Unmarshal(raw, &offers); err != nil {
			// counts as a miss; the next scrape overwrites it
			c.log.Warn(ctx, "unreadable price cache record",
				logger.String("addressKey", addressKey),
				logger.String("itemcode", code),
				logger.Error(err))
			continue
		}
		result.Found[code] = offers
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("%w: rows: %v", domain.ErrCacheUnavailable, err)
	}

	for _, code := range itemcodes {
		if _, ok := result.Found[code]; !ok {
			result.Missing = append(result.Missing, code)
		}
	}
	return result, nil
}

// Write upserts the record for (addressKey, itemcode).
func (c *PostgresPriceCache) Write(ctx context.Context, addressKey, itemcode string, offers []domain.RawStoreOffer) error {
	if offers == nil {
		offers = []domain.RawStoreOffer{}
	}
	payload, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("encode offers: %w", err)
	}

	stmt := fmt.Sprintf(`
INSERT INTO %s (address_key, itemcode, offers, fetched_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (address_key, itemcode)
DO UPDATE SET offers = EXCLUDED.offers, fetched_at = EXCLUDED.fetched_at`, c.table)

	if _, err := c.db.Exec(ctx, stmt, addressKey, itemcode, payload, c.now()); err != nil {
		return fmt.Errorf("%w: write: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}
