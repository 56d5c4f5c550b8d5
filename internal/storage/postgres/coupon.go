package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	listCouponsSQL = `SELECT code, rate FROM coupons`

	upsertCouponSQL = `INSERT INTO coupons (code, rate) VALUES (UPPER($1), $2)
		ON CONFLICT (code) DO UPDATE SET rate = EXCLUDED.rate`
)

// CouponRepository reads and writes the coupons table. The server loads
// all rates once at startup into an in-memory coupon table; the ingest
// tool is the only writer.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// ListRates returns all coupon codes with their discount rates.
func (r *CouponRepository) ListRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	defer rows.Close()

	rates := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			code string
			rate decimal.Decimal
		)
		if err := rows.Scan(&code, &rate); err != nil {
			return nil, errors.Wrap(err, "scan coupon")
		}
		rates[code] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read coupons")
	}
	return rates, nil
}

// UpsertBatch writes the given code-to-rate mapping in a single batch.
func (r *CouponRepository) UpsertBatch(ctx context.Context, rates map[string]decimal.Decimal) error {
	batch := &pgx.Batch{}
	for code, rate := range rates {
		batch.Queue(upsertCouponSQL, code, rate)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rates {
		if _, err := results.Exec(); err != nil {
			return errors.Wrap(err, "upsert coupon")
		}
	}
	return nil
}
