package postgres

import (
	"context"
	"fmt"

	"damdar-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type couponRepository struct {
	db *pgxpool.Pool
}

func NewCouponRepository(db *pgxpool.Pool) domain.CouponRepository {
	return &couponRepository{db: db}
}

const couponColumns = `id, code, discount_percent, min_price, max_price, valid_days, active, created_at`

func (r *couponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	minPrice, err := Float64ToNumeric(c.MinPrice)
	if err != nil {
		return fmt.Errorf("invalid min price: %w", err)
	}
	maxPrice, err := Float64ToNumeric(c.MaxPrice)
	if err != nil {
		return fmt.Errorf("invalid max price: %w", err)
	}

	q := queryer(ctx, r.db)
	row := q.QueryRow(ctx, `
		INSERT INTO coupons (code, discount_percent, min_price, max_price, valid_days, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		c.Code, c.DiscountPercent, minPrice, maxPrice, c.ValidDays, c.Active)

	var id pgtype.UUID
	var createdAt pgtype.Timestamptz
	if err := row.Scan(&id, &createdAt); err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	c.ID = uuid.UUID(id.Bytes)
	c.CreatedAt = createdAt.Time
	return nil
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	q := queryer(ctx, r.db)
	row := q.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	return scanCoupon(row)
}

func (r *couponRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	q := queryer(ctx, r.db)
	pgID := pgtype.UUID{Bytes: id, Valid: true}
	row := q.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, pgID)
	return scanCoupon(row)
}

func (r *couponRepository) List(ctx context.Context, limit, offset int) ([]domain.Coupon, error) {
	q := queryer(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT `+couponColumns+` FROM coupons
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var result []domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *couponRepository) Count(ctx context.Context) (int64, error) {
	q := queryer(ctx, r.db)
	var count int64
	err := q.QueryRow(ctx, `SELECT count(*) FROM coupons`).Scan(&count)
	return count, err
}

func (r *couponRepository) Update(ctx context.Context, c *domain.Coupon) error {
	minPrice, err := Float64ToNumeric(c.MinPrice)
	if err != nil {
		return fmt.Errorf("invalid min price: %w", err)
	}
	maxPrice, err := Float64ToNumeric(c.MaxPrice)
	if err != nil {
		return fmt.Errorf("invalid max price: %w", err)
	}

	q := queryer(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE coupons SET
			code = $2, discount_percent = $3, min_price = $4,
			max_price = $5, valid_days = $6, active = $7
		WHERE id = $1`,
		pgtype.UUID{Bytes: c.ID, Valid: true},
		c.Code, c.DiscountPercent, minPrice, maxPrice, c.ValidDays, c.Active)
	if err != nil {
		return fmt.Errorf("update coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("coupon not found")
	}
	return nil
}

func (r *couponRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q := queryer(ctx, r.db)
	_, err := q.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, pgtype.UUID{Bytes: id, Valid: true})
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (*domain.Coupon, error) {
	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
		minPrice  pgtype.Numeric
		maxPrice  pgtype.Numeric
		c         domain.Coupon
	)
	err := row.Scan(&id, &c.Code, &c.DiscountPercent, &minPrice, &maxPrice, &c.ValidDays, &c.Active, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("coupon not found")
		}
		return nil, fmt.Errorf("scan coupon: %w", err)
	}
	c.ID = uuid.UUID(id.Bytes)
	c.MinPrice = NumericToFloat64(minPrice)
	c.MaxPrice = NumericToFloat64(maxPrice)
	c.CreatedAt = createdAt.Time
	return &c, nil
}
