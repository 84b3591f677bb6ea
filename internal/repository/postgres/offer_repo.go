package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"damdar-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// offerRepository stores one configuration row per offer mode (mode is the
// primary key, which enforces the one-document-per-mode invariant) plus a
// per-product item table for the three item-carrying modes.
type offerRepository struct {
	db *pgxpool.Pool
}

func NewOfferRepository(db *pgxpool.Pool) domain.OfferRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) Snapshot(ctx context.Context) (*domain.OfferCatalog, error) {
	q := queryer(ctx, r.db)
	catalog := &domain.OfferCatalog{}

	rows, err := q.Query(ctx, `
		SELECT mode, is_active, percentage, minimum_product_count, attempts_allowed
		FROM offers`)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			mode     string
			isActive bool
			pct      float64
			minCount int
			attempts int
		)
		if err := rows.Scan(&mode, &isActive, &pct, &minCount, &attempts); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		switch domain.OfferMode(mode) {
		case domain.OfferModeFlat:
			catalog.Flat = &domain.FlatOffer{
				Percentage:          pct,
				MinimumProductCount: minCount,
				IsActive:            isActive,
			}
		case domain.OfferModeNegotiate:
			catalog.Negotiate = &domain.NegotiateOffer{
				AttemptsAllowed: attempts,
				IsActive:        isActive,
			}
		case domain.OfferModeDiscount:
			catalog.Discount = &domain.DiscountOffer{IsActive: isActive}
		case domain.OfferModeMRP:
			catalog.MRP = &domain.MRPOffer{IsActive: isActive}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, q, catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (r *offerRepository) loadItems(ctx context.Context, q DBTX, catalog *domain.OfferCatalog) error {
	rows, err := q.Query(ctx, `
		SELECT mode, product_id, success_percent, failure_percent,
		       discount_percent, amount_off, active
		FROM offer_items
		ORDER BY product_id`)
	if err != nil {
		return fmt.Errorf("query offer items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			mode       string
			productID  string
			successPct float64
			failurePct float64
			discount   float64
			amountOff  float64
			active     bool
		)
		if err := rows.Scan(&mode, &productID, &successPct, &failurePct, &discount, &amountOff, &active); err != nil {
			return fmt.Errorf("scan offer item: %w", err)
		}
		switch domain.OfferMode(mode) {
		case domain.OfferModeNegotiate:
			if catalog.Negotiate != nil {
				catalog.Negotiate.Items = append(catalog.Negotiate.Items, domain.NegotiationItem{
					ProductID:      productID,
					SuccessPercent: successPct,
					FailurePercent: failurePct,
					Active:         active,
				})
			}
		case domain.OfferModeDiscount:
			if catalog.Discount != nil {
				catalog.Discount.Items = append(catalog.Discount.Items, domain.DiscountItem{
					ProductID: productID,
					Percent:   discount,
					Active:    active,
				})
			}
		case domain.OfferModeMRP:
			if catalog.MRP != nil {
				catalog.MRP.Items = append(catalog.MRP.Items, domain.MRPItem{
					ProductID: productID,
					AmountOff: amountOff,
					Active:    active,
				})
			}
		}
	}
	return rows.Err()
}

func (r *offerRepository) upsertOfferRow(ctx context.Context, mode domain.OfferMode, isActive bool, pct float64, minCount, attempts int) error {
	q := queryer(ctx, r.db)
	_, err := q.Exec(ctx, `
		INSERT INTO offers (mode, is_active, percentage, minimum_product_count, attempts_allowed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (mode) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			percentage = EXCLUDED.percentage,
			minimum_product_count = EXCLUDED.minimum_product_count,
			attempts_allowed = EXCLUDED.attempts_allowed,
			updated_at = EXCLUDED.updated_at`,
		string(mode), isActive, pct, minCount, attempts, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert offer %s: %w", mode, err)
	}
	return nil
}

func (r *offerRepository) replaceItems(ctx context.Context, mode domain.OfferMode, insert func(q DBTX) error) error {
	q := queryer(ctx, r.db)
	if _, err := q.Exec(ctx, `DELETE FROM offer_items WHERE mode = $1`, string(mode)); err != nil {
		return fmt.Errorf("clear offer items %s: %w", mode, err)
	}
	return insert(q)
}

func (r *offerRepository) UpsertFlatOffer(ctx context.Context, offer *domain.FlatOffer) error {
	return r.upsertOfferRow(ctx, domain.OfferModeFlat, offer.IsActive, offer.Percentage, offer.MinimumProductCount, 0)
}

func (r *offerRepository) UpsertNegotiateOffer(ctx context.Context, offer *domain.NegotiateOffer) error {
	if err := r.upsertOfferRow(ctx, domain.OfferModeNegotiate, offer.IsActive, 0, 0, offer.AttemptsAllowed); err != nil {
		return err
	}
	return r.replaceItems(ctx, domain.OfferModeNegotiate, func(q DBTX) error {
		for _, item := range offer.Items {
			_, err := q.Exec(ctx, `
				INSERT INTO offer_items (mode, product_id, success_percent, failure_percent, discount_percent, amount_off, active)
				VALUES ($1, $2, $3, $4, 0, 0, $5)`,
				string(domain.OfferModeNegotiate), item.ProductID, item.SuccessPercent, item.FailurePercent, item.Active)
			if err != nil {
				return fmt.Errorf("insert negotiation item %s: %w", item.ProductID, err)
			}
		}
		return nil
	})
}

func (r *offerRepository) UpsertDiscountOffer(ctx context.Context, offer *domain.DiscountOffer) error {
	if err := r.upsertOfferRow(ctx, domain.OfferModeDiscount, offer.IsActive, 0, 0, 0); err != nil {
		return err
	}
	return r.replaceItems(ctx, domain.OfferModeDiscount, func(q DBTX) error {
		for _, item := range offer.Items {
			_, err := q.Exec(ctx, `
				INSERT INTO offer_items (mode, product_id, success_percent, failure_percent, discount_percent, amount_off, active)
				VALUES ($1, $2, 0, 0, $3, 0, $4)`,
				string(domain.OfferModeDiscount), item.ProductID, item.Percent, item.Active)
			if err != nil {
				return fmt.Errorf("insert discount item %s: %w", item.ProductID, err)
			}
		}
		return nil
	})
}

func (r *offerRepository) UpsertMRPOffer(ctx context.Context, offer *domain.MRPOffer) error {
	if err := r.upsertOfferRow(ctx, domain.OfferModeMRP, offer.IsActive, 0, 0, 0); err != nil {
		return err
	}
	return r.replaceItems(ctx, domain.OfferModeMRP, func(q DBTX) error {
		for _, item := range offer.Items {
			_, err := q.Exec(ctx, `
				INSERT INTO offer_items (mode, product_id, success_percent, failure_percent, discount_percent, amount_off, active)
				VALUES ($1, $2, 0, 0, 0, $3, $4)`,
				string(domain.OfferModeMRP), item.ProductID, item.AmountOff, item.Active)
			if err != nil {
				return fmt.Errorf("insert mrp item %s: %w", item.ProductID, err)
			}
		}
		return nil
	})
}

func (r *offerRepository) SetItemActive(ctx context.Context, mode domain.OfferMode, productID string, active bool) error {
	q := queryer(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE offer_items SET active = $1 WHERE mode = $2 AND product_id = $3`,
		active, string(mode), productID)
	if err != nil {
		return fmt.Errorf("toggle offer item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOfferNotFound
	}
	return nil
}

// isNoRows normalizes pgx's not-found error.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
