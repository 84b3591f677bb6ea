package postgres

import (
	"context"
	"fmt"
	"time"

	"damdar-backend/internal/domain"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
)

type cartRepository struct {
	db *pgxpool.Pool
}

func NewCartRepository(db *pgxpool.Pool) domain.CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	q := queryer(ctx, r.db)
	var cart domain.Cart
	err := q.QueryRow(ctx, `
		SELECT id, user_id, coupon_code, distance_km, subtotal, coupon_discount,
		       delivery_fee, platform_fee, tax, total, status, last_updated, created_at
		FROM carts
		WHERE user_id = $1 AND status = $2`,
		userID, domain.CartStatusActive).Scan(
		&cart.ID, &cart.UserID, &cart.CouponCode, &cart.DistanceKm,
		&cart.Subtotal, &cart.CouponDiscount, &cart.DeliveryFee,
		&cart.PlatformFee, &cart.Tax, &cart.Total, &cart.Status,
		&cart.LastUpdated, &cart.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	lines, err := r.loadLines(ctx, q, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Lines = lines
	return &cart, nil
}

func (r *cartRepository) loadLines(ctx context.Context, q DBTX, cartID string) ([]domain.CartLineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, cart_id, product_id, quantity, unit_price, offer_mode, negotiation, line_total
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY created_at`, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLineItem
	for rows.Next() {
		var (
			line            domain.CartLineItem
			mode            string
			negotiationJSON []byte
		)
		if err := rows.Scan(&line.ID, &line.CartID, &line.ProductID, &line.Quantity,
			&line.UnitPrice, &mode, &negotiationJSON, &line.LineTotal); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		line.Selected.Mode = domain.OfferMode(mode)
		if len(negotiationJSON) > 0 {
			if err := json.Unmarshal(negotiationJSON, &line.Selected.Negotiation); err != nil {
				return nil, fmt.Errorf("decode negotiation state: %w", err)
			}
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *cartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	q := queryer(ctx, r.db)
	now := time.Now().UTC()
	_, err := q.Exec(ctx, `
		INSERT INTO carts (id, user_id, status, last_updated, created_at)
		VALUES ($1, $2, $3, $4, $4)`,
		cart.ID, cart.UserID, domain.CartStatusActive, now)
	if err != nil {
		return fmt.Errorf("create cart: %w", err)
	}
	cart.Status = domain.CartStatusActive
	cart.LastUpdated = now
	cart.CreatedAt = now
	return nil
}

func (r *cartRepository) UpsertLine(ctx context.Context, line *domain.CartLineItem) error {
	negotiationJSON, err := json.Marshal(line.Selected.Negotiation)
	if err != nil {
		return fmt.Errorf("encode negotiation state: %w", err)
	}

	q := queryer(ctx, r.db)
	_, err = q.Exec(ctx, `
		INSERT INTO cart_lines (id, cart_id, product_id, quantity, unit_price,
		                        offer_mode, negotiation, last_attempt, line_total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (cart_id, product_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			unit_price = EXCLUDED.unit_price,
			offer_mode = EXCLUDED.offer_mode,
			negotiation = EXCLUDED.negotiation,
			last_attempt = EXCLUDED.last_attempt,
			line_total = EXCLUDED.line_total`,
		line.ID, line.CartID, line.ProductID, line.Quantity, line.UnitPrice,
		string(line.Selected.Mode), negotiationJSON,
		line.Selected.Negotiation.LastAttempt(), line.LineTotal)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (r *cartRepository) RemoveLine(ctx context.Context, cartID, lineID string) error {
	q := queryer(ctx, r.db)
	tag, err := q.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1 AND id = $2`, cartID, lineID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLineNotFound
	}
	return nil
}

// SaveTotals writes the recomputed pricing fields and every line total.
// The per-line writes stay in the same transaction as the cart row when the
// caller runs inside the TransactionManager.
func (r *cartRepository) SaveTotals(ctx context.Context, cart *domain.Cart) error {
	q := queryer(ctx, r.db)
	_, err := q.Exec(ctx, `
		UPDATE carts SET
			coupon_code = $2, distance_km = $3, subtotal = $4,
			coupon_discount = $5, delivery_fee = $6, platform_fee = $7,
			tax = $8, total = $9, last_updated = $10
		WHERE id = $1`,
		cart.ID, cart.CouponCode, cart.DistanceKm, cart.Subtotal,
		cart.CouponDiscount, cart.DeliveryFee, cart.PlatformFee,
		cart.Tax, cart.Total, cart.LastUpdated)
	if err != nil {
		return fmt.Errorf("save cart totals: %w", err)
	}

	for i := range cart.Lines {
		line := &cart.Lines[i]
		if _, err := q.Exec(ctx, `
			UPDATE cart_lines SET line_total = $2 WHERE id = $1`,
			line.ID, line.LineTotal); err != nil {
			return fmt.Errorf("save line total %s: %w", line.ID, err)
		}
	}
	return nil
}

// UpdateLineNegotiation is the mandatory lock boundary for the negotiation
// protocol: the row only updates when the stored last attempt number still
// matches, so two concurrent attempts cannot both advance from the same
// state.
func (r *cartRepository) UpdateLineNegotiation(ctx context.Context, lineID string, expectedLastAttempt int, state domain.Negotiation) error {
	negotiationJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode negotiation state: %w", err)
	}

	q := queryer(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE cart_lines SET negotiation = $2, last_attempt = $3
		WHERE id = $1 AND last_attempt = $4`,
		lineID, negotiationJSON, state.LastAttempt(), expectedLastAttempt)
	if err != nil {
		return fmt.Errorf("update negotiation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentNegotiation
	}
	return nil
}

func (r *cartRepository) UpdateStatus(ctx context.Context, cartID, status string) error {
	q := queryer(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE carts SET status = $2, last_updated = now() WHERE id = $1`,
		cartID, status)
	if err != nil {
		return fmt.Errorf("update cart status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

// MarkAbandonedBefore implements the retention sweep: active carts whose
// last activity predates the cutoff flip to abandoned.
func (r *cartRepository) MarkAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := queryer(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE carts SET status = $1
		WHERE status = $2 AND last_updated < $3`,
		domain.CartStatusAbandoned, domain.CartStatusActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned carts: %w", err)
	}
	return tag.RowsAffected(), nil
}
