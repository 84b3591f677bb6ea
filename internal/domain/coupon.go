package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Coupon applies a percentage discount when the cart subtotal falls inside
// [MinPrice, MaxPrice]. ValidDays counts from CreatedAt to expiry.
// Invariant: MaxPrice >= MinPrice.
type Coupon struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	DiscountPercent float64   `json:"discountPercent"`
	MinPrice        float64   `json:"minPrice"`
	MaxPrice        float64   `json:"maxPrice"`
	ValidDays       int       `json:"validDays"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ExpiresAt derives the expiry instant from CreatedAt and ValidDays.
// A ValidDays of 0 means the coupon never expires.
func (c Coupon) ExpiresAt() (time.Time, bool) {
	if c.ValidDays <= 0 {
		return time.Time{}, false
	}
	return c.CreatedAt.AddDate(0, 0, c.ValidDays), true
}

// CouponRejectReason enumerates why a coupon did not apply. Rejection is a
// value consumed by the cart aggregator, never an exception-class error.
type CouponRejectReason string

const (
	CouponNotFound         CouponRejectReason = "not_found"
	CouponInactive         CouponRejectReason = "inactive"
	CouponSubtotalBelowMin CouponRejectReason = "subtotal_below_min"
	CouponSubtotalAboveMax CouponRejectReason = "subtotal_above_max"
	CouponExpired          CouponRejectReason = "expired"
)

type CouponRepository interface {
	Create(ctx context.Context, coupon *Coupon) error
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Coupon, error)
	List(ctx context.Context, limit, offset int) ([]Coupon, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, coupon *Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
}
