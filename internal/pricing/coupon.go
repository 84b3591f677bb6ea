package pricing

import (
	"time"

	"damdar-backend/internal/domain"
)

// CouponResult is the validator's verdict. A rejected coupon is a value,
// not an error: the aggregator applies zero discount and the reason is
// surfaced to the caller.
type CouponResult struct {
	OK              bool                      `json:"ok"`
	DiscountPercent float64                   `json:"discountPercent,omitempty"`
	Reason          domain.CouponRejectReason `json:"reason,omitempty"`
}

// ValidateCoupon checks a coupon against its price window and expiry. A nil
// coupon means the code did not resolve (NotFound). Validation is
// independent of any offer mode on the cart lines.
func ValidateCoupon(coupon *domain.Coupon, subtotal float64, now time.Time) CouponResult {
	if coupon == nil {
		return CouponResult{Reason: domain.CouponNotFound}
	}
	if !coupon.Active {
		return CouponResult{Reason: domain.CouponInactive}
	}
	if expiry, ok := coupon.ExpiresAt(); ok && now.After(expiry) {
		return CouponResult{Reason: domain.CouponExpired}
	}
	if subtotal < coupon.MinPrice {
		return CouponResult{Reason: domain.CouponSubtotalBelowMin}
	}
	if coupon.MaxPrice > 0 && subtotal > coupon.MaxPrice {
		return CouponResult{Reason: domain.CouponSubtotalAboveMax}
	}
	return CouponResult{OK: true, DiscountPercent: coupon.DiscountPercent}
}
