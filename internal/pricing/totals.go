package pricing

import (
	"time"

	"damdar-backend/internal/domain"
)

// FeeConfig holds the externally configured fee knobs.
type FeeConfig struct {
	DeliveryBaseFee      float64
	DeliveryPerKmRate    float64
	FreeDeliveryRadiusKm float64
	PlatformFeePercent   float64
	TaxPercent           float64
}

// DeliveryFee computes the distance-based fee. Inside the free-delivery
// radius the fee is waived entirely.
func (f FeeConfig) DeliveryFee(distanceKm float64) float64 {
	if distanceKm < f.FreeDeliveryRadiusKm {
		return 0
	}
	extra := distanceKm - f.FreeDeliveryRadiusKm
	if extra < 0 {
		extra = 0
	}
	return RoundMinor(f.DeliveryBaseFee + f.DeliveryPerKmRate*extra)
}

// Recompute folds all line prices, the coupon, the delivery fee, the
// platform fee and tax into the cart's pricing fields and returns the
// updated cart. It is a pure function: identical inputs always yield
// identical totals, and permuting the line order does not change them.
// Persistence is the caller's responsibility.
//
// Computation order is fixed because later steps depend on earlier totals:
// subtotal, then coupon discount, then delivery fee, then platform fee and
// tax on (subtotal - couponDiscount), then the final total floored at 0.
func Recompute(cart domain.Cart, catalog domain.OfferCatalog, coupon *domain.Coupon, fees FeeConfig, now time.Time) (domain.Cart, CouponResult, error) {
	// Copy the lines so the caller's cart is left untouched.
	cart.Lines = append([]domain.CartLineItem(nil), cart.Lines...)

	var subtotal float64
	for i := range cart.Lines {
		price, err := ResolveLineOrFallback(cart.Lines[i], catalog)
		if err != nil {
			return cart, CouponResult{}, err
		}
		cart.Lines[i].LineTotal = price.LineTotal
		subtotal += price.LineTotal
	}
	cart.Subtotal = RoundMinor(subtotal)

	couponRes := CouponResult{Reason: domain.CouponNotFound}
	cart.CouponDiscount = 0
	if cart.CouponCode != "" {
		couponRes = ValidateCoupon(coupon, cart.Subtotal, now)
		if couponRes.OK {
			cart.CouponDiscount = RoundMinor(cart.Subtotal * couponRes.DiscountPercent / 100)
		}
	}

	cart.DeliveryFee = fees.DeliveryFee(cart.DistanceKm)

	discounted := cart.Subtotal - cart.CouponDiscount
	cart.PlatformFee = RoundMinor(discounted * fees.PlatformFeePercent / 100)
	cart.Tax = RoundMinor(discounted * fees.TaxPercent / 100)

	total := discounted + cart.DeliveryFee + cart.PlatformFee + cart.Tax
	if total < 0 {
		total = 0
	}
	cart.Total = RoundMinor(total)

	return cart, couponRes, nil
}
