package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"damdar-backend/internal/domain"
)

var testFees = FeeConfig{
	DeliveryBaseFee:      40,
	DeliveryPerKmRate:    8,
	FreeDeliveryRadiusKm: 3,
	PlatformFeePercent:   2,
	TaxPercent:           5,
}

func testNow() time.Time {
	return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
}

func flatCart() domain.Cart {
	return domain.Cart{
		ID:     "cart-1",
		UserID: "user-1",
		Status: domain.CartStatusActive,
		Lines: []domain.CartLineItem{
			{
				ID: "line-1", ProductID: "p-1", Quantity: 3, UnitPrice: 100,
				Selected: domain.OfferSelection{Mode: domain.OfferModeFlat},
			},
		},
	}
}

func TestRecompute_FlatOfferScenario(t *testing.T) {
	cart, _, err := Recompute(flatCart(), testCatalog(), nil, testFees, testNow())
	require.NoError(t, err)
	// 100 * 0.9 * 3
	assert.Equal(t, 270.0, cart.Lines[0].LineTotal)
	assert.Equal(t, 270.0, cart.Subtotal)
	assert.Equal(t, 0.0, cart.CouponDiscount)
}

func TestRecompute_CouponScenario(t *testing.T) {
	c := flatCart()
	c.CouponCode = "SAVE10"
	coupon := &domain.Coupon{
		Code: "SAVE10", DiscountPercent: 10, MinPrice: 200, MaxPrice: 1000,
		Active: true, CreatedAt: testNow().AddDate(0, 0, -1), ValidDays: 30,
	}
	cart, res, err := Recompute(c, testCatalog(), coupon, testFees, testNow())
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, 270.0, cart.Subtotal)
	assert.Equal(t, 27.0, cart.CouponDiscount)
	// total = 270 - 27 + deliveryFee + platformFee + tax
	expected := 270.0 - 27.0 + cart.DeliveryFee + cart.PlatformFee + cart.Tax
	assert.Equal(t, RoundMinor(expected), cart.Total)
}

func TestRecompute_CouponOutsideWindowIsNoop(t *testing.T) {
	c := flatCart()
	c.CouponCode = "SAVE10"
	coupon := &domain.Coupon{
		Code: "SAVE10", DiscountPercent: 10, MinPrice: 500, MaxPrice: 1000,
		Active: true, CreatedAt: testNow(), ValidDays: 30,
	}
	cart, res, err := Recompute(c, testCatalog(), coupon, testFees, testNow())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, domain.CouponSubtotalBelowMin, res.Reason)
	assert.Equal(t, 0.0, cart.CouponDiscount)
	// Cart still finalizes with a deterministic total.
	assert.Greater(t, cart.Total, 0.0)
}

func TestRecompute_DeliveryFeeWaivedInsideRadius(t *testing.T) {
	c := flatCart()
	c.DistanceKm = 2.5
	cart, _, err := Recompute(c, testCatalog(), nil, testFees, testNow())
	require.NoError(t, err)
	assert.Equal(t, 0.0, cart.DeliveryFee)
}

func TestRecompute_DeliveryFeeBeyondRadius(t *testing.T) {
	c := flatCart()
	c.DistanceKm = 7 // 40 + 8*(7-3) = 72
	cart, _, err := Recompute(c, testCatalog(), nil, testFees, testNow())
	require.NoError(t, err)
	assert.Equal(t, 72.0, cart.DeliveryFee)
}

func TestRecompute_PlatformFeeAndTaxOnDiscountedSubtotal(t *testing.T) {
	c := flatCart()
	c.CouponCode = "SAVE10"
	coupon := &domain.Coupon{
		Code: "SAVE10", DiscountPercent: 10, MinPrice: 0, MaxPrice: 1000,
		Active: true, CreatedAt: testNow(), ValidDays: 0,
	}
	cart, _, err := Recompute(c, testCatalog(), coupon, testFees, testNow())
	require.NoError(t, err)
	// discounted = 270 - 27 = 243
	assert.Equal(t, RoundMinor(243*0.02), cart.PlatformFee)
	assert.Equal(t, RoundMinor(243*0.05), cart.Tax)
}

func TestRecompute_OrderIndependentAcrossLines(t *testing.T) {
	lines := []domain.CartLineItem{
		{ID: "a", ProductID: "p-1", Quantity: 2, UnitPrice: 33.33,
			Selected: domain.OfferSelection{Mode: domain.OfferModeDiscount}},
		{ID: "b", ProductID: "p-1", Quantity: 1, UnitPrice: 100,
			Selected: domain.OfferSelection{Mode: domain.OfferModeMRP}},
		{ID: "c", ProductID: "p-9", Quantity: 4, UnitPrice: 12.5},
	}
	forward := domain.Cart{Lines: append([]domain.CartLineItem{}, lines...)}
	reversed := domain.Cart{Lines: []domain.CartLineItem{lines[2], lines[1], lines[0]}}

	a, _, err := Recompute(forward, testCatalog(), nil, testFees, testNow())
	require.NoError(t, err)
	b, _, err := Recompute(reversed, testCatalog(), nil, testFees, testNow())
	require.NoError(t, err)

	assert.Equal(t, a.Subtotal, b.Subtotal)
	assert.Equal(t, a.Total, b.Total)
}

func TestRecompute_Deterministic(t *testing.T) {
	c := flatCart()
	c.CouponCode = "SAVE10"
	coupon := &domain.Coupon{
		Code: "SAVE10", DiscountPercent: 10, MinPrice: 200, MaxPrice: 1000,
		Active: true, CreatedAt: testNow(), ValidDays: 30,
	}
	first, _, err := Recompute(c, testCatalog(), coupon, testFees, testNow())
	require.NoError(t, err)
	second, _, err := Recompute(c, testCatalog(), coupon, testFees, testNow())
	require.NoError(t, err)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, first, second)
}

func TestRecompute_UnavailableOfferFallsBackToFullPrice(t *testing.T) {
	c := flatCart()
	catalog := testCatalog()
	catalog.Flat = nil // offer expired mid-session
	cart, _, err := Recompute(c, catalog, nil, testFees, testNow())
	require.NoError(t, err)
	assert.Equal(t, 300.0, cart.Subtotal)
}

func TestRecompute_EmptyCart(t *testing.T) {
	cart, _, err := Recompute(domain.Cart{}, testCatalog(), nil, testFees, testNow())
	require.NoError(t, err)
	assert.Equal(t, 0.0, cart.Subtotal)
	assert.Equal(t, 0.0, cart.Total)
}
