package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"damdar-backend/internal/domain"
)

func testCatalog() domain.OfferCatalog {
	return domain.OfferCatalog{
		Flat: &domain.FlatOffer{Percentage: 10, MinimumProductCount: 2, IsActive: true},
		Negotiate: &domain.NegotiateOffer{
			AttemptsAllowed: 3,
			IsActive:        true,
			Items: []domain.NegotiationItem{
				{ProductID: "p-1", SuccessPercent: 20, FailurePercent: 50, Active: true},
			},
		},
		Discount: &domain.DiscountOffer{
			IsActive: true,
			Items: []domain.DiscountItem{
				{ProductID: "p-1", Percent: 15, Active: true},
				{ProductID: "p-2", Percent: 25, Active: false},
			},
		},
		MRP: &domain.MRPOffer{
			IsActive: true,
			Items: []domain.MRPItem{
				{ProductID: "p-1", AmountOff: 30, Active: true},
			},
		},
	}
}

func TestResolveLine_NoOfferFullPrice(t *testing.T) {
	line := domain.CartLineItem{ProductID: "p-1", Quantity: 2, UnitPrice: 49.99}
	price, err := ResolveLine(line, testCatalog())
	require.NoError(t, err)
	assert.Equal(t, 49.99, price.UnitPriceAfterOffer)
	assert.Equal(t, 99.98, price.LineTotal)
}

func TestResolveLine_FlatAppliesAboveThreshold(t *testing.T) {
	line := domain.CartLineItem{
		ProductID: "p-1", Quantity: 3, UnitPrice: 100,
		Selected: domain.OfferSelection{Mode: domain.OfferModeFlat},
	}
	price, err := ResolveLine(line, testCatalog())
	require.NoError(t, err)
	assert.Equal(t, 90.0, price.UnitPriceAfterOffer)
	assert.Equal(t, 270.0, price.LineTotal)
}

func TestResolveLine_FlatBelowThresholdNoDiscount(t *testing.T) {
	line := domain.CartLineItem{
		ProductID: "p-1", Quantity: 1, UnitPrice: 100,
		Selected: domain.OfferSelection{Mode: domain.OfferModeFlat},
	}
	price, err := ResolveLine(line, testCatalog())
	require.NoError(t, err)
	assert.Equal(t, line.UnitPrice, price.UnitPriceAfterOffer)
}

func TestResolveLine_FlatInactiveUnavailable(t *testing.T) {
	catalog := testCatalog()
	catalog.Flat.IsActive = false
	line := domain.CartLineItem{
		ProductID: "p-1", Quantity: 3, UnitPrice: 100,
		Selected: domain.OfferSelection{Mode: domain.OfferModeFlat},
	}
	_, err := ResolveLine(line, catalog)
	assert.ErrorIs(t, err, domain.ErrOfferUnavailable)
}

func TestResolveLine_DiscountRoundsUnitThenMultiplies(t *testing.T) {
	line := domain.CartLineItem{
		ProductID: "p-1", Quantity: 3, UnitPrice: 33.33,
		Selected: domain.OfferSelection{Mode: domain.OfferModeDiscount},
	}
	price, err := ResolveLine(line, testCatalog())
	require.NoError(t, err)
	// 33.33 * 0.85 = 28.3305 -> 28.33 (round-half-up), * 3 = 84.99
	assert.Equal(t, 28.33, price.UnitPriceAfterOffer)
	assert.Equal(t, 84.99, price.LineTotal)
	assert.LessOrEqual(t, price.LineTotal, line.UnitPrice*float64(line.Quantity))
}

func TestResolveLine_DiscountInactiveItem(t *testing.T) {
	line := domain.CartLineItem{
		ProductID: "p-2", Quantity: 1, UnitPrice: 50,
		Selected: domain.OfferSelection{Mode: domain.OfferModeDiscount},
	}
	_, err := ResolveLine(line, testCatalog())
	assert.ErrorIs(t, err, domain.ErrOfferUnavailable)
}

func TestResolveLine_DiscountUnknownProduct(t *testing.T) {
	line := domain.CartLineItem{
		ProductID: "p-missing", Quantity: 1, UnitPrice: 50,
		Selected: domain.OfferSelection{Mode: domain.OfferModeDiscount},
	}
	_, err := ResolveLine(line, testCatalog())
	assert.ErrorIs(t, err, domain.ErrOfferUnavailable)
}

func TestResolveLine_MRPReductionFloorsAtZero(t *testing.T) {
	catalog := testCatalog()
	line := domain.CartLineItem{
		ProductID: "p-1", Quantity: 2, UnitPrice: 100,
		Selected: domain.OfferSelection{Mode: domain.OfferModeMRP},
	}
	price, err := ResolveLine(line, catalog)
	require.NoError(t, err)
	assert.Equal(t, 70.0, price.UnitPriceAfterOffer)

	line.UnitPrice = 20 // reduction exceeds price
	price, err = ResolveLine(line, catalog)
	require.NoError(t, err)
	assert.Equal(t, 0.0, price.UnitPriceAfterOffer)
	assert.Equal(t, 0.0, price.LineTotal)
}

func TestResolveLine_NegotiateRequiresAccepted(t *testing.T) {
	line := domain.CartLineItem{
		ProductID: "p-1", Quantity: 1, UnitPrice: 100,
		Selected: domain.OfferSelection{
			Mode:        domain.OfferModeNegotiate,
			Negotiation: domain.Negotiation{Status: domain.NegotiationInProgress},
		},
	}
	_, err := ResolveLine(line, testCatalog())
	assert.ErrorIs(t, err, domain.ErrNegotiationNotFinal)
}

func TestResolveLine_NegotiateAcceptedUsesNegotiatedPrice(t *testing.T) {
	line := domain.CartLineItem{
		ProductID: "p-1", Quantity: 2, UnitPrice: 100,
		Selected: domain.OfferSelection{
			Mode: domain.OfferModeNegotiate,
			Negotiation: domain.Negotiation{
				Status:          domain.NegotiationAccepted,
				NegotiatedPrice: 80,
			},
		},
	}
	price, err := ResolveLine(line, testCatalog())
	require.NoError(t, err)
	assert.Equal(t, 80.0, price.UnitPriceAfterOffer)
	assert.Equal(t, 160.0, price.LineTotal)
}

func TestResolveLine_QuantityValidation(t *testing.T) {
	line := domain.CartLineItem{ProductID: "p-1", Quantity: 0, UnitPrice: 100}
	_, err := ResolveLine(line, testCatalog())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveLine_SelectionMissingSubfields(t *testing.T) {
	// Negotiate mode with no negotiation state at all is invalid.
	line := domain.CartLineItem{
		ProductID: "p-1", Quantity: 1, UnitPrice: 100,
		Selected: domain.OfferSelection{Mode: domain.OfferModeNegotiate},
	}
	_, err := ResolveLine(line, testCatalog())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveLineOrFallback_ExpiredOfferFullPrice(t *testing.T) {
	catalog := testCatalog()
	catalog.Discount.IsActive = false
	line := domain.CartLineItem{
		ProductID: "p-1", Quantity: 2, UnitPrice: 45.50,
		Selected: domain.OfferSelection{Mode: domain.OfferModeDiscount},
	}
	price, err := ResolveLineOrFallback(line, catalog)
	require.NoError(t, err)
	assert.Equal(t, 45.50, price.UnitPriceAfterOffer)
	assert.Equal(t, 91.0, price.LineTotal)
}

func TestResolveLineOrFallback_ValidationStillFails(t *testing.T) {
	line := domain.CartLineItem{ProductID: "p-1", Quantity: -1, UnitPrice: 100}
	_, err := ResolveLineOrFallback(line, testCatalog())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRoundMinor_HalfUp(t *testing.T) {
	assert.Equal(t, 0.01, RoundMinor(0.005))
	assert.Equal(t, 10.01, RoundMinor(10.006))
	assert.Equal(t, 10.0, RoundMinor(10.004))
}
