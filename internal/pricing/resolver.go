package pricing

import (
	"errors"
	"fmt"

	"damdar-backend/internal/domain"
)

// LinePrice is the resolver's output for one cart line.
type LinePrice struct {
	UnitPriceAfterOffer float64 `json:"unitPriceAfterOffer"`
	LineTotal           float64 `json:"lineTotal"`
}

// ResolveLine computes the effective price of one cart line under the offer
// the line has selected. Mode-specific failures come back as typed errors:
// domain.ErrOfferUnavailable when the catalog has no eligible entry (callers
// fall back to full price, see ResolveLineOrFallback) and
// domain.ErrNegotiationNotFinal when a negotiate line has not reached
// Accepted.
func ResolveLine(line domain.CartLineItem, catalog domain.OfferCatalog) (LinePrice, error) {
	if line.Quantity < 1 {
		return LinePrice{}, fmt.Errorf("%w: quantity must be >= 1", domain.ErrValidation)
	}
	if line.UnitPrice < 0 {
		return LinePrice{}, fmt.Errorf("%w: unit price must not be negative", domain.ErrValidation)
	}
	if err := line.Selected.Validate(); err != nil {
		return LinePrice{}, err
	}

	unit := line.UnitPrice

	switch line.Selected.Mode {
	case "":
		// No offer selected: full price.

	case domain.OfferModeFlat:
		flat, err := catalog.FlatOfferActive()
		if err != nil {
			return LinePrice{}, err
		}
		// Quantity below the threshold is not an error, just no discount.
		if line.Quantity >= flat.MinimumProductCount {
			unit = line.UnitPrice * (1 - flat.Percentage/100)
		}

	case domain.OfferModeNegotiate:
		if _, err := catalog.NegotiationItemFor(line.ProductID); err != nil {
			return LinePrice{}, err
		}
		if line.Selected.Negotiation.Status != domain.NegotiationAccepted {
			return LinePrice{}, domain.ErrNegotiationNotFinal
		}
		unit = line.Selected.Negotiation.NegotiatedPrice

	case domain.OfferModeDiscount:
		item, err := catalog.DiscountItemFor(line.ProductID)
		if err != nil {
			return LinePrice{}, err
		}
		unit = line.UnitPrice * (1 - item.Percent/100)

	case domain.OfferModeMRP:
		item, err := catalog.MRPItemFor(line.ProductID)
		if err != nil {
			return LinePrice{}, err
		}
		unit = line.UnitPrice - item.AmountOff
		if unit < 0 {
			unit = 0
		}

	default:
		return LinePrice{}, fmt.Errorf("%w: unknown offer mode %q", domain.ErrValidation, line.Selected.Mode)
	}

	unit = RoundMinor(unit)
	return LinePrice{
		UnitPriceAfterOffer: unit,
		LineTotal:           RoundMinor(unit * float64(line.Quantity)),
	}, nil
}

// ResolveLineOrFallback resolves the line and absorbs offer-availability
// failures: an expired or missing offer never blocks checkout, the line just
// prices at full unit price. Negotiations that have not reached Accepted
// degrade the same way so the cart always has a deterministic total.
// Validation errors still propagate.
func ResolveLineOrFallback(line domain.CartLineItem, catalog domain.OfferCatalog) (LinePrice, error) {
	price, err := ResolveLine(line, catalog)
	if err == nil {
		return price, nil
	}
	if errors.Is(err, domain.ErrOfferUnavailable) ||
		errors.Is(err, domain.ErrOfferNotFound) ||
		errors.Is(err, domain.ErrNegotiationNotFinal) {
		unit := RoundMinor(line.UnitPrice)
		return LinePrice{
			UnitPriceAfterOffer: unit,
			LineTotal:           RoundMinor(unit * float64(line.Quantity)),
		}, nil
	}
	return LinePrice{}, err
}
