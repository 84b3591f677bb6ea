package domain

import (
	"context"
	"errors"
)

// OfferMode identifies one of the four mutually exclusive pricing strategies.
type OfferMode string

const (
	OfferModeFlat      OfferMode = "flat"
	OfferModeNegotiate OfferMode = "negotiate"
	OfferModeDiscount  OfferMode = "discount"
	OfferModeMRP       OfferMode = "mrp_reduction"
)

var OfferModes = []OfferMode{
	OfferModeFlat,
	OfferModeNegotiate,
	OfferModeDiscount,
	OfferModeMRP,
}

func IsValidOfferMode(m OfferMode) bool {
	for _, mode := range OfferModes {
		if mode == m {
			return true
		}
	}
	return false
}

// Sentinel errors for offer lookups. Handlers map these with errors.Is;
// the pricing layer absorbs ErrOfferUnavailable by falling back to full price.
var (
	ErrOfferNotFound    = errors.New("offer not found")
	ErrOfferUnavailable = errors.New("offer unavailable")
)

// FlatOffer applies a percentage off every line whose quantity reaches
// MinimumProductCount. It has no per-product items.
type FlatOffer struct {
	Percentage          float64 `json:"percentage"`
	MinimumProductCount int     `json:"minimumProductCount"`
	IsActive            bool    `json:"isActive"`
}

// NegotiateOffer holds the bargaining rules per product plus the shared
// attempt cap.
type NegotiateOffer struct {
	Items           []NegotiationItem `json:"items"`
	AttemptsAllowed int               `json:"numberOfAttemptsAllowed"`
	IsActive        bool              `json:"isActive"`
}

type NegotiationItem struct {
	ProductID      string  `json:"productId"`
	SuccessPercent float64 `json:"successPercentage"`
	FailurePercent float64 `json:"failurePercentage"`
	Active         bool    `json:"active"`
}

type DiscountOffer struct {
	Items    []DiscountItem `json:"items"`
	IsActive bool           `json:"isActive"`
}

type DiscountItem struct {
	ProductID string  `json:"productId"`
	Percent   float64 `json:"discountPercentage"`
	Active    bool    `json:"active"`
}

// MRPOffer subtracts a fixed amount from the product's price.
type MRPOffer struct {
	Items    []MRPItem `json:"items"`
	IsActive bool      `json:"isActive"`
}

type MRPItem struct {
	ProductID string  `json:"productId"`
	AmountOff float64 `json:"reductionAmount"`
	Active    bool    `json:"active"`
}

// OfferCatalog is a read-only snapshot of the active offer configuration,
// one document per mode. It is fetched once and passed into pricing
// computations so they stay pure; the pricing engine never mutates it.
type OfferCatalog struct {
	Flat      *FlatOffer      `json:"flat,omitempty"`
	Negotiate *NegotiateOffer `json:"negotiate,omitempty"`
	Discount  *DiscountOffer  `json:"discount,omitempty"`
	MRP       *MRPOffer       `json:"mrpReduction,omitempty"`
}

// FlatOfferActive returns the flat offer if its mode-level flag is on.
func (c OfferCatalog) FlatOfferActive() (*FlatOffer, error) {
	if c.Flat == nil {
		return nil, ErrOfferNotFound
	}
	if !c.Flat.IsActive {
		return nil, ErrOfferUnavailable
	}
	return c.Flat, nil
}

// NegotiationItemFor returns the bargaining rules for a product. Both the
// mode-level and item-level active flags must be set.
func (c OfferCatalog) NegotiationItemFor(productID string) (*NegotiationItem, error) {
	if c.Negotiate == nil {
		return nil, ErrOfferNotFound
	}
	if !c.Negotiate.IsActive {
		return nil, ErrOfferUnavailable
	}
	for i := range c.Negotiate.Items {
		item := &c.Negotiate.Items[i]
		if item.ProductID == productID {
			if !item.Active {
				return nil, ErrOfferUnavailable
			}
			return item, nil
		}
	}
	return nil, ErrOfferUnavailable
}

func (c OfferCatalog) DiscountItemFor(productID string) (*DiscountItem, error) {
	if c.Discount == nil {
		return nil, ErrOfferNotFound
	}
	if !c.Discount.IsActive {
		return nil, ErrOfferUnavailable
	}
	for i := range c.Discount.Items {
		item := &c.Discount.Items[i]
		if item.ProductID == productID {
			if !item.Active {
				return nil, ErrOfferUnavailable
			}
			return item, nil
		}
	}
	return nil, ErrOfferUnavailable
}

func (c OfferCatalog) MRPItemFor(productID string) (*MRPItem, error) {
	if c.MRP == nil {
		return nil, ErrOfferNotFound
	}
	if !c.MRP.IsActive {
		return nil, ErrOfferUnavailable
	}
	for i := range c.MRP.Items {
		item := &c.MRP.Items[i]
		if item.ProductID == productID {
			if !item.Active {
				return nil, ErrOfferUnavailable
			}
			return item, nil
		}
	}
	return nil, ErrOfferUnavailable
}

type OfferRepository interface {
	// Snapshot loads all four offer documents in one read. Missing modes
	// come back as nil pointers.
	Snapshot(ctx context.Context) (*OfferCatalog, error)

	UpsertFlatOffer(ctx context.Context, offer *FlatOffer) error
	UpsertNegotiateOffer(ctx context.Context, offer *NegotiateOffer) error
	UpsertDiscountOffer(ctx context.Context, offer *DiscountOffer) error
	UpsertMRPOffer(ctx context.Context, offer *MRPOffer) error

	// SetItemActive toggles a single per-product entry without touching the
	// mode-level flag.
	SetItemActive(ctx context.Context, mode OfferMode, productID string, active bool) error
}
