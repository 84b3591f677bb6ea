package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Cart statuses. Abandoned is applied by the storage-side TTL sweep, not by
// the pricing engine.
const (
	CartStatusActive    = "active"
	CartStatusCompleted = "completed"
	CartStatusAbandoned = "abandoned"
)

var CartStatuses = []string{
	CartStatusActive,
	CartStatusCompleted,
	CartStatusAbandoned,
}

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrLineNotFound = errors.New("cart line not found")
	ErrValidation   = errors.New("validation error")
)

// OfferSelection mirrors the offer modes on a cart line, carrying only the
// state relevant to the chosen mode. An empty Mode means no offer selected.
type OfferSelection struct {
	Mode        OfferMode   `json:"mode,omitempty"`
	Negotiation Negotiation `json:"negotiation"`
}

// Validate checks that the selection carries the sub-state its mode
// requires. A Negotiate selection must hold negotiation state; the other
// modes carry none.
func (s OfferSelection) Validate() error {
	if s.Mode == "" {
		return nil
	}
	if !IsValidOfferMode(s.Mode) {
		return fmt.Errorf("%w: unknown offer mode %q", ErrValidation, s.Mode)
	}
	if s.Mode == OfferModeNegotiate {
		if s.Negotiation.Status == "" {
			return fmt.Errorf("%w: negotiate selection requires negotiation state", ErrValidation)
		}
	} else if s.Negotiation.Status != "" && s.Negotiation.Status != NegotiationIdle {
		return fmt.Errorf("%w: negotiation state only valid for negotiate mode", ErrValidation)
	}
	return nil
}

// CartLineItem is one product entry in a cart. LineTotal is maintained by
// the pricing recompute, never written directly by callers.
type CartLineItem struct {
	ID        string         `json:"id"`
	CartID    string         `json:"cartId"`
	ProductID string         `json:"productId"`
	Quantity  int            `json:"quantity"`
	UnitPrice float64        `json:"unitPrice"`
	Selected  OfferSelection `json:"selectedOffer"`
	LineTotal float64        `json:"lineTotal"`
}

// Cart is owned by exactly one user. All monetary fields are outputs of the
// pricing recompute; DistanceKm arrives precomputed from the caller.
type Cart struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Lines          []CartLineItem `json:"lines"`
	CouponCode     string         `json:"couponCode,omitempty"`
	DistanceKm     float64        `json:"distanceKm"`
	Subtotal       float64        `json:"subtotal"`
	CouponDiscount float64        `json:"couponDiscount"`
	DeliveryFee    float64        `json:"deliveryFee"`
	PlatformFee    float64        `json:"platformFee"`
	Tax            float64        `json:"tax"`
	Total          float64        `json:"total"`
	Status         string         `json:"status"`
	LastUpdated    time.Time      `json:"lastUpdated"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// LineByID finds a line in the cart.
func (c *Cart) LineByID(lineID string) (*CartLineItem, error) {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return &c.Lines[i], nil
		}
	}
	return nil, ErrLineNotFound
}

type CartRepository interface {
	GetByUserID(ctx context.Context, userID string) (*Cart, error)
	Create(ctx context.Context, cart *Cart) error

	UpsertLine(ctx context.Context, line *CartLineItem) error
	RemoveLine(ctx context.Context, cartID, lineID string) error

	// SaveTotals persists the recomputed pricing fields plus coupon code,
	// distance and per-line totals in one transaction.
	SaveTotals(ctx context.Context, cart *Cart) error

	// UpdateLineNegotiation persists new negotiation state for a line only
	// if the stored last attempt number still equals expectedLastAttempt.
	// Returns ErrConcurrentNegotiation when the compare-and-swap loses,
	// which serializes attempts per line.
	UpdateLineNegotiation(ctx context.Context, lineID string, expectedLastAttempt int, state Negotiation) error

	UpdateStatus(ctx context.Context, cartID, status string) error

	// MarkAbandonedBefore flips active carts with no activity since the
	// cutoff to abandoned. Used by the TTL sweep in the composition root.
	MarkAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
