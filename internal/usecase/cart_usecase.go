package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"damdar-backend/internal/domain"
	"damdar-backend/internal/pricing"
	"damdar-backend/pkg/cache"
	"damdar-backend/pkg/logger"

	"github.com/google/uuid"
)

func couponCacheKey(code string) string {
	return "coupon:" + code
}

// CartUsecase drives the cart lifecycle: line CRUD, offer selection, the
// negotiation protocol and coupon application. Every mutation ends with a
// full pricing recompute so the persisted totals never go stale.
type CartUsecase struct {
	cartRepo    domain.CartRepository
	productRepo domain.ProductRepository
	couponRepo  domain.CouponRepository
	offers      *OfferUsecase
	tx          domain.TransactionManager
	cache       cache.CacheService
	fees        pricing.FeeConfig
	maxQuantity int
	couponTTL   time.Duration
}

func NewCartUsecase(
	cartRepo domain.CartRepository,
	productRepo domain.ProductRepository,
	couponRepo domain.CouponRepository,
	offers *OfferUsecase,
	tx domain.TransactionManager,
	cacheSvc cache.CacheService,
	fees pricing.FeeConfig,
	maxQuantity int,
	couponTTL time.Duration,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		offers:      offers,
		tx:          tx,
		cache:       cacheSvc,
		fees:        fees,
		maxQuantity: maxQuantity,
		couponTTL:   couponTTL,
	}
}

// GetCart returns the user's active cart with freshly computed totals. The
// recomputed view is not persisted on read; reads must not race writes.
func (uc *CartUsecase) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := uc.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	catalog, err := uc.offers.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updated, _, err := pricing.Recompute(*cart, *catalog, uc.couponByCode(ctx, cart.CouponCode), uc.fees, now)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AddLine adds a product to the cart, creating the cart if the user has no
// active one. Adding a product that is already in the cart increases its
// quantity; the line keeps its offer selection.
func (uc *CartUsecase) AddLine(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if err := uc.checkQuantity(quantity); err != nil {
		return nil, err
	}

	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%w: product %s is not available", domain.ErrValidation, productID)
	}

	cart, err := uc.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	line := findLineByProduct(cart, productID)
	if line != nil {
		if err := uc.checkQuantity(line.Quantity + quantity); err != nil {
			return nil, err
		}
		line.Quantity += quantity
	} else {
		cart.Lines = append(cart.Lines, domain.CartLineItem{
			ID:        uuid.NewString(),
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: product.Price,
		})
		line = &cart.Lines[len(cart.Lines)-1]
	}

	return uc.persistLineAndRecompute(ctx, cart, line)
}

// UpdateLineQuantity sets the quantity of an existing line. The offer
// selection, including any negotiation state, survives the change.
func (uc *CartUsecase) UpdateLineQuantity(ctx context.Context, userID, lineID string, quantity int) (*domain.Cart, error) {
	if err := uc.checkQuantity(quantity); err != nil {
		return nil, err
	}

	cart, err := uc.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	line, err := cart.LineByID(lineID)
	if err != nil {
		return nil, err
	}

	line.Quantity = quantity
	return uc.persistLineAndRecompute(ctx, cart, line)
}

// RemoveLine deletes a line from the cart and recomputes the totals.
func (uc *CartUsecase) RemoveLine(ctx context.Context, userID, lineID string) (*domain.Cart, error) {
	cart, err := uc.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := cart.LineByID(lineID); err != nil {
		return nil, err
	}

	var out *domain.Cart
	err = uc.tx.Do(ctx, func(ctx context.Context) error {
		if err := uc.cartRepo.RemoveLine(ctx, cart.ID, lineID); err != nil {
			return err
		}
		kept := cart.Lines[:0]
		for _, l := range cart.Lines {
			if l.ID != lineID {
				kept = append(kept, l)
			}
		}
		cart.Lines = kept

		saved, _, err := uc.recomputeAndSave(ctx, cart)
		if err != nil {
			return err
		}
		out = saved
		return nil
	})
	return out, err
}

// SelectOffer attaches one of the four offer modes to a line, or clears the
// selection when mode is empty. The mode must be currently available for the
// line's product; selecting negotiate resets the bargaining state to idle.
func (uc *CartUsecase) SelectOffer(ctx context.Context, userID, lineID string, mode domain.OfferMode) (*domain.Cart, error) {
	cart, err := uc.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	line, err := cart.LineByID(lineID)
	if err != nil {
		return nil, err
	}

	if mode != "" {
		catalog, err := uc.offers.Catalog(ctx)
		if err != nil {
			return nil, err
		}
		switch mode {
		case domain.OfferModeFlat:
			_, err = catalog.FlatOfferActive()
		case domain.OfferModeNegotiate:
			_, err = catalog.NegotiationItemFor(line.ProductID)
		case domain.OfferModeDiscount:
			_, err = catalog.DiscountItemFor(line.ProductID)
		case domain.OfferModeMRP:
			_, err = catalog.MRPItemFor(line.ProductID)
		default:
			err = fmt.Errorf("%w: unknown offer mode %q", domain.ErrValidation, mode)
		}
		if err != nil {
			return nil, err
		}
	}

	line.Selected = domain.OfferSelection{Mode: mode}
	if mode == domain.OfferModeNegotiate {
		line.Selected.Negotiation = domain.NewNegotiation()
	}

	return uc.persistLineAndRecompute(ctx, cart, line)
}

// Negotiate applies one proposed price to a line's bargaining state. The
// persistence step is a compare-and-swap on the stored last attempt number,
// so two concurrent attempts on the same line cannot both advance; the loser
// gets ErrConcurrentNegotiation and retries against fresh state.
func (uc *CartUsecase) Negotiate(ctx context.Context, userID, lineID string, attemptNumber int, amount float64) (*domain.Cart, *domain.NegotiationAttempt, error) {
	cart, err := uc.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	line, err := cart.LineByID(lineID)
	if err != nil {
		return nil, nil, err
	}
	if line.Selected.Mode != domain.OfferModeNegotiate {
		return nil, nil, fmt.Errorf("%w: line has no negotiate offer selected", domain.ErrValidation)
	}

	catalog, err := uc.offers.Catalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	item, err := catalog.NegotiationItemFor(line.ProductID)
	if err != nil {
		return nil, nil, err
	}

	rules := pricing.NegotiationRules{
		ReferencePrice:  line.UnitPrice,
		SuccessPercent:  item.SuccessPercent,
		FailurePercent:  item.FailurePercent,
		AttemptsAllowed: catalog.Negotiate.AttemptsAllowed,
	}

	prev := line.Selected.Negotiation
	next, attempt, advErr := pricing.AdvanceNegotiation(prev, rules, attemptNumber, amount)
	if advErr != nil {
		// An over-cap attempt can still flip the state to exhausted; that
		// transition must stick even though the attempt itself failed.
		if errors.Is(advErr, domain.ErrAttemptsExhausted) && next.Status != prev.Status {
			if err := uc.cartRepo.UpdateLineNegotiation(ctx, lineID, prev.LastAttempt(), next); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, advErr
	}

	// Replayed attempt: state unchanged, nothing to persist.
	if next.LastAttempt() == prev.LastAttempt() {
		return cart, &attempt, nil
	}

	var out *domain.Cart
	err = uc.tx.Do(ctx, func(ctx context.Context) error {
		if err := uc.cartRepo.UpdateLineNegotiation(ctx, lineID, prev.LastAttempt(), next); err != nil {
			return err
		}
		line.Selected.Negotiation = next

		saved, _, err := uc.recomputeAndSave(ctx, cart)
		if err != nil {
			return err
		}
		out = saved
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.WithContext(ctx).Info().
		Str("line_id", lineID).
		Int("attempt", attempt.AttemptNumber).
		Str("outcome", attempt.Outcome).
		Str("status", next.Status).
		Msg("negotiation attempt processed")

	return out, &attempt, nil
}

// ApplyCoupon validates the code against the current subtotal and attaches
// it when valid. An invalid coupon is reported through the result, not an
// error, and leaves the cart untouched.
func (uc *CartUsecase) ApplyCoupon(ctx context.Context, userID, code string) (*domain.Cart, pricing.CouponResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pricing.CouponResult{}, fmt.Errorf("%w: coupon code is required", domain.ErrValidation)
	}

	cart, err := uc.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, pricing.CouponResult{}, err
	}

	cart.CouponCode = code
	catalog, err := uc.offers.Catalog(ctx)
	if err != nil {
		return nil, pricing.CouponResult{}, err
	}

	now := time.Now().UTC()
	updated, res, err := pricing.Recompute(*cart, *catalog, uc.couponByCode(ctx, code), uc.fees, now)
	if err != nil {
		return nil, res, err
	}
	if !res.OK {
		return nil, res, nil
	}

	updated.LastUpdated = now
	if err := uc.cartRepo.SaveTotals(ctx, &updated); err != nil {
		return nil, res, err
	}
	return &updated, res, nil
}

// RemoveCoupon detaches any applied coupon and recomputes.
func (uc *CartUsecase) RemoveCoupon(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := uc.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart.CouponCode = ""
	saved, _, err := uc.recomputeAndSave(ctx, cart)
	return saved, err
}

// SetDeliveryDistance stores the precomputed delivery distance and
// recomputes the delivery fee. Distance lookup itself happens upstream.
func (uc *CartUsecase) SetDeliveryDistance(ctx context.Context, userID string, distanceKm float64) (*domain.Cart, error) {
	if distanceKm < 0 {
		return nil, fmt.Errorf("%w: distance must not be negative", domain.ErrValidation)
	}

	cart, err := uc.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart.DistanceKm = distanceKm
	saved, _, err := uc.recomputeAndSave(ctx, cart)
	return saved, err
}

// Complete freezes the cart after a final recompute. Negotiate lines that
// never reached Accepted price at full unit price, same as during browsing.
func (uc *CartUsecase) Complete(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := uc.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Lines) == 0 {
		return nil, fmt.Errorf("%w: cannot complete an empty cart", domain.ErrValidation)
	}

	var out *domain.Cart
	err = uc.tx.Do(ctx, func(ctx context.Context) error {
		saved, _, err := uc.recomputeAndSave(ctx, cart)
		if err != nil {
			return err
		}
		if err := uc.cartRepo.UpdateStatus(ctx, cart.ID, domain.CartStatusCompleted); err != nil {
			return err
		}
		saved.Status = domain.CartStatusCompleted
		out = saved
		return nil
	})
	return out, err
}

func (uc *CartUsecase) checkQuantity(quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be >= 1", domain.ErrValidation)
	}
	if uc.maxQuantity > 0 && quantity > uc.maxQuantity {
		return fmt.Errorf("%w: quantity exceeds the maximum of %d", domain.ErrValidation, uc.maxQuantity)
	}
	return nil
}

func (uc *CartUsecase) getOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := uc.cartRepo.GetByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return nil, err
	}

	cart = &domain.Cart{
		ID:     uuid.NewString(),
		UserID: userID,
	}
	if err := uc.cartRepo.Create(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (uc *CartUsecase) persistLineAndRecompute(ctx context.Context, cart *domain.Cart, line *domain.CartLineItem) (*domain.Cart, error) {
	var out *domain.Cart
	err := uc.tx.Do(ctx, func(ctx context.Context) error {
		if err := uc.cartRepo.UpsertLine(ctx, line); err != nil {
			return err
		}
		saved, _, err := uc.recomputeAndSave(ctx, cart)
		if err != nil {
			return err
		}
		out = saved
		return nil
	})
	return out, err
}

// recomputeAndSave runs the pure pricing fold over the cart and persists
// the resulting totals.
func (uc *CartUsecase) recomputeAndSave(ctx context.Context, cart *domain.Cart) (*domain.Cart, pricing.CouponResult, error) {
	catalog, err := uc.offers.Catalog(ctx)
	if err != nil {
		return nil, pricing.CouponResult{}, err
	}

	now := time.Now().UTC()
	updated, res, err := pricing.Recompute(*cart, *catalog, uc.couponByCode(ctx, cart.CouponCode), uc.fees, now)
	if err != nil {
		return nil, res, err
	}

	updated.LastUpdated = now
	if err := uc.cartRepo.SaveTotals(ctx, &updated); err != nil {
		return nil, res, err
	}
	return &updated, res, nil
}

// couponByCode fetches a coupon through the cache, returning nil on any
// miss; the validator turns nil into a NotFound rejection.
func (uc *CartUsecase) couponByCode(ctx context.Context, code string) *domain.Coupon {
	if code == "" {
		return nil
	}
	if cached, found := uc.cache.Get(couponCacheKey(code)); found {
		if coupon, ok := cached.(*domain.Coupon); ok {
			return coupon
		}
	}

	coupon, err := uc.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil
	}
	uc.cache.Set(couponCacheKey(code), coupon, uc.couponTTL)
	return coupon
}

func findLineByProduct(cart *domain.Cart, productID string) *domain.CartLineItem {
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			return &cart.Lines[i]
		}
	}
	return nil
}
