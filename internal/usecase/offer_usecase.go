package usecase

import (
	"context"
	"fmt"
	"time"

	"damdar-backend/internal/domain"
	"damdar-backend/pkg/cache"
)

const offerCatalogCacheKey = "offers:catalog"

// OfferUsecase manages the four offer configuration documents and serves the
// read-only catalog snapshot the pricing engine consumes. One document per
// mode; upserts replace the document wholesale.
type OfferUsecase struct {
	offerRepo  domain.OfferRepository
	cache      cache.CacheService
	catalogTTL time.Duration
}

func NewOfferUsecase(offerRepo domain.OfferRepository, cacheSvc cache.CacheService, catalogTTL time.Duration) *OfferUsecase {
	return &OfferUsecase{
		offerRepo:  offerRepo,
		cache:      cacheSvc,
		catalogTTL: catalogTTL,
	}
}

// Catalog returns the current offer snapshot, served from cache. Every
// pricing recompute reads through here, so admin changes become visible
// within the cache TTL or immediately after an upsert invalidates it.
func (uc *OfferUsecase) Catalog(ctx context.Context) (*domain.OfferCatalog, error) {
	if cached, found := uc.cache.Get(offerCatalogCacheKey); found {
		if catalog, ok := cached.(*domain.OfferCatalog); ok {
			return catalog, nil
		}
	}

	catalog, err := uc.offerRepo.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer catalog: %w", err)
	}

	uc.cache.Set(offerCatalogCacheKey, catalog, uc.catalogTTL)
	return catalog, nil
}

func (uc *OfferUsecase) invalidate() {
	uc.cache.Delete(offerCatalogCacheKey)
}

func percentInRange(pct float64) bool {
	return pct >= 0 && pct <= 100
}

// UpsertFlatOffer replaces the flat offer document.
func (uc *OfferUsecase) UpsertFlatOffer(ctx context.Context, offer *domain.FlatOffer) error {
	if !percentInRange(offer.Percentage) {
		return fmt.Errorf("%w: flat percentage must be between 0 and 100", domain.ErrValidation)
	}
	if offer.MinimumProductCount < 1 {
		return fmt.Errorf("%w: minimum product count must be >= 1", domain.ErrValidation)
	}

	if err := uc.offerRepo.UpsertFlatOffer(ctx, offer); err != nil {
		return fmt.Errorf("failed to save flat offer: %w", err)
	}
	uc.invalidate()
	return nil
}

// UpsertNegotiateOffer replaces the negotiation offer document and its
// per-product bargaining rules.
func (uc *OfferUsecase) UpsertNegotiateOffer(ctx context.Context, offer *domain.NegotiateOffer) error {
	if offer.AttemptsAllowed < 1 {
		return fmt.Errorf("%w: attempts allowed must be >= 1", domain.ErrValidation)
	}
	for _, item := range offer.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: negotiation item requires a product ID", domain.ErrValidation)
		}
		if !percentInRange(item.SuccessPercent) || !percentInRange(item.FailurePercent) {
			return fmt.Errorf("%w: negotiation percentages must be between 0 and 100", domain.ErrValidation)
		}
		// The failure threshold sits below the success threshold, so the
		// failure percentage must be the larger of the two.
		if item.FailurePercent < item.SuccessPercent {
			return fmt.Errorf("%w: failure percentage must be >= success percentage for product %s", domain.ErrValidation, item.ProductID)
		}
	}

	if err := uc.offerRepo.UpsertNegotiateOffer(ctx, offer); err != nil {
		return fmt.Errorf("failed to save negotiate offer: %w", err)
	}
	uc.invalidate()
	return nil
}

// UpsertDiscountOffer replaces the per-product discount document.
func (uc *OfferUsecase) UpsertDiscountOffer(ctx context.Context, offer *domain.DiscountOffer) error {
	for _, item := range offer.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: discount item requires a product ID", domain.ErrValidation)
		}
		if !percentInRange(item.Percent) {
			return fmt.Errorf("%w: discount percentage must be between 0 and 100", domain.ErrValidation)
		}
	}

	if err := uc.offerRepo.UpsertDiscountOffer(ctx, offer); err != nil {
		return fmt.Errorf("failed to save discount offer: %w", err)
	}
	uc.invalidate()
	return nil
}

// UpsertMRPOffer replaces the fixed-amount reduction document.
func (uc *OfferUsecase) UpsertMRPOffer(ctx context.Context, offer *domain.MRPOffer) error {
	for _, item := range offer.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: reduction item requires a product ID", domain.ErrValidation)
		}
		if item.AmountOff < 0 {
			return fmt.Errorf("%w: reduction amount must not be negative", domain.ErrValidation)
		}
	}

	if err := uc.offerRepo.UpsertMRPOffer(ctx, offer); err != nil {
		return fmt.Errorf("failed to save mrp reduction offer: %w", err)
	}
	uc.invalidate()
	return nil
}

// SetItemActive toggles a single per-product entry without replacing the
// whole document.
func (uc *OfferUsecase) SetItemActive(ctx context.Context, mode domain.OfferMode, productID string, active bool) error {
	if !domain.IsValidOfferMode(mode) {
		return fmt.Errorf("%w: unknown offer mode %q", domain.ErrValidation, mode)
	}
	if mode == domain.OfferModeFlat {
		return fmt.Errorf("%w: flat offer has no per-product items", domain.ErrValidation)
	}
	if productID == "" {
		return fmt.Errorf("%w: product ID is required", domain.ErrValidation)
	}

	if err := uc.offerRepo.SetItemActive(ctx, mode, productID, active); err != nil {
		return err
	}
	uc.invalidate()
	return nil
}
