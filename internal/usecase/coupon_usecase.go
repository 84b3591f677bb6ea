package usecase

import (
	"context"
	"fmt"
	"strings"

	"damdar-backend/internal/domain"
	"damdar-backend/pkg/cache"

	"github.com/google/uuid"
)

// CouponUsecase handles admin coupon management operations.
type CouponUsecase struct {
	couponRepo domain.CouponRepository
	cache      cache.CacheService
}

func NewCouponUsecase(couponRepo domain.CouponRepository, cacheSvc cache.CacheService) *CouponUsecase {
	return &CouponUsecase{
		couponRepo: couponRepo,
		cache:      cacheSvc,
	}
}

// CouponRequest is the input shape shared by create and update.
type CouponRequest struct {
	Code            string  `json:"code"`
	DiscountPercent float64 `json:"discountPercent"`
	MinPrice        float64 `json:"minPrice"`
	MaxPrice        float64 `json:"maxPrice"`
	ValidDays       int     `json:"validDays"`
	Active          bool    `json:"active"`
}

func (r CouponRequest) validate() (string, error) {
	code := strings.ToUpper(strings.TrimSpace(r.Code))
	if code == "" {
		return "", fmt.Errorf("%w: coupon code is required", domain.ErrValidation)
	}
	if r.DiscountPercent <= 0 || r.DiscountPercent > 100 {
		return "", fmt.Errorf("%w: discount percentage must be between 0 and 100", domain.ErrValidation)
	}
	if r.MinPrice < 0 {
		return "", fmt.Errorf("%w: minimum price must not be negative", domain.ErrValidation)
	}
	// MaxPrice of 0 means no upper bound on the price window.
	if r.MaxPrice != 0 && r.MaxPrice < r.MinPrice {
		return "", fmt.Errorf("%w: maximum price must be >= minimum price", domain.ErrValidation)
	}
	if r.ValidDays < 0 {
		return "", fmt.Errorf("%w: valid days must not be negative", domain.ErrValidation)
	}
	return code, nil
}

// CreateCoupon creates a new coupon with validation.
func (uc *CouponUsecase) CreateCoupon(ctx context.Context, req CouponRequest) (*domain.Coupon, error) {
	code, err := req.validate()
	if err != nil {
		return nil, err
	}

	if existing, _ := uc.couponRepo.GetByCode(ctx, code); existing != nil {
		return nil, fmt.Errorf("%w: coupon code %q already exists", domain.ErrValidation, code)
	}

	coupon := &domain.Coupon{
		Code:            code,
		DiscountPercent: req.DiscountPercent,
		MinPrice:        req.MinPrice,
		MaxPrice:        req.MaxPrice,
		ValidDays:       req.ValidDays,
		Active:          req.Active,
	}
	if err := uc.couponRepo.Create(ctx, coupon); err != nil {
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}
	return coupon, nil
}

// ListCoupons returns a paginated list of coupons.
func (uc *CouponUsecase) ListCoupons(ctx context.Context, limit, offset int) ([]domain.Coupon, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	coupons, err := uc.couponRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list coupons: %w", err)
	}

	total, err := uc.couponRepo.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count coupons: %w", err)
	}
	return coupons, total, nil
}

// GetCoupon returns a single coupon by ID.
func (uc *CouponUsecase) GetCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid coupon ID", domain.ErrValidation)
	}

	coupon, err := uc.couponRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("coupon not found")
	}
	return coupon, nil
}

// UpdateCoupon updates an existing coupon and drops the cached copy so carts
// see the change on the next recompute.
func (uc *CouponUsecase) UpdateCoupon(ctx context.Context, id string, req CouponRequest) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid coupon ID", domain.ErrValidation)
	}

	existing, err := uc.couponRepo.GetByID(ctx, uid)
	if err != nil {
		return fmt.Errorf("coupon not found")
	}

	code, err := req.validate()
	if err != nil {
		return err
	}
	if code != existing.Code {
		if dup, _ := uc.couponRepo.GetByCode(ctx, code); dup != nil {
			return fmt.Errorf("%w: coupon code %q already exists", domain.ErrValidation, code)
		}
	}

	coupon := &domain.Coupon{
		ID:              uid,
		Code:            code,
		DiscountPercent: req.DiscountPercent,
		MinPrice:        req.MinPrice,
		MaxPrice:        req.MaxPrice,
		ValidDays:       req.ValidDays,
		Active:          req.Active,
		CreatedAt:       existing.CreatedAt,
	}
	if err := uc.couponRepo.Update(ctx, coupon); err != nil {
		return err
	}

	uc.cache.Delete(couponCacheKey(existing.Code))
	uc.cache.Delete(couponCacheKey(code))
	return nil
}

// DeleteCoupon deletes a coupon by ID.
func (uc *CouponUsecase) DeleteCoupon(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid coupon ID", domain.ErrValidation)
	}

	existing, err := uc.couponRepo.GetByID(ctx, uid)
	if err != nil {
		return fmt.Errorf("coupon not found")
	}

	if err := uc.couponRepo.Delete(ctx, uid); err != nil {
		return err
	}
	uc.cache.Delete(couponCacheKey(existing.Code))
	return nil
}
