package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"damdar-backend/internal/domain"
	"damdar-backend/internal/infrastructure/cache"
	"damdar-backend/internal/pricing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory fakes ---

type fakeCartRepo struct {
	carts map[string]*domain.Cart // by user ID
	// lastAttempt mirrors the stored CAS column per line ID
	lastAttempt map[string]int
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{
		carts:       make(map[string]*domain.Cart),
		lastAttempt: make(map[string]int),
	}
}

func (r *fakeCartRepo) GetByUserID(_ context.Context, userID string) (*domain.Cart, error) {
	cart, ok := r.carts[userID]
	if !ok || cart.Status != domain.CartStatusActive {
		return nil, domain.ErrCartNotFound
	}
	cp := *cart
	cp.Lines = append([]domain.CartLineItem(nil), cart.Lines...)
	return &cp, nil
}

func (r *fakeCartRepo) Create(_ context.Context, cart *domain.Cart) error {
	cart.Status = domain.CartStatusActive
	cp := *cart
	r.carts[cart.UserID] = &cp
	return nil
}

func (r *fakeCartRepo) UpsertLine(_ context.Context, line *domain.CartLineItem) error {
	for _, cart := range r.carts {
		if cart.ID != line.CartID {
			continue
		}
		for i := range cart.Lines {
			if cart.Lines[i].ID == line.ID {
				cart.Lines[i] = *line
				r.lastAttempt[line.ID] = line.Selected.Negotiation.LastAttempt()
				return nil
			}
		}
		cart.Lines = append(cart.Lines, *line)
		r.lastAttempt[line.ID] = line.Selected.Negotiation.LastAttempt()
		return nil
	}
	return domain.ErrCartNotFound
}

func (r *fakeCartRepo) RemoveLine(_ context.Context, cartID, lineID string) error {
	for _, cart := range r.carts {
		if cart.ID != cartID {
			continue
		}
		for i := range cart.Lines {
			if cart.Lines[i].ID == lineID {
				cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
				return nil
			}
		}
	}
	return domain.ErrLineNotFound
}

func (r *fakeCartRepo) SaveTotals(_ context.Context, cart *domain.Cart) error {
	stored, ok := r.carts[cart.UserID]
	if !ok {
		return domain.ErrCartNotFound
	}
	lines := stored.Lines
	*stored = *cart
	stored.Lines = lines
	for i := range stored.Lines {
		for _, l := range cart.Lines {
			if stored.Lines[i].ID == l.ID {
				stored.Lines[i].LineTotal = l.LineTotal
			}
		}
	}
	return nil
}

func (r *fakeCartRepo) UpdateLineNegotiation(_ context.Context, lineID string, expectedLastAttempt int, state domain.Negotiation) error {
	if r.lastAttempt[lineID] != expectedLastAttempt {
		return domain.ErrConcurrentNegotiation
	}
	r.lastAttempt[lineID] = state.LastAttempt()
	for _, cart := range r.carts {
		for i := range cart.Lines {
			if cart.Lines[i].ID == lineID {
				cart.Lines[i].Selected.Negotiation = state
				return nil
			}
		}
	}
	return domain.ErrLineNotFound
}

func (r *fakeCartRepo) UpdateStatus(_ context.Context, cartID, status string) error {
	for _, cart := range r.carts {
		if cart.ID == cartID {
			cart.Status = status
			return nil
		}
	}
	return domain.ErrCartNotFound
}

func (r *fakeCartRepo) MarkAbandonedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, cart := range r.carts {
		if cart.Status == domain.CartStatusActive && cart.LastUpdated.Before(cutoff) {
			cart.Status = domain.CartStatusAbandoned
			n++
		}
	}
	return n, nil
}

type fakeProductRepo struct {
	products map[string]*domain.Product
}

func (r *fakeProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

type fakeCouponRepo struct {
	byCode map[string]*domain.Coupon
}

func (r *fakeCouponRepo) Create(context.Context, *domain.Coupon) error { return nil }
func (r *fakeCouponRepo) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	c, ok := r.byCode[code]
	if !ok {
		return nil, errors.New("coupon not found")
	}
	return c, nil
}
func (r *fakeCouponRepo) GetByID(context.Context, uuid.UUID) (*domain.Coupon, error) {
	return nil, nil
}
func (r *fakeCouponRepo) List(context.Context, int, int) ([]domain.Coupon, error) { return nil, nil }
func (r *fakeCouponRepo) Count(context.Context) (int64, error)                    { return 0, nil }
func (r *fakeCouponRepo) Update(context.Context, *domain.Coupon) error            { return nil }
func (r *fakeCouponRepo) Delete(context.Context, uuid.UUID) error                 { return nil }

type fakeOfferRepo struct {
	catalog domain.OfferCatalog
}

func (r *fakeOfferRepo) Snapshot(context.Context) (*domain.OfferCatalog, error) {
	cp := r.catalog
	return &cp, nil
}
func (r *fakeOfferRepo) UpsertFlatOffer(context.Context, *domain.FlatOffer) error           { return nil }
func (r *fakeOfferRepo) UpsertNegotiateOffer(context.Context, *domain.NegotiateOffer) error { return nil }
func (r *fakeOfferRepo) UpsertDiscountOffer(context.Context, *domain.DiscountOffer) error   { return nil }
func (r *fakeOfferRepo) UpsertMRPOffer(context.Context, *domain.MRPOffer) error             { return nil }
func (r *fakeOfferRepo) SetItemActive(context.Context, domain.OfferMode, string, bool) error {
	return nil
}

// noopTx runs the function without a real transaction.
type noopTx struct{}

func (noopTx) Do(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func testFees() pricing.FeeConfig {
	return pricing.FeeConfig{
		DeliveryBaseFee:      40,
		DeliveryPerKmRate:    8,
		FreeDeliveryRadiusKm: 3,
		PlatformFeePercent:   2,
		TaxPercent:           5,
	}
}

func newTestCartUsecase(catalog domain.OfferCatalog, coupons map[string]*domain.Coupon, products map[string]*domain.Product) (*CartUsecase, *fakeCartRepo) {
	cartRepo := newFakeCartRepo()
	memCache := cache.NewMemoryCache(time.Minute, time.Minute)
	offers := NewOfferUsecase(&fakeOfferRepo{catalog: catalog}, memCache, time.Minute)
	if coupons == nil {
		coupons = map[string]*domain.Coupon{}
	}
	uc := NewCartUsecase(
		cartRepo,
		&fakeProductRepo{products: products},
		&fakeCouponRepo{byCode: coupons},
		offers,
		noopTx{},
		memCache,
		testFees(),
		100,
		time.Minute,
	)
	return uc, cartRepo
}

func negotiateCatalog(productID string) domain.OfferCatalog {
	return domain.OfferCatalog{
		Negotiate: &domain.NegotiateOffer{
			IsActive:        true,
			AttemptsAllowed: 2,
			Items: []domain.NegotiationItem{
				{ProductID: productID, SuccessPercent: 20, FailurePercent: 50, Active: true},
			},
		},
	}
}

// --- tests ---

func TestAddLine_CreatesCartAndComputesTotals(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Name: "Widget", Price: 100, IsActive: true},
	}
	uc, _ := newTestCartUsecase(domain.OfferCatalog{}, nil, products)

	cart, err := uc.AddLine(context.Background(), "u1", "p1", 2)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 200.0, cart.Subtotal)
	assert.Equal(t, domain.CartStatusActive, cart.Status)

	// Same product again merges into the existing line.
	cart, err = uc.AddLine(context.Background(), "u1", "p1", 3)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 5, cart.Lines[0].Quantity)
	assert.Equal(t, 500.0, cart.Subtotal)
}

func TestAddLine_InactiveProductRejected(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: false},
	}
	uc, _ := newTestCartUsecase(domain.OfferCatalog{}, nil, products)

	_, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSelectOffer_UnavailableModeRejected(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	uc, _ := newTestCartUsecase(domain.OfferCatalog{}, nil, products)

	cart, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	_, err = uc.SelectOffer(context.Background(), "u1", cart.Lines[0].ID, domain.OfferModeFlat)
	assert.ErrorIs(t, err, domain.ErrOfferNotFound)
}

func TestSelectOffer_NegotiateInitializesIdleState(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	uc, _ := newTestCartUsecase(negotiateCatalog("p1"), nil, products)

	cart, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	cart, err = uc.SelectOffer(context.Background(), "u1", cart.Lines[0].ID, domain.OfferModeNegotiate)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationIdle, cart.Lines[0].Selected.Negotiation.Status)
	// Not yet accepted: line prices at full unit price.
	assert.Equal(t, 100.0, cart.Subtotal)
}

func TestNegotiate_AcceptUpdatesLineTotal(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	uc, _ := newTestCartUsecase(negotiateCatalog("p1"), nil, products)

	cart, err := uc.AddLine(context.Background(), "u1", "p1", 2)
	require.NoError(t, err)
	lineID := cart.Lines[0].ID
	_, err = uc.SelectOffer(context.Background(), "u1", lineID, domain.OfferModeNegotiate)
	require.NoError(t, err)

	// 85 >= 100*(1-20/100) = 80: accepted on the first attempt.
	cart, attempt, err := uc.Negotiate(context.Background(), "u1", lineID, 1, 85)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptAccepted, attempt.Outcome)
	assert.Equal(t, 170.0, cart.Subtotal)

	line, err := cart.LineByID(lineID)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationAccepted, line.Selected.Negotiation.Status)
	assert.Equal(t, 85.0, line.Selected.Negotiation.NegotiatedPrice)
}

func TestNegotiate_OutOfOrderAttemptRejected(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	uc, _ := newTestCartUsecase(negotiateCatalog("p1"), nil, products)

	cart, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	lineID := cart.Lines[0].ID
	_, err = uc.SelectOffer(context.Background(), "u1", lineID, domain.OfferModeNegotiate)
	require.NoError(t, err)

	_, _, err = uc.Negotiate(context.Background(), "u1", lineID, 2, 85)
	assert.ErrorIs(t, err, domain.ErrAttemptOutOfOrder)
}

func TestNegotiate_ReplayReturnsRecordedOutcome(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	uc, repo := newTestCartUsecase(negotiateCatalog("p1"), nil, products)

	cart, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	lineID := cart.Lines[0].ID
	_, err = uc.SelectOffer(context.Background(), "u1", lineID, domain.OfferModeNegotiate)
	require.NoError(t, err)

	_, first, err := uc.Negotiate(context.Background(), "u1", lineID, 1, 70)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptRejected, first.Outcome)
	storedAfterFirst := repo.lastAttempt[lineID]

	// Same (attemptNumber, amount): replayed, no state advance.
	_, replayed, err := uc.Negotiate(context.Background(), "u1", lineID, 1, 70)
	require.NoError(t, err)
	assert.Equal(t, *first, *replayed)
	assert.Equal(t, storedAfterFirst, repo.lastAttempt[lineID])
}

func TestNegotiate_ExhaustionAfterCap(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	uc, _ := newTestCartUsecase(negotiateCatalog("p1"), nil, products)

	cart, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	lineID := cart.Lines[0].ID
	_, err = uc.SelectOffer(context.Background(), "u1", lineID, domain.OfferModeNegotiate)
	require.NoError(t, err)

	// Two in-window rejections exhaust the two allowed attempts.
	_, _, err = uc.Negotiate(context.Background(), "u1", lineID, 1, 70)
	require.NoError(t, err)
	cart, _, err = uc.Negotiate(context.Background(), "u1", lineID, 2, 72)
	require.NoError(t, err)

	line, err := cart.LineByID(lineID)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationExhausted, line.Selected.Negotiation.Status)

	_, _, err = uc.Negotiate(context.Background(), "u1", lineID, 3, 90)
	assert.ErrorIs(t, err, domain.ErrAttemptsExhausted)
}

func TestNegotiate_ConcurrentAttemptLosesCAS(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	uc, repo := newTestCartUsecase(negotiateCatalog("p1"), nil, products)

	cart, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	lineID := cart.Lines[0].ID
	_, err = uc.SelectOffer(context.Background(), "u1", lineID, domain.OfferModeNegotiate)
	require.NoError(t, err)

	// Simulate a racing writer bumping the stored attempt counter after this
	// request loaded its snapshot.
	repo.lastAttempt[lineID] = 1

	_, _, err = uc.Negotiate(context.Background(), "u1", lineID, 1, 70)
	assert.ErrorIs(t, err, domain.ErrConcurrentNegotiation)
}

func TestApplyCoupon_ValidAndOutOfWindow(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	coupons := map[string]*domain.Coupon{
		"SAVE10": {
			Code:            "SAVE10",
			DiscountPercent: 10,
			MinPrice:        150,
			MaxPrice:        500,
			Active:          true,
			CreatedAt:       time.Now().UTC(),
		},
	}
	uc, _ := newTestCartUsecase(domain.OfferCatalog{}, coupons, products)

	_, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	// Subtotal 100 sits below the window: rejected as a value, not an error.
	_, res, err := uc.ApplyCoupon(context.Background(), "u1", "save10")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, domain.CouponSubtotalBelowMin, res.Reason)

	_, err = uc.UpdateLineQuantity(context.Background(), "u1", mustLineID(t, uc, "u1"), 2)
	require.NoError(t, err)

	cart, res, err := uc.ApplyCoupon(context.Background(), "u1", "SAVE10")
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, 20.0, cart.CouponDiscount)
	assert.Equal(t, "SAVE10", cart.CouponCode)
}

func TestSetDeliveryDistance_RecomputesFee(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	uc, _ := newTestCartUsecase(domain.OfferCatalog{}, nil, products)

	_, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	cart, err := uc.SetDeliveryDistance(context.Background(), "u1", 7)
	require.NoError(t, err)
	// base 40 + 8 per km past the 3 km free radius: 40 + 8*4 = 72.
	assert.Equal(t, 72.0, cart.DeliveryFee)

	cart, err = uc.SetDeliveryDistance(context.Background(), "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cart.DeliveryFee)

	_, err = uc.SetDeliveryDistance(context.Background(), "u1", -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestComplete_EmptyCartRejected(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	uc, repo := newTestCartUsecase(domain.OfferCatalog{}, nil, products)

	cart, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	_, err = uc.RemoveLine(context.Background(), "u1", cart.Lines[0].ID)
	require.NoError(t, err)

	_, err = uc.Complete(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	done, err := uc.Complete(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.CartStatusCompleted, done.Status)
	assert.Equal(t, domain.CartStatusCompleted, repo.carts["u1"].Status)
}

func TestMarkAbandonedBefore_SweepsStaleCarts(t *testing.T) {
	products := map[string]*domain.Product{
		"p1": {ID: "p1", Price: 100, IsActive: true},
	}
	uc, repo := newTestCartUsecase(domain.OfferCatalog{}, nil, products)

	_, err := uc.AddLine(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	repo.carts["u1"].LastUpdated = time.Now().UTC().Add(-100 * time.Hour)

	n, err := repo.MarkAbandonedBefore(context.Background(), time.Now().UTC().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = uc.GetCart(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func mustLineID(t *testing.T, uc *CartUsecase, userID string) string {
	t.Helper()
	cart, err := uc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, cart.Lines)
	return cart.Lines[0].ID
}
