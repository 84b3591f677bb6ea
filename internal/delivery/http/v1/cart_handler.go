package v1

import (
	"net/http"

	"damdar-backend/internal/domain"
	"damdar-backend/internal/usecase"
	"damdar-backend/pkg/utils"
)

type CartHandler struct {
	cartUC *usecase.CartUsecase
}

func NewCartHandler(cartUC *usecase.CartUsecase) *CartHandler {
	return &CartHandler{cartUC: cartUC}
}

// GetCart returns the caller's active cart with current totals.
// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cart, err := h.cartUC.GetCart(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}

type addLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddLine adds a product to the cart.
// POST /api/v1/cart/lines
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req addLineRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	cart, err := h.cartUC.AddLine(r.Context(), user.ID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}

type updateLineRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateLine changes the quantity of a cart line.
// PUT /api/v1/cart/lines/{lineId}
func (h *CartHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req updateLineRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	cart, err := h.cartUC.UpdateLineQuantity(r.Context(), user.ID, r.PathValue("lineId"), req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}

// RemoveLine removes a line from the cart.
// DELETE /api/v1/cart/lines/{lineId}
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cart, err := h.cartUC.RemoveLine(r.Context(), user.ID, r.PathValue("lineId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}

type selectOfferRequest struct {
	Mode string `json:"mode"`
}

// SelectOffer attaches an offer mode to a line, or clears it when mode is
// empty.
// PUT /api/v1/cart/lines/{lineId}/offer
func (h *CartHandler) SelectOffer(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req selectOfferRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	cart, err := h.cartUC.SelectOffer(r.Context(), user.ID, r.PathValue("lineId"), domain.OfferMode(req.Mode))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}

type negotiateRequest struct {
	AttemptNumber int     `json:"attemptNumber"`
	Amount        float64 `json:"amount"`
}

type negotiateResponse struct {
	Cart    *domain.Cart               `json:"cart"`
	Attempt *domain.NegotiationAttempt `json:"attempt"`
}

// Negotiate submits one proposed price for a negotiate line.
// POST /api/v1/cart/lines/{lineId}/negotiate
func (h *CartHandler) Negotiate(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req negotiateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	cart, attempt, err := h.cartUC.Negotiate(r.Context(), user.ID, r.PathValue("lineId"), req.AttemptNumber, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, negotiateResponse{Cart: cart, Attempt: attempt})
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

type applyCouponResponse struct {
	Cart    *domain.Cart              `json:"cart,omitempty"`
	Applied bool                      `json:"applied"`
	Reason  domain.CouponRejectReason `json:"reason,omitempty"`
}

// ApplyCoupon validates a coupon against the cart and attaches it when
// valid. A rejected coupon comes back 200 with the reason; it is an
// expected outcome, not an error.
// POST /api/v1/cart/coupon
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req applyCouponRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	cart, res, err := h.cartUC.ApplyCoupon(r.Context(), user.ID, req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !res.OK {
		utils.WriteJSON(w, http.StatusOK, applyCouponResponse{Applied: false, Reason: res.Reason})
		return
	}
	utils.WriteJSON(w, http.StatusOK, applyCouponResponse{Cart: cart, Applied: true})
}

// RemoveCoupon detaches the applied coupon.
// DELETE /api/v1/cart/coupon
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cart, err := h.cartUC.RemoveCoupon(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}

type deliveryRequest struct {
	DistanceKm float64 `json:"distanceKm"`
}

// SetDeliveryDistance stores the precomputed delivery distance.
// PUT /api/v1/cart/delivery
func (h *CartHandler) SetDeliveryDistance(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req deliveryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	cart, err := h.cartUC.SetDeliveryDistance(r.Context(), user.ID, req.DistanceKm)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}

// Checkout freezes the cart after a final recompute.
// POST /api/v1/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cart, err := h.cartUC.Complete(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}
