package v1

import (
	"errors"
	"net/http"

	"damdar-backend/internal/domain"
	"damdar-backend/internal/usecase"
	"damdar-backend/pkg/utils"
)

// AdminCouponHandler handles admin coupon management endpoints.
type AdminCouponHandler struct {
	couponUC *usecase.CouponUsecase
}

func NewAdminCouponHandler(uc *usecase.CouponUsecase) *AdminCouponHandler {
	return &AdminCouponHandler{couponUC: uc}
}

// ListCoupons returns a paginated list of all coupons.
// GET /api/v1/admin/coupons?page=1&limit=20
func (h *AdminCouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	page := utils.ParseInt(r.URL.Query().Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := utils.ParseInt(r.URL.Query().Get("limit"), 20)
	if limit < 1 {
		limit = 20
	}

	coupons, total, err := h.couponUC.ListCoupons(r.Context(), limit, (page-1)*limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	utils.WriteJSON(w, http.StatusOK, domain.Response{
		Success: true,
		Data:    coupons,
		Meta: domain.Pagination{
			Page:       page,
			Limit:      limit,
			TotalItems: total,
			TotalPages: totalPages,
		},
	})
}

// CreateCoupon creates a new coupon.
// POST /api/v1/admin/coupons
func (h *AdminCouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req usecase.CouponRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	coupon, err := h.couponUC.CreateCoupon(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, coupon)
}

// GetCoupon returns a single coupon by ID.
// GET /api/v1/admin/coupons/{id}
func (h *AdminCouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.couponUC.GetCoupon(r.Context(), r.PathValue("id"))
	if err != nil {
		if errorsIsValidation(err) {
			writeDomainError(w, err)
			return
		}
		utils.WriteError(w, http.StatusNotFound, "Coupon not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, coupon)
}

// UpdateCoupon updates an existing coupon.
// PUT /api/v1/admin/coupons/{id}
func (h *AdminCouponHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req usecase.CouponRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.couponUC.UpdateCoupon(r.Context(), r.PathValue("id"), req); err != nil {
		if errorsIsValidation(err) {
			writeDomainError(w, err)
			return
		}
		utils.WriteError(w, http.StatusNotFound, "Coupon not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Coupon updated"})
}

// DeleteCoupon deletes a coupon by ID.
// DELETE /api/v1/admin/coupons/{id}
func (h *AdminCouponHandler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.couponUC.DeleteCoupon(r.Context(), r.PathValue("id")); err != nil {
		if errorsIsValidation(err) {
			writeDomainError(w, err)
			return
		}
		utils.WriteError(w, http.StatusNotFound, "Coupon not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Coupon deleted"})
}

func errorsIsValidation(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}
