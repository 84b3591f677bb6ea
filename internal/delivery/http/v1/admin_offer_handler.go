package v1

import (
	"net/http"
	"strconv"

	"damdar-backend/internal/domain"
	"damdar-backend/internal/usecase"
	"damdar-backend/pkg/utils"
)

// AdminOfferHandler exposes the four offer configuration documents to the
// admin panel. Thin layer; all validation lives in the usecase.
type AdminOfferHandler struct {
	offerUC *usecase.OfferUsecase
}

func NewAdminOfferHandler(offerUC *usecase.OfferUsecase) *AdminOfferHandler {
	return &AdminOfferHandler{offerUC: offerUC}
}

// GetCatalog returns the full offer snapshot.
// GET /api/v1/admin/offers
func (h *AdminOfferHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.offerUC.Catalog(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, catalog)
}

// UpsertFlat replaces the flat offer document.
// PUT /api/v1/admin/offers/flat
func (h *AdminOfferHandler) UpsertFlat(w http.ResponseWriter, r *http.Request) {
	var offer domain.FlatOffer
	if err := utils.DecodeJSON(r, &offer); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.offerUC.UpsertFlatOffer(r.Context(), &offer); err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, offer)
}

// UpsertNegotiate replaces the negotiation offer document.
// PUT /api/v1/admin/offers/negotiate
func (h *AdminOfferHandler) UpsertNegotiate(w http.ResponseWriter, r *http.Request) {
	var offer domain.NegotiateOffer
	if err := utils.DecodeJSON(r, &offer); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.offerUC.UpsertNegotiateOffer(r.Context(), &offer); err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, offer)
}

// UpsertDiscount replaces the per-product discount document.
// PUT /api/v1/admin/offers/discount
func (h *AdminOfferHandler) UpsertDiscount(w http.ResponseWriter, r *http.Request) {
	var offer domain.DiscountOffer
	if err := utils.DecodeJSON(r, &offer); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.offerUC.UpsertDiscountOffer(r.Context(), &offer); err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, offer)
}

// UpsertMRP replaces the fixed-amount reduction document.
// PUT /api/v1/admin/offers/mrp-reduction
func (h *AdminOfferHandler) UpsertMRP(w http.ResponseWriter, r *http.Request) {
	var offer domain.MRPOffer
	if err := utils.DecodeJSON(r, &offer); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.offerUC.UpsertMRPOffer(r.Context(), &offer); err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, offer)
}

// SetItemActive toggles a single per-product offer entry.
// PATCH /api/v1/admin/offers/{mode}/items/{productId}?active=true
func (h *AdminOfferHandler) SetItemActive(w http.ResponseWriter, r *http.Request) {
	active, err := strconv.ParseBool(r.URL.Query().Get("active"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Query parameter 'active' must be true or false")
		return
	}

	mode := domain.OfferMode(r.PathValue("mode"))
	productID := r.PathValue("productId")
	if err := h.offerUC.SetItemActive(r.Context(), mode, productID, active); err != nil {
		writeDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"mode": mode, "productId": productID, "active": active})
}
