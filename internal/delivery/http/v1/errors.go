package v1

import (
	"errors"
	"net/http"

	"damdar-backend/internal/domain"
	"damdar-backend/pkg/utils"
)

// writeDomainError maps the domain error taxonomy onto HTTP status codes.
// Anything unrecognized is a 500 with a generic message so internals never
// leak to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrLineNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOfferNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrOfferUnavailable):
		utils.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrAttemptOutOfOrder),
		errors.Is(err, domain.ErrNegotiationTerminal),
		errors.Is(err, domain.ErrConcurrentNegotiation):
		utils.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrAttemptsExhausted):
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNegotiationNotFinal):
		utils.WriteError(w, http.StatusConflict, err.Error())
	default:
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func authedUser(r *http.Request) (*domain.User, bool) {
	user, ok := r.Context().Value(domain.UserContextKey).(*domain.User)
	return user, ok
}
