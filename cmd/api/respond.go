package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/safar/go-storefront/internal/database"
)

func respondJSON(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"success": status < 400}
	for k, v := range payload {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"message": message})
}

// respondStoreError maps domain sentinels to HTTP statuses. Unexpected
// errors become a generic 500 so storage internals never reach the client.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrCartNotFound),
		errors.Is(err, database.ErrCartItemNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrInvalidCredentials),
		errors.Is(err, database.ErrSessionExpired):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, database.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrOptimisticLockFailed):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrCartEmpty),
		errors.Is(err, database.ErrNoValidCartItems),
		errors.Is(err, database.ErrInvalidQuantity),
		errors.Is(err, database.ErrInvalidRating),
		errors.Is(err, database.ErrInvalidCategory),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrEmailTaken):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
