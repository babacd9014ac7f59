package main

import (
	"encoding/json"
	"net/http"

	"github.com/safar/go-storefront/internal/store"
)

func (a *api) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := store.GetOrCreateCart(r.Context(), a.db, currentUser(r).ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *api) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cart, err := store.AddItem(r.Context(), a.db, currentUser(r).ID, req.ProductID, req.Quantity)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"message": "Product added to cart", "cart": cart})
}

func (a *api) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cart, err := store.UpdateItem(r.Context(), a.db, currentUser(r).ID, itemID, req.Quantity)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"message": "Cart item updated", "cart": cart})
}

func (a *api) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	cart, err := store.RemoveItem(r.Context(), a.db, currentUser(r).ID, itemID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"message": "Item removed from cart", "cart": cart})
}

func (a *api) handleClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := store.ClearCart(r.Context(), a.db, currentUser(r).ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"message": "Cart cleared", "cart": cart})
}
