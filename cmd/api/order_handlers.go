package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

func (a *api) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingAddress models.Address  `json:"shippingAddress"`
		BillingAddress  *models.Address `json:"billingAddress"`
		PaymentMethod   string          `json:"paymentMethod"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PaymentMethod == "" {
		respondError(w, http.StatusBadRequest, "paymentMethod is required")
		return
	}

	order, err := store.CreateOrderFromCart(r.Context(), a.db, store.CheckoutRequest{
		UserID:          currentUser(r).ID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	// Best effort: a broker outage never fails a committed checkout.
	if err := a.publisher.PublishOrderCreated(r.Context(), order); err != nil {
		log.Printf("Publish OrderCreated for %s: %v", order.OrderNumber, err)
	}

	respondJSON(w, http.StatusCreated, map[string]any{"message": "Order created successfully", "order": order})
}

func (a *api) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := store.ListUserOrders(r.Context(), a.db, currentUser(r).ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"count": len(orders), "orders": orders})
}

func (a *api) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := store.GetOrder(r.Context(), a.db, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	user := currentUser(r)
	if order.UserID != user.ID && user.Role != models.RoleAdmin {
		respondStoreError(w, database.ErrForbidden)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *api) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req struct {
		OrderStatus    *models.OrderStatus `json:"orderStatus"`
		TrackingNumber *string             `json:"trackingNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := store.UpdateOrder(r.Context(), a.db, id, store.OrderUpdate{
		OrderStatus:    req.OrderStatus,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"message": "Order updated successfully", "order": order})
}

func (a *api) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := store.ListAllOrders(r.Context(), a.db, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"orders": result})
}
