package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/shopspring/decimal"
)

func (a *api) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.ProductFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
	}
	if v := q.Get("minPrice"); v != "" {
		min, err := decimal.NewFromString(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid minPrice")
			return
		}
		filter.MinPrice = &min
	}
	if v := q.Get("maxPrice"); v != "" {
		max, err := decimal.NewFromString(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid maxPrice")
			return
		}
		filter.MaxPrice = &max
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	result, err := store.ListProducts(r.Context(), a.db, filter, page, pageSize)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"count": result.Total, "products": result})
}

func (a *api) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := store.GetProduct(r.Context(), a.db, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"product": product})
}

// handleCreateProduct accepts either a JSON body or a multipart form with
// an optional "image" file.
func (a *api) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := a.decodeProductInput(w, r)
	if !ok {
		return
	}

	product, err := store.CreateProduct(r.Context(), a.db, input)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *api) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	existing, err := store.GetProduct(r.Context(), a.db, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var req struct {
		Name            *string          `json:"name"`
		Description     *string          `json:"description"`
		Price           *decimal.Decimal `json:"price"`
		DiscountedPrice *decimal.Decimal `json:"discounted_price"`
		Category        *string          `json:"category"`
		Stock           *int             `json:"stock"`
		Images          []models.ProductImage `json:"images"`
		Version         *int             `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	input := store.ProductInput{
		Name:            existing.Name,
		Description:     existing.Description,
		Price:           existing.Price,
		DiscountedPrice: existing.DiscountedPrice,
		Category:        existing.Category,
		Stock:           existing.Stock,
		Images:          req.Images,
	}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Description != nil {
		input.Description = *req.Description
	}
	if req.Price != nil {
		input.Price = *req.Price
	}
	if req.DiscountedPrice != nil {
		input.DiscountedPrice = req.DiscountedPrice
	}
	if req.Category != nil {
		input.Category = *req.Category
	}
	if req.Stock != nil {
		input.Stock = *req.Stock
	}
	if input.Price.IsNegative() || input.Stock < 0 {
		respondError(w, http.StatusBadRequest, "price and stock must not be negative")
		return
	}

	product, err := store.UpdateProduct(r.Context(), a.db, id, input, req.Version)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *api) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	if err := store.SoftDeleteProduct(r.Context(), a.db, id); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"message": "Product deleted successfully"})
}

func (a *api) handleAddReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := store.AddReview(r.Context(), a.db, id, currentUser(r).ID, req.Rating, req.Comment)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"message": "Review added successfully", "product": product})
}

func (a *api) decodeProductInput(w http.ResponseWriter, r *http.Request) (store.ProductInput, bool) {
	var input store.ProductInput

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(a.cfg.Uploads.MaxBytes); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid multipart form")
			return input, false
		}

		price, err := decimal.NewFromString(r.FormValue("price"))
		if err != nil || price.IsNegative() {
			respondError(w, http.StatusBadRequest, "Invalid price")
			return input, false
		}
		stock, err := strconv.Atoi(r.FormValue("stock"))
		if err != nil || stock < 0 {
			respondError(w, http.StatusBadRequest, "Invalid stock")
			return input, false
		}

		input = store.ProductInput{
			Name:        r.FormValue("name"),
			Description: r.FormValue("description"),
			Price:       price,
			Category:    r.FormValue("category"),
			Stock:       stock,
		}
		if v := r.FormValue("discounted_price"); v != "" {
			discounted, err := decimal.NewFromString(v)
			if err != nil || discounted.IsNegative() {
				respondError(w, http.StatusBadRequest, "Invalid discounted_price")
				return input, false
			}
			input.DiscountedPrice = &discounted
		}

		if fhs := r.MultipartForm.File["image"]; len(fhs) > 0 {
			url, err := a.saveUploadedImage(fhs[0])
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return input, false
			}
			alt := input.Name
			if alt == "" {
				alt = "Product image"
			}
			input.Images = []models.ProductImage{{URL: url, Alt: alt}}
		}
	} else {
		var req struct {
			Name            string                `json:"name"`
			Description     string                `json:"description"`
			Price           decimal.Decimal       `json:"price"`
			DiscountedPrice *decimal.Decimal      `json:"discounted_price"`
			Category        string                `json:"category"`
			Stock           int                   `json:"stock"`
			Images          []models.ProductImage `json:"images"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return input, false
		}
		input = store.ProductInput{
			Name:            req.Name,
			Description:     req.Description,
			Price:           req.Price,
			DiscountedPrice: req.DiscountedPrice,
			Category:        req.Category,
			Stock:           req.Stock,
			Images:          req.Images,
		}
	}

	if input.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return input, false
	}
	if input.Price.IsNegative() || input.Stock < 0 {
		respondError(w, http.StatusBadRequest, "price and stock must not be negative")
		return input, false
	}

	return input, true
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(r.PathValue(key), 10, 64)
}
