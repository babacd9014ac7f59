package main

import (
	"encoding/json"
	"net/http"

	"github.com/safar/go-storefront/internal/store"
)

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || len(req.Password) < 6 || req.FirstName == "" || req.LastName == "" {
		respondError(w, http.StatusBadRequest, "email, password (6+ chars), first_name and last_name are required")
		return
	}

	user, err := store.CreateUser(r.Context(), a.db, req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	session, err := store.CreateSession(r.Context(), a.db, user.ID, a.cfg.Auth.SessionTTL)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"user": user, "token": session.Token})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := store.Authenticate(r.Context(), a.db, req.Email, req.Password)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	session, err := store.CreateSession(r.Context(), a.db, user.ID, a.cfg.Auth.SessionTTL)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"user": user, "token": session.Token})
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteSession(r.Context(), a.db, bearerToken(r)); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"user": currentUser(r)})
}
