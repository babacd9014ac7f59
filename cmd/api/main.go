package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/events"
)

type api struct {
	db        *sql.DB
	cfg       *config.Config
	publisher *events.Publisher
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		log.Fatalf("Create uploads dir: %v", err)
	}

	var publisher *events.Publisher
	if cfg.Events.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.Events.AMQPURL)
		if err != nil {
			log.Fatalf("Connect to message broker: %v", err)
		}
		defer publisher.Close()
		log.Printf("Connected to message broker")
	}

	a := &api{db: db, cfg: cfg, publisher: publisher}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      a.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", a.handleRegister)
	mux.HandleFunc("POST /api/auth/login", a.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", a.requireAuth(a.handleLogout))
	mux.HandleFunc("GET /api/auth/me", a.requireAuth(a.handleMe))

	mux.HandleFunc("GET /api/products", a.handleListProducts)
	mux.HandleFunc("GET /api/products/{id}", a.handleGetProduct)
	mux.HandleFunc("POST /api/products", a.requireAdmin(a.handleCreateProduct))
	mux.HandleFunc("PUT /api/products/{id}", a.requireAdmin(a.handleUpdateProduct))
	mux.HandleFunc("DELETE /api/products/{id}", a.requireAdmin(a.handleDeleteProduct))
	mux.HandleFunc("POST /api/products/{id}/review", a.requireAuth(a.handleAddReview))

	mux.HandleFunc("GET /api/cart", a.requireAuth(a.handleGetCart))
	mux.HandleFunc("POST /api/cart/add", a.requireAuth(a.handleAddToCart))
	mux.HandleFunc("PUT /api/cart/item/{itemId}", a.requireAuth(a.handleUpdateCartItem))
	mux.HandleFunc("DELETE /api/cart/item/{itemId}", a.requireAuth(a.handleRemoveCartItem))
	mux.HandleFunc("DELETE /api/cart", a.requireAuth(a.handleClearCart))

	mux.HandleFunc("POST /api/orders", a.requireAuth(a.handleCreateOrder))
	mux.HandleFunc("GET /api/orders", a.requireAuth(a.handleListOrders))
	mux.HandleFunc("GET /api/orders/admin/all", a.requireAdmin(a.handleListAllOrders))
	mux.HandleFunc("GET /api/orders/{id}", a.requireAuth(a.handleGetOrder))
	mux.HandleFunc("PUT /api/orders/{id}", a.requireAdmin(a.handleUpdateOrder))

	mux.Handle("GET "+a.cfg.Uploads.BaseURL+"/",
		http.StripPrefix(a.cfg.Uploads.BaseURL+"/", http.FileServer(http.Dir(a.cfg.Uploads.Dir))))

	return mux
}
