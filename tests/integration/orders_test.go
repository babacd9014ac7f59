package integration

import (
	"context"
	"testing"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/shopspring/decimal"
)

var testAddress = models.Address{
	Street:  "1 Main St",
	City:    "Springfield",
	ZipCode: "12345",
	Country: "US",
}

func TestCheckoutPricing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "checkout@example.com")
	product := createTestProduct(t, db, "Widget", "home", decimal.NewFromInt(20), 10)

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 3); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	order, err := store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
		UserID:          user.ID,
		ShippingAddress: testAddress,
		PaymentMethod:   "card",
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if !order.Subtotal.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected subtotal 60, got %s", order.Subtotal)
	}
	if !order.ShippingCost.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected shipping 10, got %s", order.ShippingCost)
	}
	if !order.Tax.Equal(decimal.NewFromInt(6)) {
		t.Errorf("Expected tax 6, got %s", order.Tax)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(76)) {
		t.Errorf("Expected total 76, got %s", order.TotalAmount)
	}
	if order.PaymentStatus != models.PaymentStatusCompleted {
		t.Errorf("Expected payment status completed, got %s", order.PaymentStatus)
	}
	if order.OrderStatus != models.OrderStatusProcessing {
		t.Errorf("Expected status processing, got %s", order.OrderStatus)
	}
	if order.BillingAddress != testAddress {
		t.Errorf("Billing address should default to shipping, got %+v", order.BillingAddress)
	}

	// stock decremented per line, cart cleared
	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.Stock != 7 {
		t.Errorf("Expected stock 7, got %d", productAfter.Stock)
	}

	cart, err := store.GetOrCreateCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 0 || !cart.TotalPrice.IsZero() {
		t.Errorf("Cart should be empty after checkout, got %+v", cart)
	}
}

func TestCheckoutFreeShipping(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "freeship@example.com")
	product := createTestProduct(t, db, "Gadget", "electronics", decimal.NewFromInt(50), 10)

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 3); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	order, err := store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
		UserID:          user.ID,
		ShippingAddress: testAddress,
		PaymentMethod:   "card",
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if !order.ShippingCost.IsZero() {
		t.Errorf("Expected free shipping, got %s", order.ShippingCost)
	}
	if !order.Tax.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Expected tax 15, got %s", order.Tax)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(165)) {
		t.Errorf("Expected total 165, got %s", order.TotalAmount)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "empty@example.com")

	// no cart at all
	_, err := store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
		UserID:          user.ID,
		ShippingAddress: testAddress,
		PaymentMethod:   "card",
	})
	if err != database.ErrCartEmpty {
		t.Errorf("Expected ErrCartEmpty, got %v", err)
	}

	// cart exists but has no items
	if _, err := store.GetOrCreateCart(ctx, db, user.ID); err != nil {
		t.Fatalf("Create cart: %v", err)
	}
	_, err = store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
		UserID:          user.ID,
		ShippingAddress: testAddress,
		PaymentMethod:   "card",
	})
	if err != database.ErrCartEmpty {
		t.Errorf("Expected ErrCartEmpty, got %v", err)
	}

	orders, err := store.ListUserOrders(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("No order should exist after failed checkout, got %d", len(orders))
	}
}

func TestCheckoutDropsDeletedProducts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "dropped@example.com")

	kept := createTestProduct(t, db, "Kept", "home", decimal.NewFromInt(30), 10)
	deleted := createTestProduct(t, db, "Deleted", "home", decimal.NewFromInt(99), 10)

	if _, err := store.AddItem(ctx, db, user.ID, kept.ID, 1); err != nil {
		t.Fatalf("Add kept: %v", err)
	}
	if _, err := store.AddItem(ctx, db, user.ID, deleted.ID, 1); err != nil {
		t.Fatalf("Add deleted: %v", err)
	}
	if err := store.SoftDeleteProduct(ctx, db, deleted.ID); err != nil {
		t.Fatalf("Soft delete: %v", err)
	}

	order, err := store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
		UserID:          user.ID,
		ShippingAddress: testAddress,
		PaymentMethod:   "card",
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if len(order.Items) != 1 || order.Items[0].ProductID != kept.ID {
		t.Fatalf("Expected only the surviving line, got %+v", order.Items)
	}
	if !order.Subtotal.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Expected subtotal 30, got %s", order.Subtotal)
	}

	// deleted product's stock is untouched
	deletedAfter, err := store.GetProduct(ctx, db, deleted.ID)
	if err != nil {
		t.Fatalf("Get deleted product: %v", err)
	}
	if deletedAfter.Stock != 10 {
		t.Errorf("Expected stock 10, got %d", deletedAfter.Stock)
	}
}

func TestCheckoutAllLinesDeleted(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "allgone@example.com")
	product := createTestProduct(t, db, "Ghost", "books", decimal.NewFromInt(10), 10)

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 1); err != nil {
		t.Fatalf("Add item: %v", err)
	}
	if err := store.SoftDeleteProduct(ctx, db, product.ID); err != nil {
		t.Fatalf("Soft delete: %v", err)
	}

	_, err := store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
		UserID:          user.ID,
		ShippingAddress: testAddress,
		PaymentMethod:   "card",
	})
	if err != database.ErrNoValidCartItems {
		t.Errorf("Expected ErrNoValidCartItems, got %v", err)
	}
}

func TestCheckoutInsufficientStockAborts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "abort@example.com")
	product := createTestProduct(t, db, "Limited", "sports", decimal.NewFromInt(10), 5)

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 5); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	// stock shrinks between add and checkout
	if _, err := db.Exec(`UPDATE products SET stock = 2 WHERE id = $1`, product.ID); err != nil {
		t.Fatalf("Shrink stock: %v", err)
	}

	_, err := store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
		UserID:          user.ID,
		ShippingAddress: testAddress,
		PaymentMethod:   "card",
	})
	if err != database.ErrInsufficientStock {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	// nothing committed: no order, stock untouched, cart intact
	orders, err := store.ListUserOrders(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("Expected no orders, got %d", len(orders))
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.Stock != 2 {
		t.Errorf("Expected stock 2, got %d", productAfter.Stock)
	}

	cart, err := store.GetOrCreateCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Errorf("Cart should be intact, got %+v", cart.Items)
	}
}

func TestOrderLinesAreFrozenSnapshots(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "frozen@example.com")
	product := createTestProduct(t, db, "Original Name", "books", decimal.NewFromInt(25), 10)

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 2); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	order, err := store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
		UserID:          user.ID,
		ShippingAddress: testAddress,
		PaymentMethod:   "paypal",
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if _, err := db.Exec(`UPDATE products SET name = 'Renamed', price = 999 WHERE id = $1`, product.ID); err != nil {
		t.Fatalf("Mutate product: %v", err)
	}

	got, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if got.Items[0].ProductName != "Original Name" {
		t.Errorf("Order line name changed: %s", got.Items[0].ProductName)
	}
	if !got.Items[0].UnitPrice.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Order line price changed: %s", got.Items[0].UnitPrice)
	}
	if !got.TotalAmount.Equal(order.TotalAmount) {
		t.Errorf("Order total changed: %s vs %s", got.TotalAmount, order.TotalAmount)
	}
}

func TestListUserOrdersNewestFirst(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "history@example.com")
	product := createTestProduct(t, db, "Repeat Buy", "beauty", decimal.NewFromInt(10), 100)

	var orderIDs []int64
	for i := 0; i < 3; i++ {
		if _, err := store.AddItem(ctx, db, user.ID, product.ID, 1); err != nil {
			t.Fatalf("Add item: %v", err)
		}
		order, err := store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
			UserID:          user.ID,
			ShippingAddress: testAddress,
			PaymentMethod:   "card",
		})
		if err != nil {
			t.Fatalf("Create order %d: %v", i, err)
		}
		orderIDs = append(orderIDs, order.ID)
	}

	orders, err := store.ListUserOrders(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("Expected 3 orders, got %d", len(orders))
	}
	if orders[0].ID != orderIDs[2] || orders[2].ID != orderIDs[0] {
		t.Errorf("Orders not newest-first: %d, %d, %d", orders[0].ID, orders[1].ID, orders[2].ID)
	}
}

func TestUpdateOrderStatusFlow(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "status@example.com")
	product := createTestProduct(t, db, "Shipped Item", "sports", decimal.NewFromInt(40), 10)

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 1); err != nil {
		t.Fatalf("Add item: %v", err)
	}
	order, err := store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
		UserID:          user.ID,
		ShippingAddress: testAddress,
		PaymentMethod:   "card",
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	shipped := models.OrderStatusShipped
	tracking := "TRACK-001"
	updated, err := store.UpdateOrder(ctx, db, order.ID, store.OrderUpdate{
		OrderStatus:    &shipped,
		TrackingNumber: &tracking,
	})
	if err != nil {
		t.Fatalf("Update order: %v", err)
	}
	if updated.OrderStatus != models.OrderStatusShipped || updated.TrackingNumber != "TRACK-001" {
		t.Errorf("Unexpected update result: %+v", updated)
	}

	delivered := models.OrderStatusDelivered
	updated, err = store.UpdateOrder(ctx, db, order.ID, store.OrderUpdate{OrderStatus: &delivered})
	if err != nil {
		t.Fatalf("Update to delivered: %v", err)
	}

	// delivered is terminal
	cancelled := models.OrderStatusCancelled
	if _, err := store.UpdateOrder(ctx, db, order.ID, store.OrderUpdate{OrderStatus: &cancelled}); err != database.ErrInvalidTransition {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	// pricing fields never changed along the way
	if !updated.TotalAmount.Equal(order.TotalAmount) || !updated.Subtotal.Equal(order.Subtotal) {
		t.Errorf("Totals drifted: %+v", updated)
	}
}

func TestListAllOrdersPagination(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	product := createTestProduct(t, db, "Popular", "home", decimal.NewFromInt(5), 100)

	for _, userID := range []int64{alice.ID, bob.ID, alice.ID} {
		if _, err := store.AddItem(ctx, db, userID, product.ID, 1); err != nil {
			t.Fatalf("Add item: %v", err)
		}
		if _, err := store.CreateOrderFromCart(ctx, db, store.CheckoutRequest{
			UserID:          userID,
			ShippingAddress: testAddress,
			PaymentMethod:   "card",
		}); err != nil {
			t.Fatalf("Create order: %v", err)
		}
	}

	page, err := store.ListAllOrders(ctx, db, "", 2)
	if err != nil {
		t.Fatalf("List all orders: %v", err)
	}
	first := page.Items.([]models.Order)
	if len(first) != 2 || !page.HasMore {
		t.Fatalf("Expected first page of 2 with more, got %d (hasMore=%v)", len(first), page.HasMore)
	}

	page, err = store.ListAllOrders(ctx, db, page.NextCursor, 2)
	if err != nil {
		t.Fatalf("List second page: %v", err)
	}
	second := page.Items.([]models.Order)
	if len(second) != 1 || page.HasMore {
		t.Errorf("Expected final page of 1, got %d (hasMore=%v)", len(second), page.HasMore)
	}
	if second[0].CreatedAt.After(first[1].CreatedAt) {
		t.Errorf("Pages not newest-first across the boundary")
	}
}
