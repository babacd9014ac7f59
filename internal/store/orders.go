package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

type CheckoutRequest struct {
	UserID          int64
	ShippingAddress models.Address
	BillingAddress  *models.Address
	PaymentMethod   string
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s", uuid.NewString())
}

// CreateOrderFromCart converts the user's cart into an immutable order:
// prices the surviving lines from their cart snapshots, decrements stock per
// line and clears the cart. The whole conversion runs in one serializable
// retrying transaction, so a failed stock decrement aborts the order instead
// of leaving a partial write behind.
//
// Lines whose product has been soft-deleted since they were added are
// silently dropped before pricing. There is no payment step: the order is
// persisted already paid and processing.
func CreateOrderFromCart(ctx context.Context, db *sql.DB, req CheckoutRequest) (*models.Order, error) {
	var orderID int64

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var cartID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`,
			req.UserID).Scan(&cartID)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrCartEmpty
			}
			return fmt.Errorf("get cart: %w", err)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT ci.product_id, p.name, ci.quantity, ci.unit_price, p.is_active
			 FROM cart_items ci
			 JOIN products p ON p.id = ci.product_id
			 WHERE ci.cart_id = $1
			 ORDER BY ci.added_at, ci.id`,
			cartID)
		if err != nil {
			return fmt.Errorf("list cart items: %w", err)
		}

		var lines []models.OrderItem
		var sawAny bool
		for rows.Next() {
			var line models.OrderItem
			var active bool
			if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice, &active); err != nil {
				rows.Close()
				return fmt.Errorf("scan cart item: %w", err)
			}
			sawAny = true
			if !active {
				continue
			}
			line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			lines = append(lines, line)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("rows error: %w", err)
		}
		rows.Close()

		if !sawAny {
			return database.ErrCartEmpty
		}
		if len(lines) == 0 {
			return database.ErrNoValidCartItems
		}

		subtotal := decimal.Zero
		for _, line := range lines {
			subtotal = subtotal.Add(line.Subtotal)
		}
		totals := ComputeTotals(subtotal)

		billing := req.ShippingAddress
		if req.BillingAddress != nil {
			billing = *req.BillingAddress
		}

		shippingJSON, err := json.Marshal(req.ShippingAddress)
		if err != nil {
			return fmt.Errorf("marshal shipping address: %w", err)
		}
		billingJSON, err := json.Marshal(billing)
		if err != nil {
			return fmt.Errorf("marshal billing address: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, user_id, shipping_address, billing_address,
			                     subtotal, shipping_cost, tax, total_amount,
			                     payment_method, payment_status, order_status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
			 RETURNING id`,
			generateOrderNumber(), req.UserID, shippingJSON, billingJSON,
			totals.Subtotal, totals.ShippingCost, totals.Tax, totals.TotalAmount,
			req.PaymentMethod, models.PaymentStatusCompleted, models.OrderStatusProcessing).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range lines {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
				orderID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice, line.Subtotal)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		for _, line := range lines {
			result, err := tx.ExecContext(ctx,
				`UPDATE products
				 SET stock = stock - $1,
				     updated_at = NOW()
				 WHERE id = $2
				   AND stock >= $1`,
				line.Quantity, line.ProductID)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}

			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("get rows affected: %w", err)
			}
			if rowsAffected == 0 {
				return database.ErrInsufficientStock
			}
		}

		return clearCartTx(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}

	return GetOrder(ctx, db, orderID)
}

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	order := &models.Order{}
	var shippingJSON, billingJSON []byte

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&shippingJSON,
		&billingJSON,
		&order.Subtotal,
		&order.ShippingCost,
		&order.Tax,
		&order.TotalAmount,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.OrderStatus,
		&order.TrackingNumber,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(shippingJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(billingJSON, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}

	return order, nil
}

const orderColumns = `id, order_number, user_id, shipping_address, billing_address,
	subtotal, shipping_cost, tax, total_amount,
	payment_method, payment_status, order_status, tracking_number, created_at, updated_at`

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order, err := scanOrder(db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := loadOrderItems(ctx, db, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]

	return order, nil
}

// ListUserOrders returns the user's orders newest-first, items included.
func ListUserOrders(ctx context.Context, db *sql.DB, userID int64) ([]models.Order, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(ctx, db, rows)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListAllOrders pages through every user's orders newest-first.
func ListAllOrders(ctx context.Context, db *sql.DB, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE (created_at, id) < ($1, $2)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(ctx, db, rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

type OrderUpdate struct {
	OrderStatus    *models.OrderStatus
	TrackingNumber *string
}

// UpdateOrder applies an admin status/tracking change. Status changes are
// checked against the transition table; anything else about the order is
// frozen at creation.
func UpdateOrder(ctx context.Context, db *sql.DB, orderID int64, update OrderUpdate) (*models.Order, error) {
	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var current models.OrderStatus
		err := tx.QueryRowContext(ctx,
			`SELECT order_status FROM orders WHERE id = $1 FOR UPDATE`,
			orderID).Scan(&current)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("get order status: %w", err)
		}

		if update.OrderStatus != nil {
			next := *update.OrderStatus
			if !next.Valid() || !current.CanTransitionTo(next) {
				return database.ErrInvalidTransition
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE orders SET order_status = $1, updated_at = NOW() WHERE id = $2`,
				next, orderID); err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
		}

		if update.TrackingNumber != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE orders SET tracking_number = $1, updated_at = NOW() WHERE id = $2`,
				*update.TrackingNumber, orderID); err != nil {
				return fmt.Errorf("update tracking number: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetOrder(ctx, db, orderID)
}

func collectOrders(ctx context.Context, db *sql.DB, rows *sql.Rows) ([]models.Order, error) {
	var orders []models.Order
	var ids []int64
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	items, err := loadOrderItems(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func loadOrderItems(ctx context.Context, db *sql.DB, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	items := make(map[int64][]models.OrderItem)
	if len(orderIDs) == 0 {
		return items, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal, created_at
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, id`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}
