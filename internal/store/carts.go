package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetOrCreateCart returns the user's cart, persisting an empty one on first
// use. Carts are one per user.
func GetOrCreateCart(ctx context.Context, db *sql.DB, userID int64) (*models.Cart, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO carts (user_id, total_price, created_at, updated_at)
		 VALUES ($1, 0, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	return loadCartByUser(ctx, db, userID)
}

// AddItem puts quantity units of the product in the user's cart. If the
// product is already in the cart only its quantity grows; the unit price
// stays the snapshot taken when the line was first added.
func AddItem(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var stock int
		var listPrice decimal.Decimal
		var discountedPrice decimal.NullDecimal
		err := tx.QueryRowContext(ctx,
			`SELECT price, discounted_price, stock
			 FROM products
			 WHERE id = $1 AND is_active = TRUE`,
			productID).Scan(&listPrice, &discountedPrice, &stock)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("get product: %w", err)
		}

		if stock < quantity {
			return database.ErrInsufficientStock
		}

		var cartID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO carts (user_id, total_price, created_at, updated_at)
			 VALUES ($1, 0, NOW(), NOW())
			 ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
			 RETURNING id`,
			userID).Scan(&cartID)
		if err != nil {
			return fmt.Errorf("get or create cart: %w", err)
		}

		unitPrice := listPrice
		if discountedPrice.Valid {
			unitPrice = discountedPrice.Decimal
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, added_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (cart_id, product_id)
			 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
			cartID, productID, quantity, unitPrice)
		if err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}

		return recalculateTotal(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}

	return loadCartByUser(ctx, db, userID)
}

// UpdateItem overwrites a line's quantity. A quantity of zero or less
// removes the line instead of persisting it. Stock is not re-checked here.
func UpdateItem(ctx context.Context, db *sql.DB, userID, itemID int64, quantity int) (*models.Cart, error) {
	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		cartID, err := cartIDForUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		var result sql.Result
		if quantity <= 0 {
			result, err = tx.ExecContext(ctx,
				`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
		} else {
			result, err = tx.ExecContext(ctx,
				`UPDATE cart_items SET quantity = $1 WHERE id = $2 AND cart_id = $3`,
				quantity, itemID, cartID)
		}
		if err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrCartItemNotFound
		}

		return recalculateTotal(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}

	return loadCartByUser(ctx, db, userID)
}

// RemoveItem drops a line from the cart. Removing an absent line is not an
// error; an absent cart is.
func RemoveItem(ctx context.Context, db *sql.DB, userID, itemID int64) (*models.Cart, error) {
	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		cartID, err := cartIDForUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
		if err != nil {
			return fmt.Errorf("remove cart item: %w", err)
		}

		return recalculateTotal(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}

	return loadCartByUser(ctx, db, userID)
}

// ClearCart empties the item list and zeroes the total. The cart row
// itself stays.
func ClearCart(ctx context.Context, db *sql.DB, userID int64) (*models.Cart, error) {
	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		cartID, err := cartIDForUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		return clearCartTx(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}

	return loadCartByUser(ctx, db, userID)
}

func cartIDForUser(ctx context.Context, q querier, userID int64) (int64, error) {
	var cartID int64
	err := q.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, database.ErrCartNotFound
		}
		return 0, fmt.Errorf("get cart: %w", err)
	}
	return cartID, nil
}

func clearCartTx(ctx context.Context, tx *sql.Tx, cartID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE carts SET total_price = 0, updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("reset cart total: %w", err)
	}
	return nil
}

// recalculateTotal re-derives total_price from the lines, keeping the
// persisted total equal to sum(quantity * unit_price) after every mutation.
func recalculateTotal(ctx context.Context, tx *sql.Tx, cartID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE carts
		 SET total_price = COALESCE(
		         (SELECT SUM(quantity * unit_price) FROM cart_items WHERE cart_id = $1), 0),
		     updated_at = NOW()
		 WHERE id = $1`,
		cartID)
	if err != nil {
		return fmt.Errorf("recalculate cart total: %w", err)
	}
	return nil
}

func loadCartByUser(ctx context.Context, db *sql.DB, userID int64) (*models.Cart, error) {
	cart := &models.Cart{}

	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, total_price, created_at, updated_at
		 FROM carts
		 WHERE user_id = $1`,
		userID).Scan(&cart.ID, &cart.UserID, &cart.TotalPrice, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT ci.id, ci.cart_id, ci.product_id, p.name, ci.quantity, ci.unit_price, ci.added_at
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.added_at, ci.id`,
		cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.CartItem
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.AddedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cart, nil
}
