package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

// AddReview appends a review and recomputes the product's running average
// rating and review count in the same transaction, so the derived fields
// never drift from the review rows. A user may review the same product more
// than once.
func AddReview(ctx context.Context, db *sql.DB, productID, userID int64, rating int, comment string) (*models.Product, error) {
	if rating < 1 || rating > 5 {
		return nil, database.ErrInvalidRating
	}

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM products WHERE id = $1 FOR UPDATE`,
			productID).Scan(&id)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("lock product: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO reviews (product_id, user_id, rating, comment, created_at)
			 VALUES ($1, $2, $3, $4, NOW())`,
			productID, userID, rating, comment)
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE products
			 SET rating = (SELECT ROUND(AVG(rating), 2) FROM reviews WHERE product_id = $1),
			     number_of_reviews = (SELECT COUNT(*) FROM reviews WHERE product_id = $1),
			     updated_at = NOW(),
			     version = version + 1
			 WHERE id = $1`,
			productID)
		if err != nil {
			return fmt.Errorf("update product rating: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetProduct(ctx, db, productID)
}

func ListReviews(ctx context.Context, db *sql.DB, productID int64) ([]models.Review, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, user_id, rating, comment, created_at
		 FROM reviews
		 WHERE product_id = $1
		 ORDER BY created_at DESC, id DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var review models.Review
		err := rows.Scan(
			&review.ID,
			&review.ProductID,
			&review.UserID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reviews, nil
}
