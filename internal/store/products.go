package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

type ProductInput struct {
	Name            string
	Description     string
	Price           decimal.Decimal
	DiscountedPrice *decimal.Decimal
	Category        string
	Stock           int
	Images          []models.ProductImage
}

const productColumns = `id, name, description, price, discounted_price, category, stock,
	rating, number_of_reviews, is_active, created_at, updated_at, version`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	product := &models.Product{}
	var discounted decimal.NullDecimal

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&discounted,
		&product.Category,
		&product.Stock,
		&product.Rating,
		&product.NumberOfReviews,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return nil, err
	}

	if discounted.Valid {
		product.DiscountedPrice = &discounted.Decimal
	}
	return product, nil
}

func CreateProduct(ctx context.Context, db *sql.DB, in ProductInput) (*models.Product, error) {
	if !models.ValidCategory(in.Category) {
		return nil, database.ErrInvalidCategory
	}

	var product *models.Product

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		query := `
			INSERT INTO products (name, description, price, discounted_price, category, stock, created_at, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW(), 1)
			RETURNING ` + productColumns

		var err error
		product, err = scanProduct(tx.QueryRowContext(ctx, query,
			in.Name, in.Description, in.Price, nullDecimal(in.DiscountedPrice), in.Category, in.Stock))
		if err != nil {
			return fmt.Errorf("create product: %w", err)
		}

		if err := replaceImages(ctx, tx, product.ID, in.Images); err != nil {
			return err
		}
		product.Images = in.Images
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	images, err := loadImages(ctx, db, []int64{id})
	if err != nil {
		return nil, err
	}
	product.Images = images[id]

	reviews, err := ListReviews(ctx, db, id)
	if err != nil {
		return nil, err
	}
	product.Reviews = reviews

	return product, nil
}

type ProductFilter struct {
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Search   string
	Sort     string
}

var productSorts = map[string]string{
	"price_asc":  "price ASC",
	"price_desc": "price DESC",
	"newest":     "created_at DESC",
	"rating":     "rating DESC",
}

// ListProducts returns active products matching the filter. Search is a
// case-insensitive substring match over name and description.
func ListProducts(ctx context.Context, db *sql.DB, filter ProductFilter, page, pageSize int) (*OffsetPage, error) {
	where := []string{"is_active = TRUE"}
	var args []any

	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		where = append(where, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		where = append(where, fmt.Sprintf("price <= $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE `+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	orderBy, ok := productSorts[filter.Sort]
	if !ok {
		orderBy = "created_at DESC"
	}

	offset := (page - 1) * pageSize
	args = append(args, pageSize, offset)
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY %s, id DESC LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, orderBy, len(args)-1, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	var ids []int64
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
		ids = append(ids, product.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	images, err := loadImages(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Images = images[products[i].ID]
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// UpdateProduct overwrites the product's mutable fields. When
// expectedVersion is set the update only applies if the stored version
// still matches, otherwise ErrOptimisticLockFailed is returned.
func UpdateProduct(ctx context.Context, db *sql.DB, id int64, in ProductInput, expectedVersion *int) (*models.Product, error) {
	if !models.ValidCategory(in.Category) {
		return nil, database.ErrInvalidCategory
	}

	var product *models.Product

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		query := `
			UPDATE products
			SET name = $1, description = $2, price = $3, discounted_price = $4,
			    category = $5, stock = $6, updated_at = NOW(), version = version + 1
			WHERE id = $7`
		args := []any{in.Name, in.Description, in.Price, nullDecimal(in.DiscountedPrice), in.Category, in.Stock, id}
		if expectedVersion != nil {
			query += ` AND version = $8`
			args = append(args, *expectedVersion)
		}
		query += ` RETURNING ` + productColumns

		var err error
		product, err = scanProduct(tx.QueryRowContext(ctx, query, args...))
		if err != nil {
			if err == sql.ErrNoRows {
				if expectedVersion != nil {
					return versionConflict(ctx, tx, id)
				}
				return database.ErrProductNotFound
			}
			return fmt.Errorf("update product: %w", err)
		}

		if in.Images != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM product_images WHERE product_id = $1`, id); err != nil {
				return fmt.Errorf("delete product images: %w", err)
			}
			if err := replaceImages(ctx, tx, id, in.Images); err != nil {
				return err
			}
			product.Images = in.Images
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

// versionConflict tells a stale-version update apart from a missing row.
func versionConflict(ctx context.Context, tx *sql.Tx, id int64) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check product exists: %w", err)
	}
	if exists {
		return database.ErrOptimisticLockFailed
	}
	return database.ErrProductNotFound
}

// SoftDeleteProduct flags the product inactive. Rows are never removed, so
// order history keeps valid references.
func SoftDeleteProduct(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

func replaceImages(ctx context.Context, tx *sql.Tx, productID int64, images []models.ProductImage) error {
	for i, img := range images {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO product_images (product_id, url, alt, position) VALUES ($1, $2, $3, $4)`,
			productID, img.URL, img.Alt, i)
		if err != nil {
			return fmt.Errorf("insert product image: %w", err)
		}
	}
	return nil
}

func loadImages(ctx context.Context, db *sql.DB, productIDs []int64) (map[int64][]models.ProductImage, error) {
	images := make(map[int64][]models.ProductImage)
	if len(productIDs) == 0 {
		return images, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT product_id, url, alt
		 FROM product_images
		 WHERE product_id = ANY($1)
		 ORDER BY product_id, position`,
		pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("load product images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var img models.ProductImage
		if err := rows.Scan(&productID, &img.URL, &img.Alt); err != nil {
			return nil, fmt.Errorf("scan product image: %w", err)
		}
		images[productID] = append(images[productID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return images, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
