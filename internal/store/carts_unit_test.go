package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/safar/go-storefront/internal/database"
	"github.com/stretchr/testify/require"
)

func TestAddItemInsufficientStockLeavesCartUntouched(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT price, discounted_price, stock`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"price", "discounted_price", "stock"}).
			AddRow("20.00", nil, 1))
	// no cart or cart_items statements may follow
	mock.ExpectRollback()

	_, err = AddItem(context.Background(), db, 1, 3, 5)
	require.ErrorIs(t, err, database.ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = AddItem(context.Background(), db, 1, 3, 0)
	require.ErrorIs(t, err, database.ErrInvalidQuantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddItemUnknownProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT price, discounted_price, stock`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"price", "discounted_price", "stock"}))
	mock.ExpectRollback()

	_, err = AddItem(context.Background(), db, 1, 42, 1)
	require.ErrorIs(t, err, database.ErrProductNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
