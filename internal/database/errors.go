package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique-constraint failure,
// e.g. registering an email that already exists.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrCartNotFound         = errors.New("cart not found")
	ErrCartItemNotFound     = errors.New("item not found in cart")
	ErrCartEmpty            = errors.New("cart is empty")
	ErrNoValidCartItems     = errors.New("no valid products in cart")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrSessionExpired       = errors.New("session expired or invalid")
	ErrForbidden            = errors.New("not authorized to access this resource")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrInvalidCategory      = errors.New("invalid product category")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrOptimisticLockFailed = errors.New("optimistic lock failed")
	ErrLockTimeout          = errors.New("lock timeout")
)
