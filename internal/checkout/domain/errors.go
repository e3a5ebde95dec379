package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoShop                = errors.New("no shop")
	ErrNoPaymentMethod       = errors.New("no payment method available")
	ErrConnection            = errors.New("connection error")
	ErrInvalidDepositVoucher = errors.New("invalid deposit return voucher")
	ErrNoInfo                = errors.New("no checkout info")
)

// InvalidProductsError lists the SKUs the backend refused to sell.
type InvalidProductsError struct {
	SKUs []string
}

func (e *InvalidProductsError) Error() string {
	return fmt.Sprintf("invalid products: %v", e.SKUs)
}

// StatusError is a backend reply that maps to none of the known failures.
type StatusError struct {
	Status  int    `json:"status"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *StatusError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("backend status %d: %s", e.Status, e.Type)
	}
	return fmt.Sprintf("backend status %d", e.Status)
}

func IsServerError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status >= 500
}
