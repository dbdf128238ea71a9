package models

import "errors"

// Domain error kinds. Services wrap these with context; handlers map them
// to HTTP status codes with errors.Is.
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateBarcode  = errors.New("barcode already in use")
	ErrProductHasHistory = errors.New("product has sales or movement history")

	ErrSaleNotFound      = errors.New("sale not found")
	ErrNoActiveSale      = errors.New("no active sale")
	ErrEmptySale         = errors.New("sale has no items")
	ErrInvalidPayment    = errors.New("payment does not cover sale total")
	ErrSaleAlreadyVoided = errors.New("sale already voided")

	ErrDayAlreadyStarted = errors.New("cash day already started")
	ErrDayNotStarted     = errors.New("cash day not started")
	ErrAlreadyReconciled = errors.New("till already reconciled")
)
