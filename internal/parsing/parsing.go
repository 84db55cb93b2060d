package parsing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one purchase row extracted from a receipt document.
type LineItem struct {
	ProductName string
	SKU         *string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// NormalizedImport is the format-independent result of parsing a receipt
// document. ExternalReceiptID is the vendor identifier printed on the receipt
// and acts as the import idempotency key downstream.
type NormalizedImport struct {
	ExternalReceiptID string
	StoreName         string
	PurchaseDateTime  time.Time
	Total             decimal.Decimal
	LineItems         []LineItem
}

// Validate rejects imports that cannot be reconciled into the ledger.
func (n *NormalizedImport) Validate() error {
	if n == nil {
		return Fatal(nil, "empty import")
	}
	if n.ExternalReceiptID == "" {
		return Fatal(nil, "missing external receipt id")
	}
	if n.StoreName == "" {
		return Fatal(nil, "missing store name")
	}
	if n.PurchaseDateTime.IsZero() {
		return Fatal(nil, "missing purchase datetime")
	}
	return nil
}

// Parser turns raw document bytes into a normalized import. Implementations
// may shell out, call remote services, or decode in process; callers only see
// this contract.
type Parser interface {
	Parse(ctx context.Context, data []byte) (*NormalizedImport, error)
}

// ErrorKind classifies parser failures.
type ErrorKind int

const (
	// KindRetryable marks transient failures: timeouts, missing tooling,
	// interrupted subprocesses.
	KindRetryable ErrorKind = iota
	// KindFatal marks malformed or unsupported documents that will never
	// parse no matter how often they are retried.
	KindFatal
)

// Error is a classified parser failure.
type Error struct {
	Kind    ErrorKind
	message string
	cause   error
}

func Retryable(cause error, message string) *Error {
	return &Error{Kind: KindRetryable, message: message, cause: cause}
}

func Fatal(cause error, message string) *Error {
	return &Error{Kind: KindFatal, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("parse: %s: %v", e.message, e.cause)
	}
	return fmt.Sprintf("parse: %s", e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsRetryable reports whether err is a parser failure worth retrying.
func IsRetryable(err error) bool {
	if pe := AsError(err); pe != nil {
		return pe.Kind == KindRetryable
	}
	return false
}

// AsError extracts a classified parser error from err's chain.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}
