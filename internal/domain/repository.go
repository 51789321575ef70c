package domain

import (
	"context"
	"errors"
	"iter"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrStorageUnavailable = errors.New("product storage unavailable")
)

// ProductRepository defines the contract for product storage.
//
// FindAll returns a lazy sequence: rows are fetched page by page while the
// caller ranges over it. A failure stops the sequence after yielding a nil
// product with the error.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindAll(ctx context.Context) iter.Seq2[*Product, error]
	Update(ctx context.Context, product *Product) error
	Save(ctx context.Context, product *Product) error
	Delete(ctx context.Context, product *Product) error
	HealthCheck(ctx context.Context) error
}

// IsInvalidInput reports whether err was caused by a malformed request
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		ErrInvalidProductName,
		ErrInvalidProductPrice,
		ErrInvalidProductQuantity,
		ErrInvalidProductID,
		ErrProductIDMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
