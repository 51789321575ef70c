package domain

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidProductName     = errors.New("product name is required")
	ErrInvalidProductPrice    = errors.New("product price must not be negative")
	ErrInvalidProductQuantity = errors.New("product quantity must be between 0 and 2147483647")
	ErrInvalidProductID       = errors.New("product id must be a valid UUID")
	ErrProductIDMismatch      = errors.New("product id in body does not match path")
)

// Product represents the product entity
type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Price       float64
	Quantity    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProduct builds and validates a product stamped with the current time.
// A nil id is replaced by a fresh random one.
func NewProduct(id uuid.UUID, name, description string, price float64, quantity int) (*Product, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}

	now := time.Now().UTC()
	product := &Product{
		ID:          id,
		Name:        name,
		Description: description,
		Price:       price,
		Quantity:    quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := product.Validate(); err != nil {
		return nil, err
	}

	return product, nil
}

// Validate rejects malformed products before they reach storage
func (p *Product) Validate() error {
	if p.ID == uuid.Nil {
		return ErrInvalidProductID
	}
	if p.Name == "" {
		return ErrInvalidProductName
	}
	if p.Price < 0 {
		return ErrInvalidProductPrice
	}
	// stored in a 32-bit CQL int column
	if p.Quantity < 0 || p.Quantity > math.MaxInt32 {
		return ErrInvalidProductQuantity
	}
	return nil
}

// ParseProductID parses a textual product identifier
func ParseProductID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidProductID
	}
	return id, nil
}
