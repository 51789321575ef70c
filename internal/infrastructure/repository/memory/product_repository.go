package memory

import (
	"cmp"
	"context"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/mrops-br/cassandra-products-api/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProductRepository is an in-memory implementation of domain.ProductRepository
// with the same upsert semantics as the Cassandra table.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[uuid.UUID]domain.Product
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewProductRepository creates a new in-memory product repository
func NewProductRepository(tracer trace.Tracer, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		products: make(map[uuid.UUID]domain.Product),
		tracer:   tracer,
		logger:   logger,
	}
}

// Save stores the product, replacing any previous row with the same ID
func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Save")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", product.ID.String()))

	r.mu.Lock()
	r.products[product.ID] = *product
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Product saved in repository",
		slog.String("product_id", product.ID.String()),
	)

	span.SetStatus(codes.Ok, "Product saved")
	return nil
}

// Update overwrites every column except created_at, like the CQL UPDATE the
// Cassandra repository issues. An absent row is created with a zero
// created_at, mirroring the null column Cassandra leaves behind.
func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Update")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", product.ID.String()))

	r.mu.Lock()
	stored := *product
	stored.CreatedAt = r.products[product.ID].CreatedAt
	r.products[product.ID] = stored
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Product updated in repository",
		slog.String("product_id", product.ID.String()),
	)

	span.SetStatus(codes.Ok, "Product updated")
	return nil
}

// Delete removes the product; deleting an absent product is not an error
func (r *ProductRepository) Delete(ctx context.Context, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", product.ID.String()))

	r.mu.Lock()
	delete(r.products, product.ID)
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Product deleted from repository",
		slog.String("product_id", product.ID.String()),
	)

	span.SetStatus(codes.Ok, "Product deleted")
	return nil
}

// FindByID retrieves a product by ID
func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.FindByID")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", id.String()))

	r.mu.RLock()
	product, exists := r.products[id]
	r.mu.RUnlock()

	if !exists {
		span.RecordError(domain.ErrProductNotFound)
		span.SetStatus(codes.Error, "Product not found")
		r.logger.WarnContext(ctx, "Product not found",
			slog.String("product_id", id.String()),
		)
		return nil, domain.ErrProductNotFound
	}

	span.SetStatus(codes.Ok, "Product found")
	return &product, nil
}

// FindAll yields a snapshot of all products ordered by creation time
func (r *ProductRepository) FindAll(ctx context.Context) iter.Seq2[*domain.Product, error] {
	return func(yield func(*domain.Product, error) bool) {
		_, span := r.tracer.Start(ctx, "ProductRepository.FindAll")
		defer span.End()

		r.mu.RLock()
		snapshot := make([]domain.Product, 0, len(r.products))
		for _, p := range r.products {
			snapshot = append(snapshot, p)
		}
		r.mu.RUnlock()

		slices.SortFunc(snapshot, func(a, b domain.Product) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID.String(), b.ID.String())
		})

		span.SetAttributes(attribute.Int("product.count", len(snapshot)))
		span.SetStatus(codes.Ok, "Products retrieved")

		for i := range snapshot {
			if !yield(&snapshot[i], nil) {
				return
			}
		}
	}
}

// HealthCheck always succeeds
func (r *ProductRepository) HealthCheck(context.Context) error {
	return nil
}
