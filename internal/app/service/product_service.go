package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mrops-br/cassandra-products-api/internal/app/dto"
	"github.com/mrops-br/cassandra-products-api/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ProductService handles product use cases
type ProductService struct {
	repo                  domain.ProductRepository
	tracer                trace.Tracer
	logger                *slog.Logger
	productCreatedCounter metric.Int64Counter
	productOperations     metric.Int64Counter
}

// NewProductService creates a new product service
func NewProductService(
	repo domain.ProductRepository,
	tracer trace.Tracer,
	meter metric.Meter,
	logger *slog.Logger,
) *ProductService {
	productCreatedCounter, _ := meter.Int64Counter(
		"products.created.total",
		metric.WithDescription("Total number of products saved through POST"),
	)

	productOperations, _ := meter.Int64Counter(
		"products.operations",
		metric.WithDescription("Total number of product operations"),
	)

	return &ProductService{
		repo:                  repo,
		tracer:                tracer,
		logger:                logger,
		productCreatedCounter: productCreatedCounter,
		productOperations:     productOperations,
	}
}

// Save stores the product described by req. A missing id is generated.
func (s *ProductService) Save(ctx context.Context, req *dto.ProductRequest) (*dto.ProductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("product.name", req.Name),
		attribute.Float64("product.price", req.Price),
	)

	// An absent body id leaves uuid.Nil so NewProduct generates one
	id := uuid.Nil
	if req.ID != "" {
		parsed, err := domain.ParseProductID(req.ID)
		if err != nil {
			return nil, s.fail(ctx, span, "save", err)
		}
		id = parsed
	}

	product, err := domain.NewProduct(id, req.Name, req.Description, req.Price, req.Quantity)
	if err != nil {
		return nil, s.fail(ctx, span, "save", err)
	}

	span.SetAttributes(attribute.String("product.id", product.ID.String()))

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, s.fail(ctx, span, "save", err)
	}

	s.productCreatedCounter.Add(ctx, 1)
	s.record(ctx, "save", "success")

	s.logger.InfoContext(ctx, "Product saved",
		slog.String("product_id", product.ID.String()),
	)

	span.SetStatus(codes.Ok, "Product saved")
	return dto.ToProductResponse(product), nil
}

// Update overwrites the product identified by pathID. The path id wins: a
// body id must either be absent or equal to it.
func (s *ProductService) Update(ctx context.Context, pathID string, req *dto.ProductRequest) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.Update")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", pathID))

	id, err := resolveUpdateID(pathID, req.ID)
	if err != nil {
		return s.fail(ctx, span, "update", err)
	}

	// created_at is ignored by the repositories on update
	product, err := domain.NewProduct(id, req.Name, req.Description, req.Price, req.Quantity)
	if err != nil {
		return s.fail(ctx, span, "update", err)
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return s.fail(ctx, span, "update", err)
	}

	s.record(ctx, "update", "success")
	s.logger.InfoContext(ctx, "Product updated",
		slog.String("product_id", id.String()),
	)

	span.SetStatus(codes.Ok, "Product updated")
	return nil
}

// FindByID retrieves a product by its textual id
func (s *ProductService) FindByID(ctx context.Context, rawID string) (*dto.ProductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindByID")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", rawID))

	id, err := domain.ParseProductID(rawID)
	if err != nil {
		return nil, s.fail(ctx, span, "read", err)
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, span, "read", err)
	}

	s.record(ctx, "read", "success")
	s.logger.DebugContext(ctx, "Product retrieved",
		slog.String("product_id", rawID),
	)

	span.SetStatus(codes.Ok, "Product retrieved")
	return dto.ToProductResponse(product), nil
}

// FindAll drains the repository sequence into a list. An empty table yields
// an empty, non-nil slice.
func (s *ProductService) FindAll(ctx context.Context) ([]*dto.ProductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindAll")
	defer span.End()

	products := make([]*dto.ProductResponse, 0)
	for product, err := range s.repo.FindAll(ctx) {
		if err != nil {
			return nil, s.fail(ctx, span, "list", err)
		}
		products = append(products, dto.ToProductResponse(product))
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))
	s.record(ctx, "list", "success")

	s.logger.DebugContext(ctx, "Products listed",
		slog.Int("count", len(products)),
	)

	span.SetStatus(codes.Ok, "Products listed")
	return products, nil
}

// Delete removes the product whose id is carried in the request body
func (s *ProductService) Delete(ctx context.Context, req *dto.ProductRequest) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.Delete")
	defer span.End()

	if req.ID == "" {
		return s.fail(ctx, span, "delete", domain.ErrInvalidProductID)
	}
	return s.delete(ctx, span, req.ID)
}

// DeleteByID removes the product identified by the path
func (s *ProductService) DeleteByID(ctx context.Context, rawID string) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.DeleteByID")
	defer span.End()

	return s.delete(ctx, span, rawID)
}

func (s *ProductService) delete(ctx context.Context, span trace.Span, rawID string) error {
	span.SetAttributes(attribute.String("product.id", rawID))

	id, err := domain.ParseProductID(rawID)
	if err != nil {
		return s.fail(ctx, span, "delete", err)
	}

	if err := s.repo.Delete(ctx, &domain.Product{ID: id}); err != nil {
		return s.fail(ctx, span, "delete", err)
	}

	s.record(ctx, "delete", "success")
	s.logger.InfoContext(ctx, "Product deleted",
		slog.String("product_id", rawID),
	)

	span.SetStatus(codes.Ok, "Product deleted")
	return nil
}

// Health reports whether the backing store answers
func (s *ProductService) Health(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.Health")
	defer span.End()

	if err := s.repo.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Health check failed")
		s.logger.ErrorContext(ctx, "Health check failed",
			slog.String("error", err.Error()),
		)
		return err
	}

	span.SetStatus(codes.Ok, "Healthy")
	return nil
}

// fail records err on the span, the operations counter and the log, then
// returns it unchanged.
func (s *ProductService) fail(ctx context.Context, span trace.Span, operation string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	attrs := []any{
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	}

	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		s.record(ctx, operation, "not_found")
		s.logger.WarnContext(ctx, "Product not found", attrs...)
	case domain.IsInvalidInput(err):
		s.record(ctx, operation, "invalid")
		s.logger.WarnContext(ctx, "Rejected product request", attrs...)
	default:
		s.record(ctx, operation, "failure")
		s.logger.ErrorContext(ctx, "Product operation failed", attrs...)
	}

	return err
}

func (s *ProductService) record(ctx context.Context, operation, result string) {
	s.productOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("result", result),
		),
	)
}

func resolveUpdateID(pathID, bodyID string) (uuid.UUID, error) {
	id, err := domain.ParseProductID(pathID)
	if err != nil {
		return uuid.Nil, err
	}
	if bodyID == "" {
		return id, nil
	}

	fromBody, err := domain.ParseProductID(bodyID)
	if err != nil {
		return uuid.Nil, err
	}
	if fromBody != id {
		return uuid.Nil, domain.ErrProductIDMismatch
	}
	return id, nil
}
