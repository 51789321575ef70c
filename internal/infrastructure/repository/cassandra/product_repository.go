package cassandra

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/mrops-br/cassandra-products-api/internal/domain"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/qb"
	"github.com/scylladb/gocqlx/v2/table"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const productTableName = "products"

var productColumns = []string{
	"id",
	"name",
	"description",
	"price",
	"quantity",
	"created_at",
	"updated_at",
}

// updatableColumns leaves created_at alone so updates keep the original value
var updatableColumns = []string{
	"name",
	"description",
	"price",
	"quantity",
	"updated_at",
}

// productRow is the persisted shape of domain.Product
type productRow struct {
	ID          gocql.UUID `db:"id"`
	Name        string     `db:"name"`
	Description string     `db:"description"`
	Price       float64    `db:"price"`
	Quantity    int        `db:"quantity"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func toRow(p *domain.Product) *productRow {
	return &productRow{
		ID:          gocql.UUID(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (r *productRow) toDomain() *domain.Product {
	return &domain.Product{
		ID:          uuid.UUID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Quantity:    r.Quantity,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type statement struct {
	stmt  string
	names []string
}

// statements holds the CQL generated for one keyspace-qualified products table
type statements struct {
	get       statement
	selectAll statement
	insert    statement
	update    statement
	delete    statement
}

func newStatements(keyspace string) statements {
	name := keyspace + "." + productTableName
	t := table.New(table.Metadata{
		Name:    name,
		Columns: productColumns,
		PartKey: []string{"id"},
	})

	var s statements
	s.get.stmt, s.get.names = t.Get()
	s.selectAll.stmt, s.selectAll.names = qb.Select(name).Columns(productColumns...).ToCql()
	s.insert.stmt, s.insert.names = t.Insert()
	s.update.stmt, s.update.names = t.Update(updatableColumns...)
	s.delete.stmt, s.delete.names = t.Delete()
	return s
}

// ProductRepository is the Cassandra implementation of domain.ProductRepository
type ProductRepository struct {
	session  gocqlx.Session
	keyspace string
	stmts    statements
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewProductRepository creates a DAO scoped to keyspace
func NewProductRepository(session gocqlx.Session, keyspace string, tracer trace.Tracer, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		session:  session,
		keyspace: keyspace,
		stmts:    newStatements(keyspace),
		tracer:   tracer,
		logger:   logger,
	}
}

// Keyspace returns the keyspace this DAO operates against
func (r *ProductRepository) Keyspace() string {
	return r.keyspace
}

// FindByID retrieves a product by ID
func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	ctx, span := r.startSpan(ctx, "ProductRepository.FindByID")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", id.String()))

	row := productRow{ID: gocql.UUID(id)}
	err := r.session.Query(r.stmts.get.stmt, r.stmts.get.names).
		BindStruct(&row).
		WithContext(ctx).
		GetRelease(&row)
	if err != nil {
		err = mapError(err)
		r.fail(ctx, span, err, "Failed to find product", slog.String("product_id", id.String()))
		return nil, err
	}

	span.SetStatus(codes.Ok, "Product found")
	return row.toDomain(), nil
}

// FindAll streams every product. gocql fetches the next page when the
// current one is exhausted, so memory stays bounded by the page size.
func (r *ProductRepository) FindAll(ctx context.Context) iter.Seq2[*domain.Product, error] {
	return func(yield func(*domain.Product, error) bool) {
		ctx, span := r.startSpan(ctx, "ProductRepository.FindAll")
		defer span.End()

		q := r.session.Query(r.stmts.selectAll.stmt, r.stmts.selectAll.names).WithContext(ctx)
		defer q.Release()

		it := q.Iter()

		count := 0
		stopped := false
		var row productRow
		for it.StructScan(&row) {
			count++
			if !yield(row.toDomain(), nil) {
				stopped = true
				break
			}
			row = productRow{}
		}

		span.SetAttributes(attribute.Int("product.count", count))

		if err := it.Close(); err != nil {
			err = mapError(err)
			r.fail(ctx, span, err, "Failed to iterate products", slog.Int("count", count))
			if !stopped {
				yield(nil, err)
			}
			return
		}

		r.logger.DebugContext(ctx, "Products streamed from repository", slog.Int("count", count))
		span.SetStatus(codes.Ok, "Products retrieved")
	}
}

// Update overwrites the non-key columns of the row keyed by the product ID
func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	return r.exec(ctx, "ProductRepository.Update", r.stmts.update, product)
}

// Save inserts the product; an existing row with the same ID is replaced
func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) error {
	return r.exec(ctx, "ProductRepository.Save", r.stmts.insert, product)
}

// Delete removes the row keyed by the product ID
func (r *ProductRepository) Delete(ctx context.Context, product *domain.Product) error {
	return r.exec(ctx, "ProductRepository.Delete", r.stmts.delete, product)
}

// HealthCheck runs a trivial query against the coordinator
func (r *ProductRepository) HealthCheck(ctx context.Context) error {
	if err := r.session.Session.Query("SELECT release_version FROM system.local").WithContext(ctx).Exec(); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *ProductRepository) exec(ctx context.Context, op string, st statement, product *domain.Product) error {
	ctx, span := r.startSpan(ctx, op)
	defer span.End()

	span.SetAttributes(attribute.String("product.id", product.ID.String()))

	err := r.session.Query(st.stmt, st.names).
		BindStruct(toRow(product)).
		WithContext(ctx).
		ExecRelease()
	if err != nil {
		err = mapError(err)
		r.fail(ctx, span, err, op+" failed", slog.String("product_id", product.ID.String()))
		return err
	}

	r.logger.DebugContext(ctx, op+" succeeded", slog.String("product_id", product.ID.String()))
	span.SetStatus(codes.Ok, op+" succeeded")
	return nil
}

func (r *ProductRepository) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx, span := r.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "cassandra"),
		attribute.String("db.namespace", r.keyspace),
	)
	return ctx, span
}

func (r *ProductRepository) fail(ctx context.Context, span trace.Span, err error, msg string, attrs ...any) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	if errors.Is(err, domain.ErrProductNotFound) {
		r.logger.WarnContext(ctx, msg, append(attrs, slog.String("error", err.Error()))...)
		return
	}
	r.logger.ErrorContext(ctx, msg, append(attrs, slog.String("error", err.Error()))...)
}

// mapError turns driver errors into domain error kinds
func mapError(err error) error {
	if errors.Is(err, gocql.ErrNotFound) {
		return domain.ErrProductNotFound
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}
