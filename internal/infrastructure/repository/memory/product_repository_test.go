package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mrops-br/cassandra-products-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newRepo() *ProductRepository {
	return NewProductRepository(noop.NewTracerProvider().Tracer("test"), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustProduct(t *testing.T, name string) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct(uuid.Nil, name, "", 1, 1)
	require.NoError(t, err)
	return p
}

func collect(t *testing.T, repo *ProductRepository) []*domain.Product {
	t.Helper()
	var out []*domain.Product
	for p, err := range repo.FindAll(context.Background()) {
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestSaveThenFindByID(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()
	p := mustProduct(t, "lamp")

	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	// the stored row is a copy
	got.Name = "mutated"
	again, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "lamp", again.Name)
}

func TestFindByID_NotFound(t *testing.T) {
	_, err := newRepo().FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestDeleteThenFindByID(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()
	p := mustProduct(t, "chair")
	require.NoError(t, repo.Save(ctx, p))

	require.NoError(t, repo.Delete(ctx, p))

	_, err := repo.FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	// deleting twice is harmless
	assert.NoError(t, repo.Delete(ctx, p))
}

func TestUpdate_ChangesOnlyTargetAndKeepsCount(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()
	a := mustProduct(t, "a")
	b := mustProduct(t, "b")
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	before := collect(t, repo)

	changed := *a
	changed.Name = "a2"
	changed.CreatedAt = time.Time{}
	require.NoError(t, repo.Update(ctx, &changed))

	after := collect(t, repo)
	assert.Len(t, after, len(before))

	gotA, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a2", gotA.Name)
	assert.Equal(t, a.CreatedAt, gotA.CreatedAt, "update keeps created_at")

	gotB, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, gotB)
}

func TestUpdate_AbsentRowIsUpserted(t *testing.T) {
	repo := newRepo()
	p := mustProduct(t, "ghost")

	require.NoError(t, repo.Update(context.Background(), p))

	got, err := repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ghost", got.Name)
	assert.True(t, got.CreatedAt.IsZero(), "an upserted row has no creation time")
	assert.Equal(t, p.UpdatedAt, got.UpdatedAt)
}

func TestFindAll_EveryRecordOnce(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()

	saved := map[uuid.UUID]bool{}
	var deleted *domain.Product
	for i := 0; i < 10; i++ {
		p := mustProduct(t, fmt.Sprintf("p%d", i))
		require.NoError(t, repo.Save(ctx, p))
		saved[p.ID] = true
		if i == 4 {
			deleted = p
		}
	}
	require.NoError(t, repo.Delete(ctx, deleted))
	delete(saved, deleted.ID)

	seen := map[uuid.UUID]int{}
	for _, p := range collect(t, repo) {
		seen[p.ID]++
	}

	assert.Len(t, seen, len(saved))
	for id := range saved {
		assert.Equal(t, 1, seen[id])
	}
}

func TestFindAll_EarlyStop(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, mustProduct(t, "x")))
	}

	n := 0
	for range repo.FindAll(ctx) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestFindAll_Empty(t *testing.T) {
	assert.Empty(t, collect(t, newRepo()))
}

func TestConcurrentSaves(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()

	const n = 100
	products := make([]*domain.Product, n)
	for i := range products {
		products[i] = mustProduct(t, fmt.Sprintf("p%d", i))
	}

	var wg sync.WaitGroup
	for _, p := range products {
		wg.Add(1)
		go func(p *domain.Product) {
			defer wg.Done()
			assert.NoError(t, repo.Save(ctx, p))
		}(p)
	}
	wg.Wait()

	assert.Len(t, collect(t, repo), n)
	for _, p := range products {
		_, err := repo.FindByID(ctx, p.ID)
		assert.NoError(t, err)
	}
}
