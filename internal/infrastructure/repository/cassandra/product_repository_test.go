package cassandra

import (
	"errors"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/mrops-br/cassandra-products-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewStatements_KeyspaceQualified(t *testing.T) {
	s := newStatements("shop_eu")

	for name, st := range map[string]statement{
		"get":        s.get,
		"select_all": s.selectAll,
		"insert":     s.insert,
		"update":     s.update,
		"delete":     s.delete,
	} {
		assert.Contains(t, st.stmt, "shop_eu.products", name)
	}
}

func TestNewStatements_BindNames(t *testing.T) {
	s := newStatements("inventory")

	assert.Equal(t, []string{"id"}, s.get.names)
	assert.Equal(t, []string{"id"}, s.delete.names)
	assert.Empty(t, s.selectAll.names)
	assert.ElementsMatch(t, productColumns, s.insert.names)

	// update binds the SET columns first, then the partition key
	assert.Equal(t, append(append([]string{}, updatableColumns...), "id"), s.update.names)
	assert.NotContains(t, s.update.names, "created_at")
}

func TestNewStatements_Verbs(t *testing.T) {
	s := newStatements("inventory")

	assert.Contains(t, s.get.stmt, "SELECT")
	assert.Contains(t, s.selectAll.stmt, "SELECT")
	assert.NotContains(t, s.selectAll.stmt, "WHERE")
	assert.Contains(t, s.insert.stmt, "INSERT INTO")
	assert.Contains(t, s.update.stmt, "UPDATE")
	assert.Contains(t, s.delete.stmt, "DELETE")
}

func TestRowConversion(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	p := &domain.Product{
		ID:          uuid.New(),
		Name:        "Desk",
		Description: "oak",
		Price:       320.5,
		Quantity:    4,
		CreatedAt:   now,
		UpdatedAt:   now.Add(time.Minute),
	}

	row := toRow(p)
	assert.Equal(t, p.ID.String(), row.ID.String())

	assert.Equal(t, p, row.toDomain())
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(gocql.ErrNotFound), domain.ErrProductNotFound)

	driverErr := errors.New("no hosts available in the pool")
	err := mapError(driverErr)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, domain.ErrProductNotFound)

	assert.ErrorIs(t, mapError(gocql.ErrNoConnections), domain.ErrStorageUnavailable)
}
