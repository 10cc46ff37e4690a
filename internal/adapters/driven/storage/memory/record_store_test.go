package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

func TestRecordStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	id, err := store.Create(ctx, "members", domain.Record{IdentityKey: "M-1", Fields: domain.Fields{"name": "Asha"}})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := store.GetByID(ctx, "members", id)
	require.NoError(t, err)
	assert.Equal(t, "Asha", rec.Fields["name"])

	rec.Fields["name"] = "mutated"
	again, err := store.GetByID(ctx, "members", id)
	require.NoError(t, err)
	assert.Equal(t, "Asha", again.Fields["name"], "store returns copies")

	ok, err := store.Update(ctx, "members", domain.Record{ID: id, IdentityKey: "M-1", Fields: domain.Fields{"name": "B"}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Update(ctx, "members", domain.Record{ID: "nope"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Delete(ctx, "members", id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.GetByID(ctx, "members", id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	_, err := store.Create(ctx, "members", domain.Record{ID: "1"})
	require.NoError(t, err)
	_, err = store.Create(ctx, "members", domain.Record{ID: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = store.Create(ctx, "", domain.Record{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordStore_GetAll_MostRecentFirst(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, "members", domain.Record{ID: id, UpdatedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	all, err := store.GetAll(ctx, "members")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	empty, err := store.GetAll(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
