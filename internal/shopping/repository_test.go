package shopping

import (
	"context"
	"path/filepath"
	"testing"

	"ai-fitness-coach/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_SaveAndGet(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "shopping.db"))
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db.SQL)
	ctx := context.Background()

	missing, err := repo.GetByPlanID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list := Normalize(List{Items: []Item{{Name: "Oats", Quantity: 1, Unit: "kg", Category: "grains"}}, Budget: 50})
	id, err := repo.Save(ctx, &ShoppingList{UserID: "u1", PlanID: "p1", List: list})
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := repo.GetByPlanID(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, list.TotalEstimatedCost, got.List.TotalEstimatedCost)
	assert.Len(t, got.List.Categories["grains"], 1)

	require.NoError(t, repo.DeleteByPlanID(ctx, "p1"))
	gone, err := repo.GetByPlanID(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
