package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekspend/internal/categories"
	"weekspend/internal/log"
	"weekspend/internal/storage/memory"
)

func TestCategoryListSeedsDefaults(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewCategoryService(store, nil, log.Discard())

	cats, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cats, len(categories.Defaults()))
	for _, c := range cats {
		assert.True(t, c.IsDefault)
		assert.Equal(t, "u1", c.UserID)
	}

	again, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, again, len(cats), "seeding must happen once")
}

func TestCategorySuggest(t *testing.T) {
	svc := NewCategoryService(memory.New(), nil, nil)

	got, ok := svc.Suggest("Evening MOVIE tickets")
	require.True(t, ok)
	assert.Equal(t, "Movie", got)

	_, ok = svc.Suggest("random thing")
	assert.False(t, ok)

	assert.Len(t, svc.Presets(), 3)
}
