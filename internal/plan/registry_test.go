package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, Free, r.Fallback())
	assert.Equal(t, 10, r.LimitFor(Free))
	assert.Equal(t, 30, r.LimitFor(Basic))
	assert.Equal(t, 200, r.LimitFor(Pro))
	assert.Equal(t, 1000, r.LimitFor(Premium))
	assert.False(t, r.SecondaryFormatAllowed(Free))
	assert.False(t, r.SecondaryFormatAllowed(Basic))
	assert.True(t, r.SecondaryFormatAllowed(Pro))
	assert.True(t, r.SecondaryFormatAllowed(Premium))
}

func TestUnknownPlanFallsBackToFree(t *testing.T) {
	r := Default()
	assert.Equal(t, 10, r.LimitFor("GOLD"))
	assert.False(t, r.SecondaryFormatAllowed("GOLD"))
	assert.Equal(t, Free, r.Lookup("").ID)
}

func TestParse(t *testing.T) {
	r := Default()
	t.Run("normalizes case and space", func(t *testing.T) {
		id, err := r.Parse("  pro ")
		require.NoError(t, err)
		assert.Equal(t, Pro, id)
	})
	t.Run("rejects unknown", func(t *testing.T) {
		_, err := r.Parse("enterprise")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPlan))
	})
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry("FREE", Definition{ID: "FREE", DailyLimit: 0})
	assert.Error(t, err)

	_, err = NewRegistry("MISSING", Definition{ID: "FREE", DailyLimit: 1})
	assert.Error(t, err)

	_, err = NewRegistry("FREE", Definition{ID: "FREE", DailyLimit: 1}, Definition{ID: "free", DailyLimit: 2})
	assert.Error(t, err)
}

func TestDefinitionsOrdered(t *testing.T) {
	defs := Default().Definitions()
	require.Len(t, defs, 4)
	assert.Equal(t, []ID{Free, Basic, Pro, Premium}, []ID{defs[0].ID, defs[1].ID, defs[2].ID, defs[3].ID})
}
