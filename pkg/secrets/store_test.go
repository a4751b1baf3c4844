package secrets

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.Error(t, err)

	require.NoError(t, store.Set(ctx, "GEMINI_API_KEY", "k1"))
	v, err := store.Get(ctx, "GEMINI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "k1", v)

	require.NoError(t, store.Set(ctx, "GEMINI_BASE_URL", "u1"))
	keys, err := store.List(ctx, "GEMINI_")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, store.Delete(ctx, "GEMINI_API_KEY"))
	_, err = store.Get(ctx, "GEMINI_API_KEY")
	assert.Error(t, err)
}

func TestEnvStore(t *testing.T) {
	store := NewEnvStore()
	ctx := context.Background()

	os.Setenv("ASSISTANT_TEST_SECRET", "v")
	defer os.Unsetenv("ASSISTANT_TEST_SECRET")

	v, err := store.Get(ctx, "ASSISTANT_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = store.Get(ctx, "ASSISTANT_TEST_SECRET_MISSING")
	assert.Error(t, err)
}

func TestNewStoreDefaults(t *testing.T) {
	store, err := NewStore(Config{})
	require.NoError(t, err)
	assert.NotNil(t, store)

	store, err = NewStore(Config{Provider: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, store)

	_, err = NewStore(Config{Provider: "bogus"})
	assert.Error(t, err)
}
