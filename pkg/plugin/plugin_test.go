package plugin_test

import (
	"context"
	"testing"

	"github.com/illmade-knight/go-inclusionfilter/pkg/plugin"
	"github.com/illmade-knight/go-inclusionfilter/pkg/resultset"
	"github.com/illmade-knight/go-inclusionfilter/pkg/selector"
	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlugin_Lifecycle(t *testing.T) {
	ctx := context.Background()

	// Arrange
	p, err := plugin.New(plugin.Config{
		Selector: selector.Config{KeyFunc: func() string { return "1" }},
	}, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	reg := plugin.NewMemoryRegistry()

	newSet := func() *resultset.Memory {
		rs := resultset.NewMemory("tag")
		for _, tag := range []string{"a", "x", "b"} {
			_, err := rs.Add(resultset.Record{"tag": tag})
			require.NoError(t, err)
		}
		return rs
	}
	args := selector.Args{"tag", selector.Options{{Key: "includes", Value: "a,b"}}}

	t.Run("Load seeds the cache", func(t *testing.T) {
		require.NoError(t, p.OnLoad(ctx))
		_, ok := p.Cache().Get(plugin.SeedKey)
		assert.True(t, ok)
	})

	t.Run("Register exposes the selector", func(t *testing.T) {
		require.NoError(t, p.OnRegister(reg))
		assert.Equal(t, []string{selector.Name}, reg.Names())

		err := p.OnRegister(reg)
		assert.ErrorIs(t, err, types.ErrInvalidArgument, "Registering twice should fail")
	})

	t.Run("Registered selector filters", func(t *testing.T) {
		fn, ok := reg.Lookup(selector.Name)
		require.True(t, ok)
		rs := newSet()

		require.NoError(t, fn(ctx, args, rs))
		assert.Equal(t, 2, rs.Len())
		assert.Equal(t, []string{plugin.SeedKey, "1"}, p.Cache().Keys())
	})

	t.Run("Unload clears the cache and disables calls", func(t *testing.T) {
		require.NoError(t, p.OnUnload())
		_, ok := p.Cache().Get(plugin.SeedKey)
		assert.False(t, ok)

		fn, _ := reg.Lookup(selector.Name)
		rs := newSet()
		err := fn(ctx, args, rs)
		assert.ErrorIs(t, err, types.ErrNotInitialized)
		assert.Equal(t, 3, rs.Len())
	})

	t.Run("Reload restores service", func(t *testing.T) {
		require.NoError(t, p.OnLoad(ctx))
		fn, _ := reg.Lookup(selector.Name)
		rs := newSet()
		require.NoError(t, fn(ctx, args, rs))
		assert.Equal(t, 2, rs.Len())
	})
}

func TestMemoryRegistry_Validation(t *testing.T) {
	reg := plugin.NewMemoryRegistry()
	assert.ErrorIs(t, reg.Register("", nil), types.ErrInvalidArgument)
	_, ok := reg.Lookup("missing")
	assert.False(t, ok)
}
