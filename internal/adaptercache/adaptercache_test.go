package adaptercache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weimengliu/textproof/internal/config"
	"github.com/weimengliu/textproof/internal/provider"
)

type fakeAdapter struct{ name string }

func (a *fakeAdapter) Name() string { return a.name }
func (a *fakeAdapter) Correct(ctx context.Context, text, prompt string) (string, error) {
	return text, nil
}
func (a *fakeAdapter) HealthCheck(ctx context.Context) bool { return true }

func TestGetOrCreateBuildsOnceThenReusesCachedAdapter(t *testing.T) {
	c, err := New(0, nil, nil)
	require.NoError(t, err)

	builds := 0
	build := func() (provider.Adapter, error) {
		builds++
		return &fakeAdapter{name: "openai"}, nil
	}

	a1, err := c.GetOrCreate("openai", "gpt-4o-mini", build)
	require.NoError(t, err)
	a2, err := c.GetOrCreate("openai", "gpt-4o-mini", build)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, 1, builds)
}

func TestGetOrCreateKeysByProviderAndModelSeparately(t *testing.T) {
	c, err := New(0, nil, nil)
	require.NoError(t, err)

	build := func(name string) func() (provider.Adapter, error) {
		return func() (provider.Adapter, error) { return &fakeAdapter{name: name}, nil }
	}

	_, err = c.GetOrCreate("openai", "gpt-4o-mini", build("a"))
	require.NoError(t, err)
	_, err = c.GetOrCreate("openai", "gpt-4", build("b"))
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
}

func TestConfigMutationPurgesCache(t *testing.T) {
	st, err := config.NewStore("", nil)
	require.NoError(t, err)

	c, err := New(0, st, nil)
	require.NoError(t, err)

	_, err = c.GetOrCreate("openai", "gpt-4o-mini", func() (provider.Adapter, error) {
		return &fakeAdapter{name: "openai"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	_, err = st.Update(func(s *config.Settings) { s.DefaultModel = "gpt-4" }, false)
	require.NoError(t, err)

	assert.Equal(t, 0, c.Len())
}
