package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedProfile struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	c, err := NewClient(mr.Addr())
	require.NoError(t, err)
	SetClient(c)
	t.Cleanup(func() {
		SetClient(nil)
		_ = c.Close()
		mr.Close()
	})
	return mr
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedProfile) func() error {
		return func() error {
			calls++
			*dest = cachedProfile{ID: 3, Name: "Asha"}
			return nil
		}
	}

	var first cachedProfile
	require.NoError(t, Aside(ctx, ProfileKey(3), &first, ProfileTTL, fetch(&first)))
	var second cachedProfile
	require.NoError(t, Aside(ctx, ProfileKey(3), &second, ProfileTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestAside_InvalidateForcesRefetch(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	calls := 0
	var p cachedProfile
	fetch := func() error {
		calls++
		p = cachedProfile{ID: 4}
		return nil
	}

	require.NoError(t, Aside(ctx, ProfileKey(4), &p, ProfileTTL, fetch))
	InvalidateProfile(ctx, 4, "asha")
	require.NoError(t, Aside(ctx, ProfileKey(4), &p, ProfileTTL, fetch))
	assert.Equal(t, 2, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	var p cachedProfile
	err := Aside(ctx, SettingKey("x"), &p, SettingTTL, func() error { return errors.New("boom") })
	assert.Error(t, err)
	assert.False(t, mr.Exists(SettingKey("x")))
}

func TestAside_WithoutClientCallsFetch(t *testing.T) {
	SetClient(nil)
	var p cachedProfile
	called := false
	err := Aside(context.Background(), ProfileKey(1), &p, ProfileTTL, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestAside_RedisDownFallsBackToFetch(t *testing.T) {
	mr := withMiniredis(t)
	mr.Close()

	var p cachedProfile
	called := false
	err := Aside(context.Background(), ProfileKey(9), &p, ProfileTTL, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestNewClient_ParsesURL(t *testing.T) {
	c, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)

	_, err = NewClient("redis://[::1")
	assert.Error(t, err)

}
