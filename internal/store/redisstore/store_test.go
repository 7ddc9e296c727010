package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCache(t *testing.T) {
	mr := miniredis.RunT(t)
	s := New(mr.Addr(), "", 0)
	defer s.Close()
	ctx := context.Background()

	_, ok, err := s.GetSearch(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSearch(ctx, "k", "Source #1: x", time.Minute))
	v, ok, err := s.GetSearch(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Source #1: x", v)

	mr.FastForward(2 * time.Minute)
	_, ok, err = s.GetSearch(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
