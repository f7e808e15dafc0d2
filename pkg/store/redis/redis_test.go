package redis

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResp(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Cache-Control": {"max-age=60"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestValidateRequiresEndpoint(t *testing.T) {
	cfg := Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrNoEndpoint)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{Endpoint: mr.Addr(), KeyPrefix: "httpcache:"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://example.org/resource", nil)
	key := req.URL.String()
	now := time.Now()

	stored, err := s.Put(context.Background(), key, newResp("testbody"), now, now, 1<<20)
	require.NoError(t, err)

	got, ok := s.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, stored.Body, got.Body)
	assert.Equal(t, "testbody", string(got.Body))
}

func TestRedisStoreMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{Endpoint: mr.Addr()})
	require.NoError(t, err)

	_, ok := s.Get(context.Background(), "http://example.org/missing")
	assert.False(t, ok)
}

func TestRedisStoreEvict(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{Endpoint: mr.Addr()})
	require.NoError(t, err)

	key := "http://example.org/resource"
	now := time.Now()
	_, err = s.Put(context.Background(), key, newResp("testbody"), now, now, 1<<20)
	require.NoError(t, err)

	s.Evict(context.Background(), key)
	_, ok := s.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestRedisStoreClearOnlyPrefixedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{Endpoint: mr.Addr(), KeyPrefix: "httpcache:"})
	require.NoError(t, err)

	now := time.Now()
	_, err = s.Put(context.Background(), "http://example.org/a", newResp("a"), now, now, 1<<20)
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "http://example.org/b", newResp("b"), now, now, 1<<20)
	require.NoError(t, err)

	require.NoError(t, mr.Set("unrelated:key", "value"))

	s.Clear(context.Background())

	_, ok := s.Get(context.Background(), "http://example.org/a")
	assert.False(t, ok)
	_, ok = s.Get(context.Background(), "http://example.org/b")
	assert.False(t, ok)

	v, err := mr.Get("unrelated:key")
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestRedisStoreBodyTooLarge(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{Endpoint: mr.Addr()})
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "http://example.org/big", newResp(strings.Repeat("x", 2000)), time.Now(), time.Now(), 1024)
	require.Error(t, err)
}
