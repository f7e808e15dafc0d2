package memcache

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer is the conventional local memcache address. Tests that need a
// live server skip when nothing is listening there, since this package has
// no in-process fake for the memcache wire protocol.
const testServer = "127.0.0.1:11211"

func requireMemcache(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testServer, 200*time.Millisecond)
	if err != nil {
		t.Skipf("no memcache server listening on %s: %v", testServer, err)
	}
	conn.Close()
}

func newResp(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Cache-Control": {"max-age=60"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestMemcacheStoreRoundTrip(t *testing.T) {
	requireMemcache(t)
	s := New(Config{Servers: []string{testServer}, KeyPrefix: "httpcache-test:"})

	key := "http://example.org/resource"
	now := time.Now()
	stored, err := s.Put(context.Background(), key, newResp("testbody"), now, now, 1<<20)
	require.NoError(t, err)

	got, ok := s.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, stored.Body, got.Body)
	assert.Equal(t, "testbody", string(got.Body))

	s.Evict(context.Background(), key)
	_, ok = s.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestMemcacheKeyTruncatesToServerLimit(t *testing.T) {
	s := New(Config{KeyPrefix: strings.Repeat("p", 300)})
	assert.LessOrEqual(t, len(s.memcacheKey("http://example.org/resource")), maxKeyLength)
}
