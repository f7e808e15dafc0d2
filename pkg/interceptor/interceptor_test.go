package interceptor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacheio/httpcache/pkg/clock"
	"github.com/kacheio/httpcache/pkg/policy"
	"github.com/kacheio/httpcache/pkg/store"
)

func newReq(t *testing.T, header http.Header) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "http://example.org/resource", nil)
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}

func responder(resps ...*http.Response) (Executor, *int) {
	calls := 0
	return func(req *http.Request) (*http.Response, error) {
		idx := calls
		if idx > len(resps)-1 {
			idx = len(resps) - 1
		}
		calls++
		return resps[idx], nil
	}, &calls
}

func newOriginResponse(status int, header http.Header, body string) *http.Response {
	h := http.Header{}
	for k, vv := range header {
		for _, v := range vv {
			h.Add(k, v)
		}
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newInterceptor(t *testing.T, now time.Time) (*Interceptor, *store.Memory) {
	t.Helper()
	s, err := store.NewMemory(store.MemoryConfig{})
	require.NoError(t, err)
	p := policy.New(false, 1<<20)
	return New(s, p, nil, clock.NewFake(now)), s
}

func TestScenario1StoreAndServe(t *testing.T) {
	now := time.Now()
	i, _ := newInterceptor(t, now)

	originResp := newOriginResponse(http.StatusOK, http.Header{
		"Cache-Control": {"max-age=3600"},
		"Date":          {now.UTC().Format(http.TimeFormat)},
	}, "testbody")
	executor, calls := responder(originResp)

	resp1, outcome1, err := i.Intercept(newReq(t, nil), nil, executor)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMiss, outcome1)
	body1, _ := io.ReadAll(resp1.Body)
	assert.Equal(t, "testbody", string(body1))
	assert.Equal(t, 1, *calls)

	i.Clock.(*clock.Fake).Advance(30 * time.Minute)

	resp2, outcome2, err := i.Intercept(newReq(t, nil), nil, executor)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHit, outcome2)
	assert.Equal(t, 1, *calls, "executor must not be invoked on second request")

	body2, _ := io.ReadAll(resp2.Body)
	assert.Equal(t, "testbody", string(body2))
	age, err := time.ParseDuration(resp2.Header.Get("Age") + "s")
	require.NoError(t, err)
	assert.InDelta(t, (30 * time.Minute).Seconds(), age.Seconds(), 2)
}

func TestScenario2StaleConditional304Refreshes(t *testing.T) {
	now := time.Now()
	i, s := newInterceptor(t, now)

	firstResp := newOriginResponse(http.StatusOK, http.Header{
		"Cache-Control": {"max-age=100"},
		"Date":          {now.Add(-200 * time.Second).UTC().Format(http.TimeFormat)},
		"Etag":          {`"v1"`},
	}, "testbody")
	notModified := newOriginResponse(http.StatusNotModified, http.Header{
		"Date": {now.UTC().Format(http.TimeFormat)},
		"Etag": {`"v1"`},
	}, "")

	req := newReq(t, nil)
	key := store.Key(req)
	_, err := s.Put(req.Context(), key, firstResp, now.Add(-200*time.Second), now.Add(-200*time.Second), 1<<20)
	require.NoError(t, err)

	var sawConditional bool
	executor := func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			sawConditional = true
		}
		return notModified, nil
	}

	resp, outcome, err := i.Intercept(req, nil, executor)
	require.NoError(t, err)
	assert.True(t, sawConditional)
	assert.Equal(t, OutcomeRevalidated, outcome)
	assert.NotNil(t, resp)

	refreshed, ok := s.Get(req.Context(), key)
	require.True(t, ok)
	assert.Equal(t, now.UTC().Format(http.TimeFormat), refreshed.Header.Get("Date"))
	assert.Equal(t, http.StatusOK, refreshed.Status, "revalidation must keep the cached status, not the 304's")
	assert.Equal(t, "testbody", string(refreshed.Body), "revalidation must keep the cached body, the 304 has none")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "testbody", string(body))
}

func TestScenario3StaleIfErrorServesStaleEntry(t *testing.T) {
	now := time.Now()
	i, s := newInterceptor(t, now)

	firstResp := newOriginResponse(http.StatusOK, http.Header{
		"Cache-Control": {"max-age=100"},
		"Date":          {now.Add(-200 * time.Second).UTC().Format(http.TimeFormat)},
		"Etag":          {`"v1"`},
	}, "testbody")
	serverError := newOriginResponse(http.StatusInternalServerError, http.Header{
		"Date": {now.UTC().Format(http.TimeFormat)},
	}, "")

	req := newReq(t, nil)
	key := store.Key(req)
	_, err := s.Put(req.Context(), key, firstResp, now.Add(-200*time.Second), now.Add(-200*time.Second), 1<<20)
	require.NoError(t, err)

	executor := func(r *http.Request) (*http.Response, error) {
		return serverError, nil
	}

	resp, outcome, err := i.Intercept(req, nil, executor)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStaleOnError, outcome)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "testbody", string(body))
}

func TestScenario4NoStoreNeverCachedOrServed(t *testing.T) {
	now := time.Now()
	i, s := newInterceptor(t, now)

	req := newReq(t, nil)
	key := store.Key(req)
	cached := newOriginResponse(http.StatusOK, http.Header{
		"Cache-Control": {"max-age=3600"},
		"Date":          {now.UTC().Format(http.TimeFormat)},
	}, "testbody")
	_, err := s.Put(req.Context(), key, cached, now, now, 1<<20)
	require.NoError(t, err)

	noStoreReq := newReq(t, http.Header{"Cache-Control": {"no-store"}})
	originResp := newOriginResponse(http.StatusOK, http.Header{
		"Cache-Control": {"max-age=3600"},
		"Date":          {now.UTC().Format(http.TimeFormat)},
	}, "fresh-origin-body")
	executor, calls := responder(originResp)

	resp, outcome, err := i.Intercept(noStoreReq, nil, executor)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBypass, outcome)
	assert.Equal(t, 1, *calls)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "fresh-origin-body", string(body))
}

func TestBodyTooLargeLeavesOriginResponseUntouched(t *testing.T) {
	now := time.Now()
	s, err := store.NewMemory(store.MemoryConfig{})
	require.NoError(t, err)
	p := policy.New(false, 1024)
	i := New(s, p, nil, clock.NewFake(now))

	req := newReq(t, nil)
	want := strings.Repeat("x", 2000)
	big := newOriginResponse(http.StatusOK, http.Header{
		"Cache-Control": {"max-age=60"},
		"Date":          {now.UTC().Format(http.TimeFormat)},
	}, want)
	executor, _ := responder(big)

	resp, outcome, err := i.Intercept(req, nil, executor)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMiss, outcome)
	require.NotNil(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, want, string(body), "caller must receive the real, untouched origin body")

	_, ok := s.Get(req.Context(), store.Key(req))
	assert.False(t, ok, "cache must remain empty for that key")
}
