package cachecontrol

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func seconds[T int | int64 | float64](i T) time.Duration {
	return time.Duration(i * T(time.Second))
}

func TestParseRequest(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		expected RequestDirectives
	}{
		{
			"empty header",
			"",
			RequestDirectives{MaxAge: Unset, MinFresh: Unset, MaxStale: Unset},
		},
		{
			"max-age and no-store",
			"max-age=3600, no-store",
			RequestDirectives{NoStore: true, MaxAge: seconds(3600), MinFresh: Unset, MaxStale: Unset},
		},
		{
			"no-cache and bare max-stale",
			"no-cache, max-stale",
			RequestDirectives{NoCache: true, MaxAge: Unset, MinFresh: Unset, MaxStale: time.Duration(math.MaxInt64)},
		},
		{
			"max-stale with value",
			"max-stale=40",
			RequestDirectives{MaxAge: Unset, MinFresh: Unset, MaxStale: seconds(40)},
		},
		{
			"quoted arguments",
			`max-age="10", min-fresh="20"`,
			RequestDirectives{MaxAge: seconds(10), MinFresh: seconds(20), MaxStale: Unset},
		},
		{
			"unknown directives ignored",
			"max-age=10, unknown-directive, unknown=50",
			RequestDirectives{MaxAge: seconds(10), MinFresh: Unset, MaxStale: Unset},
		},
		{
			"malformed numeric argument fails only that directive",
			"max-age=ten, min-fresh=20",
			RequestDirectives{MaxAge: Unset, MinFresh: seconds(20), MaxStale: Unset},
		},
		{
			"negative argument is treated as unset",
			"max-age=-5",
			RequestDirectives{MaxAge: Unset, MinFresh: Unset, MaxStale: Unset},
		},
		{
			"duplicate directive is last-wins",
			"max-age=10, max-age=20",
			RequestDirectives{MaxAge: seconds(20), MinFresh: Unset, MaxStale: Unset},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseRequest(tc.header))
		})
	}
}

func TestParseResponse(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		expected ResponseDirectives
	}{
		{
			"empty header",
			"",
			ResponseDirectives{MaxAge: Unset, SMaxAge: Unset, StaleWhileRevalidate: Unset, StaleIfError: Unset},
		},
		{
			"max-age and public",
			"public, max-age=60",
			ResponseDirectives{Public: true, MaxAge: seconds(60), SMaxAge: Unset, StaleWhileRevalidate: Unset, StaleIfError: Unset},
		},
		{
			"s-maxage independent of max-age",
			"max-age=60, s-maxage=120",
			ResponseDirectives{MaxAge: seconds(60), SMaxAge: seconds(120), StaleWhileRevalidate: Unset, StaleIfError: Unset},
		},
		{
			"private and must-revalidate",
			"private, must-revalidate",
			ResponseDirectives{Private: true, MustRevalidate: true, MaxAge: Unset, SMaxAge: Unset, StaleWhileRevalidate: Unset, StaleIfError: Unset},
		},
		{
			"proxy-revalidate",
			"proxy-revalidate, no-store",
			ResponseDirectives{ProxyRevalidate: true, NoStore: true, MaxAge: Unset, SMaxAge: Unset, StaleWhileRevalidate: Unset, StaleIfError: Unset},
		},
		{
			"stale extensions",
			"max-age=60, stale-while-revalidate=30, stale-if-error=300",
			ResponseDirectives{MaxAge: seconds(60), SMaxAge: Unset, StaleWhileRevalidate: seconds(30), StaleIfError: seconds(300)},
		},
		{
			"duplicate max-age is last-wins",
			"max-age=10, max-age=20",
			ResponseDirectives{MaxAge: seconds(20), SMaxAge: Unset, StaleWhileRevalidate: Unset, StaleIfError: Unset},
		},
		{
			"malformed numeric argument fails only that directive",
			"max-age=abc, no-cache",
			ResponseDirectives{NoCache: true, MaxAge: Unset, SMaxAge: Unset, StaleWhileRevalidate: Unset, StaleIfError: Unset},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseResponse(tc.header))
		})
	}
}

func TestParseResponseCaseInsensitive(t *testing.T) {
	d := ParseResponse("PUBLIC, MAX-AGE=60")
	assert.True(t, d.Public)
	assert.Equal(t, seconds(60), d.MaxAge)
}
