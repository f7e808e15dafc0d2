package cachecontrol

import (
	"net/http"
	"time"
)

// httpRFC850 is time.RFC850 with the timezone hard-coded to GMT, matching
// the obsolete RFC 850 date format.
const httpRFC850 = "Monday, 02-Jan-06 15:04:05 GMT"

// dateFormats lists the HTTP-date formats a recipient must accept per
// https://datatracker.ietf.org/doc/html/rfc7231#section-7.1.1.1.
var dateFormats = [...]string{
	http.TimeFormat, // preferred: IMF-fixdate, RFC 1123
	httpRFC850,      // obsolete RFC 850 format
	time.ANSIC,      // obsolete asctime() format
}

// ParseHTTPDate parses an HTTP-date header value. It returns the zero time
// if s is empty or matches none of the accepted formats; callers treat the
// zero time as "absent" per spec.
func ParseHTTPDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
