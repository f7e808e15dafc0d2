package entry

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// View is a read-through projection of a stored Entry with an Age header
// computed at read time. It never mutates the underlying Entry: the spec's
// rough-edge warning ("the source mutates a shared entry's Age header before
// returning it") is addressed by constructing a new header set here instead.
type View struct {
	entry *Entry
	age   int64
}

// NewView wraps entry with the Age value it should be served with.
func NewView(e *Entry, age int64) *View {
	if age < 0 {
		age = 0
	}
	return &View{entry: e, age: age}
}

// Entry returns the underlying, unmodified cache entry.
func (v *View) Entry() *Entry { return v.entry }

// Age returns the Age, in seconds, this view should be served with.
func (v *View) Age() int64 { return v.age }

// Header returns a copy of the stored header set with Age overridden. The
// stored entry's header map is never returned directly, so callers cannot
// accidentally mutate shared state.
func (v *View) Header() http.Header {
	h := v.entry.Header.Clone()
	h.Set("Age", fmt.Sprintf("%d", v.age))
	return h
}

// Response renders the view as an *http.Response suitable for returning to a
// caller. The returned response owns its own body reader; the entry's body
// bytes are not consumed.
func (v *View) Response(req *http.Request) *http.Response {
	body := io.NopCloser(bytes.NewReader(v.entry.Body))
	return &http.Response{
		Status:        http.StatusText(v.entry.Status),
		StatusCode:    v.entry.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        v.Header(),
		Body:          body,
		ContentLength: int64(len(v.entry.Body)),
		Request:       req,
	}
}
