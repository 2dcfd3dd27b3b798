package swcache

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes an intercepted request.
type Request struct {
	Method string
	URL    string
	Header http.Header
}

// NewRequest creates a GET request for an absolute URL.
func NewRequest(u string) *Request {
	return &Request{Method: http.MethodGet, URL: u, Header: http.Header{}}
}

// Key returns request identity in cache store, URL without fragment.
func (r *Request) Key() string {
	return RequestKey(r.URL)
}

// Accepts checks if Accept header contains media type.
func (r *Request) Accepts(mediaType string) bool {
	if r.Header == nil {
		return false
	}

	for _, v := range r.Header.Values("Accept") {
		if strings.Contains(v, mediaType) {
			return true
		}
	}

	return false
}

// RequestKey normalizes URL into cache key.
func RequestKey(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}

	return u
}

// path returns URL path or raw value if URL can not be parsed.
func (r *Request) path() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return RequestKey(r.URL)
	}

	return u.Path
}

// Response is a stored or fetched HTTP response.
type Response struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte

	// StoredAt is set by cache stores on Put.
	StoredAt time.Time
}

// OK is true for 2xx statuses.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Clone returns a deep copy of response.
func (r *Response) Clone() *Response {
	c := *r
	c.Header = r.Header.Clone()

	if r.Body != nil {
		c.Body = make([]byte, len(r.Body))
		copy(c.Body, r.Body)
	}

	return &c
}

// NotFoundResponse returns a synthesized empty response with status 404.
func NotFoundResponse() *Response {
	return &Response{
		Status:     http.StatusNotFound,
		StatusText: "Offline - audio file not cached",
		Header:     http.Header{},
		Body:       []byte{},
	}
}
