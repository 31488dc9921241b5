package http

import (
	"net/url"
	"strings"
	"time"
)

// Request is a single API call. URL may be absolute or a path relative to the
// client's base URL.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    string
	Timeout time.Duration
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
		Query:   make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body string) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) SetQueryParam(key, value string) *Request {
	r.Query[key] = value
	return r
}

// BuildURL joins relative URLs to base and appends the query parameters.
func (r *Request) BuildURL(base string) string {
	target := r.URL
	if !strings.Contains(target, "://") && base != "" {
		target = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(target, "/")
	}

	if len(r.Query) == 0 {
		return target
	}

	u, err := url.Parse(target)
	if err != nil {
		return target
	}

	q := u.Query()
	for k, v := range r.Query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
