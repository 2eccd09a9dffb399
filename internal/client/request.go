package client

import (
	"fmt"
	"net/http"
	"strings"
)

// Param is a single query parameter. Order is preserved on the wire.
type Param struct {
	Key   string
	Value string
}

// P builds a Param, formatting value with fmt.Sprint
func P(key string, value interface{}) Param {
	return Param{Key: key, Value: fmt.Sprint(value)}
}

// QueryRequest identifies exactly one remote operation
type QueryRequest struct {
	Service string
	Params  []Param
}

// NewQueryRequest creates a request for service with params in the given order
func NewQueryRequest(service string, params ...Param) QueryRequest {
	p := make([]Param, len(params))
	copy(p, params)
	return QueryRequest{Service: service, Params: p}
}

// Encode joins params as key=value pairs separated by '&'.
// Values are written as-is: callers must not use '&' or '=' inside them.
func (r QueryRequest) Encode() string {
	parts := make([]string, 0, len(r.Params))
	for _, p := range r.Params {
		parts = append(parts, p.Key+"="+p.Value)
	}
	return strings.Join(parts, "&")
}

// URL returns the full request URL for baseURL
func (r QueryRequest) URL(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/") + "/" + r.Service + ".jsp"
	if len(r.Params) > 0 {
		u += "?" + r.Encode()
	}
	return u
}

// RawResponse is the result of one completed HTTP exchange
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
