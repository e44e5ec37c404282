package graphql

import (
	"context"
	"encoding/json"
)

// Transport names.
const (
	TransportHTTPS = "https"
	TransportWSS   = "wss"
)

// Request is one GraphQL operation.
type Request struct {
	ID            string         `json:"-"`
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is the raw result of an operation.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []Error         `json:"errors,omitempty"`
}

// Transport carries requests to the GraphQL endpoint.
type Transport interface {
	// Name is the transport name used in metrics and spans.
	Name() string
	// Method is the request method checked against the cacheable methods.
	Method() string
	Do(ctx context.Context, req *Request) (*Response, error)
	Close() error
}
