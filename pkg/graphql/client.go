// Package graphql is the session to the asset-management GraphQL service:
// HTTP and WebSocket transports, a response cache and authentication.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/metrics"
	"github.com/bd-pipeline/bd-loader/pkg/telemetry"
)

// Config selects the endpoint and the cache policy.
type Config struct {
	HTTPSEndpoint string
	WSSEndpoint   string
	Transport     string
	CacheTTL      time.Duration
	CacheMethods  []string
	Timeout       time.Duration
}

// Client executes GraphQL operations. It is safe for concurrent use.
type Client struct {
	transport Transport
	cache     *Cache
	group     singleflight.Group
	log       *zap.Logger
}

// NewClient wraps a transport. cache may be nil.
func NewClient(transport Transport, cache *Cache) *Client {
	return &Client{
		transport: transport,
		cache:     cache,
		log:       logging.Named("graphql"),
	}
}

// Dial builds the transport selected by cfg and starts the cache janitor.
func Dial(ctx context.Context, cfg Config, tokens oauth2.TokenSource) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var transport Transport
	switch cfg.Transport {
	case "", TransportHTTPS:
		if cfg.HTTPSEndpoint == "" {
			return nil, fmt.Errorf("no https endpoint configured")
		}
		transport = NewHTTPTransport(ctx, cfg.HTTPSEndpoint, tokens, cfg.Timeout)
	case TransportWSS:
		if cfg.WSSEndpoint == "" {
			return nil, fmt.Errorf("no wss endpoint configured")
		}
		transport = NewWSTransport(cfg.WSSEndpoint, tokens, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	cache := NewCache(cfg.CacheTTL, cfg.CacheMethods)
	if err := cache.StartJanitor(); err != nil {
		return nil, fmt.Errorf("start cache janitor: %w", err)
	}
	return NewClient(transport, cache), nil
}

// Close stops the cache janitor and closes the transport.
func (c *Client) Close() error {
	if c.cache != nil {
		c.cache.StopJanitor()
	}
	return c.transport.Close()
}

// Cache returns the response cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

var operationPattern = regexp.MustCompile(`^\s*(?:query|mutation|subscription)\s+(\w+)`)

func operationName(query string) string {
	if m := operationPattern.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return "anonymous"
}

// Execute runs query with variables and decodes the data object into out.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	req := &Request{
		ID:            uuid.NewString(),
		Query:         query,
		OperationName: operationName(query),
		Variables:     variables,
	}

	ctx, span := telemetry.StartSpan(ctx, "graphql."+req.OperationName,
		attribute.String("graphql.operation", req.OperationName),
		attribute.String("graphql.transport", c.transport.Name()),
		attribute.String("request.id", req.ID),
	)
	defer span.End()

	start := time.Now()
	resp, cached, err := c.do(ctx, req)
	if err == nil {
		err = decode(req.OperationName, resp, out)
	}
	metrics.GraphQLQuery(req.OperationName, c.transport.Name(), cached, err)
	span.SetAttributes(attribute.Bool("graphql.cached", cached))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Debug("graphql request failed",
			zap.String("operation", req.OperationName),
			zap.String("request_id", req.ID),
			zap.Error(err))
		return err
	}
	c.log.Debug("graphql request",
		zap.String("operation", req.OperationName),
		zap.String("request_id", req.ID),
		zap.Bool("cached", cached),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// do serves req from the cache, or from the transport with identical
// in-flight requests collapsed into one.
func (c *Client) do(ctx context.Context, req *Request) (*Response, bool, error) {
	cacheable := c.cache.Allows(c.transport.Method())
	key := requestKey(req)
	if cacheable {
		if resp, ok := c.cache.Get(key); ok {
			return resp, true, nil
		}
	}

	v, err, _ := c.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		resp, err := c.transport.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if cacheable && len(resp.Errors) == 0 {
			c.cache.Set(key, resp)
		}
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Response), false, nil
}

func decode(operation string, resp *Response, out any) error {
	if len(resp.Errors) > 0 {
		return &ResponseError{Operation: operation, Errors: resp.Errors}
	}
	data := bytes.TrimSpace(resp.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrNoData
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", operation, err)
	}
	return nil
}
