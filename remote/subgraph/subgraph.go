// Package subgraph reads and writes the remote graph through a GraphQL
// endpoint.
//
// Every operation document is validated against the embedded schema when
// the client is built, so a drifted query fails at startup instead of on the
// first sync. Queries are retried with backoff; mutations are sent once.
package subgraph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/pkg/retry"
	"github.com/c360/graphsync/remote"
)

//go:embed schema.graphql
var schemaSource string

// Client implements remote.Querier against a GraphQL endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	headers  http.Header
	retry    retry.Config
	logger   *slog.Logger
	schema   *ast.Schema
}

var _ remote.Querier = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 10s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(cl *Client) { cl.headers.Add(key, value) }
}

// WithRetry sets the retry policy for queries.
func WithRetry(cfg retry.Config) Option {
	return func(cl *Client) { cl.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New validates the operation documents and returns a client for endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "subgraph", "New", "endpoint is required")
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		headers:  make(http.Header),
		retry:    retry.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "subgraph", "endpoint", endpoint)

	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSource})
	if err != nil {
		return nil, errors.WrapFatal(err, "subgraph", "New", "load schema")
	}
	c.schema = schema
	for name, doc := range documents {
		if _, errs := gqlparser.LoadQuery(schema, doc); len(errs) > 0 {
			return nil, errors.WrapFatal(errs, "subgraph", "New", "validate operation "+name)
		}
	}
	return c, nil
}

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors gqlerror.List   `json:"errors"`
}

// do sends one operation and decodes data into out.
func (c *Client) do(ctx context.Context, op string, vars map[string]any, out any) error {
	body, err := json.Marshal(request{Query: documents[op], OperationName: op, Variables: vars})
	if err != nil {
		return retry.NonRetryable(errors.WrapInvalid(err, "subgraph", op, "encode request"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.NonRetryable(errors.WrapInvalid(err, "subgraph", op, "build request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapTransient(err, "subgraph", op, "send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return errors.WrapTransient(err, "subgraph", op, "read response")
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return errors.WrapTransient(fmt.Errorf("%w: status %d", errors.ErrRemoteUnavailable, resp.StatusCode),
			"subgraph", op, "request")
	case resp.StatusCode >= 400:
		return retry.NonRetryable(errors.WrapInvalid(fmt.Errorf("status %d: %s", resp.StatusCode, raw),
			"subgraph", op, "request"))
	}

	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return retry.NonRetryable(errors.WrapFatal(err, "subgraph", op, "decode response"))
	}
	if len(r.Errors) > 0 {
		return retry.NonRetryable(errors.WrapInvalid(r.Errors, "subgraph", op, "execute"))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return retry.NonRetryable(errors.WrapFatal(err, "subgraph", op, "decode data"))
	}
	return nil
}

// query runs op with retries.
func (c *Client) query(ctx context.Context, op string, vars map[string]any, out any) error {
	err := retry.Do(ctx, c.retry, func() error {
		return c.do(ctx, op, vars, out)
	})
	if err != nil {
		c.logger.Debug("Query failed", "operation", op, "error", err)
		var nre *retry.NonRetryableError
		if stderrors.As(err, &nre) {
			return nre.Err
		}
	}
	return err
}

// mutate runs op exactly once.
func (c *Client) mutate(ctx context.Context, op string, vars map[string]any) error {
	err := c.do(ctx, op, vars, nil)
	var nre *retry.NonRetryableError
	if stderrors.As(err, &nre) {
		return nre.Err
	}
	return err
}

func (c *Client) FetchEntity(ctx context.Context, id string) (*remote.EntityPayload, error) {
	var out struct {
		Entity *remote.EntityPayload `json:"entity"`
	}
	if err := c.query(ctx, "Entity", map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	return out.Entity, nil
}

func (c *Client) FetchTriples(ctx context.Context, entityID string) ([]graph.Triple, error) {
	var out struct {
		Triples []graph.Triple `json:"triples"`
	}
	err := c.query(ctx, "Triples", map[string]any{"entityId": entityID}, &out)
	return out.Triples, err
}

func (c *Client) FetchRelations(ctx context.Context, entityID string) ([]graph.Relation, error) {
	var out struct {
		Relations []graph.Relation `json:"relations"`
	}
	err := c.query(ctx, "Relations", map[string]any{"entityId": entityID}, &out)
	return out.Relations, err
}

func (c *Client) IsDeleted(ctx context.Context, id string) (bool, error) {
	var out struct {
		IsDeleted bool `json:"isDeleted"`
	}
	err := c.query(ctx, "IsDeleted", map[string]any{"id": id}, &out)
	return out.IsDeleted, err
}

func (c *Client) QueryEntities(ctx context.Context, f remote.Filter, p remote.Page) ([]remote.EntityPayload, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = remote.DefaultPageSize
	}
	vars := map[string]any{"offset": p.Offset, "limit": limit}
	if !f.IsEmpty() {
		vars["filter"] = f
	}
	var out struct {
		Entities []remote.EntityPayload `json:"entities"`
	}
	err := c.query(ctx, "Entities", vars, &out)
	return out.Entities, err
}

func (c *Client) PushEntity(ctx context.Context, e remote.EntityPayload) error {
	return c.mutate(ctx, "UpsertEntity", map[string]any{"entity": e})
}

func (c *Client) PushTriple(ctx context.Context, ch remote.TripleChange) error {
	op := "UpsertTriple"
	if ch.Deleted {
		op = "DeleteTriple"
	}
	return c.mutate(ctx, op, map[string]any{"triple": ch.Triple})
}

func (c *Client) PushRelation(ctx context.Context, ch remote.RelationChange) error {
	op := "UpsertRelation"
	if ch.Deleted {
		op = "DeleteRelation"
	}
	return c.mutate(ctx, op, map[string]any{"relation": ch.Relation})
}

func (c *Client) PushDelete(ctx context.Context, id string) error {
	return c.mutate(ctx, "DeleteEntity", map[string]any{"id": id})
}
