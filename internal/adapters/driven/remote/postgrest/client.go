// Package postgrest provides a RemoteStore adapter for PostgREST-style
// REST-over-relational endpoints such as Supabase.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.RemoteStore = (*Client)(nil)

// Default configuration values.
const (
	DefaultWriteTimeout = 30 * time.Second
	DefaultFetchTimeout = 60 * time.Second
)

// maxErrorBody caps how much of a failed response is kept as the error message.
const maxErrorBody = 4096

// Config holds configuration for the client.
type Config struct {
	// BaseURL is the REST root, e.g. https://xyz.supabase.co/rest/v1 (required).
	BaseURL string

	// APIKey is sent in the apikey header (required).
	APIKey string

	// BearerToken is sent as Authorization: Bearer. Defaults to APIKey.
	BearerToken string

	// TenantID restricts every request to one owning principal.
	TenantID string

	// RequestsPerSecond and Burst throttle outbound calls. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int

	// WriteTimeout bounds writes and single-row fetches (default: 30s).
	WriteTimeout time.Duration

	// FetchTimeout bounds full-table fetches (default: 60s).
	FetchTimeout time.Duration

	// Transport is the underlying round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to the remote store over HTTP.
type Client struct {
	http         *http.Client
	baseURL      string
	apiKey       string
	tenantID     string
	limiter      *rate.Limiter
	writeTimeout time.Duration
	fetchTimeout time.Duration
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("postgrest: %w", domain.ErrNotConfigured)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("postgrest: invalid base url: %w", err)
	}
	if cfg.BearerToken == "" {
		cfg.BearerToken = cfg.APIKey
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		http: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken}),
				Base:   cfg.Transport,
			},
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		tenantID:     cfg.TenantID,
		limiter:      limiter,
		writeTimeout: cfg.WriteTimeout,
		fetchTimeout: cfg.FetchTimeout,
	}, nil
}

// Factory builds a client from resolved settings. It matches driven.RemoteStoreFactory.
func Factory(settings domain.SyncSettings) (driven.RemoteStore, error) {
	if !settings.IsConfigured() {
		return nil, domain.ErrNotConfigured
	}
	return New(Config{
		BaseURL:           settings.Remote.BaseURL,
		APIKey:            settings.Remote.APIKey,
		BearerToken:       settings.Remote.BearerToken,
		TenantID:          settings.Remote.TenantID,
		RequestsPerSecond: settings.RateLimit.RequestsPerSecond,
		Burst:             settings.RateLimit.Burst,
	})
}

// Create upserts a row keyed by the identity column. Repeating it is harmless.
// Errors that are not *domain.RemoteError were raised before any request was sent.
func (c *Client) Create(ctx context.Context, spec domain.TableSpec, rec domain.Record) error {
	q := url.Values{}
	q.Set("on_conflict", spec.IdentityColumn())

	body, err := c.encodeRow(spec, rec)
	if err != nil {
		return fmt.Errorf("create %s: encode row: %w", spec.Name, err)
	}

	req := request{
		op:      "create",
		method:  http.MethodPost,
		table:   spec.Name,
		query:   q,
		body:    body,
		timeout: c.writeTimeout,
		headers: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
	}
	_, err = c.do(ctx, req)
	return err
}

// Update patches the row matching the record's identity key.
// PATCH is tunnelled through POST for proxies that drop it.
func (c *Client) Update(ctx context.Context, spec domain.TableSpec, rec domain.Record) error {
	if rec.IdentityKey == "" {
		return fmt.Errorf("update %s: %w", spec.Name, domain.ErrMissingIdentity)
	}
	body, err := c.encodeRow(spec, rec)
	if err != nil {
		return fmt.Errorf("update %s: encode row: %w", spec.Name, err)
	}

	req := request{
		op:      "update",
		method:  http.MethodPost,
		table:   spec.Name,
		query:   c.filterQuery(spec, driven.Eq(spec.IdentityColumn(), rec.IdentityKey)),
		body:    body,
		timeout: c.writeTimeout,
		headers: map[string]string{
			"X-HTTP-Method-Override": http.MethodPatch,
			"Prefer":                 "return=minimal",
		},
	}
	_, err = c.do(ctx, req)
	return err
}

// Delete removes the row matching identityKey.
func (c *Client) Delete(ctx context.Context, spec domain.TableSpec, identityKey string) error {
	if identityKey == "" {
		return fmt.Errorf("delete %s: %w", spec.Name, domain.ErrMissingIdentity)
	}
	_, err := c.do(ctx, request{
		op:      "delete",
		method:  http.MethodDelete,
		table:   spec.Name,
		query:   c.filterQuery(spec, driven.Eq(spec.IdentityColumn(), identityKey)),
		timeout: c.writeTimeout,
	})
	return err
}

// FetchAll returns every row of the table, most recently updated first.
func (c *Client) FetchAll(ctx context.Context, spec domain.TableSpec) ([]json.RawMessage, error) {
	return c.fetch(ctx, "fetch_all", spec, c.fetchTimeout, "")
}

// FetchOne returns the row matching identityKey, or nil if there is none.
func (c *Client) FetchOne(ctx context.Context, spec domain.TableSpec, identityKey string) (json.RawMessage, error) {
	rows, err := c.fetch(ctx, "fetch_one", spec, c.writeTimeout, "1", driven.Eq(spec.IdentityColumn(), identityKey))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FetchWhere returns rows matching every filter.
func (c *Client) FetchWhere(ctx context.Context, spec domain.TableSpec, filters ...driven.Filter) ([]json.RawMessage, error) {
	return c.fetch(ctx, "fetch_where", spec, c.writeTimeout, "", filters...)
}

func (c *Client) fetch(
	ctx context.Context,
	op string,
	spec domain.TableSpec,
	timeout time.Duration,
	limit string,
	filters ...driven.Filter,
) ([]json.RawMessage, error) {
	q := c.filterQuery(spec, filters...)
	q.Set("select", "*")
	q.Set("order", spec.TimestampColumn()+".desc")
	if limit != "" {
		q.Set("limit", limit)
	}

	data, err := c.do(ctx, request{
		op:      op,
		method:  http.MethodGet,
		table:   spec.Name,
		query:   q,
		timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &domain.RemoteError{
			Op: op, Table: spec.Name, StatusCode: http.StatusOK,
			Message: "response is not a JSON array", Err: err,
		}
	}
	return rows, nil
}

// encodeRow renders the remote row, stamping the tenant column when it is missing.
func (c *Client) encodeRow(spec domain.TableSpec, rec domain.Record) ([]byte, error) {
	row := spec.ToRemote(rec)
	if spec.TenantField != "" && c.tenantID != "" {
		if v, ok := row[spec.TenantField]; !ok || v == nil || v == "" {
			row[spec.TenantField] = c.tenantID
		}
	}
	return json.Marshal(row)
}

// filterQuery builds the query string for filters plus the tenant filter.
func (c *Client) filterQuery(spec domain.TableSpec, filters ...driven.Filter) url.Values {
	q := url.Values{}
	if spec.TenantField != "" && c.tenantID != "" {
		filters = append(filters, driven.Eq(spec.TenantField, c.tenantID))
	}
	for _, f := range filters {
		if len(f.Any) > 0 {
			parts := make([]string, 0, len(f.Any))
			for _, alt := range f.Any {
				parts = append(parts, alt.Column+"."+opOf(alt)+"."+quoteValue(alt.Value))
			}
			q.Add("or", "("+strings.Join(parts, ",")+")")
			continue
		}
		q.Add(f.Column, opOf(f)+"."+f.Value)
	}
	return q
}

func opOf(f driven.Filter) string {
	if f.Op == "" {
		return "eq"
	}
	return f.Op
}

// quoteValue double-quotes values containing characters reserved inside or=(...).
func quoteValue(v string) string {
	if !strings.ContainsAny(v, ",.:()\" ") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

type request struct {
	op      string
	method  string
	table   string
	query   url.Values
	body    []byte
	timeout time.Duration
	headers map[string]string
}

// do executes a request and returns the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.RemoteError{Op: r.op, Table: r.table, Message: "throttled", Err: err}
	}

	endpoint := c.baseURL + "/" + url.PathEscape(r.table)
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return nil, &domain.RemoteError{Op: r.op, Table: r.table, Message: "build request", Err: err}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.RemoteError{Op: r.op, Table: r.table, Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.RemoteError{
			Op:         r.op,
			Table:      r.table,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RemoteError{Op: r.op, Table: r.table, Message: "read response", Err: err}
	}
	return data, nil
}

func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return "request failed"
}

// errorMessage extracts the message field of a PostgREST error body,
// falling back to the raw text.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Details string `json:"details"`
		Hint    string `json:"hint"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		if body.Details != "" {
			return body.Message + ": " + body.Details
		}
		return body.Message
	}
	return strings.TrimSpace(string(data))
}
