// Package client provides the ClinicalTrials.gov v2 API client with
// fixed-delay retry, token pagination and study flattening.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/logging"
	"github.com/Sternrassler/ctgov-client/pkg/pagination"
	"github.com/Sternrassler/ctgov-client/pkg/study"
	"github.com/Sternrassler/ctgov-client/pkg/table"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL is the registry API root.
	DefaultBaseURL = "https://clinicaltrials.gov/api/v2"

	// DefaultMaxRetries is the default total number of attempts per request.
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the default pause between attempts.
	DefaultRetryDelay = 5 * time.Second

	// DefaultTimeout bounds a single HTTP call.
	DefaultTimeout = 10 * time.Second

	// DefaultStatus is the overall status filter used when none is given.
	DefaultStatus = "RECRUITING"

	// DefaultPageSize is the page size used when none is given.
	DefaultPageSize = 10

	// DefaultUserAgent identifies the client to the registry.
	DefaultUserAgent = "ctgov-client/0.1.0"

	studiesPath = "/studies"
	versionPath = "/version"

	tracerName = "github.com/Sternrassler/ctgov-client/pkg/client"
)

// Client talks to the registry API. A Client holds no per-fetch state and
// may be shared, but each FetchAll builds its own table.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root; /studies and /version are appended.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// MaxRetries is the total number of attempts for a page request.
	MaxRetries int

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration

	// Timeout bounds each HTTP call.
	Timeout time.Duration

	// MaxPages stops FetchAll with pagination.ErrPageLimit after this many
	// pages. Zero means no limit.
	MaxPages int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		UserAgent:  DefaultUserAgent,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Timeout:    DefaultTimeout,
		MaxPages:   0,
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is used as is.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL points the client at another API root, e.g. a mirror or a
// test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
		c.config.BaseURL = baseURL
	}
}

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a registry client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max_retries must be >= 1 (got %d)", cfg.MaxRetries)
	}
	if cfg.RetryDelay < 0 {
		return nil, fmt.Errorf("retry_delay must be >= 0 (got %s)", cfg.RetryDelay)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.MaxPages < 0 {
		return nil, fmt.Errorf("max_pages must be >= 0 (got %d)", cfg.MaxPages)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  logging.NewLogger(logging.ComponentClient),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Query selects the studies to fetch.
type Query struct {
	// Condition is sent as query.cond.
	Condition string

	// Status is sent as filter.overallStatus. Defaults to RECRUITING.
	Status string

	// PageSize is sent as pageSize. Defaults to 10.
	PageSize int
}

func (q Query) withDefaults() Query {
	if q.Status == "" {
		q.Status = DefaultStatus
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	return q
}

// Values encodes the query for one page request. The page token is omitted
// on the first page.
func (q Query) Values(token string) url.Values {
	q = q.withDefaults()

	v := url.Values{}
	if q.Condition != "" {
		v.Set("query.cond", q.Condition)
	}
	v.Set("filter.overallStatus", q.Status)
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	v.Set("format", "json")
	if token != "" {
		v.Set("pageToken", token)
	}
	return v
}

// Page is one decoded page of search results.
type Page struct {
	Studies       []study.Raw `json:"studies"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// VersionInfo describes the API release.
type VersionInfo struct {
	APIVersion    string         `json:"apiVersion"`
	DataTimestamp string         `json:"dataTimestamp"`
	Raw           map[string]any `json:"-"`
}

// FetchPage requests one page of studies. Transport failures are retried
// with a fixed delay; once attempts run out the last error is returned
// unchanged. A body that is not valid JSON yields a *DecodeError and is not
// retried.
func (c *Client) FetchPage(ctx context.Context, q Query, token string) (*Page, error) {
	q = q.withDefaults()

	ctx, span := c.tracer.Start(ctx, "ctgov.FetchPage", trace.WithAttributes(
		attribute.String("ctgov.condition", q.Condition),
		attribute.String("ctgov.status", q.Status),
		attribute.Int("ctgov.page_size", q.PageSize),
		attribute.Bool("ctgov.first_page", token == ""),
	))
	defer span.End()

	endpoint := c.baseURL + studiesPath
	params := q.Values(token)

	var body []byte
	err := retryFixed(ctx, c.retryConfig(), c.logger.With().Str("endpoint", studiesPath).Logger(), func(attempt int) error {
		span.SetAttributes(attribute.Int("ctgov.attempts", attempt))
		var reqErr error
		body, reqErr = c.get(ctx, endpoint, studiesPath, params)
		return reqErr
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		decErr := &DecodeError{Endpoint: studiesPath, Err: err}
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Error().Err(err).Str("endpoint", studiesPath).Msg("Malformed studies page")
		recordSpanError(span, decErr)
		return nil, decErr
	}

	pagesFetchedTotal.Inc()
	span.SetAttributes(
		attribute.Int("ctgov.studies", len(page.Studies)),
		attribute.Bool("ctgov.has_next", page.NextPageToken != ""),
	)
	c.logger.Debug().
		Int("studies", len(page.Studies)).
		Bool("has_next", page.NextPageToken != "").
		Msg("Fetched studies page")

	return &page, nil
}

// FetchAll fetches every page for q, flattens the studies and returns them
// as one table in page order. Pages are concatenated, not merged. On error no
// table is returned.
func (c *Client) FetchAll(ctx context.Context, q Query) (*table.Table, error) {
	q = q.withDefaults()
	runID := uuid.New().String()
	logger := c.logger.With().
		Str("run_id", runID).
		Str("condition", q.Condition).
		Str("status", q.Status).
		Logger()

	ctx, span := c.tracer.Start(ctx, "ctgov.FetchAll", trace.WithAttributes(
		attribute.String("ctgov.run_id", runID),
		attribute.String("ctgov.condition", q.Condition),
	))
	defer span.End()

	start := time.Now()
	result := table.New(study.Fields...)

	walker := pagination.NewWalker(pagination.Config{
		MaxPages:      c.config.MaxPages,
		ProgressEvery: 50,
	}).WithLogger(logger)

	pages, err := walker.Walk(ctx, func(ctx context.Context, token string) (string, error) {
		page, err := c.FetchPage(ctx, q, token)
		if err != nil {
			return "", err
		}

		rows, err := FlattenPage(page.Studies)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return "", &DecodeError{Endpoint: studiesPath, Err: err}
		}
		result.AppendTable(rows)

		return page.NextPageToken, nil
	})
	if err != nil {
		logger.Error().
			Err(err).
			Int("pages", pages).
			Msg("Fetch failed")
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("ctgov.pages", pages),
		attribute.Int("ctgov.rows", result.Len()),
	)
	logger.Info().
		Int("pages", pages).
		Int("rows", result.Len()).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}

// FlattenPage flattens the studies of one page into a table and converts the
// date columns to time.Time. Unparseable dates become null.
func FlattenPage(studies []study.Raw) (*table.Table, error) {
	t := table.New(study.Fields...)
	for i, raw := range studies {
		rec, err := study.Flatten(raw)
		if err != nil {
			return nil, fmt.Errorf("study %d: %w", i, err)
		}
		t.Append(rec.Row())
	}
	studiesFlattenedTotal.Add(float64(len(studies)))

	for _, col := range study.DateFields {
		t.ConvertColumn(col, study.CoerceDate)
	}
	return t, nil
}

// GetVersion returns the API release information. It makes a single attempt.
func (c *Client) GetVersion(ctx context.Context) (*VersionInfo, error) {
	ctx, span := c.tracer.Start(ctx, "ctgov.GetVersion")
	defer span.End()

	body, err := c.get(ctx, c.baseURL+versionPath, versionPath, nil)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		decErr := &DecodeError{Endpoint: versionPath, Err: err}
		recordSpanError(span, decErr)
		return nil, decErr
	}

	info := &VersionInfo{Raw: raw}
	info.APIVersion, _ = raw["apiVersion"].(string)
	info.DataTimestamp, _ = raw["dataTimestamp"].(string)

	return info, nil
}

// get performs one GET and returns the decoded body of a 2xx response.
func (c *Client) get(ctx context.Context, endpoint, label string, params url.Values) ([]byte, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	target := endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", acceptEncoding)

	c.logger.Debug().
		Str("endpoint", label).
		Str("page_token", params.Get("pageToken")).
		Msg("Executing registry request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := classOf(err)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(label, string(class)).Inc()
		return nil, err
	}

	body, readErr := readBody(resp)
	requestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Endpoint:   label,
			Message:    resp.Status,
			Body:       body,
		}
	}
	if errors.Is(readErr, ErrResponseTooLarge) {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &DecodeError{Endpoint: label, Err: readErr}
	}
	if readErr != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, readErr
	}

	return body, nil
}

func (c *Client) retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: c.config.MaxRetries,
		Delay:       c.config.RetryDelay,
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}
