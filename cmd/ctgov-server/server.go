package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/metrics"
	"github.com/Sternrassler/ctgov-client/pkg/pagination"
	"github.com/Sternrassler/ctgov-client/pkg/store"
	"github.com/Sternrassler/ctgov-client/pkg/study"
	"github.com/Sternrassler/ctgov-client/pkg/table"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Error codes returned in the "code" field.
const (
	codeValidation  = "VALIDATION_ERROR"
	codeInvalidJSON = "INVALID_JSON"
	codeNotFound    = "NOT_FOUND"
	codeUpstream    = "UPSTREAM_ERROR"
	codeMalformed   = "MALFORMED_RESPONSE"
	codePageLimit   = "PAGE_LIMIT_EXCEEDED"
	codeInternal    = "INTERNAL_SERVER_ERROR"
)

const (
	maxPageSize         = 1000
	defaultSummaryField = study.FieldPhase
)

// listColumns hold ", " joined lists and are counted per item in summaries.
var listColumns = map[string]bool{
	study.FieldConditions: true,
	study.FieldKeywords:   true,
	study.FieldPhase:      true,
}

// registry is the part of *client.Client the server uses.
type registry interface {
	FetchAll(ctx context.Context, q client.Query) (*table.Table, error)
	GetVersion(ctx context.Context) (*client.VersionInfo, error)
}

// datasets is the part of *store.Store the server uses.
type datasets interface {
	Save(ctx context.Context, name string, t *table.Table, ttl time.Duration) error
	Load(ctx context.Context, name string) (*store.Dataset, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
}

type server struct {
	registry registry
	datasets datasets
	ttl      time.Duration
	logger   zerolog.Logger
}

func newServer(r registry, d datasets, ttl time.Duration, logger zerolog.Logger) *server {
	return &server{registry: r, datasets: d, ttl: ttl, logger: logger}
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondWithError(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: message, Details: details})
}

func (s *server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/version", s.version)
		api.GET("/trials", s.trials)
		api.GET("/trials/summary", s.summary)

		ds := api.Group("/datasets")
		{
			ds.GET("", s.listDatasets)
			ds.POST("/merge", s.mergeDatasets)
			ds.GET("/:name", s.getDataset)
			ds.DELETE("/:name", s.deleteDataset)
		}
	}

	return r
}

// requestLogger tags every request with an id and logs it on completion.
func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		evt := s.logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = s.logger.Error()
		}
		evt.Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}

func (s *server) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *server) version(c *gin.Context) {
	info, err := s.registry.GetVersion(c.Request.Context())
	if err != nil {
		s.respondWithFetchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"api_version":    info.APIVersion,
		"data_timestamp": info.DataTimestamp,
	})
}

// parseQuery reads condition, status and page_size from the query string.
func parseQuery(c *gin.Context) (client.Query, error) {
	q := client.Query{
		Condition: strings.TrimSpace(c.Query("condition")),
		Status:    strings.ToUpper(strings.TrimSpace(c.Query("status"))),
	}
	if q.Condition == "" {
		return q, errors.New("condition is required")
	}
	if v := c.Query("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return q, fmt.Errorf("page_size must be between 1 and %d (got %q)", maxPageSize, v)
		}
		q.PageSize = n
	}
	return q, nil
}

func (s *server) trials(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}

	save := c.Query("save")
	if save == "auto" {
		save = store.DatasetKey(q)
	}
	if save != "" {
		if err := store.ValidateName(save); err != nil {
			respondWithError(c, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return
		}
	}

	result, err := s.registry.FetchAll(c.Request.Context(), q)
	if err != nil {
		s.respondWithFetchError(c, err)
		return
	}

	if save != "" {
		if err := s.datasets.Save(c.Request.Context(), save, result, s.ttl); err != nil {
			s.respondWithStoreError(c, err)
			return
		}
		c.Header("X-Dataset", save)
	}

	if c.Query("format") == "csv" {
		writeCSV(c, "trials.csv", result)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rows":    result.Len(),
		"dataset": save,
		"table":   result,
	})
}

func (s *server) summary(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	column := c.DefaultQuery("column", defaultSummaryField)
	if !slices.Contains(study.Fields, column) {
		respondWithError(c, http.StatusBadRequest, codeValidation,
			fmt.Sprintf("unknown column %q", column), gin.H{"columns": study.Fields})
		return
	}

	result, err := s.registry.FetchAll(c.Request.Context(), q)
	if err != nil {
		s.respondWithFetchError(c, err)
		return
	}

	var counts []table.Count
	if listColumns[column] {
		counts = result.SplitValueCounts(column, ",")
	} else {
		counts = result.ValueCounts(column)
	}

	c.JSON(http.StatusOK, gin.H{
		"rows":   result.Len(),
		"column": column,
		"counts": counts,
	})
}

func (s *server) listDatasets(c *gin.Context) {
	names, err := s.datasets.List(c.Request.Context())
	if err != nil {
		s.respondWithStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": names})
}

func (s *server) getDataset(c *gin.Context) {
	ds, err := s.datasets.Load(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.respondWithStoreError(c, err)
		return
	}

	if c.Query("format") == "csv" {
		writeCSV(c, ds.Name+".csv", ds.Table)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":     ds.Name,
		"saved_at": ds.SavedAt,
		"rows":     ds.Rows,
		"table":    ds.Table,
	})
}

func (s *server) deleteDataset(c *gin.Context) {
	if err := s.datasets.Delete(c.Request.Context(), c.Param("name")); err != nil {
		s.respondWithStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// mergeRequest is the body of POST /api/datasets/merge.
type mergeRequest struct {
	Left  string `json:"left" binding:"required"`
	Right string `json:"right" binding:"required"`
	How   string `json:"how"`
	Save  string `json:"save"`
}

func (s *server) mergeDatasets(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, codeInvalidJSON, "invalid merge request", err.Error())
		return
	}

	how, err := table.ParseJoinType(req.How)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	if req.Save != "" {
		if err := store.ValidateName(req.Save); err != nil {
			respondWithError(c, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return
		}
	}

	ctx := c.Request.Context()
	left, err := s.datasets.Load(ctx, req.Left)
	if err != nil {
		s.respondWithStoreError(c, err)
		return
	}
	right, err := s.datasets.Load(ctx, req.Right)
	if err != nil {
		s.respondWithStoreError(c, err)
		return
	}

	merged, err := table.Merge(left.Table, right.Table, how)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, codeInternal, err.Error(), nil)
		return
	}

	if req.Save != "" {
		if err := s.datasets.Save(ctx, req.Save, merged, s.ttl); err != nil {
			s.respondWithStoreError(c, err)
			return
		}
	}

	s.logger.Info().
		Str("left", req.Left).
		Str("right", req.Right).
		Str("how", string(how)).
		Int("rows", merged.Len()).
		Msg("Datasets merged")

	c.JSON(http.StatusOK, gin.H{
		"rows":    merged.Len(),
		"how":     how,
		"dataset": req.Save,
		"table":   merged,
	})
}

// respondWithFetchError maps registry failures to 502 unless the page limit
// or a cancelled request is to blame.
func (s *server) respondWithFetchError(c *gin.Context, err error) {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, pagination.ErrPageLimit):
		respondWithError(c, http.StatusUnprocessableEntity, codePageLimit, err.Error(), nil)
	case errors.Is(err, client.ErrMalformedResponse):
		respondWithError(c, http.StatusBadGateway, codeMalformed, err.Error(), nil)
	case errors.As(err, &apiErr):
		respondWithError(c, http.StatusBadGateway, codeUpstream, err.Error(), gin.H{
			"status": apiErr.StatusCode,
			"class":  apiErr.ErrorClass,
		})
	default:
		respondWithError(c, http.StatusBadGateway, codeUpstream, err.Error(), nil)
	}
}

func (s *server) respondWithStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrDatasetNotFound):
		respondWithError(c, http.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.Is(err, store.ErrInvalidName):
		respondWithError(c, http.StatusBadRequest, codeValidation, err.Error(), nil)
	default:
		s.logger.Error().Err(err).Msg("Dataset store failure")
		respondWithError(c, http.StatusInternalServerError, codeInternal, "dataset store failure", err.Error())
	}
}

func writeCSV(c *gin.Context, filename string, t *table.Table) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := t.WriteCSV(c.Writer); err != nil {
		_ = c.Error(err)
	}
}
