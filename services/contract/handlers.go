// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contract

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/contracts/services/contract/analysis"
	"github.com/AleutianAI/contracts/services/contract/meta"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is returned by HandleHealth.
type HealthResponse struct {
	Status  string `json:"status"`
	Catalog Status `json:"catalog"`
}

// TypeInfo describes one declared type.
type TypeInfo struct {
	Name         string `json:"name"`
	Key          string `json:"key"`
	Kind         string `json:"kind"`
	Base         string `json:"base,omitempty"`
	Interfaces   int    `json:"interfaces"`
	Methods      int    `json:"methods"`
	Properties   int    `json:"properties"`
	Constructors int    `json:"constructors"`
}

// TypesResponse is returned by HandleTypes.
type TypesResponse struct {
	Types []TypeInfo `json:"types"`
}

// AnalysisResponse is returned by HandleAnalysis.
type AnalysisResponse struct {
	Type    string           `json:"type"`
	Member  string           `json:"member"`
	Inherit bool             `json:"inherit"`
	Results []MemberAnalysis `json:"results"`
}

// ReloadResponse is returned by HandleReload.
type ReloadResponse struct {
	Changed bool   `json:"changed"`
	Catalog Status `json:"catalog"`
}

// Handlers serves the contract HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	service *Service

	// reloads limits HandleReload. Nil when unlimited.
	reloads *rate.Limiter

	// closing is closed by Close to end event streams.
	closing   chan struct{}
	closeOnce sync.Once
}

// NewHandlers creates handlers for service. POST /reload is limited to
// server.reloads_per_minute, with a burst of the same size.
func NewHandlers(service *Service) *Handlers {
	h := &Handlers{service: service, closing: make(chan struct{})}
	if n := service.Config().Server.ReloadsPerMinute; n > 0 {
		h.reloads = rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
	}
	return h
}

// Close ends open event streams. It is safe to call more than once.
func (h *Handlers) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)
	return id
}

func respond(c *gin.Context, handler string, code int, body any) {
	requestsTotal.WithLabelValues(handler, strconv.Itoa(code)).Inc()
	c.JSON(code, body)
}

func respondError(c *gin.Context, handler, requestID string, code int, errCode string, err error) {
	respond(c, handler, code, ErrorResponse{Error: err.Error(), Code: errCode, RequestID: requestID})
}

// inheritParam parses the optional inherit query parameter.
func (h *Handlers) inheritParam(c *gin.Context) (bool, error) {
	v := c.Query("inherit")
	if v == "" {
		return h.service.Config().Analyzer.Inherit, nil
	}
	return strconv.ParseBool(v)
}

// HandleHealth handles GET /v1/contracts/health.
//
// Response:
//
//	200 OK: HealthResponse with status "healthy"
//	503 Service Unavailable: HealthResponse with status "unavailable" when
//	    no catalog is loaded
func (h *Handlers) HandleHealth(c *gin.Context) {
	status := h.service.Status()
	if !status.Loaded {
		respond(c, "health", http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Catalog: status})
		return
	}
	respond(c, "health", http.StatusOK, HealthResponse{Status: "healthy", Catalog: status})
}

// HandleTypes handles GET /v1/contracts/types.
//
// Response:
//
//	200 OK: TypesResponse
//	503 Service Unavailable: no catalog is loaded
func (h *Handlers) HandleTypes(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	types, err := h.service.Types()
	if err != nil {
		respondError(c, "types", requestID, http.StatusServiceUnavailable, "NOT_LOADED", err)
		return
	}
	out := TypesResponse{Types: make([]TypeInfo, 0, len(types))}
	for _, t := range types {
		info := TypeInfo{
			Name:         t.String(),
			Key:          t.Key(),
			Kind:         t.Kind.String(),
			Interfaces:   len(t.Interfaces),
			Methods:      len(t.Methods),
			Properties:   len(t.Properties),
			Constructors: len(t.Constructors),
		}
		if t.Base != nil {
			info.Base = t.Base.String()
		}
		out.Types = append(out.Types, info)
	}
	respond(c, "types", http.StatusOK, out)
}

// HandleAnalysis handles GET /v1/contracts/analysis.
//
// Query Parameters:
//
//	type: Type name (required)
//	member: Member name, property name or .ctor (required)
//	inherit: Include inherited declarations (optional, defaults to
//	         analyzer.inherit)
//
// Response:
//
//	200 OK: AnalysisResponse
//	400 Bad Request: Missing or invalid parameter
//	404 Not Found: Unknown type or member
//	422 Unprocessable Entity: The member could not be analyzed
//	503 Service Unavailable: No catalog is loaded
func (h *Handlers) HandleAnalysis(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalysis")

	typeName, member := c.Query("type"), c.Query("member")
	if typeName == "" || member == "" {
		respondError(c, "analysis", requestID, http.StatusBadRequest, "MISSING_PARAMETER",
			errors.New("type and member parameters are required"))
		return
	}
	inherit, err := h.inheritParam(c)
	if err != nil {
		respondError(c, "analysis", requestID, http.StatusBadRequest, "INVALID_PARAMETER",
			errors.New("inherit must be a boolean"))
		return
	}

	start := time.Now()
	results, err := h.service.Analyze(c.Request.Context(), typeName, member, inherit)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotLoaded):
		respondError(c, "analysis", requestID, http.StatusServiceUnavailable, "NOT_LOADED", err)
		return
	case errors.Is(err, meta.ErrUnknownType), errors.Is(err, ErrUnknownMember):
		respondError(c, "analysis", requestID, http.StatusNotFound, "NOT_FOUND", err)
		return
	case errors.Is(err, analysis.ErrResolution):
		logger.Warn("analysis failed", slog.String("error", err.Error()))
		respondError(c, "analysis", requestID, http.StatusUnprocessableEntity, "ANALYSIS_FAILED", err)
		return
	default:
		logger.Error("analysis failed", slog.String("error", err.Error()))
		respondError(c, "analysis", requestID, http.StatusInternalServerError, "INTERNAL_ERROR", err)
		return
	}

	logger.Debug("analysis served",
		slog.String("type", typeName),
		slog.String("member", member),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)),
	)
	respond(c, "analysis", http.StatusOK, AnalysisResponse{
		Type:    typeName,
		Member:  member,
		Inherit: inherit,
		Results: results,
	})
}

// HandleReport handles GET /v1/contracts/report.
//
// Query Parameters:
//
//	inherit: Include inherited declarations (optional)
//
// Response:
//
//	200 OK: Report
//	400 Bad Request: Invalid parameter
//	503 Service Unavailable: No catalog is loaded
func (h *Handlers) HandleReport(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	inherit, err := h.inheritParam(c)
	if err != nil {
		respondError(c, "report", requestID, http.StatusBadRequest, "INVALID_PARAMETER",
			errors.New("inherit must be a boolean"))
		return
	}
	rep, err := h.service.Report(c.Request.Context(), inherit)
	if err != nil {
		respondError(c, "report", requestID, http.StatusServiceUnavailable, "NOT_LOADED", err)
		return
	}
	respond(c, "report", http.StatusOK, rep)
}

// HandleReload handles POST /v1/contracts/reload.
//
// Response:
//
//	200 OK: ReloadResponse
//	409 Conflict: No catalog path is configured
//	422 Unprocessable Entity: The catalog document is invalid; the
//	    previous catalog stays in service
//	429 Too Many Requests: server.reloads_per_minute exceeded; Retry-After
//	    gives the wait in seconds
//	500 Internal Server Error: The file could not be read
func (h *Handlers) HandleReload(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReload")

	if h.reloads != nil {
		r := h.reloads.Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			respondError(c, "reload", requestID, http.StatusTooManyRequests, "RATE_LIMITED",
				errors.New("reload rate limit exceeded"))
			return
		}
	}

	changed, err := h.service.Reload(c.Request.Context())
	switch {
	case err == nil:
	case errors.Is(err, ErrNoCatalogPath):
		respondError(c, "reload", requestID, http.StatusConflict, "NO_CATALOG_PATH", err)
		return
	case errors.Is(err, meta.ErrInvalidCatalog):
		respondError(c, "reload", requestID, http.StatusUnprocessableEntity, "INVALID_CATALOG", err)
		return
	default:
		logger.Error("reload failed", slog.String("error", err.Error()))
		respondError(c, "reload", requestID, http.StatusInternalServerError, "RELOAD_FAILED", err)
		return
	}
	respond(c, "reload", http.StatusOK, ReloadResponse{Changed: changed, Catalog: h.service.Status()})
}
