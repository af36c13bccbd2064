// Package httpapi exposes ingestion, rebuild and payroll operations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"timeclock/internal/attendance"
	"timeclock/internal/auth"
	"timeclock/internal/payroll"
	"timeclock/internal/timeclock"
)

// Attendance is the subset of attendance.Service used by handlers.
type Attendance interface {
	Ingest(ctx context.Context, studentID string, ts time.Time, action, source string) (timeclock.RawEvent, error)
	RebuildSessions(ctx context.Context, lookbackDays int) (attendance.RebuildResult, error)
}

// Payroll is the subset of payroll.Service used by handlers.
type Payroll interface {
	GeneratePayroll(ctx context.Context, periodID string) (payroll.Summary, error)
	Balance(ctx context.Context, studentID string, since *time.Time) (payroll.Balance, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Handler serves the HTTP API.
type Handler struct {
	att    Attendance
	pay    Payroll
	checks map[string]HealthChecker
	logger *slog.Logger
}

// NewHandler wires handlers to services. checks are reported by /healthz
// under their map keys.
func NewHandler(att Attendance, pay Payroll, checks map[string]HealthChecker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{att: att, pay: pay, checks: checks, logger: logger}
}

// Register mounts every route on r. Staff routes require a bearer token with
// the staff role. limit may be nil.
func Register(r *gin.Engine, h *Handler, iss *auth.Issuer, limit gin.HandlerFunc) {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/events", limit, h.ingest)

	staff := v1.Group("", auth.Bearer(iss), auth.RequireRole(auth.RoleStaff), limit)
	staff.POST("/sessions/rebuild", h.rebuild)
	staff.POST("/payroll/:periodId/generate", h.generatePayroll)
	staff.GET("/students/:id/balance", h.balance)
}

func (h *Handler) health(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for _, name := range names {
		ok := h.checks[name].Healthy(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

type ingestRequest struct {
	Student   string `json:"student" binding:"required"`
	Timestamp string `json:"timestamp" binding:"required"`
	Action    string `json:"action" binding:"required"`
	Source    string `json:"source"`
}

func (h *Handler) ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evt, err := h.att.Ingest(c.Request.Context(), req.Student, ts, req.Action, req.Source)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "ingest failed", err)
		return
	}
	c.JSON(http.StatusCreated, evt)
}

func (h *Handler) rebuild(c *gin.Context) {
	days := 0
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = parsed
	}

	res, err := h.att.RebuildSessions(c.Request.Context(), days)
	if err != nil {
		h.internalError(c, "rebuild failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) generatePayroll(c *gin.Context) {
	periodID := c.Param("periodId")
	sum, err := h.pay.GeneratePayroll(c.Request.Context(), periodID)
	if err != nil {
		if errors.Is(err, payroll.ErrPeriodNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pay period not found"})
			return
		}
		h.internalError(c, "payroll generation failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"periodId":       sum.PeriodID,
		"recordsWritten": sum.RecordsWritten,
		"skipped":        sum.Skipped,
		"reason":         sum.Reason,
	})
}

func (h *Handler) balance(c *gin.Context) {
	var since *time.Time
	if v := c.Query("since"); v != "" {
		t, err := time.ParseInLocation(timeclock.DateLayout, v, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be YYYY-MM-DD"})
			return
		}
		since = &t
	}

	bal, err := h.pay.Balance(c.Request.Context(), c.Param("id"), since)
	if err != nil {
		h.internalError(c, "balance lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
