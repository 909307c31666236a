package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"listingbot/internal/monitor"
)

// Backend is what the HTTP surface needs from the app.
type Backend interface {
	Status() Status
	CheckNow(ctx context.Context) monitor.Result
}

// Status is the JSON body of GET /status.
type Status struct {
	Cached    int        `json:"cached"`
	Running   bool       `json:"running"`
	ChatID    int64      `json:"chat_id,omitempty"`
	ThreadID  int        `json:"thread_id,omitempty"`
	Interval  int64      `json:"interval_seconds"`
	NextCheck *time.Time `json:"next_check,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	Last      *Result    `json:"last,omitempty"`
	Uptime    string     `json:"uptime"`
}

// Result mirrors monitor.Result for JSON.
type Result struct {
	RunID      string `json:"run_id,omitempty"`
	Trigger    string `json:"trigger"`
	Status     string `json:"status"`
	Fetched    int    `json:"fetched"`
	New        int    `json:"new"`
	Delivered  int    `json:"delivered"`
	Failed     int    `json:"failed"`
	Suppressed bool   `json:"suppressed,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	FetchError string `json:"fetch_error,omitempty"`
	CacheError string `json:"cache_error,omitempty"`
}

func ResultJSON(r monitor.Result) *Result {
	out := &Result{
		RunID:      r.RunID,
		Trigger:    string(r.Trigger),
		Status:     string(r.Status),
		Fetched:    r.Fetched,
		New:        r.New,
		Delivered:  r.Delivered,
		Failed:     r.Failed,
		Suppressed: r.Suppressed,
		DurationMS: r.Duration().Milliseconds(),
	}
	if r.FetchErr != nil {
		out.FetchError = r.FetchErr.Error()
	}
	if r.CacheErr != nil {
		out.CacheError = r.CacheErr.Error()
	}
	return out
}

type Handler struct {
	backend Backend
}

func NewHandler(b Backend) *Handler {
	return &Handler{backend: b}
}

// HealthCheck reports process liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.backend.Status())
}

// Check runs a manual check and reports its outcome.
func (h *Handler) Check(c *gin.Context) {
	res := h.backend.CheckNow(c.Request.Context())
	code := http.StatusOK
	switch res.Status {
	case monitor.StatusSkipped, monitor.StatusNoTarget:
		code = http.StatusConflict
	case monitor.StatusFetchFailed:
		code = http.StatusBadGateway
	}
	c.JSON(code, ResultJSON(res))
}
