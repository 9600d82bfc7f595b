package handlers

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"connect4_events/internal/ws"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	backend     Pinger
	backendName string
	hub         *ws.Hub
	startTime   time.Time
	version     string
}

// NewHealthHandler creates a new health handler. backend may be nil for
// the in-process bus, which is always ready.
func NewHealthHandler(backend Pinger, backendName string, hub *ws.Hub, version string) *HealthHandler {
	return &HealthHandler{
		backend:     backend,
		backendName: backendName,
		hub:         hub,
		startTime:   time.Now(),
		version:     version,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Backend   string            `json:"backend"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness only reports that the process serves HTTP.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness fails with 503 while the relay backend does not answer a ping.
// Room and runtime figures are informational.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ready",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Backend:   h.backendName,
		Checks: map[string]string{
			"rooms":      strconv.Itoa(h.hub.RoomCount()),
			"goroutines": strconv.Itoa(runtime.NumGoroutine()),
		},
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	resp.Checks["heap_mb"] = strconv.FormatFloat(float64(m.HeapAlloc)/(1<<20), 'f', 2, 64)

	code := http.StatusOK
	if err := h.ping(ctx); err != nil {
		resp.Status = "not ready"
		resp.Checks["backend"] = err.Error()
		code = http.StatusServiceUnavailable
	} else {
		resp.Checks["backend"] = "ok"
	}
	c.JSON(code, resp)
}

// Health is the short form of Readiness for load balancers.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "backend": h.backendName})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": h.backendName, "version": h.version})
}

func (h *HealthHandler) ping(ctx context.Context) error {
	if h.backend == nil {
		return nil
	}
	return h.backend.Ping(ctx)
}
