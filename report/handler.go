package report

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
)

// Pinger is the part of Client the health endpoint needs.
type Pinger interface {
	Ping(ctx context.Context) error
	State() gobreaker.State
}

// Handler reports whether certificates can currently be rendered.
type Handler struct {
	client Pinger
	logger *slog.Logger
}

// NewHandler creates a renderer health handler.
func NewHandler(client Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, logger: logger}
}

// MountRoutes registers GET /ping.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
}

type pingResponse struct {
	Status    string `json:"status"`
	Breaker   string `json:"breaker"`
	LatencyMS int64  `json:"latencyMs"`
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := h.client.Ping(r.Context())
	resp := pingResponse{
		Status:    "ok",
		Breaker:   h.client.State().String(),
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err), slog.String("breaker", resp.Breaker))
		resp.Status = "unavailable"
		httpx.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}
