// Package router configures HTTP routes for the occugridd HTTP API.
//
// The service exposes an HTTP server on port 8090 (configurable) that
// provides thermal frame ingest, occupancy queries, health checks, and
// Prometheus metrics. This package sets up the routes for that HTTP server.
//
// Routes configured:
//   - POST /api/thermal - Ingest a thermal frame upload
//   - GET /api/thermal - Latest expanded frame for the live view
//   - GET /api/occupancy/latest - Latest pipeline result
//   - GET /api/occupancy/history?day=YYYYMMDD - Day log in append order
//   - GET /api/occupancy/stats?day=YYYYMMDD - Day statistics
//   - GET / - Embedded live view page
//   - GET /api/test - Liveness probe for sensor firmware
//   - GET /healthz - Health check endpoint (503 when storage is unreachable)
//   - GET /metrics - Prometheus metrics endpoint
//
// Day parameters are validated against a ^\d{8}$ pattern plus a calendar
// parse before they reach the store.
package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/occugrid/occugrid/pkg/httpx"
	"github.com/occugrid/occugrid/pkg/occupancy"
	"github.com/occugrid/occugrid/pkg/storage"
	"github.com/occugrid/occugrid/pkg/thermal"
)

var dayPattern = regexp.MustCompile(`^\d{8}$`)

// Service is the pipeline surface the HTTP handlers drive.
type Service interface {
	ProcessFrame(ctx context.Context, raw []byte) (storage.Result, error)
	Latest(ctx context.Context) (storage.Result, error)
	History(ctx context.Context, day storage.DayKey) ([]occupancy.Sample, error)
	Stats(ctx context.Context, day storage.DayKey) (storage.DayStats, error)
}

// SetupRoutes configures HTTP endpoints for occugridd. The healthCheck
// function backs /healthz; a nil check makes the endpoint unconditionally
// healthy.
func SetupRoutes(svc Service, maxBodyBytes int64, healthCheck func() error, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Live view page
	mux.HandleFunc("/", handleIndex())

	// Thermal frame ingest and latest-frame retrieval
	mux.HandleFunc("/api/thermal", handleThermal(svc, maxBodyBytes, logger))

	// Occupancy queries
	mux.HandleFunc("/api/occupancy/latest", handleLatest(svc, logger))
	mux.HandleFunc("/api/occupancy/history", handleHistory(svc, logger))
	mux.HandleFunc("/api/occupancy/stats", handleStats(svc, logger))

	// Liveness probe kept for sensor firmware compatibility
	mux.HandleFunc("/api/test", handleTest())

	// Health check endpoint
	if healthCheck != nil {
		mux.Handle("/healthz", httpx.HealthHandlerWithCheck(healthCheck))
	} else {
		mux.Handle("/healthz", httpx.HealthHandler())
	}

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handleIndex serves the embedded live view page.
func handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(indexPage))
	}
}

// handleThermal dispatches POST (ingest) and GET (latest frame) on /api/thermal.
func handleThermal(svc Service, maxBodyBytes int64, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handleIngest(svc, maxBodyBytes, logger, w, r)
		case http.MethodGet:
			handleLatestFrame(svc, logger, w, r)
		default:
			httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// handleIngest processes POST /api/thermal.
func handleIngest(svc Service, maxBodyBytes int64, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) == 0 {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "no data received")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := svc.ProcessFrame(ctx, body)
	if err != nil {
		if errors.Is(err, thermal.ErrMalformedFrame) {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		logger.Error("failed to process frame", "error", err)
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := map[string]any{
		"status":    "success",
		"received":  len(result.Frame.Pixels),
		"occupancy": result.Occupancy,
		"room_temp": result.RoomTemp,
	}

	if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error("failed to write JSON response", "error", err)
	}
}

// handleLatestFrame processes GET /api/thermal for the live view page.
func handleLatestFrame(svc Service, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	result, err := svc.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoData) {
			httpx.WriteErrorMessage(w, http.StatusNotFound, "no data available")
			return
		}
		logger.Error("failed to get latest frame", "error", err)
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := map[string]any{
		"width":       result.Frame.Width,
		"height":      result.Frame.Height,
		"min_temp":    result.Frame.MinTemp,
		"max_temp":    result.Frame.MaxTemp,
		"pixels":      result.Frame.Pixels,
		"occupancy":   result.Occupancy,
		"room_temp":   result.RoomTemp,
		"last_update": result.ReceivedAt.Format(time.RFC3339),
	}

	if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error("failed to write JSON response", "error", err)
	}
}

// handleLatest returns a handler for GET /api/occupancy/latest.
func handleLatest(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		result, err := svc.Latest(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrNoData) {
				httpx.WriteErrorMessage(w, http.StatusNotFound, "no frame processed yet")
				return
			}
			logger.Error("failed to get latest result", "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, result); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleHistory returns a handler for GET /api/occupancy/history?day=YYYYMMDD.
func handleHistory(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		day, ok := dayParam(w, r)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		samples, err := svc.History(ctx, day)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpx.WriteError(w, http.StatusNotFound, err)
				return
			}
			logger.Error("failed to get history", "day", day, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		resp := map[string]any{
			"day":     day,
			"count":   len(samples),
			"samples": samples,
		}

		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleStats returns a handler for GET /api/occupancy/stats?day=YYYYMMDD.
func handleStats(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		day, ok := dayParam(w, r)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		stats, err := svc.Stats(ctx, day)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNoData) {
				httpx.WriteError(w, http.StatusNotFound, err)
				return
			}
			logger.Error("failed to get stats", "day", day, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, stats); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// dayParam extracts and validates the day query parameter, defaulting to the
// current local day. Writes a 400 response and returns ok=false on invalid
// input.
func dayParam(w http.ResponseWriter, r *http.Request) (storage.DayKey, bool) {
	raw := r.URL.Query().Get("day")
	if raw == "" {
		return storage.DayKeyFor(time.Now()), true
	}

	if !dayPattern.MatchString(raw) {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid day format (want YYYYMMDD)")
		return "", false
	}

	day, err := storage.ParseDayKey(raw)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return "", false
	}

	return day, true
}

// handleTest returns the liveness probe handler the sensor firmware polls.
func handleTest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"status": "server is running",
			"time":   time.Now().Format(time.RFC3339),
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			slog.Error("failed to write JSON response", "error", err)
		}
	}
}
