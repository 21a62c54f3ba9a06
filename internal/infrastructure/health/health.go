// Package health реализует HTTP healthcheck сервер для мониторинга синхронизации расписаний.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"schedparser/internal/batch"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// MetricsSource отдает метрики обработки групп
type MetricsSource interface {
	Metrics() batch.MetricsSnapshot
}

// Server представляет HTTP сервер для health check
type Server struct {
	server    *http.Server
	logger    *zap.Logger
	startTime time.Time
	db        Pinger
	batch     MetricsSource
}

// Status представляет статус здоровья системы
type Status struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Uptime     string                 `json:"uptime"`
	Components map[string]string      `json:"components,omitempty"`
	Batch      *batch.MetricsSnapshot `json:"batch,omitempty"`
}

// NewHealthServer создает новый health check сервер
func NewHealthServer(port string, logger *zap.Logger, db Pinger, source MetricsSource) *Server {
	mux := http.NewServeMux()

	hs := &Server{
		server: &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:    logger,
		startTime: time.Now(),
		db:        db,
		batch:     source,
	}

	// Регистрируем маршруты
	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)

	return hs
}

// Handler возвращает обработчик маршрутов
func (hs *Server) Handler() http.Handler {
	return hs.server.Handler
}

// Start запускает health check сервер и блокируется до остановки
func (hs *Server) Start() error {
	hs.logger.Info("Starting health check server", zap.String("addr", hs.server.Addr))
	if err := hs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server failed: %w", err)
	}
	return nil
}

// Stop останавливает health check сервер
func (hs *Server) Stop(ctx context.Context) error {
	hs.logger.Info("Stopping health check server")
	return hs.server.Shutdown(ctx)
}

// formatDuration форматирует время в читаемый формат (например: 8s)
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

func (hs *Server) status(ctx context.Context, ok string) (Status, bool) {
	components := hs.checkComponents(ctx)

	healthy := true
	for _, s := range components {
		if s != "healthy" {
			healthy = false
			break
		}
	}

	st := Status{
		Status:     ok,
		Timestamp:  time.Now(),
		Uptime:     formatDuration(time.Since(hs.startTime)),
		Components: components,
	}
	if !healthy {
		st.Status = "unhealthy"
	}
	if hs.batch != nil {
		snapshot := hs.batch.Metrics()
		st.Batch = &snapshot
	}
	return st, healthy
}

// healthHandler обрабатывает запросы /health: процесс жив, компоненты только сообщаются
func (hs *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	st, _ := hs.status(r.Context(), "healthy")
	if st.Status == "unhealthy" {
		st.Status = "degraded"
	}
	hs.writeJSON(w, http.StatusOK, st)
}

// readyHandler обрабатывает запросы /ready
func (hs *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	st, healthy := hs.status(r.Context(), "ready")
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
		hs.logger.Warn("Health check failed", zap.Any("components", st.Components))
	}
	hs.writeJSON(w, code, st)
}

func (hs *Server) writeJSON(w http.ResponseWriter, code int, st Status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		hs.logger.Error("Failed to encode health status", zap.Error(err))
	}
}

// checkComponents проверяет состояние всех компонентов
func (hs *Server) checkComponents(ctx context.Context) map[string]string {
	components := make(map[string]string)

	if hs.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := hs.db.Ping(pingCtx); err != nil {
			components["database"] = "unhealthy"
			hs.logger.Error("Database check failed", zap.Error(err))
		} else {
			components["database"] = "healthy"
		}
	}

	if hs.batch != nil {
		m := hs.batch.Metrics()
		if m.Runs > 0 && m.LastRun.Total > 0 && m.LastRun.Succeeded == 0 {
			components["last_sync"] = "unhealthy"
		} else {
			components["last_sync"] = "healthy"
		}
	}

	return components
}
