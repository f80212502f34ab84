package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ScrapeParseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scrape_parse_errors_total",
		Help: "Сырые записи скрейпа, отброшенные нормализатором",
	})
	ScrapeFetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scrape_fetch_errors_total",
		Help: "Ошибки загрузки сетки бронирования",
	})
	SlotsUpserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slots_upserted_total",
		Help: "Слоты, сохранённые в снимок",
	})
	NewSlotsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "new_slots_detected_total",
		Help: "Слоты, признанные новыми движком диффа",
	})
	EmailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Отправленные письма по типу уведомления",
	}, []string{"type"})
	EmailSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "email_send_errors_total",
		Help: "Ошибки отправки писем",
	})
	DispatchSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_seconds",
		Help:    "Время выполнения задач рассылки",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ScrapeParseErrors,
		ScrapeFetchErrors,
		SlotsUpserted,
		NewSlotsDetected,
		EmailsSent,
		EmailSendErrors,
		DispatchSeconds,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
