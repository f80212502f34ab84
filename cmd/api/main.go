package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"teetime-monitor/internal/adapters/repo"
	"teetime-monitor/internal/domain"
	"teetime-monitor/internal/infra/config"
	"teetime-monitor/internal/infra/db"
	"teetime-monitor/internal/infra/metrics"
)

func main() {
	cfg := config.Load()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Get("/api/v1/preferences", func(w http.ResponseWriter, r *http.Request) {
		prefs, err := repoAdapter.ListPreferences()
		if err != nil {
			log.Error().Err(err).Msg("api: список предпочтений")
			writeError(w, http.StatusInternalServerError, "failed to list preferences")
			return
		}
		out := make([]preferenceResponse, 0, len(prefs))
		for _, pref := range prefs {
			out = append(out, toResponse(pref))
		}
		writeJSON(w, out)
	})

	r.Get("/api/v1/preferences/{email}", func(w http.ResponseWriter, r *http.Request) {
		pref, err := repoAdapter.GetPreference(chi.URLParam(r, "email"))
		if err != nil {
			if errors.Is(err, repo.ErrPreferenceNotFound) {
				writeError(w, http.StatusNotFound, "preference not found")
				return
			}
			log.Error().Err(err).Msg("api: чтение предпочтения")
			writeError(w, http.StatusInternalServerError, "failed to get preference")
			return
		}
		writeJSON(w, toResponse(pref))
	})

	r.Post("/api/v1/preferences", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req preferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		pref, err := req.toDomain(cfg)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := repoAdapter.UpsertPreference(pref)
		if err != nil {
			log.Error().Err(err).Str("email", pref.Email).Msg("api: сохранение предпочтения")
			writeError(w, http.StatusInternalServerError, "failed to save preference")
			return
		}
		writeJSON(w, toResponse(saved))
	})

	r.Delete("/api/v1/preferences/{email}", func(w http.ResponseWriter, r *http.Request) {
		if err := repoAdapter.DeletePreference(chi.URLParam(r, "email")); err != nil {
			log.Error().Err(err).Msg("api: удаление предпочтения")
			writeError(w, http.StatusInternalServerError, "failed to delete preference")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("api: старт")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type preferenceRequest struct {
	Email           string              `json:"email"`
	Name            string              `json:"name"`
	SelectedCourses []string            `json:"selected_courses"`
	TimeWindows     map[string][]string `json:"time_windows"`
	MinSpots        *int                `json:"min_spots"`
	DaysAhead       *int                `json:"days_ahead"`
}

// toDomain строит доменное предпочтение, подставляя значения по умолчанию
// для опущенных полей, и валидирует результат.
func (req preferenceRequest) toDomain(cfg config.AppConfig) (domain.UserPreference, error) {
	pref := domain.UserPreference{
		Email:           req.Email,
		Name:            req.Name,
		SelectedCourses: req.SelectedCourses,
		MinSpots:        cfg.Defaults.MinSpots,
		DaysAhead:       cfg.Defaults.DaysAhead,
		Windows:         map[domain.DayType][]domain.TimeWindow{},
	}
	if req.MinSpots != nil {
		pref.MinSpots = *req.MinSpots
	}
	if req.DaysAhead != nil {
		pref.DaysAhead = *req.DaysAhead
	}
	for dayType, raws := range req.TimeWindows {
		windows := make([]domain.TimeWindow, 0, len(raws))
		for _, raw := range raws {
			window, err := domain.ParseTimeWindow(raw)
			if err != nil {
				return domain.UserPreference{}, fmt.Errorf("time_windows[%s]: %w", dayType, err)
			}
			windows = append(windows, window)
		}
		pref.Windows[domain.DayType(dayType)] = windows
	}
	if err := pref.Validate(); err != nil {
		return domain.UserPreference{}, err
	}
	return pref, nil
}

type preferenceResponse struct {
	UserID          int64               `json:"user_id"`
	Email           string              `json:"email"`
	Name            string              `json:"name,omitempty"`
	SelectedCourses []string            `json:"selected_courses"`
	TimeWindows     map[string][]string `json:"time_windows"`
	MinSpots        int                 `json:"min_spots"`
	DaysAhead       int                 `json:"days_ahead"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toResponse(pref domain.UserPreference) preferenceResponse {
	windows := make(map[string][]string, len(pref.Windows))
	for dayType, list := range pref.Windows {
		formatted := make([]string, 0, len(list))
		for _, w := range list {
			formatted = append(formatted, w.String())
		}
		windows[string(dayType)] = formatted
	}
	return preferenceResponse{
		UserID:          pref.UserID,
		Email:           pref.Email,
		Name:            pref.Name,
		SelectedCourses: pref.SelectedCourses,
		TimeWindows:     windows,
		MinSpots:        pref.MinSpots,
		DaysAhead:       pref.DaysAhead,
		CreatedAt:       pref.CreatedAt,
		UpdatedAt:       pref.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
