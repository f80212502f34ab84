package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"teetime-monitor/internal/adapters/scraper"
	"teetime-monitor/internal/domain"
	"teetime-monitor/internal/infra/config"
	applog "teetime-monitor/internal/infra/log"
	"teetime-monitor/internal/infra/metrics"
	"teetime-monitor/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	courses, err := parseCourses(cfg.Scraper.GridURLs, cfg.Scraper.GridLabels)
	if err != nil {
		logger.Fatal().Err(err).Msg("scraper: неверная конфигурация сеток (GOLFBOX_GRID_URL / GRID_LABELS)")
	}
	if len(courses) == 0 {
		logger.Fatal().Msg("scraper: не указано ни одной сетки (GOLFBOX_GRID_URL)")
	}

	if cfg.RabbitURL == "" {
		logger.Fatal().Msg("scraper: не указан адрес RabbitMQ (RABBITMQ_URL)")
	}
	scrapeQueue, err := queue.NewRabbitScrapeQueue(cfg.RabbitURL, cfg.Queues.Scrapes)
	if err != nil {
		logger.Fatal().Err(err).Msg("scraper: не удалось инициализировать очередь RabbitMQ")
	}
	defer scrapeQueue.Close()

	s := &runner{
		courses:   courses,
		client:    scraper.NewClient(),
		queue:     scrapeQueue,
		daysAhead: cfg.Scraper.DaysAhead,
		log:       logger.With().Str("component", "scraper").Logger(),
	}

	logger.Info().Int("courses", len(courses)).Msg("scraper: старт")
	interval := time.Duration(cfg.Scraper.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.cycle(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scraper: остановка")
			return
		case now := <-ticker.C:
			s.cycle(ctx, now)
		}
	}
}

// course — одна сетка бронирования с человекочитаемой меткой.
type course struct {
	Label string
	URL   string
}

type runner struct {
	courses   []course
	client    *scraper.Client
	queue     domain.ScrapeQueue
	daysAhead int
	log       zerolog.Logger
}

// cycle обходит все сетки на daysAhead дней вперёд и публикует одну пачку.
// Ошибка одной сетки не срывает цикл: остальные поля всё равно попадают
// в пачку.
func (s *runner) cycle(ctx context.Context, now time.Time) {
	if ctx.Err() != nil {
		return
	}
	now = now.UTC()
	today := now.Truncate(24 * time.Hour)

	var entries []domain.RawSlotEntry
	for offset := 0; offset <= s.daysAhead; offset++ {
		day := today.AddDate(0, 0, offset)
		for _, c := range s.courses {
			gridURL := scraper.RewriteURLForDay(c.URL, day)
			times, err := s.client.FetchGrid(ctx, gridURL)
			if err != nil {
				s.log.Error().Err(err).Str("course", c.Label).Str("date", day.Format("2006-01-02")).Msg("scraper: сетка не загружена")
				continue
			}
			for slotTime, spots := range times {
				if scraper.TimeHasPassed(slotTime, day, now) {
					continue
				}
				entries = append(entries, domain.RawSlotEntry{
					CourseID: c.Label,
					Date:     day.Format("2006-01-02"),
					Time:     slotTime,
					Spots:    spots,
				})
			}
		}
	}

	if len(entries) == 0 {
		s.log.Debug().Msg("scraper: цикл без записей, пачка не публикуется")
		return
	}
	batch := domain.ScrapeBatch{
		ID:        uuid.NewString(),
		Entries:   entries,
		ScrapedAt: now,
	}
	if err := s.queue.Publish(ctx, batch); err != nil {
		s.log.Error().Err(err).Str("batch", batch.ID).Msg("scraper: пачка не опубликована")
		return
	}
	s.log.Info().Str("batch", batch.ID).Int("entries", len(entries)).Msg("scraper: пачка опубликована")
}

// parseCourses разбирает списки адресов и меток. Разделители — запятая
// или точка с запятой; адрес без схемы получает https. Меток может быть
// меньше, чем адресов: остаток именуется по порядку.
func parseCourses(rawURLs, rawLabels string) ([]course, error) {
	urls := splitList(rawURLs)
	labels := splitList(rawLabels)
	if len(labels) > len(urls) {
		return nil, fmt.Errorf("меток (%d) больше, чем адресов (%d)", len(labels), len(urls))
	}
	courses := make([]course, 0, len(urls))
	for i, u := range urls {
		if !strings.Contains(u, "://") {
			u = "https://" + u
		}
		label := fmt.Sprintf("course_%d", i+1)
		if i < len(labels) {
			label = labels[i]
		}
		courses = append(courses, course{Label: label, URL: u})
	}
	return courses, nil
}

func splitList(raw string) []string {
	raw = strings.ReplaceAll(raw, ";", ",")
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
