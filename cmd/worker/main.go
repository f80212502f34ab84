package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"teetime-monitor/internal/adapters/mailer"
	"teetime-monitor/internal/adapters/repo"
	"teetime-monitor/internal/domain"
	"teetime-monitor/internal/infra/cache"
	"teetime-monitor/internal/infra/config"
	"teetime-monitor/internal/infra/db"
	applog "teetime-monitor/internal/infra/log"
	"teetime-monitor/internal/infra/metrics"
	"teetime-monitor/internal/infra/queue"
	"teetime-monitor/internal/usecase/ingest"
	"teetime-monitor/internal/usecase/notify"
	"teetime-monitor/internal/usecase/schedule"
)

// maxBatchesPerCycle ограничивает дренаж очереди за один периодический
// запуск, чтобы цикл не зависал на разросшемся бэклоге.
const maxBatchesPerCycle = 32

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("worker: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	guard := cache.NewRedis(redisClient)

	if cfg.RabbitURL == "" {
		logger.Fatal().Msg("worker: не указан адрес RabbitMQ (RABBITMQ_URL)")
	}
	scrapeQueue, err := queue.NewRabbitScrapeQueue(cfg.RabbitURL, cfg.Queues.Scrapes)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось инициализировать очередь RabbitMQ")
	}
	defer scrapeQueue.Close()

	smtpMailer, err := mailer.NewSMTP(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		ReplyTo:  cfg.SMTP.ReplyTo,
		Timeout:  cfg.SMTP.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось настроить SMTP")
	}

	ingestService := ingest.NewService(repoAdapter, logger.With().Str("component", "ingest").Logger())
	notifyService := notify.NewService(repoAdapter, repoAdapter, repoAdapter, smtpMailer, logger.With().Str("component", "notify").Logger(), 0)

	daily, err := schedule.NewDailyCadence(cfg.Schedule.DailyWindowStart, cfg.Schedule.DailyWindowEnd)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: неверное дневное окно")
	}
	periodic, err := schedule.NewPeriodicCadence(cfg.Schedule.PeriodicIntervalMinutes)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: неверный периодический интервал")
	}

	w := &worker{
		repo:     repoAdapter,
		queue:    scrapeQueue,
		guard:    guard,
		ingest:   ingestService,
		notify:   notifyService,
		daily:    daily,
		periodic: periodic,
		log:      logger.With().Str("component", "worker").Logger(),
	}

	logger.Info().Msg("worker: старт")
	// Каждая каденция живёт в своей горутине со своим тикером: медленная
	// сводка не задерживает периодическую проверку и наоборот.
	go w.dailyLoop(ctx)
	go w.periodicLoop(ctx)
	<-ctx.Done()
	logger.Info().Msg("worker: остановка")
}

type worker struct {
	repo     *repo.Postgres
	queue    domain.ScrapeQueue
	guard    domain.Cache
	ingest   *ingest.Service
	notify   *notify.Service
	daily    *schedule.DailyCadence
	periodic *schedule.PeriodicCadence
	log      zerolog.Logger
}

// dailyLoop оценивает дневную каденцию раз в минуту. Ошибка оставляет
// каденцию в DUE, следующая минута повторяет попытку.
func (w *worker) dailyLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		var now time.Time
		select {
		case <-ctx.Done():
			return
		case now = <-ticker.C:
		}
		if !w.daily.Evaluate(now) {
			continue
		}
		if err := w.runDaily(ctx, now); err != nil {
			w.log.Error().Err(err).Msg("worker: сводка не выполнена")
			continue
		}
		w.daily.MarkDone()
	}
}

// periodicLoop оценивает частую каденцию раз в минуту. Redis-сторож
// закрывает бакет от параллельных воркеров до обращения к БД.
func (w *worker) periodicLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		var now time.Time
		select {
		case <-ctx.Done():
			return
		case now = <-ticker.C:
		}
		if !w.periodic.Evaluate(now) {
			continue
		}
		bucket := w.periodic.Bucket(now)
		key := "periodic:" + bucket.Format(time.RFC3339)
		err := w.guard.Once(key, w.periodic.Interval(), func() error {
			return w.runPeriodic(ctx, now, bucket)
		})
		if err != nil {
			w.log.Error().Err(err).Time("bucket", bucket).Msg("worker: периодическая проверка не выполнена")
			continue
		}
		w.periodic.MarkFired(now)
	}
}

// runDaily собирает текущий снимок и отдаёт его диспетчеру сводки.
// Идемпотентность за день обеспечивает запись MonitoringRun внутри
// диспетчера; здесь только сбор данных.
func (w *worker) runDaily(ctx context.Context, now time.Time) error {
	today := now.UTC().Truncate(24 * time.Hour)
	current, err := w.repo.ListCurrent(today)
	if err != nil {
		return fmt.Errorf("чтение снимка: %w", err)
	}
	ran, err := w.notify.DispatchDailySummary(ctx, current, now)
	if err != nil {
		return err
	}
	if ran {
		w.log.Info().Int("slots", len(current)).Msg("worker: сводка отправлена")
	}
	return nil
}

// runPeriodic дренирует очередь скрейпа, считает дифф и рассылает
// уведомления о новой доступности. Пачка, упавшая на инжесте,
// возвращается в очередь; остальных это не останавливает.
func (w *worker) runPeriodic(ctx context.Context, now, bucket time.Time) error {
	acquired, err := w.repo.AcquireRun(domain.RunPeriodic, bucket, bucket.Add(w.periodic.Interval()))
	if err != nil {
		return fmt.Errorf("захват периодического окна: %w", err)
	}
	if !acquired {
		w.log.Debug().Time("bucket", bucket).Msg("worker: бакет уже обработан")
		return nil
	}

	var fresh []domain.Slot
	for i := 0; i < maxBatchesPerCycle; i++ {
		batch, ack, ok, err := w.queue.Poll(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("worker: ошибка чтения очереди")
			break
		}
		if !ok {
			break
		}
		slots := w.ingest.Normalize(batch.Entries, batch.ScrapedAt)
		batchFresh, err := w.ingest.ApplyBatch(slots)
		if err != nil {
			w.log.Error().Err(err).Str("batch", batch.ID).Msg("worker: пачка не применена, возвращаем в очередь")
			_ = ack(false)
			continue
		}
		if err := ack(true); err != nil {
			w.log.Error().Err(err).Str("batch", batch.ID).Msg("worker: не удалось подтвердить пачку")
		}
		fresh = append(fresh, batchFresh...)
	}

	if len(fresh) == 0 {
		return nil
	}
	w.log.Info().Int("fresh", len(fresh)).Msg("worker: обнаружены новые слоты")
	return w.notify.DispatchNewAvailability(ctx, fresh, now)
}
