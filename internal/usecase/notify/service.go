package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"teetime-monitor/internal/domain"
	"teetime-monitor/internal/infra/metrics"
	"teetime-monitor/internal/usecase/match"
)

const defaultWorkers = 4

// Service рассылает уведомления с дедупликацией. Единственный арбитр
// «уже уведомлён» — уникальное ограничение хранилища на
// (user_id, slot_key, notification_type); межпроцессных блокировок нет.
type Service struct {
	prefs   domain.PreferenceRepo
	sent    domain.NotificationRepo
	runs    domain.RunRepo
	mailer  domain.Mailer
	log     zerolog.Logger
	workers int
}

// NewService создаёт диспетчер. workers ограничивает параллелизм по
// пользователям.
func NewService(prefs domain.PreferenceRepo, sent domain.NotificationRepo, runs domain.RunRepo, mailer domain.Mailer, logger zerolog.Logger, workers int) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Service{prefs: prefs, sent: sent, runs: runs, mailer: mailer, log: logger, workers: workers}
}

// DispatchNewAvailability рассылает уведомления о новых слотах. Запись
// о доставке вставляется ДО отправки: неудачная вставка (конфликт)
// выключает слот для пользователя без письма. Если транспорт не доставил,
// вставленные записи откатываются, чтобы следующий цикл мог повторить.
// Ошибка одного пользователя не останавливает остальных.
func (s *Service) DispatchNewAvailability(ctx context.Context, fresh []domain.Slot, today time.Time) error {
	if len(fresh) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.DispatchSeconds.WithLabelValues("new_availability").Observe(time.Since(start).Seconds())
	}()

	prefs, err := s.prefs.ListPreferences()
	if err != nil {
		return fmt.Errorf("получение предпочтений: %w", err)
	}

	s.forEachPreference(ctx, prefs, func(pref domain.UserPreference) {
		s.notifyUserNew(ctx, pref, fresh, today)
	})
	return nil
}

func (s *Service) notifyUserNew(ctx context.Context, pref domain.UserPreference, fresh []domain.Slot, today time.Time) {
	matched := match.FilterSlots(fresh, pref, today)
	if len(matched) == 0 {
		return
	}

	var claimed []domain.Slot
	for _, slot := range matched {
		inserted, err := s.sent.InsertSentNotification(pref.UserID, slot.Key(), domain.NotificationNewAvailability)
		if err != nil {
			s.log.Error().Err(err).Int64("user", pref.UserID).Stringer("slot", slot.Key()).Msg("notify: не удалось зарезервировать уведомление")
			continue
		}
		if inserted {
			claimed = append(claimed, slot)
		}
	}
	if len(claimed) == 0 {
		return
	}

	subject, body := FormatNewAvailability(pref, claimed, today)
	if err := s.mailer.Send(ctx, pref.Email, subject, body); err != nil {
		metrics.EmailSendErrors.Inc()
		s.log.Error().Err(err).Int64("user", pref.UserID).Str("email", pref.Email).Msg("notify: письмо не доставлено, откатываем записи")
		for _, slot := range claimed {
			if derr := s.sent.DeleteSentNotification(pref.UserID, slot.Key(), domain.NotificationNewAvailability); derr != nil {
				s.log.Error().Err(derr).Int64("user", pref.UserID).Stringer("slot", slot.Key()).Msg("notify: не удалось откатить запись")
			}
		}
		return
	}
	metrics.EmailsSent.WithLabelValues(string(domain.NotificationNewAvailability)).Inc()
	s.log.Info().Int64("user", pref.UserID).Int("slots", len(claimed)).Msg("notify: отправлено уведомление о новых слотах")
}

// DispatchDailySummary рассылает ежедневную сводку каждому пользователю —
// со списком совпадений либо с явным «ничего не найдено». Весь запуск
// закрыт записью MonitoringRun за календарный день UTC: повторный вызов
// в тот же день — no-op. Возвращает признак того, что запуск состоялся.
func (s *Service) DispatchDailySummary(ctx context.Context, current []domain.Slot, today time.Time) (bool, error) {
	windowStart := today.UTC().Truncate(24 * time.Hour)
	windowEnd := windowStart.AddDate(0, 0, 1)
	acquired, err := s.runs.AcquireRun(domain.RunDaily, windowStart, windowEnd)
	if err != nil {
		return false, fmt.Errorf("захват ежедневного окна: %w", err)
	}
	if !acquired {
		s.log.Debug().Time("window", windowStart).Msg("notify: сводка за сегодня уже выполнена")
		return false, nil
	}

	start := time.Now()
	defer func() {
		metrics.DispatchSeconds.WithLabelValues("daily_summary").Observe(time.Since(start).Seconds())
	}()

	prefs, err := s.prefs.ListPreferences()
	if err != nil {
		return true, fmt.Errorf("получение предпочтений: %w", err)
	}

	s.forEachPreference(ctx, prefs, func(pref domain.UserPreference) {
		s.sendDailySummary(ctx, pref, current, today)
	})
	return true, nil
}

func (s *Service) sendDailySummary(ctx context.Context, pref domain.UserPreference, current []domain.Slot, today time.Time) {
	matched := match.FilterSlots(current, pref, today)
	subject, body := FormatDailySummary(pref, matched, today)
	if err := s.mailer.Send(ctx, pref.Email, subject, body); err != nil {
		metrics.EmailSendErrors.Inc()
		s.log.Error().Err(err).Int64("user", pref.UserID).Str("email", pref.Email).Msg("notify: сводка не доставлена")
		return
	}
	metrics.EmailsSent.WithLabelValues(string(domain.NotificationDailySummary)).Inc()

	// Записи daily_summary ведутся для аудита и не гасят отправку в
	// пределах дня: контракт — одна сводка на пользователя в день.
	for _, slot := range matched {
		if _, err := s.sent.InsertSentNotification(pref.UserID, slot.Key(), domain.NotificationDailySummary); err != nil {
			s.log.Error().Err(err).Int64("user", pref.UserID).Stringer("slot", slot.Key()).Msg("notify: не удалось записать аудит сводки")
		}
	}
}

// forEachPreference обходит пользователей ограниченным пулом воркеров.
// Отмена кооперативная: начатые пользователи дорабатываются, новые не
// стартуют.
func (s *Service) forEachPreference(ctx context.Context, prefs []domain.UserPreference, fn func(domain.UserPreference)) {
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, pref := range prefs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(p domain.UserPreference) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(p)
		}(pref)
	}
	wg.Wait()
}
