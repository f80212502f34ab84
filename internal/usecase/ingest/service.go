package ingest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"teetime-monitor/internal/domain"
	"teetime-monitor/internal/infra/metrics"
)

// Service нормализует сырые записи скрейпа и считает дифф относительно
// снимка в БД. Никакое состояние «последнего скрейпа» в процессе не живёт:
// базой диффа служит таблица слотов, поэтому перезапуск безопасен.
type Service struct {
	slots domain.SlotRepo
	log   zerolog.Logger
}

// NewService создаёт сервис инжеста.
func NewService(slots domain.SlotRepo, logger zerolog.Logger) *Service {
	return &Service{slots: slots, log: logger}
}

// Normalize превращает сырые записи в канонические слоты. Записи, не
// выполняющие контракт (ISO-дата, время HH:MM, неотрицательные места),
// отбрасываются и считаются, но никогда не поднимаются к вызывающему.
// Дубликаты ключа внутри пачки разрешаются в пользу большего числа мест:
// гонка на стороне букинга не должна скрыть реальное открытие.
func (s *Service) Normalize(entries []domain.RawSlotEntry, observedAt time.Time) []domain.Slot {
	byKey := make(map[domain.SlotKey]domain.Slot, len(entries))
	order := make([]domain.SlotKey, 0, len(entries))
	for _, entry := range entries {
		slot, err := normalizeEntry(entry, observedAt)
		if err != nil {
			metrics.ScrapeParseErrors.Inc()
			s.log.Debug().Err(err).Str("course", entry.CourseID).Str("date", entry.Date).Str("time", entry.Time).Msg("ingest: запись отброшена")
			continue
		}
		key := slot.Key()
		existing, seen := byKey[key]
		if !seen {
			order = append(order, key)
			byKey[key] = slot
			continue
		}
		if slot.SpotsAvailable > existing.SpotsAvailable {
			byKey[key] = slot
		}
	}
	slots := make([]domain.Slot, 0, len(byKey))
	for _, key := range order {
		slots = append(slots, byKey[key])
	}
	return slots
}

// ApplyBatch считает новые слоты пачки и затем сохраняет пачку целиком.
// «Новый» — ключ, которого раньше не было, либо ключ, у которого число мест
// перешло из 0 в положительное. Переход между двумя положительными
// значениями новым не считается.
func (s *Service) ApplyBatch(batch []domain.Slot) ([]domain.Slot, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	keys := make([]domain.SlotKey, 0, len(batch))
	for _, slot := range batch {
		keys = append(keys, slot.Key())
	}
	previous, err := s.slots.ListByKeys(keys)
	if err != nil {
		return nil, fmt.Errorf("чтение снимка: %w", err)
	}

	var fresh []domain.Slot
	for _, slot := range batch {
		prev, existed := previous[slot.Key()]
		switch {
		case !existed:
			fresh = append(fresh, slot)
		case prev.SpotsAvailable == 0 && slot.SpotsAvailable > 0:
			fresh = append(fresh, slot)
		}
	}

	if err := s.slots.UpsertSlots(batch); err != nil {
		return nil, fmt.Errorf("сохранение слотов: %w", err)
	}
	metrics.SlotsUpserted.Add(float64(len(batch)))
	metrics.NewSlotsDetected.Add(float64(len(fresh)))
	return fresh, nil
}

func normalizeEntry(entry domain.RawSlotEntry, observedAt time.Time) (domain.Slot, error) {
	if entry.CourseID == "" {
		return domain.Slot{}, fmt.Errorf("пустой идентификатор поля")
	}
	date, err := time.ParseInLocation("2006-01-02", entry.Date, time.UTC)
	if err != nil {
		return domain.Slot{}, fmt.Errorf("дата %q: %w", entry.Date, err)
	}
	minute, err := domain.ParseMinute(entry.Time)
	if err != nil {
		return domain.Slot{}, err
	}
	if entry.Spots < 0 {
		return domain.Slot{}, fmt.Errorf("отрицательное число мест %d", entry.Spots)
	}
	return domain.Slot{
		CourseID:       entry.CourseID,
		Date:           date,
		Time:           fmt.Sprintf("%02d:%02d", minute/60, minute%60),
		SpotsAvailable: entry.Spots,
		ObservedAt:     observedAt,
	}, nil
}
