package ingest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"teetime-monitor/internal/domain"
)

type stubSlotRepo struct {
	existing map[domain.SlotKey]domain.Slot
	upserted []domain.Slot
}

func (s *stubSlotRepo) UpsertSlots(slots []domain.Slot) error {
	s.upserted = append(s.upserted, slots...)
	return nil
}

func (s *stubSlotRepo) ListByKeys(keys []domain.SlotKey) (map[domain.SlotKey]domain.Slot, error) {
	out := make(map[domain.SlotKey]domain.Slot)
	for _, key := range keys {
		if slot, ok := s.existing[key]; ok {
			out[key] = slot
		}
	}
	return out, nil
}

func (s *stubSlotRepo) ListCurrent(time.Time) ([]domain.Slot, error) { return nil, nil }

var observed = time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)

func entry(course, date, slotTime string, spots int) domain.RawSlotEntry {
	return domain.RawSlotEntry{CourseID: course, Date: date, Time: slotTime, Spots: spots}
}

func TestNormalizeDropsInvalid(t *testing.T) {
	svc := NewService(&stubSlotRepo{}, zerolog.Nop())
	slots := svc.Normalize([]domain.RawSlotEntry{
		entry("oslo", "2025-06-09", "09:00", 2),
		entry("", "2025-06-09", "09:00", 2),
		entry("oslo", "09.06.2025", "09:00", 2),
		entry("oslo", "2025-06-09", "полдень", 2),
		entry("oslo", "2025-06-09", "09:00xx", 2),
		entry("oslo", "2025-06-09", "10:00", -1),
	}, observed)
	if len(slots) != 1 {
		t.Fatalf("ожидали 1 валидный слот, получили %d", len(slots))
	}
	if slots[0].CourseID != "oslo" || slots[0].Time != "09:00" {
		t.Fatalf("неожиданный слот %+v", slots[0])
	}
}

func TestNormalizeCanonicalizesTime(t *testing.T) {
	svc := NewService(&stubSlotRepo{}, zerolog.Nop())
	slots := svc.Normalize([]domain.RawSlotEntry{entry("oslo", "2025-06-09", "9:05", 2)}, observed)
	if len(slots) != 1 || slots[0].Time != "09:05" {
		t.Fatalf("ожидали время 09:05, получили %+v", slots)
	}
	if !slots[0].Date.Equal(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("дата должна быть полуночью UTC, получили %v", slots[0].Date)
	}
	if !slots[0].ObservedAt.Equal(observed) {
		t.Fatalf("observed_at должен браться из пачки")
	}
}

func TestNormalizeDedupsByMaxSpots(t *testing.T) {
	svc := NewService(&stubSlotRepo{}, zerolog.Nop())
	slots := svc.Normalize([]domain.RawSlotEntry{
		entry("oslo", "2025-06-09", "09:00", 1),
		entry("oslo", "2025-06-09", "09:00", 3),
		entry("oslo", "2025-06-09", "09:00", 2),
	}, observed)
	if len(slots) != 1 {
		t.Fatalf("дубликаты ключа должны схлопнуться, получили %d", len(slots))
	}
	if slots[0].SpotsAvailable != 3 {
		t.Fatalf("ожидали максимум мест 3, получили %d", slots[0].SpotsAvailable)
	}
}

func TestApplyBatchFirstSeenIsNew(t *testing.T) {
	repo := &stubSlotRepo{existing: map[domain.SlotKey]domain.Slot{}}
	svc := NewService(repo, zerolog.Nop())
	batch := svc.Normalize([]domain.RawSlotEntry{entry("oslo", "2025-06-09", "09:00", 2)}, observed)

	fresh, err := svc.ApplyBatch(batch)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("впервые увиденный слот — новый, получили %d", len(fresh))
	}
	if len(repo.upserted) != 1 {
		t.Fatalf("пачка должна сохраниться целиком")
	}
}

func TestApplyBatchZeroToPositiveIsNew(t *testing.T) {
	repo := &stubSlotRepo{existing: map[domain.SlotKey]domain.Slot{}}
	svc := NewService(repo, zerolog.Nop())

	first := svc.Normalize([]domain.RawSlotEntry{entry("oslo", "2025-06-09", "09:00", 0)}, observed)
	fresh, err := svc.ApplyBatch(first)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("первое появление считается новым даже с нулём мест")
	}
	for _, slot := range repo.upserted {
		repo.existing[slot.Key()] = slot
	}

	second := svc.Normalize([]domain.RawSlotEntry{entry("oslo", "2025-06-09", "09:00", 3)}, observed.Add(10*time.Minute))
	fresh, err = svc.ApplyBatch(second)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("переход 0 -> 3 — новая доступность")
	}
}

func TestApplyBatchPositiveChangeIsNotNew(t *testing.T) {
	existing := domain.Slot{CourseID: "oslo", Date: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), Time: "09:00", SpotsAvailable: 2}
	repo := &stubSlotRepo{existing: map[domain.SlotKey]domain.Slot{existing.Key(): existing}}
	svc := NewService(repo, zerolog.Nop())

	batch := svc.Normalize([]domain.RawSlotEntry{entry("oslo", "2025-06-09", "09:00", 4)}, observed)
	fresh, err := svc.ApplyBatch(batch)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(fresh) != 0 {
		t.Fatalf("переход 2 -> 4 новым не считается, получили %d", len(fresh))
	}
	if len(repo.upserted) != 1 {
		t.Fatalf("неизменившийся по новизне слот всё равно сохраняется")
	}
}

func TestApplyBatchEmpty(t *testing.T) {
	repo := &stubSlotRepo{}
	svc := NewService(repo, zerolog.Nop())
	fresh, err := svc.ApplyBatch(nil)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if fresh != nil || len(repo.upserted) != 0 {
		t.Fatalf("пустая пачка — no-op")
	}
}
