package schedule

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 9, hour, minute, 0, 0, time.UTC)
}

func TestDailyCadenceTransitions(t *testing.T) {
	c, err := NewDailyCadence("07:00", "08:00")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if c.Evaluate(at(6, 59)) {
		t.Fatalf("до окна каденция не срабатывает")
	}
	if c.State() != DailyWaiting {
		t.Fatalf("ожидали WAITING, получили %s", c.State())
	}

	if !c.Evaluate(at(7, 0)) {
		t.Fatalf("начало окна включается")
	}
	if c.State() != DailyDue {
		t.Fatalf("ожидали DUE, получили %s", c.State())
	}

	c.MarkDone()
	if c.State() != DailyDoneToday {
		t.Fatalf("ожидали DONE_TODAY, получили %s", c.State())
	}
	if c.Evaluate(at(7, 30)) {
		t.Fatalf("после выполнения каденция молчит до конца дня")
	}
}

func TestDailyCadenceDuePersistsPastWindow(t *testing.T) {
	c, _ := NewDailyCadence("07:00", "08:00")
	if !c.Evaluate(at(7, 30)) {
		t.Fatalf("внутри окна должен быть DUE")
	}
	// Воркер мог лежать: невыполненный DUE переживает конец окна.
	if !c.Evaluate(at(9, 0)) {
		t.Fatalf("невыполненный DUE сохраняется после окна")
	}
}

func TestDailyCadenceDayRollover(t *testing.T) {
	c, _ := NewDailyCadence("07:00", "08:00")
	c.Evaluate(at(7, 30))
	c.MarkDone()

	nextDay := at(7, 15).AddDate(0, 0, 1)
	if !c.Evaluate(nextDay) {
		t.Fatalf("новый день сбрасывает DONE_TODAY")
	}

	// Невыполненный DUE тоже сбрасывается сменой суток.
	c2, _ := NewDailyCadence("07:00", "08:00")
	c2.Evaluate(at(7, 30))
	if c2.Evaluate(at(6, 0).AddDate(0, 0, 1)) {
		t.Fatalf("после смены суток до окна каденция ждёт")
	}
	if c2.State() != DailyWaiting {
		t.Fatalf("ожидали WAITING, получили %s", c2.State())
	}
}

func TestDailyCadenceRejectsEmptyWindow(t *testing.T) {
	if _, err := NewDailyCadence("08:00", "07:00"); err == nil {
		t.Fatalf("перевёрнутое окно должно отклоняться")
	}
	if _, err := NewDailyCadence("07:00", "07:00"); err == nil {
		t.Fatalf("пустое окно должно отклоняться")
	}
}

func TestPeriodicCadenceBuckets(t *testing.T) {
	c, err := NewPeriodicCadence(10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if !c.Evaluate(at(9, 3)) {
		t.Fatalf("первый бакет должен сработать")
	}
	c.MarkFired(at(9, 3))
	if c.State() != PeriodicIdle {
		t.Fatalf("ожидали IDLE, получили %s", c.State())
	}

	if c.Evaluate(at(9, 7)) {
		t.Fatalf("тот же бакет второй раз не срабатывает")
	}
	if !c.Evaluate(at(9, 10)) {
		t.Fatalf("следующий бакет должен сработать")
	}
}

func TestPeriodicCadenceDuePersists(t *testing.T) {
	c, _ := NewPeriodicCadence(10)
	c.Evaluate(at(9, 0))
	// Запуск не подтверждён: DUE висит и в следующем бакете.
	if !c.Evaluate(at(9, 25)) {
		t.Fatalf("невыполненный DUE сохраняется")
	}
	c.MarkFired(at(9, 25))
	if c.Evaluate(at(9, 26)) {
		t.Fatalf("после подтверждения текущий бакет закрыт")
	}
}

func TestPeriodicCadenceRejectsBadInterval(t *testing.T) {
	if _, err := NewPeriodicCadence(0); err == nil {
		t.Fatalf("нулевой интервал должен отклоняться")
	}
}
