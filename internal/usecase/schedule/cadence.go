package schedule

import (
	"fmt"
	"time"

	"teetime-monitor/internal/domain"
)

// Каденции — машины состояний, независимые друг от друга. Они избавляют
// цикл воркера от лишних срабатываний; защита от двойного выполнения между
// перезапусками обеспечивается записями MonitoringRun в хранилище.

// DailyState — состояние ежедневной каденции.
type DailyState string

const (
	// DailyWaiting — вне дневного окна.
	DailyWaiting DailyState = "waiting"
	// DailyDue — окно наступило, сводка ещё не выполнена.
	DailyDue DailyState = "due"
	// DailyDoneToday — сводка за этот день выполнена.
	DailyDoneToday DailyState = "done_today"
)

// DailyCadence срабатывает один раз в день внутри настроенного окна UTC.
// Окно — целый диапазон (например, час), а не узкая минутная полоса,
// чтобы пережить простой воркера.
type DailyCadence struct {
	windowStart int // минуты от полуночи UTC
	windowEnd   int
	state       DailyState
	day         time.Time // день последней оценки
}

// NewDailyCadence строит каденцию из границ окна "HH:MM".
func NewDailyCadence(startRaw, endRaw string) (*DailyCadence, error) {
	start, err := domain.ParseMinute(startRaw)
	if err != nil {
		return nil, fmt.Errorf("начало дневного окна: %w", err)
	}
	end, err := domain.ParseMinute(endRaw)
	if err != nil {
		return nil, fmt.Errorf("конец дневного окна: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("дневное окно %s-%s пустое", startRaw, endRaw)
	}
	return &DailyCadence{windowStart: start, windowEnd: end, state: DailyWaiting}, nil
}

// Evaluate продвигает машину состояний и сообщает, пора ли выполнять сводку.
func (c *DailyCadence) Evaluate(now time.Time) bool {
	now = now.UTC()
	day := now.Truncate(24 * time.Hour)
	if !day.Equal(c.day) {
		// Смена суток сбрасывает каденцию, в том числе невыполненный DUE.
		c.day = day
		c.state = DailyWaiting
	}
	if c.state == DailyWaiting {
		minute := now.Hour()*60 + now.Minute()
		if minute >= c.windowStart && minute < c.windowEnd {
			c.state = DailyDue
		}
	}
	return c.state == DailyDue
}

// MarkDone фиксирует успешный запуск за день; сброс делает смена суток
// в Evaluate.
func (c *DailyCadence) MarkDone() {
	c.state = DailyDoneToday
}

// State возвращает текущее состояние.
func (c *DailyCadence) State() DailyState {
	return c.state
}

// PeriodicState — состояние частой каденции.
type PeriodicState string

const (
	// PeriodicIdle — ждём следующий интервальный бакет.
	PeriodicIdle PeriodicState = "idle"
	// PeriodicDue — бакет наступил, проверка ещё не выполнена.
	PeriodicDue PeriodicState = "due"
)

// PeriodicCadence срабатывает каждый фиксированный интервал независимо от
// календарного дня.
type PeriodicCadence struct {
	interval   time.Duration
	state      PeriodicState
	lastBucket time.Time
}

// NewPeriodicCadence строит каденцию с интервалом в минутах.
func NewPeriodicCadence(intervalMinutes int) (*PeriodicCadence, error) {
	if intervalMinutes < 1 {
		return nil, fmt.Errorf("интервал %d минут вне диапазона", intervalMinutes)
	}
	return &PeriodicCadence{interval: time.Duration(intervalMinutes) * time.Minute, state: PeriodicIdle}, nil
}

// Interval возвращает длительность бакета.
func (c *PeriodicCadence) Interval() time.Duration {
	return c.interval
}

// Bucket возвращает начало интервального бакета для момента времени.
func (c *PeriodicCadence) Bucket(now time.Time) time.Time {
	return now.UTC().Truncate(c.interval)
}

// Evaluate сообщает, наступил ли новый бакет.
func (c *PeriodicCadence) Evaluate(now time.Time) bool {
	bucket := c.Bucket(now)
	if bucket.After(c.lastBucket) {
		c.state = PeriodicDue
	}
	return c.state == PeriodicDue
}

// MarkFired фиксирует выполнение текущего бакета и возвращает каденцию в IDLE.
func (c *PeriodicCadence) MarkFired(now time.Time) {
	c.lastBucket = c.Bucket(now)
	c.state = PeriodicIdle
}

// State возвращает текущее состояние.
func (c *PeriodicCadence) State() PeriodicState {
	return c.state
}
