package domain

import (
	"fmt"
	"time"
)

// Slot описывает одну бронируемую ти-тайм запись на поле.
// Идентичность задаётся ключом (course_id, date, time); spots_available
// и observed_at перезаписываются при каждом скрейпе.
type Slot struct {
	CourseID       string
	Date           time.Time // полночь UTC
	Time           string    // "HH:MM"
	SpotsAvailable int
	ObservedAt     time.Time
}

// SlotKey — неизменяемый ключ слота.
type SlotKey struct {
	CourseID string
	Date     string // "2006-01-02"
	Time     string // "HH:MM"
}

// Key возвращает ключ слота.
func (s Slot) Key() SlotKey {
	return SlotKey{CourseID: s.CourseID, Date: s.Date.UTC().Format("2006-01-02"), Time: s.Time}
}

// String форматирует ключ для логов.
func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.CourseID, k.Date, k.Time)
}

// DayType различает будни и выходные при выборе временных окон пользователя.
type DayType string

const (
	// DayTypeWeekday — понедельник..пятница.
	DayTypeWeekday DayType = "weekday"
	// DayTypeWeekend — суббота и воскресенье.
	DayTypeWeekend DayType = "weekend"
)

// DayTypeFor классифицирует дату.
func DayTypeFor(date time.Time) DayType {
	switch date.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return DayTypeWeekend
	default:
		return DayTypeWeekday
	}
}

// NotificationType различает типы уведомлений.
type NotificationType string

const (
	// NotificationDailySummary — ежедневная сводка.
	NotificationDailySummary NotificationType = "daily_summary"
	// NotificationNewAvailability — уведомление о новой доступности.
	NotificationNewAvailability NotificationType = "new_availability"
)

// SentNotification фиксирует отправленное уведомление. Уникальность
// (user_id, slot_key, notification_type) — контракт at-most-once доставки.
type SentNotification struct {
	UserID int64
	Key    SlotKey
	Type   NotificationType
	SentAt time.Time
}

// RunType различает каденции планировщика.
type RunType string

const (
	// RunDaily — ежедневная сводка, одно окно — календарный день UTC.
	RunDaily RunType = "daily"
	// RunPeriodic — частая проверка новой доступности, окно — интервальный бакет.
	RunPeriodic RunType = "periodic"
)

// MonitoringRun делает планировщик идемпотентным: run_type не выполняется
// дважды внутри одного логического окна.
type MonitoringRun struct {
	RunType     RunType
	WindowStart time.Time
	WindowEnd   time.Time
	TriggeredAt time.Time
}

// RawSlotEntry — сырая запись скрейпера до нормализации.
type RawSlotEntry struct {
	CourseID string `json:"course_id"`
	Date     string `json:"date"` // ISO "2006-01-02"
	Time     string `json:"time"` // "HH:MM", 24 часа
	Spots    int    `json:"spots"`
}

// ScrapeBatch — пачка сырых записей одного цикла скрейпа.
type ScrapeBatch struct {
	ID        string         `json:"batch_id"`
	Entries   []RawSlotEntry `json:"entries"`
	ScrapedAt time.Time      `json:"scraped_at"`
}
