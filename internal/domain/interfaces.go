package domain

import (
	"context"
	"time"
)

// SlotRepo хранит слоты; БД — единственный источник «предыдущего снимка».
type SlotRepo interface {
	// UpsertSlots сохраняет пачку слотов целиком: новые и неизменившиеся
	// одинаково, чтобы у следующего диффа была корректная база.
	UpsertSlots(slots []Slot) error
	// ListByKeys возвращает существующие записи по ключам пачки.
	ListByKeys(keys []SlotKey) (map[SlotKey]Slot, error)
	// ListCurrent возвращает все слоты с датой не раньше from.
	ListCurrent(from time.Time) ([]Slot, error)
}

// PreferenceRepo управляет предпочтениями пользователей.
type PreferenceRepo interface {
	ListPreferences() ([]UserPreference, error)
	GetPreference(email string) (UserPreference, error)
	UpsertPreference(pref UserPreference) (UserPreference, error)
	DeletePreference(email string) error
}

// NotificationRepo отвечает за контракт at-most-once.
type NotificationRepo interface {
	// InsertSentNotification вставляет запись, если её ещё нет, и возвращает
	// true при успехе. Конфликт уникальности — ожидаемый поток управления,
	// не ошибка.
	InsertSentNotification(userID int64, key SlotKey, kind NotificationType) (bool, error)
	// DeleteSentNotification откатывает запись, когда транспорт не доставил
	// письмо, чтобы пара (user, slot) осталась повторяемой.
	DeleteSentNotification(userID int64, key SlotKey, kind NotificationType) error
}

// RunRepo делает каденции идемпотентными между перезапусками процесса.
type RunRepo interface {
	// AcquireRun помечает выполнение run_type в логическом окне и возвращает
	// true, если запись была создана. При конфликте — false без ошибки.
	AcquireRun(runType RunType, windowStart, windowEnd time.Time) (bool, error)
}

// Mailer — транспорт уведомлений. Ошибка отличима от успеха, детальнее
// не типизируется.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// AckFunc подтверждает обработку пачки или возвращает её в очередь.
type AckFunc func(success bool) error

// ScrapeQueue передаёт пачки скрейпа от скрейпера воркеру.
type ScrapeQueue interface {
	Publish(ctx context.Context, batch ScrapeBatch) error
	// Poll неблокирующе забирает пачку; ok=false — очередь пуста.
	Poll(ctx context.Context) (batch ScrapeBatch, ack AckFunc, ok bool, err error)
}

// Cache — простое TTL-хранилище для быстрых сторожей повторного входа.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
