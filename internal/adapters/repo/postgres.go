package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"teetime-monitor/internal/domain"
	"teetime-monitor/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.SlotRepo         = (*Postgres)(nil)
	_ domain.PreferenceRepo   = (*Postgres)(nil)
	_ domain.NotificationRepo = (*Postgres)(nil)
	_ domain.RunRepo          = (*Postgres)(nil)
)

// ErrPreferenceNotFound возвращается, если предпочтения не настроены.
var ErrPreferenceNotFound = errors.New("preference not found")

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// UpsertSlots сохраняет пачку слотов: идентичность неизменна, число мест и
// observed_at перезаписываются.
func (p *Postgres) UpsertSlots(slots []domain.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	batch := &pgx.Batch{}
	for _, slot := range slots {
		batch.Queue(`
INSERT INTO slots (course_id, play_date, slot_time, spots_available, observed_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (course_id, play_date, slot_time)
DO UPDATE SET spots_available=EXCLUDED.spots_available, observed_at=EXCLUDED.observed_at
`, slot.CourseID, slot.Date, slot.Time, slot.SpotsAvailable, slot.ObservedAt)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "slots_send_batch", "slots", start, nil)
	defer br.Close()
	for range slots {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "slots_batch_exec", "slots", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByKeys возвращает существующие записи снимка по ключам пачки.
func (p *Postgres) ListByKeys(keys []domain.SlotKey) (map[domain.SlotKey]domain.Slot, error) {
	if len(keys) == 0 {
		return map[domain.SlotKey]domain.Slot{}, nil
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	courses := make([]string, 0, len(keys))
	dates := make([]string, 0, len(keys))
	times := make([]string, 0, len(keys))
	for _, key := range keys {
		courses = append(courses, key.CourseID)
		dates = append(dates, key.Date)
		times = append(times, key.Time)
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT s.course_id, s.play_date, s.slot_time, s.spots_available, s.observed_at
FROM slots s
JOIN unnest($1::text[], $2::date[], $3::text[]) AS k(course_id, play_date, slot_time)
  ON s.course_id = k.course_id AND s.play_date = k.play_date AND s.slot_time = k.slot_time
`, courses, dates, times)
	metrics.ObserveNetworkRequest("postgres", "slots_list_by_keys", "slots", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[domain.SlotKey]domain.Slot, len(keys))
	for rows.Next() {
		var slot domain.Slot
		if err := rows.Scan(&slot.CourseID, &slot.Date, &slot.Time, &slot.SpotsAvailable, &slot.ObservedAt); err != nil {
			return nil, err
		}
		found[slot.Key()] = slot
	}
	return found, rows.Err()
}

// ListCurrent возвращает все слоты с датой не раньше from.
func (p *Postgres) ListCurrent(from time.Time) ([]domain.Slot, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT course_id, play_date, slot_time, spots_available, observed_at
FROM slots WHERE play_date >= $1
ORDER BY play_date, slot_time, course_id
`, from.UTC().Truncate(24*time.Hour))
	metrics.ObserveNetworkRequest("postgres", "slots_list_current", "slots", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var slot domain.Slot
		if err := rows.Scan(&slot.CourseID, &slot.Date, &slot.Time, &slot.SpotsAvailable, &slot.ObservedAt); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// ListPreferences возвращает предпочтения всех пользователей.
func (p *Postgres) ListPreferences() ([]domain.UserPreference, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, email, name, selected_courses, windows, min_spots, days_ahead, created_at, updated_at
FROM user_preferences ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "preferences_list", "user_preferences", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []domain.UserPreference
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, pref)
	}
	return prefs, rows.Err()
}

// GetPreference возвращает предпочтения по адресу.
func (p *Postgres) GetPreference(email string) (domain.UserPreference, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, email, name, selected_courses, windows, min_spots, days_ahead, created_at, updated_at
FROM user_preferences WHERE email=$1
`, email)
	pref, err := scanPreference(row)
	metrics.ObserveNetworkRequest("postgres", "preferences_get", "user_preferences", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserPreference{}, ErrPreferenceNotFound
	}
	return pref, err
}

// UpsertPreference сохраняет предпочтения пользователя по адресу почты.
func (p *Postgres) UpsertPreference(pref domain.UserPreference) (domain.UserPreference, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	windows, err := json.Marshal(pref.Windows)
	if err != nil {
		return domain.UserPreference{}, fmt.Errorf("marshal windows: %w", err)
	}

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO user_preferences (email, name, selected_courses, windows, min_spots, days_ahead)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (email) DO UPDATE SET
  name=EXCLUDED.name,
  selected_courses=EXCLUDED.selected_courses,
  windows=EXCLUDED.windows,
  min_spots=EXCLUDED.min_spots,
  days_ahead=EXCLUDED.days_ahead,
  updated_at=now()
RETURNING id, email, name, selected_courses, windows, min_spots, days_ahead, created_at, updated_at
`, pref.Email, pref.Name, pref.SelectedCourses, windows, pref.MinSpots, pref.DaysAhead)
	saved, err := scanPreference(row)
	metrics.ObserveNetworkRequest("postgres", "preferences_upsert", "user_preferences", start, err)
	return saved, err
}

// DeletePreference удаляет предпочтения пользователя.
func (p *Postgres) DeletePreference(email string) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM user_preferences WHERE email=$1`, email)
	metrics.ObserveNetworkRequest("postgres", "preferences_delete", "user_preferences", start, err)
	return err
}

// InsertSentNotification вставляет запись о доставке, если её ещё нет, и
// возвращает true при успехе. Конфликт уникальности — ожидаемый поток
// управления.
func (p *Postgres) InsertSentNotification(userID int64, key domain.SlotKey, kind domain.NotificationType) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `
INSERT INTO sent_notifications (user_id, course_id, play_date, slot_time, notification_type)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id, course_id, play_date, slot_time, notification_type) DO NOTHING
`, userID, key.CourseID, key.Date, key.Time, string(kind))
	metrics.ObserveNetworkRequest("postgres", "sent_notifications_insert", "sent_notifications", start, err)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// DeleteSentNotification откатывает запись после неудачной доставки.
func (p *Postgres) DeleteSentNotification(userID int64, key domain.SlotKey, kind domain.NotificationType) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
DELETE FROM sent_notifications
WHERE user_id=$1 AND course_id=$2 AND play_date=$3 AND slot_time=$4 AND notification_type=$5
`, userID, key.CourseID, key.Date, key.Time, string(kind))
	metrics.ObserveNetworkRequest("postgres", "sent_notifications_delete", "sent_notifications", start, err)
	return err
}

// AcquireRun помечает выполнение каденции в логическом окне и возвращает
// true, если запись была создана.
func (p *Postgres) AcquireRun(runType domain.RunType, windowStart, windowEnd time.Time) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `
INSERT INTO monitoring_runs (run_type, window_start, window_end)
VALUES ($1,$2,$3)
ON CONFLICT (run_type, window_start) DO NOTHING
`, string(runType), windowStart, windowEnd)
	metrics.ObserveNetworkRequest("postgres", "monitoring_runs_acquire", "monitoring_runs", start, err)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func scanPreference(row pgx.Row) (domain.UserPreference, error) {
	var (
		pref    domain.UserPreference
		windows []byte
	)
	if err := row.Scan(&pref.UserID, &pref.Email, &pref.Name, &pref.SelectedCourses, &windows, &pref.MinSpots, &pref.DaysAhead, &pref.CreatedAt, &pref.UpdatedAt); err != nil {
		return domain.UserPreference{}, err
	}
	if len(windows) > 0 {
		if err := json.Unmarshal(windows, &pref.Windows); err != nil {
			return domain.UserPreference{}, fmt.Errorf("unmarshal windows: %w", err)
		}
	}
	return pref, nil
}
