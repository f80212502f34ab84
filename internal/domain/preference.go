package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPreference возвращается при некорректной записи предпочтений.
var ErrInvalidPreference = errors.New("invalid preference")

// TimeWindow — полуоткрытый интервал [Start, End) в минутах от полуночи.
type TimeWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains проверяет попадание минуты в интервал.
func (w TimeWindow) Contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// String форматирует окно как "HH:MM-HH:MM".
func (w TimeWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// ParseTimeWindow разбирает строку вида "07:00-12:00".
func ParseTimeWindow(raw string) (TimeWindow, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return TimeWindow{}, fmt.Errorf("%w: окно %q, ожидается HH:MM-HH:MM", ErrInvalidPreference, raw)
	}
	start, err := ParseMinute(parts[0])
	if err != nil {
		return TimeWindow{}, err
	}
	end, err := ParseMinute(parts[1])
	if err != nil {
		return TimeWindow{}, err
	}
	if end <= start {
		return TimeWindow{}, fmt.Errorf("%w: окно %q пустое или перевёрнутое", ErrInvalidPreference, raw)
	}
	return TimeWindow{Start: start, End: end}, nil
}

var minuteRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseMinute разбирает "HH:MM" в минуты от полуночи. Разбор заякорен на
// всю строку: "09:00xx" — ошибка, а не 09:00.
func ParseMinute(raw string) (int, error) {
	m := minuteRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, fmt.Errorf("%w: время %q", ErrInvalidPreference, raw)
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if h > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: время %q вне суток", ErrInvalidPreference, raw)
	}
	return h*60 + minute, nil
}

// UserPreference — настройки мониторинга одного пользователя. Создаётся
// и редактируется внешним API, для ядра запись только читается.
type UserPreference struct {
	UserID          int64
	Email           string
	Name            string
	SelectedCourses []string // пустой список — все поля
	// Windows — упорядоченные интервалы по типу дня; сопоставление
	// трактует список как объединение, пустой список — «ничего в этот день».
	Windows   map[DayType][]TimeWindow
	MinSpots  int
	DaysAhead int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate отклоняет некорректные записи на границе, чтобы неоднозначность
// не просачивалась в логику сопоставления.
func (p UserPreference) Validate() error {
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return fmt.Errorf("%w: email %q", ErrInvalidPreference, p.Email)
	}
	if p.MinSpots < 1 {
		return fmt.Errorf("%w: min_spots=%d, требуется >= 1", ErrInvalidPreference, p.MinSpots)
	}
	if p.DaysAhead < 0 {
		return fmt.Errorf("%w: days_ahead=%d, требуется >= 0", ErrInvalidPreference, p.DaysAhead)
	}
	for dayType, windows := range p.Windows {
		if dayType != DayTypeWeekday && dayType != DayTypeWeekend {
			return fmt.Errorf("%w: неизвестный тип дня %q", ErrInvalidPreference, dayType)
		}
		for _, w := range windows {
			if w.Start < 0 || w.End > 24*60 || w.End <= w.Start {
				return fmt.Errorf("%w: окно %s", ErrInvalidPreference, w)
			}
		}
	}
	for _, course := range p.SelectedCourses {
		if strings.TrimSpace(course) == "" {
			return fmt.Errorf("%w: пустой идентификатор поля", ErrInvalidPreference)
		}
	}
	return nil
}

// WantsCourse проверяет фильтр полей; пустой список означает все поля.
func (p UserPreference) WantsCourse(courseID string) bool {
	if len(p.SelectedCourses) == 0 {
		return true
	}
	for _, c := range p.SelectedCourses {
		if c == courseID {
			return true
		}
	}
	return false
}
