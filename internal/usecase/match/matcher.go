package match

import (
	"time"

	"teetime-monitor/internal/domain"
)

// Matches проверяет слот против предпочтений пользователя. Функция чистая
// и без побочных эффектов: она вызывается на полном произведении
// пользователей и пачки скрейпа.
//
// Все пять проверок должны пройти: выбранные поля (пустой список — все),
// дата в пределах [today, today+days_ahead], объединение окон для типа дня
// (пустой список окон — «ничего в этот день», а не «весь день»),
// минимальное число мест.
func Matches(slot domain.Slot, pref domain.UserPreference, today time.Time) bool {
	if !pref.WantsCourse(slot.CourseID) {
		return false
	}

	day := slot.Date.UTC().Truncate(24 * time.Hour)
	first := today.UTC().Truncate(24 * time.Hour)
	last := first.AddDate(0, 0, pref.DaysAhead)
	if day.Before(first) || day.After(last) {
		return false
	}

	minute, err := domain.ParseMinute(slot.Time)
	if err != nil {
		return false
	}
	if !inAnyWindow(minute, pref.Windows[domain.DayTypeFor(day)]) {
		return false
	}

	return slot.SpotsAvailable >= pref.MinSpots
}

// FilterSlots возвращает подмножество слотов, подходящих пользователю.
func FilterSlots(slots []domain.Slot, pref domain.UserPreference, today time.Time) []domain.Slot {
	var matched []domain.Slot
	for _, slot := range slots {
		if Matches(slot, pref, today) {
			matched = append(matched, slot)
		}
	}
	return matched
}

func inAnyWindow(minute int, windows []domain.TimeWindow) bool {
	for _, w := range windows {
		if w.Contains(minute) {
			return true
		}
	}
	return false
}
