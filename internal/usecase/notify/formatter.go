package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"teetime-monitor/internal/domain"
)

// Тексты писем на норвежском, как их видят пользователи сервиса.

var weekdayNamesNO = map[time.Weekday]string{
	time.Monday:    "Mandag",
	time.Tuesday:   "Tirsdag",
	time.Wednesday: "Onsdag",
	time.Thursday:  "Torsdag",
	time.Friday:    "Fredag",
	time.Saturday:  "Lørdag",
	time.Sunday:    "Søndag",
}

// FormatDailySummary строит ежедневную сводку. Письмо отправляется всегда:
// либо со списком подходящих слотов, либо с явным «ничего не найдено».
func FormatDailySummary(pref domain.UserPreference, matched []domain.Slot, today time.Time) (string, string) {
	name := displayName(pref)
	if len(matched) == 0 {
		subject := fmt.Sprintf("⛳ Daglig golfrapport for %s - ingen ledige tider", name)
		body := strings.Join([]string{
			fmt.Sprintf("Hei %s!", name),
			"",
			"Vi fant dessverre ingen tilgjengelige golftider som matcher dine preferanser i dag.",
			"Vi fortsetter å følge med og sier ifra så snart noe dukker opp.",
			"",
			signature(pref),
		}, "\n")
		return subject, body
	}

	subject := fmt.Sprintf("⛳ Daglig golfrapport for %s - %d tilgjengelige tider", name, len(matched))
	lines := []string{
		fmt.Sprintf("Hei %s!", name),
		"",
		"Her er din daglige oversikt over tilgjengelige golftider som matcher dine preferanser:",
		"",
	}
	lines = append(lines, slotOverview(matched, today)...)
	lines = append(lines,
		"Lykke til med å booke! 🍀",
		"",
		signature(pref),
	)
	return subject, strings.Join(lines, "\n")
}

// FormatNewAvailability строит уведомление о новых слотах.
func FormatNewAvailability(pref domain.UserPreference, fresh []domain.Slot, today time.Time) (string, string) {
	name := displayName(pref)
	subject := fmt.Sprintf("🚨 Nye golftider tilgjengelig for %s - %d nye plasser!", name, len(fresh))
	lines := []string{
		fmt.Sprintf("Hei %s!", name),
		"",
		fmt.Sprintf("Vi har funnet %d nye golftider som matcher dine preferanser:", len(fresh)),
		"",
	}
	lines = append(lines, slotOverview(fresh, today)...)
	lines = append(lines,
		"⚡ Disse tidene er nylig blitt tilgjengelige, så vær rask med å booke!",
		"",
		"Lykke til! 🍀",
		"",
		signature(pref),
	)
	return subject, strings.Join(lines, "\n")
}

// slotOverview группирует слоты по полю, затем по дате.
func slotOverview(slots []domain.Slot, today time.Time) []string {
	grouped := make(map[string]map[string][]domain.Slot)
	for _, slot := range slots {
		dateKey := slot.Date.UTC().Format("2006-01-02")
		if grouped[slot.CourseID] == nil {
			grouped[slot.CourseID] = make(map[string][]domain.Slot)
		}
		grouped[slot.CourseID][dateKey] = append(grouped[slot.CourseID][dateKey], slot)
	}

	courses := make([]string, 0, len(grouped))
	for course := range grouped {
		courses = append(courses, course)
	}
	sort.Strings(courses)

	var lines []string
	for _, course := range courses {
		lines = append(lines, fmt.Sprintf("🏌️ %s:", course))
		dates := make([]string, 0, len(grouped[course]))
		for date := range grouped[course] {
			dates = append(dates, date)
		}
		sort.Strings(dates)
		for _, dateKey := range dates {
			day, _ := time.ParseInLocation("2006-01-02", dateKey, time.UTC)
			lines = append(lines, fmt.Sprintf("  📅 %s (%s):", displayDate(day, today), dateKey))
			perDay := grouped[course][dateKey]
			sort.Slice(perDay, func(i, j int) bool { return perDay[i].Time < perDay[j].Time })
			for _, slot := range perDay {
				lines = append(lines, fmt.Sprintf("    ⏰ %s - %d plasser", slot.Time, slot.SpotsAvailable))
			}
		}
		lines = append(lines, "")
	}
	return lines
}

func displayDate(day, today time.Time) string {
	day = day.UTC().Truncate(24 * time.Hour)
	today = today.UTC().Truncate(24 * time.Hour)
	switch {
	case day.Equal(today):
		return "I dag"
	case day.Equal(today.AddDate(0, 0, 1)):
		return "I morgen"
	default:
		return fmt.Sprintf("%s %s", weekdayNamesNO[day.Weekday()], day.Format("02.01"))
	}
}

func displayName(pref domain.UserPreference) string {
	if pref.Name != "" {
		return pref.Name
	}
	if at := strings.IndexByte(pref.Email, '@'); at > 0 {
		return pref.Email[:at]
	}
	return pref.Email
}

func signature(pref domain.UserPreference) string {
	return strings.Join([]string{
		"Mvh,",
		"Golf Availability Monitor",
		"",
		"---",
		fmt.Sprintf("Denne meldingen ble sendt til %s", pref.Email),
	}, "\n")
}
