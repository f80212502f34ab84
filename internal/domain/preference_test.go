package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeWindow(t *testing.T) {
	w, err := ParseTimeWindow("07:00-12:00")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if w.Start != 7*60 || w.End != 12*60 {
		t.Fatalf("ожидали окно 420-720, получили %d-%d", w.Start, w.End)
	}
	if !w.Contains(7 * 60) {
		t.Fatalf("начало окна должно входить")
	}
	if w.Contains(12 * 60) {
		t.Fatalf("конец окна входить не должен, интервал полуоткрытый")
	}
}

func TestParseTimeWindowRejectsBad(t *testing.T) {
	for _, raw := range []string{"", "07:00", "12:00-07:00", "09:00-09:00", "25:00-26:00"} {
		if _, err := ParseTimeWindow(raw); !errors.Is(err, ErrInvalidPreference) {
			t.Fatalf("ожидали ErrInvalidPreference для %q, получили %v", raw, err)
		}
	}
}

func TestParseMinute(t *testing.T) {
	minute, err := ParseMinute("09:30")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if minute != 9*60+30 {
		t.Fatalf("ожидали 570, получили %d", minute)
	}
	if _, err := ParseMinute("24:00"); err == nil {
		t.Fatalf("ожидали ошибку для 24:00")
	}
	// Разбор заякорен: хвостовой мусор не игнорируется.
	for _, raw := range []string{"09:00xx", "x09:00", "09:00 10:00", "09:0"} {
		if _, err := ParseMinute(raw); !errors.Is(err, ErrInvalidPreference) {
			t.Fatalf("ожидали ErrInvalidPreference для %q, получили %v", raw, err)
		}
	}
}

func TestValidate(t *testing.T) {
	pref := UserPreference{
		Email:    "user@example.com",
		MinSpots: 1,
		Windows: map[DayType][]TimeWindow{
			DayTypeWeekday: {{Start: 7 * 60, End: 12 * 60}},
		},
	}
	if err := pref.Validate(); err != nil {
		t.Fatalf("корректная запись не должна отклоняться: %v", err)
	}

	bad := pref
	bad.Email = "не адрес"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidPreference) {
		t.Fatalf("ожидали отказ по email, получили %v", err)
	}

	bad = pref
	bad.MinSpots = 0
	if err := bad.Validate(); !errors.Is(err, ErrInvalidPreference) {
		t.Fatalf("ожидали отказ по min_spots, получили %v", err)
	}

	bad = pref
	bad.Windows = map[DayType][]TimeWindow{"holiday": {{Start: 0, End: 60}}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidPreference) {
		t.Fatalf("ожидали отказ по типу дня, получили %v", err)
	}
}

func TestWantsCourse(t *testing.T) {
	pref := UserPreference{}
	if !pref.WantsCourse("oslo") {
		t.Fatalf("пустой список полей означает все поля")
	}
	pref.SelectedCourses = []string{"oslo", "bergen"}
	if !pref.WantsCourse("bergen") {
		t.Fatalf("выбранное поле должно проходить")
	}
	if pref.WantsCourse("trondheim") {
		t.Fatalf("невыбранное поле проходить не должно")
	}
}

func TestDayTypeFor(t *testing.T) {
	saturday := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	if DayTypeFor(saturday) != DayTypeWeekend {
		t.Fatalf("суббота — выходной")
	}
	monday := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	if DayTypeFor(monday) != DayTypeWeekday {
		t.Fatalf("понедельник — будний")
	}
}

func TestSlotKey(t *testing.T) {
	slot := Slot{
		CourseID: "oslo",
		Date:     time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		Time:     "09:30",
	}
	key := slot.Key()
	if key.Date != "2025-06-09" || key.Time != "09:30" || key.CourseID != "oslo" {
		t.Fatalf("неожиданный ключ %+v", key)
	}
	if key.String() != "oslo/2025-06-09/09:30" {
		t.Fatalf("неожиданный формат ключа %q", key)
	}
}
