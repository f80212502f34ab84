package scraper

import (
	"net/url"
	"testing"
	"time"
)

func mustQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("не удалось разобрать адрес %q: %v", raw, err)
	}
	return parsed.Query()
}

var targetDay = time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)

func TestRewriteURLForDayBookingStart(t *testing.T) {
	raw := "https://www.golfbox.no/site/my_golfbox/ressources/booking/grid.asp?Booking_Start=20250609T070000&Club_GUID=abc"
	got := RewriteURLForDay(raw, targetDay)
	qs := mustQuery(t, got)
	if qs.Get("Booking_Start") != "20250612T070000" {
		t.Fatalf("дата должна смениться с сохранением времени, получили %q", qs.Get("Booking_Start"))
	}
	if qs.Get("Club_GUID") != "abc" {
		t.Fatalf("остальные параметры не трогаются")
	}
}

func TestRewriteURLForDaySelectedDate(t *testing.T) {
	raw := "https://example.com/grid?SelectedDate=20250609T120000"
	qs := mustQuery(t, RewriteURLForDay(raw, targetDay))
	if qs.Get("SelectedDate") != "20250612T120000" {
		t.Fatalf("получили %q", qs.Get("SelectedDate"))
	}
}

func TestRewriteURLForDayPlainDateParams(t *testing.T) {
	for _, key := range []string{"date", "dato", "resdate", "selectedDate"} {
		raw := "https://example.com/grid?" + key + "=2025-06-09"
		qs := mustQuery(t, RewriteURLForDay(raw, targetDay))
		if qs.Get(key) != "2025-06-12" {
			t.Fatalf("параметр %s: получили %q", key, qs.Get(key))
		}
	}
}

func TestRewriteURLForDayAddsScheme(t *testing.T) {
	got := RewriteURLForDay("example.com/grid?date=2025-06-09", targetDay)
	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("не удалось разобрать адрес: %v", err)
	}
	if parsed.Scheme != "https" {
		t.Fatalf("адрес без схемы получает https, получили %q", parsed.Scheme)
	}
}

func TestRewriteURLForDayNoDateParams(t *testing.T) {
	raw := "https://example.com/grid?club=oslo"
	qs := mustQuery(t, RewriteURLForDay(raw, targetDay))
	if qs.Get("club") != "oslo" {
		t.Fatalf("адрес без параметров даты остаётся эквивалентным")
	}
}

func TestTimeHasPassed(t *testing.T) {
	now := time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC)
	today := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

	if !TimeHasPassed("09:00", today, now) {
		t.Fatalf("прошедшее время должно отфильтроваться")
	}
	if !TimeHasPassed("10:10", today, now) {
		t.Fatalf("время внутри 15-минутного буфера тоже отфильтровывается")
	}
	if TimeHasPassed("10:30", today, now) {
		t.Fatalf("время за буфером остаётся")
	}

	tomorrow := today.AddDate(0, 0, 1)
	if TimeHasPassed("06:00", tomorrow, now) {
		t.Fatalf("для будущих дат фильтра нет")
	}
}
