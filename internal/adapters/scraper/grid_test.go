package scraper

import (
	"strings"
	"testing"
)

func TestParseGridTable(t *testing.T) {
	html := `
<table>
  <tr><th>Tid</th><th>Bane 1</th><th>Bane 2</th></tr>
  <tr><td>07:00</td><td class="ledig">2 ledige</td><td class="full"></td></tr>
  <tr><td>7:30</td><td class="ledig"></td><td class="ledig"></td></tr>
  <tr><td>08:00</td><td class="full"></td><td class="occupied"></td></tr>
</table>`
	times, err := ParseGrid(strings.NewReader(html))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if times["07:00"] != 2 {
		t.Fatalf("ожидали 2 места в 07:00, получили %d", times["07:00"])
	}
	if times["07:30"] != 2 {
		t.Fatalf("ячейка без числа считается одной позицией, получили %d", times["07:30"])
	}
	if _, ok := times["08:00"]; ok {
		t.Fatalf("занятое время не должно попадать в карту")
	}
}

func TestParseGridTableBookingLink(t *testing.T) {
	html := `
<table>
  <tr><td>09:00</td><td><a href="/slot/1">Bestill</a></td></tr>
</table>`
	times, err := ParseGrid(strings.NewReader(html))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if times["09:00"] != 1 {
		t.Fatalf("кнопка бронирования означает свободную позицию, получили %d", times["09:00"])
	}
}

func TestParseGridTiles(t *testing.T) {
	html := `
<div class="grid">
  <div class="hour" data-time="20250609T0700" data-capacity="3"></div>
  <div class="hour" data-start="07:30">2 ledige plasser</div>
  <div class="hour">08:00 full</div>
</div>`
	times, err := ParseGrid(strings.NewReader(html))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if times["07:00"] != 3 {
		t.Fatalf("вместимость из data-capacity, получили %d", times["07:00"])
	}
	if times["07:30"] != 2 {
		t.Fatalf("вместимость из текста плитки, получили %d", times["07:30"])
	}
	if _, ok := times["08:00"]; ok {
		t.Fatalf("плитка без признака свободных мест не попадает в карту")
	}
}

func TestParseGridPartiallyUnavailable(t *testing.T) {
	html := `
<table>
  <tr><td>10:00</td><td class="partfree">ledig</td></tr>
</table>`
	times, err := ParseGrid(strings.NewReader(html))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(times) != 0 {
		t.Fatalf("partfree трактуется как занято, получили %v", times)
	}
}

func TestParseGridEmptyDocument(t *testing.T) {
	times, err := ParseGrid(strings.NewReader("<html><body></body></html>"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(times) != 0 {
		t.Fatalf("пустой документ — пустая карта, получили %v", times)
	}
}
