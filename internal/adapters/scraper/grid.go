package scraper

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Парсер сеток бронирования GolfBox. Поддерживаются две разметки:
// табличная (строка — время, ячейки — стартовые позиции) и плиточная
// (div на каждый час с атрибутами/текстом вместимости).

var (
	timeRe     = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	isoTimeRe  = regexp.MustCompile(`T(\d{2})(\d{2})`)
	numberRe   = regexp.MustCompile(`(\d+)`)
	spotWordRe = regexp.MustCompile(`(?i)(\d+)\s*(spot|plass|ledig)`)
)

var availableWords = []string{"ledig", "available", "free", "bookable", "open", "åpen"}
var unavailableWords = []string{"partfree", "partial", "full", "occupied", "taken"}

// ParseGrid извлекает из HTML карту «время → суммарное число мест».
func ParseGrid(r io.Reader) (map[string]int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	times := parseTableGrid(doc)
	if len(times) == 0 {
		times = parseTileGrid(doc)
	}
	return times, nil
}

func parseTableGrid(doc *goquery.Document) map[string]int {
	times := make(map[string]int)
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		label := normalizeTime(timeRe.FindString(cells.First().Text()))
		if label == "" {
			label = normalizeTime(timeRe.FindString(row.Text()))
		}
		if label == "" {
			return
		}
		cells.Slice(1, cells.Length()).Each(func(_ int, cell *goquery.Selection) {
			if !isAvailableCell(cell) {
				return
			}
			times[label] += cellCapacity(cell)
		})
	})
	return times
}

func parseTileGrid(doc *goquery.Document) map[string]int {
	times := make(map[string]int)
	doc.Find("div.hour, .booking-slot, .time-slot").Each(func(_ int, tile *goquery.Selection) {
		label := tileTime(tile)
		if label == "" {
			return
		}
		capacity, ok := tileCapacity(tile)
		if !ok {
			return
		}
		times[label] += capacity
	})
	return times
}

func isAvailableCell(cell *goquery.Selection) bool {
	class, _ := cell.Attr("class")
	haystack := strings.ToLower(class + " " + cell.Text())
	for _, word := range unavailableWords {
		if strings.Contains(haystack, word) {
			return false
		}
	}
	for _, word := range availableWords {
		if strings.Contains(haystack, word) {
			return true
		}
	}
	action := strings.ToLower(cell.Find("a, button").Text())
	for _, word := range []string{"book", "bestill", "reserver", "reserve"} {
		if strings.Contains(action, word) {
			return true
		}
	}
	return false
}

// cellCapacity читает вместимость из текста ячейки; ячейка без числа
// считается одной свободной позицией.
func cellCapacity(cell *goquery.Selection) int {
	if m := spotWordRe.FindStringSubmatch(cell.Text()); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 {
			return n
		}
	}
	return 1
}

func tileTime(tile *goquery.Selection) string {
	for _, attr := range []string{"data-time", "data-start", "id"} {
		if val, ok := tile.Attr(attr); ok {
			if m := isoTimeRe.FindStringSubmatch(val); m != nil {
				return m[1] + ":" + m[2]
			}
			if t := normalizeTime(timeRe.FindString(val)); t != "" {
				return t
			}
		}
	}
	return normalizeTime(timeRe.FindString(tile.Text()))
}

func tileCapacity(tile *goquery.Selection) (int, bool) {
	for _, attr := range []string{"data-capacity", "data-slots"} {
		if val, ok := tile.Attr(attr); ok {
			if m := numberRe.FindString(val); m != "" {
				if n, err := strconv.Atoi(m); err == nil && n >= 0 {
					return n, true
				}
			}
		}
	}
	// Метка времени вырезается, иначе часы из "09:00" читаются как вместимость.
	text := strings.ToLower(timeRe.ReplaceAllString(tile.Text(), " "))
	for _, word := range []string{"ledig", "ledige", "available", "free", "spots", "plass", "plasser"} {
		if strings.Contains(text, word) {
			if m := numberRe.FindString(text); m != "" {
				if n, err := strconv.Atoi(m); err == nil && n >= 0 {
					return n, true
				}
			}
		}
	}
	return 0, false
}

func normalizeTime(raw string) string {
	m := timeRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	h, err := strconv.Atoi(m[1])
	if err != nil || h > 23 {
		return ""
	}
	return strconv.Itoa(h/10) + strconv.Itoa(h%10) + ":" + m[2]
}
