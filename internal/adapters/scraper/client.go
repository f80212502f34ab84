package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"teetime-monitor/internal/infra/metrics"
)

const (
	userAgent    = "teetime-monitor/1.0"
	fetchTimeout = 30 * time.Second
	maxRetries   = 3
)

// Client загружает сетки бронирования по HTTP.
type Client struct {
	http *http.Client
}

// NewClient создаёт клиента с таймаутом на запрос.
func NewClient() *Client {
	return &Client{http: &http.Client{Timeout: fetchTimeout}}
}

// FetchGrid загружает и парсит сетку по адресу. Сетевые сбои повторяются
// с экспоненциальной паузой; исчерпание попыток — обычная ошибка цикла.
func (c *Client) FetchGrid(ctx context.Context, gridURL string) (map[string]int, error) {
	var times map[string]int
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, gridURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		req.Header.Set("Pragma", "no-cache")

		start := time.Now()
		resp, err := c.http.Do(req)
		metrics.ObserveNetworkRequest("scraper", "fetch_grid", req.URL.Host, start, err)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("неожиданный статус %d", resp.StatusCode)
		}
		times, err = ParseGrid(resp.Body)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		metrics.ScrapeFetchErrors.Inc()
		return nil, fmt.Errorf("загрузка сетки: %w", err)
	}
	return times, nil
}

// RewriteURLForDay перенастраивает известные параметры даты на целевой
// день, сохраняя часть времени, если она была.
//
//   - Booking_Start=YYYYMMDDTHHMMSS — заменяется дата, время остаётся;
//   - SelectedDate=YYYYMMDDTHHMMSS — аналогично;
//   - date/dato/resdate/selectedDate=YYYY-MM-DD — ставится целевой день.
func RewriteURLForDay(raw string, day time.Time) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	qs := parsed.Query()

	for _, key := range []string{"Booking_Start", "SelectedDate"} {
		if val := qs.Get(key); val != "" {
			if idx := indexOfTimePart(val); idx >= 0 {
				qs.Set(key, day.Format("20060102")+val[idx:])
			}
		}
	}
	for _, key := range []string{"date", "dato", "resdate", "selectedDate"} {
		if val := qs.Get(key); val != "" && indexOfTimePart(val) < 0 {
			qs.Set(key, day.Format("2006-01-02"))
		}
	}

	parsed.RawQuery = qs.Encode()
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	return parsed.String()
}

// indexOfTimePart находит хвост вида "THHMMSS" и возвращает его позицию.
func indexOfTimePart(val string) int {
	if len(val) < 7 {
		return -1
	}
	idx := len(val) - 7
	if val[idx] != 'T' {
		return -1
	}
	for _, r := range val[idx+1:] {
		if r < '0' || r > '9' {
			return -1
		}
	}
	return idx
}

// TimeHasPassed сообщает, прошло ли время слота для сегодняшней даты.
// Для будущих дат всегда false; 15-минутный буфер оставляет запас на
// оформление брони.
func TimeHasPassed(slotTime string, target, now time.Time) bool {
	if !target.UTC().Truncate(24 * time.Hour).Equal(now.UTC().Truncate(24 * time.Hour)) {
		return false
	}
	var h, m int
	if _, err := fmt.Sscanf(slotTime, "%d:%d", &h, &m); err != nil {
		return false
	}
	const bufferMinutes = 15
	slotMinutes := h*60 + m
	nowMinutes := now.UTC().Hour()*60 + now.UTC().Minute()
	return slotMinutes <= nowMinutes+bufferMinutes
}
