package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

const priceFeedBodyLimit = 4 << 20

// Candle is one OHLCV bar of the price feed.
type Candle struct {
	Time   time.Time
	Open   float64
	Close  float64
	High   float64
	Low    float64
	Volume float64
}

// PriceFeed fetches hourly candles from a Bitfinex style candles endpoint.
type PriceFeed struct {
	url    string
	client *http.Client
}

// NewPriceFeed builds a feed for url. A nil client gets a 15 second timeout.
func NewPriceFeed(url string, client *http.Client) *PriceFeed {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PriceFeed{url: url, client: client}
}

// Candles downloads the candle history and returns it oldest first.
func (f *PriceFeed) Candles(ctx context.Context) ([]Candle, error) {
	if f == nil || f.client == nil || f.url == "" {
		return nil, errors.New("price feed is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build price feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, priceFeedBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read candles: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch candles: unexpected status %d", resp.StatusCode)
	}

	return ParseCandles(body)
}

// ParseCandles decodes rows of [mts, open, close, high, low, volume] and
// sorts them by time ascending.
func ParseCandles(body []byte) ([]Candle, error) {
	var rows [][]float64
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode candles: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	out := make([]Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("decode candles: row %d has %d fields", i, len(row))
		}
		out = append(out, Candle{
			Time:   time.UnixMilli(int64(row[0])).UTC(),
			Open:   row[1],
			Close:  row[2],
			High:   row[3],
			Low:    row[4],
			Volume: row[5],
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}
