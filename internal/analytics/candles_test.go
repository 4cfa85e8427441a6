package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCandles = `[
  [1714557600000, 60100, 60250, 60400, 59900, 12.5],
  [1714554000000, 60000, 60100, 60300, 59800, 10.25]
]`

func TestParseCandlesSortsAscending(t *testing.T) {
	candles, err := ParseCandles([]byte(sampleCandles))
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), candles[0].Time)
	assert.Equal(t, 60000.0, candles[0].Open)
	assert.Equal(t, 60100.0, candles[0].Close)
	assert.Equal(t, 60300.0, candles[0].High)
	assert.Equal(t, 59800.0, candles[0].Low)
	assert.Equal(t, 10.25, candles[0].Volume)
	assert.True(t, candles[1].Time.After(candles[0].Time))
}

func TestParseCandlesRejectsBadInput(t *testing.T) {
	_, err := ParseCandles([]byte(`{"error":"ratelimit"}`))
	assert.Error(t, err)

	_, err = ParseCandles([]byte(`[[1,2,3]]`))
	assert.Error(t, err)

	_, err = ParseCandles([]byte(`[]`))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestPriceFeedFetchesCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/candles/trade:1h:tBTCUSD/hist", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(sampleCandles))
	}))
	defer srv.Close()

	feed := NewPriceFeed(srv.URL+"/v2/candles/trade:1h:tBTCUSD/hist?limit=200", srv.Client())
	candles, err := feed.Candles(context.Background())
	require.NoError(t, err)
	assert.Len(t, candles, 2)
}

func TestPriceFeedReportsHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewPriceFeed(srv.URL, srv.Client()).Candles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestPriceFeedRequiresInitialization(t *testing.T) {
	var feed *PriceFeed
	_, err := feed.Candles(context.Background())
	assert.Error(t, err)

	_, err = NewPriceFeed("http://example.invalid", nil).Candles(nil)
	assert.Error(t, err)
}
