package exchange

import (
	"context"
	"log"
	"time"
)

const historyChunkSize = 1000

// LoadHistory fetches candles for [start, end) in chunks of 1000, the
// exchange's per-request cap, deduplicated by open time and returned in
// ascending order.
func LoadHistory(ctx context.Context, client ExchangeClient, symbol, interval string, start, end time.Time) ([]Kline, error) {
	var all []Kline
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()

	for cursor < endMs {
		chunk, err := client.GetKlinesFrom(ctx, symbol, interval, historyChunkSize, cursor)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}

		for _, k := range chunk {
			if k.OpenTime.UnixMilli() >= endMs {
				cursor = endMs
				break
			}
			if len(all) > 0 && !k.OpenTime.After(all[len(all)-1].OpenTime) {
				continue // overlap with previous chunk
			}
			all = append(all, k)
		}

		last := chunk[len(chunk)-1].OpenTime.UnixMilli()
		if last+1 <= cursor {
			break
		}
		cursor = last + 1

		// Be polite to the rate limiter between pages.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	log.Printf("📥 Loaded %d %s candles for %s", len(all), interval, symbol)
	return all, nil
}
