package collectors

import (
	"context"
	"time"

	"github.com/hetulpatel/surveillance/internal/logging"
)

// RunLoop fetches from collector until ctx is done, handing each non-empty
// page to handleFn and waiting interval between calls. Rate limiting and
// backoff on errors are handled inside the collector's HTTP client.
func RunLoop(ctx context.Context, collector Collector, opts FetchOptions, interval time.Duration, handleFn func(context.Context, []Market) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		markets, err := collector.Fetch(ctx, opts)
		if err != nil {
			logging.Errorf("[%s] fetch failed: %v", collector.Name(), err)
		} else if handleFn != nil && len(markets) > 0 {
			if err := handleFn(ctx, markets); err != nil {
				logging.Errorf("[%s] handler error: %v", collector.Name(), err)
			}
		}

		if interval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// FetchPages calls collector up to pages times and returns everything it
// produced. A failed page is logged and skipped.
func FetchPages(ctx context.Context, collector Collector, opts FetchOptions, pages int) []Market {
	if pages <= 0 {
		pages = 1
	}
	var out []Market
	for i := 0; i < pages; i++ {
		if ctx.Err() != nil {
			break
		}
		markets, err := collector.Fetch(ctx, opts)
		if err != nil {
			logging.Errorf("[%s] fetch page %d failed: %v", collector.Name(), i, err)
			continue
		}
		out = append(out, markets...)
	}
	return out
}
