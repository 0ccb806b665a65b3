package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxAttempts = 5

// GetJSON issues a GET and decodes a 2xx body into dst. Transport errors,
// 429 and 5xx responses are retried with exponential backoff capped at 30s.
func GetJSON(ctx context.Context, client *http.Client, name, url string, dst any) error {
	var attempt int
	for {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			if shouldRetry(attempt, 0) && ctx.Err() == nil {
				if err := backoff(ctx, attempt); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			return json.NewDecoder(resp.Body).Decode(dst)
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()

		if shouldRetry(attempt, resp.StatusCode) {
			if err := backoff(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("%s API %s: %s", name, resp.Status, string(body))
	}
}

func shouldRetry(attempt int, status int) bool {
	if attempt >= maxAttempts {
		return false
	}
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

// Backoff is the delay before retry number attempt; tests shrink it.
var Backoff = func(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func backoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(Backoff(attempt)):
		return nil
	}
}
