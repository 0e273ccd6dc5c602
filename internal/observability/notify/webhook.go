package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Poster sends JSON bodies to an alerting endpoint with a small linear retry.
type Poster struct {
	Name       string
	Client     *http.Client
	RetryLimit int
	// RetryStep is the linear backoff unit between attempts.
	RetryStep time.Duration
}

// Post delivers body to url, retrying RetryLimit times on failure.
func (p Poster) Post(ctx context.Context, url string, body []byte) error {
	step := p.RetryStep
	if step <= 0 {
		step = 200 * time.Millisecond
	}
	attempts := max(p.RetryLimit, 0) + 1

	var lastErr error
	for attempt := range attempts {
		if lastErr = p.once(ctx, url, body); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (p Poster) once(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.Name, err)
	}

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	closeErr := resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", p.Name, resp.Status, strings.TrimSpace(string(respBody)))
	}
	if readErr != nil || closeErr != nil {
		return errors.Join(readErr, closeErr)
	}
	return nil
}

// Fallback returns value unless it is blank.
func Fallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
