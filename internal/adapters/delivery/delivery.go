// Package delivery holds helpers shared by the provider delivery clients.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/academic360/notifier/internal/errors"
)

// maxErrorBodyBytes bounds how much of a provider response is kept in an error.
const maxErrorBodyBytes = 4 * 1024

// StatusError classifies a non-success provider response. Throttling and server
// errors are transient; other rejections still retry but carry the validation class.
func StatusError(provider string, status int, body string) error {
	body = strings.TrimSpace(body)
	msg := fmt.Sprintf("%s responded %d", provider, status)
	if body != "" {
		msg += ": " + body
	}
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return apperrors.Transient(msg)
	}
	return apperrors.Validation(msg)
}

// TransportError wraps a failure to reach the provider. Context errors pass through
// untouched so callers can detect shutdown.
func TransportError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	return apperrors.Wrapf(err, apperrors.ErrCodeTransient, "%s request failed", provider)
}

// ReadBody reads at most maxErrorBodyBytes from body and drains the rest so the
// connection can be reused.
func ReadBody(body io.Reader) (string, error) {
	if body == nil {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes+1))
	if len(data) > maxErrorBodyBytes {
		data = data[:maxErrorBodyBytes]
		if _, drainErr := io.Copy(io.Discard, body); drainErr != nil && err == nil {
			err = drainErr
		}
	}
	return string(data), err
}

// RenderPositional replaces {{1}}..{{n}} in text with values. Values without a
// matching placeholder are appended, space separated, so nothing is silently dropped.
func RenderPositional(text string, values []string) string {
	var extra []string
	for i, v := range values {
		token := fmt.Sprintf("{{%d}}", i+1)
		if strings.Contains(text, token) {
			text = strings.ReplaceAll(text, token, v)
			continue
		}
		if strings.TrimSpace(v) != "" {
			extra = append(extra, v)
		}
	}
	if len(extra) > 0 {
		text = strings.TrimSpace(text + " " + strings.Join(extra, " "))
	}
	return text
}
