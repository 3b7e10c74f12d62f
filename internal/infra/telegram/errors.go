package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrNotInitialized = errors.New("telegram client is not initialized")

type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("telegram client is not configured: missing %s", strings.Join(e.Missing, ", "))
}

type DeliveryError struct {
	Code       int
	RetryAfter time.Duration
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("deliver telegram message (code %d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("deliver telegram message: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same send can succeed: rate limits, provider 5xx
// and transport failures are temporary, other provider rejections are not.
func (e *DeliveryError) Temporary() bool {
	if e.Code == 0 {
		return true
	}
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

type RegistrationError struct {
	URL string
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register telegram webhook %q: %v", e.URL, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query telegram webhook info: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func newDeliveryError(err error) *DeliveryError {
	out := &DeliveryError{Err: err}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		out.Code = apiErr.Code
		if apiErr.RetryAfter > 0 {
			out.RetryAfter = time.Duration(apiErr.RetryAfter) * time.Second
		}
	}

	return out
}
