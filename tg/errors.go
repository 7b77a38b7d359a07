package tg

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels matched with errors.Is. API sentinels are reached through
// *APIError's Unwrap.
var (
	ErrUnauthorized    = errors.New("circlebot: unauthorized (invalid token)")
	ErrForbidden       = errors.New("circlebot: forbidden")
	ErrNotFound        = errors.New("circlebot: not found")
	ErrConflict        = errors.New("circlebot: conflicting getUpdates or webhook")
	ErrTooManyRequests = errors.New("circlebot: too many requests")

	ErrMessageNotFound = errors.New("circlebot: message not found")
	ErrFileTooBig      = errors.New("circlebot: file is too big")
	ErrBotBlocked      = errors.New("circlebot: bot blocked by user")
	ErrBotKicked       = errors.New("circlebot: bot kicked from chat")
	ErrChatNotFound    = errors.New("circlebot: chat not found")
	ErrNoRights        = errors.New("circlebot: not enough rights")

	ErrCircuitOpen      = errors.New("circlebot: circuit breaker open")
	ErrMaxRetries       = errors.New("circlebot: max retries exceeded")
	ErrResponseTooLarge = errors.New("circlebot: response too large")
	ErrInvalidToken     = errors.New("circlebot: invalid bot token format")
)

// ResponseParameters explains a refused request.
type ResponseParameters struct {
	MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
	RetryAfter      int   `json:"retry_after,omitempty"`
}

// APIError is a Bot API refusal (ok=false).
type APIError struct {
	Code        int
	Description string
	RetryAfter  time.Duration
	Method      string
	Parameters  *ResponseParameters
	cause       error
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circlebot: %s failed: %s (code=%d, retry_after=%s)",
			e.Method, e.Description, e.Code, e.RetryAfter)
	}
	return fmt.Sprintf("circlebot: %s failed: %s (code=%d)", e.Method, e.Description, e.Code)
}

func (e *APIError) Unwrap() error { return e.cause }

// IsRetryable reports flood control and transient server errors.
func (e *APIError) IsRetryable() bool {
	return e.Code == 429 || (e.Code >= 500 && e.Code <= 504)
}

// NewAPIError builds an APIError whose sentinel is derived from code and
// description.
func NewAPIError(method string, code int, description string) *APIError {
	return &APIError{
		Code:        code,
		Description: description,
		Method:      method,
		cause:       DetectSentinel(code, description),
	}
}

func NewAPIErrorWithRetry(method string, code int, description string, retryAfter time.Duration) *APIError {
	e := NewAPIError(method, code, description)
	e.RetryAfter = retryAfter
	return e
}

// Description fragments win over status codes: Telegram reports a blocked
// bot and a missing chat with the same 400/403.
var descriptionSentinels = []struct {
	fragment string
	err      error
}{
	{"file is too big", ErrFileTooBig},
	{"message to reply not found", ErrMessageNotFound},
	{"message not found", ErrMessageNotFound},
	{"bot was blocked", ErrBotBlocked},
	{"bot was kicked", ErrBotKicked},
	{"bot is not a member", ErrBotKicked},
	{"chat not found", ErrChatNotFound},
	{"not enough rights", ErrNoRights},
	{"have no rights to send", ErrNoRights},
}

var codeSentinels = map[int]error{
	401: ErrUnauthorized,
	403: ErrForbidden,
	404: ErrNotFound,
	409: ErrConflict,
	429: ErrTooManyRequests,
}

// DetectSentinel maps a Bot API refusal to a sentinel, or nil.
func DetectSentinel(code int, desc string) error {
	lower := strings.ToLower(desc)
	for _, d := range descriptionSentinels {
		if strings.Contains(lower, d.fragment) {
			return d.err
		}
	}
	return codeSentinels[code]
}

// IsUnreachable reports errors after which nothing more can be sent to the
// chat: the bot lost access to it or the chat is gone.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrBotBlocked) ||
		errors.Is(err, ErrBotKicked) ||
		errors.Is(err, ErrChatNotFound) ||
		errors.Is(err, ErrNoRights)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("circlebot: validation: %s - %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
