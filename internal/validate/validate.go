// Package validate checks configuration and request values before they reach
// the Bot API or the conversion pipeline. Every failure is a
// *tg.ValidationError naming the offending field.
package validate

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prilive-com/circlebot/tg"
)

type number interface {
	~int | ~int32 | ~int64 | ~uint32 | ~float64
}

func New(field, message string) *tg.ValidationError {
	return tg.NewValidationError(field, message)
}

func Newf(field, format string, args ...any) *tg.ValidationError {
	return tg.NewValidationError(field, fmt.Sprintf(format, args...))
}

// Token checks the {bot_id}:{secret} shape BotFather hands out.
func Token(token string) error {
	if token == "" {
		return New("token", "cannot be empty")
	}
	id, secret, ok := strings.Cut(token, ":")
	if !ok {
		return New("token", "invalid format, expected {bot_id}:{secret}")
	}
	if n, err := strconv.ParseInt(id, 10, 64); err != nil || n <= 0 {
		return New("token", "bot_id must be a positive number")
	}
	if secret == "" {
		return New("token", "secret cannot be empty")
	}
	return nil
}

// ChatID accepts a non-zero numeric ID or an @username.
func ChatID(chatID tg.ChatID) error {
	switch v := chatID.(type) {
	case nil:
		return New("chat_id", "is required")
	case int64:
		if v == 0 {
			return New("chat_id", "cannot be zero")
		}
	case int:
		if v == 0 {
			return New("chat_id", "cannot be zero")
		}
	case string:
		if len(v) < 2 || v[0] != '@' {
			return Newf("chat_id", "%q is not an @username", v)
		}
	default:
		return Newf("chat_id", "invalid type %T, expected int64 or string", chatID)
	}
	return nil
}

// Text checks message text against a limit counted in characters, the way
// Telegram counts it.
func Text(text string, maxChars int) error {
	if text == "" {
		return New("text", "cannot be empty")
	}
	if n := utf8.RuneCountInString(text); n > maxChars {
		return Newf("text", "has %d characters, limit is %d", n, maxChars)
	}
	return nil
}

// URL requires an absolute http or https URL with a host.
func URL(raw string) error {
	if raw == "" {
		return New("url", "cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Newf("url", "%v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New("url", "must start with http:// or https://")
	}
	if u.Host == "" {
		return New("url", "missing host")
	}
	return nil
}

func FileID(fileID string) error {
	if fileID == "" {
		return New("file_id", "cannot be empty")
	}
	return nil
}

// ParseMode accepts the Bot API formatting modes, or none.
func ParseMode(mode string) error {
	switch mode {
	case "", "HTML", "Markdown", "MarkdownV2":
		return nil
	}
	return Newf("parse_mode", "invalid value %q, expected HTML, Markdown, or MarkdownV2", mode)
}

func Positive[T number](field string, value T) error {
	if value <= 0 {
		return Newf(field, "must be positive, got %v", value)
	}
	return nil
}

func NonNegative[T number](field string, value T) error {
	if value < 0 {
		return Newf(field, "cannot be negative, got %v", value)
	}
	return nil
}

func InRange[T number](field string, value, lo, hi T) error {
	if value < lo || value > hi {
		return Newf(field, "must be between %v and %v, got %v", lo, hi, value)
	}
	return nil
}

// Durations checks a set of timeouts at once. With allowZero a zero
// duration passes, meaning "use the default".
func Durations(durations map[string]time.Duration, allowZero bool) error {
	for _, field := range slices.Sorted(maps.Keys(durations)) {
		d := durations[field]
		if d < 0 || (d == 0 && !allowZero) {
			return Newf(field, "must be positive, got %s", d)
		}
	}
	return nil
}

func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return New(field, "is required")
	}
	return nil
}
