package tg

import (
	"log/slog"
	"strconv"
	"strings"
)

// SecretToken holds a bot token. Every printing path (fmt verbs, slog,
// encoding) shows only the bot ID, which is public; the secret half never
// leaves the process except through Value.
type SecretToken string

// Value returns the raw token for building Bot API URLs.
func (s SecretToken) Value() string { return string(s) }

func (s SecretToken) IsEmpty() bool { return s == "" }

// BotID returns the numeric prefix of the token, which is the bot's user ID.
// It returns 0 when the token is malformed.
func (s SecretToken) BotID() int64 {
	id, _, ok := strings.Cut(string(s), ":")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (s SecretToken) redacted() string {
	if id := s.BotID(); id > 0 {
		return strconv.FormatInt(id, 10) + ":[REDACTED]"
	}
	return "[REDACTED]"
}

func (s SecretToken) String() string   { return s.redacted() }
func (s SecretToken) GoString() string { return `tg.SecretToken("` + s.redacted() + `")` }

func (s SecretToken) LogValue() slog.Value { return slog.StringValue(s.redacted()) }

func (s SecretToken) MarshalText() ([]byte, error) { return []byte(s.redacted()), nil }
