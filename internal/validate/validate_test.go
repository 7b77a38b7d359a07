package validate_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/circlebot/internal/validate"
	"github.com/prilive-com/circlebot/tg"
)

func TestToken(t *testing.T) {
	assert.NoError(t, validate.Token("123456789:ABCdef"))

	for _, bad := range []string{"", "nocolon", "abc:secret", "-5:secret", "123:"} {
		var vErr *tg.ValidationError
		require.ErrorAs(t, validate.Token(bad), &vErr, bad)
		assert.Equal(t, "token", vErr.Field)
	}
}

func TestChatID(t *testing.T) {
	tests := []struct {
		id tg.ChatID
		ok bool
	}{
		{int64(-1001), true},
		{5, true},
		{"@channel", true},
		{nil, false},
		{int64(0), false},
		{"channel", false},
		{"@", false},
		{1.5, false},
	}
	for _, tt := range tests {
		err := validate.ChatID(tt.id)
		if tt.ok {
			assert.NoError(t, err, "%v", tt.id)
		} else {
			assert.Error(t, err, "%v", tt.id)
		}
	}
}

func TestText_CountsCharacters(t *testing.T) {
	// Ten two-byte runes fit a ten character limit.
	assert.NoError(t, validate.Text(strings.Repeat("ж", 10), 10))
	assert.Error(t, validate.Text("", 10))
	assert.EqualError(t, validate.Text(strings.Repeat("a", 11), 10),
		"circlebot: validation: text - has 11 characters, limit is 10")
}

func TestURL(t *testing.T) {
	assert.NoError(t, validate.URL("https://api.telegram.org"))
	assert.NoError(t, validate.URL("http://127.0.0.1:8081"))
	for _, bad := range []string{"", "ftp://x", "api.telegram.org", "https://"} {
		assert.Error(t, validate.URL(bad), bad)
	}
}

func TestParseMode(t *testing.T) {
	for _, ok := range []string{"", "HTML", "Markdown", "MarkdownV2"} {
		assert.NoError(t, validate.ParseMode(ok))
	}
	assert.Error(t, validate.ParseMode("markdown"))
}

func TestNumericRules(t *testing.T) {
	assert.NoError(t, validate.Positive("n", 1))
	assert.Error(t, validate.Positive("n", 0))
	assert.EqualError(t, validate.Positive("rps", -0.5), "circlebot: validation: rps - must be positive, got -0.5")
	assert.NoError(t, validate.NonNegative("n", int64(0)))
	assert.Error(t, validate.NonNegative("n", -1))
	assert.NoError(t, validate.InRange("n", 60, 0, 60))
	assert.Error(t, validate.InRange("n", 61, 0, 60))
}

func TestDurations(t *testing.T) {
	set := map[string]time.Duration{"b_timeout": 0, "a_timeout": -time.Second}

	var vErr *tg.ValidationError
	require.ErrorAs(t, validate.Durations(set, false), &vErr)
	assert.Equal(t, "a_timeout", vErr.Field, "fields are checked in name order")

	set["a_timeout"] = time.Second
	assert.NoError(t, validate.Durations(set, true))
	assert.Error(t, validate.Durations(set, false))
}

func TestRequired(t *testing.T) {
	assert.NoError(t, validate.Required("name", "x"))
	assert.EqualError(t, validate.Required("name", "  "), "circlebot: validation: name - is required")
	assert.Error(t, validate.FileID(""))
}
