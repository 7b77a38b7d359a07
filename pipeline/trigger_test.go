package pipeline_test

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prilive-com/circlebot/pipeline"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"!circle", true},
		{"please !circle this", true},
		{"!دائرة", true},
		{"!دائره", true},
		{"صورة !دائرة الآن", true},
		{"!Circle", false},
		{"!CIRCLE", false},
		{"circle", false},
		{"دائرة", false},
		{"! circle", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, pipeline.Matches(tt.text, pipeline.DefaultKeywords))
		})
	}
}

func TestMatches_NeverMatchesWithoutKeyword(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	alphabet := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ دائرهة !")
	for i := 0; i < 2000; i++ {
		var sb strings.Builder
		n := r.IntN(40)
		for j := 0; j < n; j++ {
			sb.WriteRune(alphabet[r.IntN(len(alphabet))])
		}
		text := sb.String()

		contains := false
		for _, kw := range pipeline.DefaultKeywords {
			if strings.Contains(text, kw) {
				contains = true
			}
		}
		assert.Equal(t, contains, pipeline.Matches(text, pipeline.DefaultKeywords), "text %q", text)
	}
}

func TestMatches_IgnoresEmptyKeyword(t *testing.T) {
	assert.False(t, pipeline.Matches("anything", []string{""}))
}
