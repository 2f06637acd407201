package question

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAcceptsStringsAndNumbers(t *testing.T) {
	var qs []Question
	require.NoError(t, json.Unmarshal([]byte(`[{"id": 7}, {"id": " q-8 "}, {"id": 9.5}]`), &qs))
	assert.Equal(t, ID("7"), qs[0].ID)
	assert.Equal(t, ID("q-8"), qs[1].ID)
	assert.Equal(t, ID("9.5"), qs[2].ID)

	assert.Error(t, json.Unmarshal([]byte(`[{"id": true}]`), &qs))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		q    Question
		want []string
	}{
		{"ok", Question{ID: "1", Text: "Q", Choices: []string{"A", "B"}, Answer: "A"}, nil},
		{"free answer", Question{ID: "1", Text: "Q", Answer: "42"}, nil},
		{"trimmed match", Question{ID: "1", Text: "Q", Choices: []string{" A ", "B"}, Answer: "A "}, nil},
		{"answer missing", Question{ID: "1", Text: "Q", Choices: []string{"A", "B"}, Answer: "C"},
			[]string{`answer "C" is not among the choices`}},
		{"duplicates", Question{ID: "1", Text: "Q", Choices: []string{"A", "A "}, Answer: "A"},
			[]string{"duplicate choices: A"}},
		{"empty", Question{}, []string{"missing id", "empty question text", "empty answer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, p := range tt.q.Validate() {
				got = append(got, p.Reason)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMalformed(t *testing.T) {
	assert.True(t, Question{Choices: []string{"A"}, Answer: "B"}.Malformed())
	assert.False(t, Question{Answer: "anything"}.Malformed())
}
