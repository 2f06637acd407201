package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, Chunk([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a"}, {"b"}}, Chunk([]string{"a", "b"}, 0))
	assert.Empty(t, Chunk([]string{}, 3))
}

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"History", "Science"}, nil, []string{"Quit"})
	require.Len(t, m.ReplyKeyboard, 2)
	assert.Equal(t, "History", m.ReplyKeyboard[0][0].Text)
	assert.Equal(t, "Quit", m.ReplyKeyboard[1][0].Text)
	assert.True(t, m.ResizeKeyboard)
}

func TestInlineButtonsNPerRow(t *testing.T) {
	m := InlineButtonsNPerRow([]InlineBtn{
		{Text: "A", Unique: "ans", Data: "q1|1"},
		{Text: "B", Unique: "ans", Data: "q1|2"},
		{Text: "C", Unique: "ans", Data: "q1|3"},
	}, 2)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Equal(t, "C", m.InlineKeyboard[1][0].Text)
	assert.Contains(t, m.InlineKeyboard[0][1].Data, "q1|2")
}
