package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
)

func TestCallbackData(t *testing.T) {
	assert.Equal(t, "b", encodeCallback(cbBack))
	assert.Equal(t, "o:123", encodeCallback(cbOpen, "123"))
	assert.Equal(t, cbNoop, encodeCallback(cbOpen, strings.Repeat("x", 64)))
	assert.Equal(t, "pg:3", pageCallback(3))

	verb, arg := decodeCallback("dq:AgADx:y")
	assert.Equal(t, "dq", verb)
	assert.Equal(t, "AgADx:y", arg)

	verb, arg = decodeCallback("ucommit")
	assert.Equal(t, cbCommit, verb)
	assert.Empty(t, arg)
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		percent  float64
		expected string
	}{
		{0, "⬜⬜⬜⬜⬜⬜⬜⬜⬜⬜ 0%"},
		{33.3, "🟩🟩🟩⬜⬜⬜⬜⬜⬜⬜ 33%"},
		{66.6, "🟩🟩🟩🟩🟩🟩⬜⬜⬜⬜ 66%"},
		{100, "🟩🟩🟩🟩🟩🟩🟩🟩🟩🟩 100%"},
		{140, "🟩🟩🟩🟩🟩🟩🟩🟩🟩🟩 100%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, progressBar(tt.percent))
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name                      string
		n, page, size             int
		start, end, clamped, nPgs int
	}{
		{"empty", 0, 0, 8, 0, 0, 0, 1},
		{"first page", 20, 0, 8, 0, 8, 0, 3},
		{"last page", 20, 2, 8, 16, 20, 2, 3},
		{"past the end", 20, 9, 8, 16, 20, 2, 3},
		{"negative", 20, -1, 8, 0, 8, 0, 3},
		{"no page size", 5, 0, 0, 0, 5, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, page, pages := paginate(tt.n, tt.page, tt.size)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
			assert.Equal(t, tt.clamped, page)
			assert.Equal(t, tt.nPgs, pages)
		})
	}
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "📁", symbol(models.FsNode{IsDir: true}))
	assert.Equal(t, "📕", symbol(models.FsNode{MimeType: "application/pdf"}))
	assert.Equal(t, "🖼", symbol(models.FsNode{MimeType: "image/png"}))
	assert.Equal(t, "📄", symbol(models.FsNode{MimeType: "application/octet-stream"}))
}

func TestKeyboard_Pager(t *testing.T) {
	var kb keyboard
	kb.pager("<", ">", 0, 3)
	assert.Equal(t, []string{"pg:2", cbNoop, "pg:1"}, buttons(kb.markup()))

	var single keyboard
	single.pager("<", ">", 0, 1)
	assert.NotNil(t, single.markup().InlineKeyboard)
	assert.Empty(t, single.markup().InlineKeyboard)
}
