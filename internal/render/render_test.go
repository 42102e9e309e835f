package render

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/selection"
	"github.com/park285/kata-chess-viewer/internal/session"
)

func startView(t *testing.T, reversed bool) session.BoardView {
	t.Helper()
	board, turn, err := notation.ParsePlacement("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w")
	require.NoError(t, err)
	return session.BoardView{
		GameID:     7,
		Board:      board,
		Turn:       turn,
		Legal:      notation.ParseMoves([]string{"e2e3", "e2e4"}),
		AllowMoves: [2]bool{true, false},
		Reversed:   reversed,
	}
}

func TestRenderPNG(t *testing.T) {
	r := New(32)
	v := startView(t, false)
	sel, _ := selection.Click(selection.IdleState(), v, notation.Square{File: 4, Rank: 1})

	data, err := r.RenderPNG(context.Background(), v, sel)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32*8+2*margin, 32*8+2*margin), img.Bounds())
}

func TestRenderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(0).RenderPNG(ctx, startView(t, false), selection.IdleState())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSquareMapping(t *testing.T) {
	r := New(32)
	sq, ok := r.Square(image.Point{X: margin + 1, Y: margin + 1}, false)
	require.True(t, ok)
	assert.Equal(t, "a8", sq.String())

	sq, ok = r.Square(image.Point{X: margin + 1, Y: margin + 1}, true)
	require.True(t, ok)
	assert.Equal(t, "h1", sq.String())

	_, ok = r.Square(image.Point{X: 1, Y: 1}, false)
	assert.False(t, ok)
	_, ok = r.Square(image.Point{X: margin + 32*8 + 1, Y: margin}, false)
	assert.False(t, ok)

	l := r.layout(true)
	assert.Equal(t, image.Rect(margin, margin, margin+32, margin+32), l.rect(notation.Square{File: 7, Rank: 0}))
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "boards")
	path, err := New(16).WriteFile(context.Background(), dir, startView(t, true), selection.IdleState())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "game-7.png"), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestTokensRasteriseOncePerRenderer(t *testing.T) {
	var set tokenSet
	white, err := set.get(notation.White, 24)
	require.NoError(t, err)
	black, err := set.get(notation.Black, 24)
	require.NoError(t, err)
	again, err := set.get(notation.Black, 24)
	require.NoError(t, err)
	assert.Same(t, black, again)
	assert.NotSame(t, white, black)

	assert.Equal(t, image.Rect(0, 0, 24, 24), white.Bounds())
	// centre is opaque, corners stay transparent
	assert.Equal(t, uint8(255), white.RGBAAt(12, 12).A)
	assert.Equal(t, uint8(0), black.RGBAAt(0, 0).A)
	assert.NotEqual(t, white.RGBAAt(12, 12), black.RGBAAt(12, 12))
}
