// Package render draws a board view as a PNG image.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/selection"
	"github.com/park285/kata-chess-viewer/internal/session"
)

const (
	defaultSquareSize = 64
	margin            = 24
)

var (
	lightSquare      = color.RGBA{233, 207, 163, 255}
	darkSquare       = color.RGBA{187, 136, 96, 255}
	selectedColor    = color.NRGBA{R: 90, G: 160, B: 255, A: 120}
	hintColor        = color.NRGBA{R: 20, G: 20, B: 20, A: 90}
	lastMoveColor    = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	promoPanelColor  = color.NRGBA{R: 250, G: 250, B: 250, A: 235}
	backgroundColor  = color.RGBA{40, 42, 54, 255}
	coordinateColor  = color.NRGBA{R: 220, G: 220, B: 230, A: 255}
	whiteLetterColor = color.NRGBA{R: 30, G: 30, B: 30, A: 255}
	blackLetterColor = color.NRGBA{R: 240, G: 240, B: 240, A: 255}
)

type Renderer struct {
	squareSize int
	tokens     tokenSet
}

func New(squareSize int) *Renderer {
	if squareSize < 16 {
		squareSize = defaultSquareSize
	}
	return &Renderer{squareSize: squareSize}
}

// layout maps board squares to pixels for one orientation.
type layout struct {
	size     int
	origin   image.Point
	reversed bool
}

func (l layout) rect(sq notation.Square) image.Rectangle {
	col, row := sq.File, 7-sq.Rank
	if l.reversed {
		col, row = 7-sq.File, sq.Rank
	}
	x := l.origin.X + col*l.size
	y := l.origin.Y + row*l.size
	return image.Rect(x, y, x+l.size, y+l.size)
}

func (l layout) center(sq notation.Square) image.Point {
	r := l.rect(sq)
	return image.Point{X: r.Min.X + l.size/2, Y: r.Min.Y + l.size/2}
}

// Square returns the board square under pixel p, for turning image clicks
// into board clicks.
func (r *Renderer) Square(p image.Point, reversed bool) (notation.Square, bool) {
	l := r.layout(reversed)
	if p.X < l.origin.X || p.Y < l.origin.Y {
		return notation.Square{}, false
	}
	col := (p.X - l.origin.X) / l.size
	row := (p.Y - l.origin.Y) / l.size
	sq := notation.Square{File: col, Rank: 7 - row}
	if reversed {
		sq = notation.Square{File: 7 - col, Rank: row}
	}
	return sq, sq.Valid()
}

func (r *Renderer) layout(reversed bool) layout {
	return layout{size: r.squareSize, origin: image.Point{X: margin, Y: margin}, reversed: reversed}
}

// RenderPNG draws v with the interaction state sel layered on top.
func (r *Renderer) RenderPNG(ctx context.Context, v session.BoardView, sel selection.State) ([]byte, error) {
	l := r.layout(v.Reversed)
	total := l.size*8 + margin*2
	img := image.NewRGBA(image.Rect(0, 0, total, total))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawSquares(img, l)
	if v.LastMove != nil {
		fillRect(img, l.rect(v.LastMove.Src), lastMoveColor)
		fillRect(img, l.rect(v.LastMove.Dst), lastMoveColor)
	}
	if sel.Kind != selection.Idle {
		fillRect(img, l.rect(sel.Src), selectedColor)
	}
	if err := r.drawPieces(img, l, v.Board); err != nil {
		return nil, err
	}
	for _, sq := range selection.Hints(sel, v) {
		drawDisc(img, l.center(sq), l.size/7, hintColor)
	}
	if err := r.drawPromotion(img, l, sel, v); err != nil {
		return nil, err
	}
	drawCoordinates(img, l)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders game v into dir as game-<id>.png and returns the path.
func (r *Renderer) WriteFile(ctx context.Context, dir string, v session.BoardView, sel selection.State) (string, error) {
	data, err := r.RenderPNG(ctx, v, sel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create render dir: %w", err)
	}
	path := filepath.Join(dir, "game-"+strconv.Itoa(v.GameID)+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write png: %w", err)
	}
	return path, nil
}

func drawSquares(img *image.RGBA, l layout) {
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			sq := notation.Square{File: file, Rank: rank}
			clr := lightSquare
			if (file+rank)%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(img, l.rect(sq), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func (r *Renderer) drawPieces(img *image.RGBA, l layout, b notation.Board) error {
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			sq := notation.Square{File: file, Rank: rank}
			if err := r.drawPiece(img, l.rect(sq), b.At(sq)); err != nil {
				return err
			}
		}
	}
	return nil
}

// drawPiece draws a token in the owner's colour with the piece letter on it.
// Unknown placement characters still get a letter, on a white token.
func (r *Renderer) drawPiece(img *image.RGBA, rect image.Rectangle, piece byte) error {
	if piece == 0 {
		return nil
	}
	side, ok := notation.Owner(piece)
	if !ok {
		side = notation.White
	}
	token, err := r.tokens.get(side, rect.Dx())
	if err != nil {
		return err
	}
	imagedraw.Draw(img, rect, token, image.Point{}, imagedraw.Over)

	clr := whiteLetterColor
	if side == notation.Black {
		clr = blackLetterColor
	}
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13, Src: image.NewUniform(clr)}
	text := string(piece)
	width := drawer.MeasureString(text).Round()
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	drawer.Dot = fixed.P(rect.Min.X+(rect.Dx()-width)/2, rect.Min.Y+(rect.Dy()+ascent)/2-1)
	drawer.DrawString(text)
	return nil
}

// drawPromotion covers each choice square with a light panel and the
// candidate piece.
func (r *Renderer) drawPromotion(img *image.RGBA, l layout, sel selection.State, v session.BoardView) error {
	pieces := selection.DisplayPieces(sel, v)
	if pieces == nil {
		return nil
	}
	for i, sq := range sel.Promotion.Squares {
		rect := l.rect(sq)
		imagedraw.Draw(img, rect, image.NewUniform(promoPanelColor), image.Point{}, imagedraw.Over)
		if err := r.drawPiece(img, rect, pieces[i]); err != nil {
			return err
		}
	}
	return nil
}

func drawCoordinates(img *image.RGBA, l layout) {
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13, Src: image.NewUniform(coordinateColor)}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		fileCenter := l.center(notation.Square{File: i, Rank: 0}).X
		rankCenter := l.center(notation.Square{File: 0, Rank: i}).Y
		drawCenteredText(drawer, string(rune('a'+i)), fileCenter, l.origin.Y+8*l.size+ascent+4)
		drawCenteredText(drawer, string(rune('1'+i)), l.origin.X-margin/2, rankCenter+ascent/2)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func fillRect(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	rSquared := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > rSquared {
				continue
			}
			p := image.Point{X: center.X + x, Y: center.Y + y}
			if p.In(img.Bounds()) {
				fillRect(img, image.Rect(p.X, p.Y, p.X+1, p.Y+1), clr)
			}
		}
	}
}
