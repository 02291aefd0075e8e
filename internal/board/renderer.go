// Package board renders a FEN position to a PNG board image.
package board

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var ErrBadFEN = errors.New("invalid FEN")

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	frameColor          = color.NRGBA{R: 28, G: 31, B: 46, A: 255}
	coordinateTextColor = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
)

// Options controls a single render.
type Options struct {
	// Flip draws the board from Black's side.
	Flip bool
}

type Renderer struct {
	squareSize int
	margin     int
}

type Option func(*Renderer)

func WithSquareSize(px int) Option {
	return func(r *Renderer) {
		if px >= 16 {
			r.squareSize = px
		}
	}
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{squareSize: 64, margin: 24}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Size is the edge length in pixels of every image this renderer produces.
func (r *Renderer) Size() int { return r.squareSize*8 + r.margin*2 }

func (r *Renderer) RenderFEN(ctx context.Context, fen string, opts Options) ([]byte, error) {
	board, err := parseBoard(fen)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	total := r.Size()
	origin := image.Point{X: r.margin, Y: r.margin}
	img := image.NewRGBA(image.Rect(0, 0, total, total))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, imagedraw.Src)

	drawSquares(img, r.squareSize, origin, opts.Flip)
	if err := drawPieces(img, board, r.squareSize, origin, opts.Flip); err != nil {
		return nil, err
	}
	drawCoordinates(img, r.squareSize, origin, r.margin, opts.Flip)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

func parseBoard(fen string) (*nchess.Board, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, ErrBadFEN
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}
	return nchess.NewGame(opt).Position().Board(), nil
}

// cell maps a square to its column and row on the image.
func cell(sq nchess.Square, flip bool) (col, row int) {
	col = int(sq.File())
	row = 7 - int(sq.Rank())
	if flip {
		col, row = 7-col, 7-row
	}
	return col, row
}

func squareRect(sq nchess.Square, squareSize int, origin image.Point, flip bool) image.Rectangle {
	col, row := cell(sq, flip)
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func allSquares() []nchess.Square {
	out := make([]nchess.Square, 0, 64)
	for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
		for file := nchess.FileA; file <= nchess.FileH; file++ {
			out = append(out, nchess.NewSquare(file, rank))
		}
	}
	return out
}

func drawSquares(dst imagedraw.Image, squareSize int, origin image.Point, flip bool) {
	for _, sq := range allSquares() {
		imagedraw.Draw(dst, squareRect(sq, squareSize, origin, flip), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
	}
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, squareSize int, origin image.Point, flip bool) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := renderPieceImage(piece, squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, squareRect(sq, squareSize, origin, flip), img, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawCoordinates(dst imagedraw.Image, squareSize int, origin image.Point, margin int, flip bool) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + 8*squareSize

	for i := 0; i < 8; i++ {
		file := nchess.File(i)
		rank := nchess.Rank(i)
		fileCol, _ := cell(nchess.NewSquare(file, nchess.Rank1), flip)
		_, rankRow := cell(nchess.NewSquare(nchess.FileA, rank), flip)

		fileCenter := origin.X + fileCol*squareSize + squareSize/2
		drawCenteredText(drawer, file.String(), fileCenter, boardEnd+(margin+ascent)/2)

		rankCenter := origin.Y + rankRow*squareSize + squareSize/2
		drawCenteredText(drawer, rank.String(), origin.X-margin/2, rankCenter+ascent/2)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
