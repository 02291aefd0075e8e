package board

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Glyph outlines on a 45x45 grid. Every piece stands on the same base plate.
const basePlate = "M11 39 H34 V35 H11 Z"

var glyphPaths = map[nchess.PieceType][]string{
	nchess.Pawn: {
		"M16 35 C16 29 18 26 20 24 H25 C27 26 29 29 29 35 Z",
		"M22.5 9 A5.5 5.5 0 1 1 22.49 9 Z",
		"M17 24 H28 V21 H17 Z",
	},
	nchess.Rook: {
		"M14 35 V18 H31 V35 Z",
		"M12 18 V10 H16 V13 H20 V10 H25 V13 H29 V10 H33 V18 Z",
	},
	nchess.Knight: {
		"M14 35 C14 26 20 23 22 18 L16 21 C14 22 12 21 12 19 L19 11 L21 7 L24 9 C31 11 34 20 32 35 Z",
	},
	nchess.Bishop: {
		"M16 35 C13 28 17 20 22.5 14 C28 20 32 28 29 35 Z",
		"M22.5 7 A3 3 0 1 1 22.49 7 Z",
		"M21.5 21 H23.5 V28 H21.5 Z",
	},
	nchess.Queen: {
		"M13 35 L9 16 L16 26 L18 12 L22.5 25 L27 12 L29 26 L36 16 L32 35 Z",
		"M9 13 A2.5 2.5 0 1 1 8.99 13 Z",
		"M18 9 A2.5 2.5 0 1 1 17.99 9 Z",
		"M27 9 A2.5 2.5 0 1 1 26.99 9 Z",
		"M36 13 A2.5 2.5 0 1 1 35.99 13 Z",
	},
	nchess.King: {
		"M13 35 C9 27 15 21 22.5 25 C30 21 36 27 32 35 Z",
		"M21 6 H24 V10 H28 V13 H24 V23 H21 V13 H17 V10 H21 Z",
	},
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(piece nchess.Piece) (string, error) {
	paths, ok := glyphPaths[piece.Type()]
	if !ok {
		return "", fmt.Errorf("no glyph for piece %v", piece)
	}
	fill, stroke := "#f8f8f8", "#111111"
	if piece.Color() == nchess.Black {
		fill, stroke = "#262626", "#000000"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	for _, d := range append([]string{basePlate}, paths...) {
		fmt.Fprintf(&b, `<path d="%s" fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round"/>`, d, fill, stroke)
	}
	b.WriteString(`</svg>`)
	return b.String(), nil
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	src, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
