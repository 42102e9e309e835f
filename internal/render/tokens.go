package render

import (
	"embed"
	"fmt"
	"image"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/kata-chess-viewer/internal/notation"
)

//go:embed assets/*.svg
var tokenAssets embed.FS

// tokenSet is the pair of piece discs one Renderer draws letters on. Every
// square of a Renderer has the same size, so both discs are rasterised once,
// on first use.
type tokenSet struct {
	once  sync.Once
	discs [2]*image.RGBA
	err   error
}

func (t *tokenSet) get(side notation.Player, size int) (*image.RGBA, error) {
	t.once.Do(func() {
		for _, p := range []notation.Player{notation.White, notation.Black} {
			if t.discs[p], t.err = rasteriseToken(p, size); t.err != nil {
				return
			}
		}
	})
	return t.discs[side], t.err
}

// rasteriseToken draws assets/token-<side>.svg scaled to size x size.
func rasteriseToken(side notation.Player, size int) (*image.RGBA, error) {
	name := "assets/token-" + side.String() + ".svg"
	f, err := tokenAssets.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	icon, err := oksvg.ReadIconStream(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	disc := image.NewRGBA(image.Rect(0, 0, size, size))
	icon.Draw(rasterx.NewDasher(size, size, rasterx.NewScannerGV(size, size, disc, disc.Bounds())), 1)
	return disc, nil
}
