package mockup

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"tti-balder/internal/design"
)

const (
	canvasWidth  = 800
	canvasHeight = 960
)

// Base describes the garment photo for one color. Fill is used as a plain
// canvas when Path is empty or unreadable.
type Base struct {
	Path string `yaml:"path"`
	Fill string `yaml:"fill"`
}

type RendererOptions struct {
	Bases   map[string]Base
	Fetcher *Fetcher
	Logger  *slog.Logger
}

type Renderer struct {
	bases   map[string]Base
	fetcher *Fetcher
	logger  *slog.Logger

	mu     sync.Mutex
	loaded map[string]image.Image
}

// Scene is everything needed to draw one mockup.
type Scene struct {
	Color      string
	OverlayURL string
	Anchor     design.Anchor
	Blend      design.BlendStyle
}

func NewRenderer(opts RendererOptions) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(FetcherOptions{Logger: logger})
	}
	bases := opts.Bases
	if bases == nil {
		bases = DefaultBases()
	}

	return &Renderer{
		bases:   bases,
		fetcher: fetcher,
		logger:  logger,
		loaded:  make(map[string]image.Image),
	}
}

func DefaultBases() map[string]Base {
	return map[string]Base{
		"White": {Fill: "#f4f4f2"},
		"Black": {Fill: "#1b1b1d"},
	}
}

// Render draws the scene and returns it PNG encoded. Without an overlay URL
// only the base garment is drawn.
func (r *Renderer) Render(ctx context.Context, scene Scene) ([]byte, error) {
	var base, overlay image.Image

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		base = r.base(scene.Color)
		return nil
	})
	if strings.TrimSpace(scene.OverlayURL) != "" {
		eg.Go(func() error {
			img, err := r.fetcher.Image(egCtx, scene.OverlayURL)
			if err != nil {
				return err
			}
			overlay = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := Compose(base, overlay, scene.Anchor, scene.Blend)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode mockup: %w", err)
	}
	return buf.Bytes(), nil
}

// Compose places overlay on base: 30% of the base width, centered on the
// anchor, with the blend mask applied to its alpha.
func Compose(base, overlay image.Image, anchor design.Anchor, blend design.BlendStyle) *image.NRGBA {
	out := imaging.Clone(base)
	if overlay == nil {
		return out
	}

	bw, bh := out.Bounds().Dx(), out.Bounds().Dy()
	w := int(math.Round(float64(bw) * OverlayWidthRatio))
	if w < 1 {
		return out
	}

	scaled := imaging.Resize(overlay, w, 0, imaging.Lanczos)
	applyMask(scaled, blend)

	cx := float64(bw) * anchor.Left / 100
	cy := float64(bh) * anchor.Top / 100
	pos := image.Pt(
		int(math.Round(cx-float64(scaled.Bounds().Dx())/2)),
		int(math.Round(cy-float64(scaled.Bounds().Dy())/2)),
	)
	return imaging.Overlay(out, scaled, pos, 1.0)
}

func (r *Renderer) base(colorName string) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	if img, ok := r.loaded[colorName]; ok {
		return img
	}

	b, ok := r.bases[colorName]
	if !ok {
		b = Base{Fill: "#f4f4f2"}
	}

	var img image.Image
	if b.Path != "" {
		loaded, err := imaging.Open(b.Path)
		if err != nil {
			r.logger.Warn("mockup base unreadable, using plain canvas", "color", colorName, "path", b.Path, "err", err)
		} else {
			img = loaded
		}
	}
	if img == nil {
		img = imaging.New(canvasWidth, canvasHeight, parseHex(b.Fill))
	}

	r.loaded[colorName] = img
	return img
}

func parseHex(value string) color.NRGBA {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(value) != 6 {
		return color.NRGBA{R: 0xf4, G: 0xf4, B: 0xf2, A: 0xff}
	}
	n, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return color.NRGBA{R: 0xf4, G: 0xf4, B: 0xf2, A: 0xff}
	}
	return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}
}
