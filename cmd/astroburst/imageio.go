package main

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"math/rand"
	"os"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"

	astroburst "github.com/samuelkriegerbonini-dev/AstroBurst"
)

// loadGrayPNG decodes a PNG and converts it to a grayscale float frame in
// [0, 1], the library's working format.
func loadGrayPNG(path string) (astroburst.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return astroburst.Image{}, err
	}
	defer f.Close()
	src, err := png.Decode(f)
	if err != nil {
		return astroburst.Image{}, fmt.Errorf("decode %s: %w", path, err)
	}

	b := src.Bounds()
	img := astroburst.Image{
		Pix:    make([]float32, b.Dx()*b.Dy()),
		Width:  b.Dx(),
		Height: b.Dy(),
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			// Rec. 601 luma over the 16-bit channels.
			luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)
			img.Pix[i] = float32(luma / 65535.0)
			i++
		}
	}
	return img, nil
}

// rgbaImage wraps a packed RGBA byte stream as an image.RGBA without copying.
func rgbaImage(rgba []uint8, w, h int) *image.RGBA {
	return &image.RGBA{Pix: rgba, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
}

func writeRGBAPNG(path string, rgba []uint8, w, h int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, rgbaImage(rgba, w, h))
}

// writeThumbnail downscales the rendered frame to the given width with
// Lanczos resampling and writes it next to the full-size output.
func writeThumbnail(path string, rgba []uint8, w, h, thumbWidth int) error {
	thumb := resize.Resize(uint(thumbWidth), 0, rgbaImage(rgba, w, h), resize.Lanczos3)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, thumb)
}

// writeCompareSheet composes two renders of the same frame into one
// side-by-side PNG, optionally upscaled by an integer factor.
func writeCompareSheet(path string, left, right []uint8, w, h, scale int) error {
	if scale < 1 {
		scale = 1
	}
	sheet := image.NewRGBA(image.Rect(0, 0, 2*w*scale, h*scale))
	xdraw.NearestNeighbor.Scale(sheet, image.Rect(0, 0, w*scale, h*scale),
		rgbaImage(left, w, h), rgbaImage(left, w, h).Bounds(), xdraw.Src, nil)
	xdraw.NearestNeighbor.Scale(sheet, image.Rect(w*scale, 0, 2*w*scale, h*scale),
		rgbaImage(right, w, h), rgbaImage(right, w, h).Bounds(), xdraw.Src, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, sheet)
}

// synthStarfield renders a deterministic synthetic frame: a dim sky
// background with Gaussian noise plus a few hundred stars with Gaussian
// profiles of varying brightness. Values stay well above the padding
// threshold so correlation sees valid pixels everywhere.
func synthStarfield(w, h int, seed int64) astroburst.Image {
	rng := rand.New(rand.NewSource(seed))
	img := astroburst.Image{
		Pix:    make([]float32, w*h),
		Width:  w,
		Height: h,
	}
	for i := range img.Pix {
		img.Pix[i] = float32(0.02 + 0.005*rng.NormFloat64())
		if img.Pix[i] < 1e-6 {
			img.Pix[i] = 1e-6
		}
	}

	nStars := w * h / 1024
	if nStars < 32 {
		nStars = 32
	}
	for s := 0; s < nStars; s++ {
		cx := rng.Float64() * float64(w)
		cy := rng.Float64() * float64(h)
		amp := 0.1 + 0.9*rng.Float64()*rng.Float64()
		sigma := 1.0 + 1.5*rng.Float64()
		r := int(sigma * 4)
		for dy := -r; dy <= r; dy++ {
			y := int(cy) + dy
			if y < 0 || y >= h {
				continue
			}
			for dx := -r; dx <= r; dx++ {
				x := int(cx) + dx
				if x < 0 || x >= w {
					continue
				}
				d2 := (float64(x)-cx)*(float64(x)-cx) + (float64(y)-cy)*(float64(y)-cy)
				v := img.Pix[y*w+x] + float32(amp*math.Exp(-d2/(2*sigma*sigma)))
				if v > 1 {
					v = 1
				}
				img.Pix[y*w+x] = v
			}
		}
	}
	return img
}

// shiftImage translates a frame by (dx, dy), filling uncovered pixels with
// background noise so the pair stays fully valid.
func shiftImage(src astroburst.Image, dx, dy int) astroburst.Image {
	out := astroburst.Image{
		Pix:    make([]float32, len(src.Pix)),
		Width:  src.Width,
		Height: src.Height,
	}
	rng := rand.New(rand.NewSource(1))
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			sx, sy := x-dx, y-dy
			if sx >= 0 && sx < src.Width && sy >= 0 && sy < src.Height {
				out.Pix[y*src.Width+x] = src.Pix[sy*src.Width+sx]
			} else {
				out.Pix[y*src.Width+x] = float32(0.02 + 0.005*rng.NormFloat64())
			}
		}
	}
	return out
}
