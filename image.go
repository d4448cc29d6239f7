package ssim

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// FromImages converts equally sized images into a batch with one sample per
// image. With channels 3 the samples hold the R, G and B planes; with
// channels 1 they hold luma. Alpha is ignored. 8-bit values are scaled to
// [0, dataRange].
func FromImages(channels int, dataRange float64, imgs ...image.Image) (*Batch, error) {
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("%w: images convert to 1 or 3 channels, not %d", ErrInvalidChannels, channels)
	}
	if !(dataRange > 0) || !validFloat(dataRange) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataRange, dataRange)
	}
	if len(imgs) == 0 {
		return nil, fmt.Errorf("%w: no images", ErrShapeMismatch)
	}
	size := imgs[0].Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrShapeMismatch)
	}
	for i, img := range imgs[1:] {
		if s := img.Bounds().Size(); s != size {
			return nil, fmt.Errorf("%w: image %d is %v, image 0 is %v", ErrShapeMismatch, i+1, s, size)
		}
	}

	h, w := size.Y, size.X
	b := NewBatch(len(imgs), channels, h, w)
	scale := dataRange / 255
	rect := image.Rect(0, 0, w, h)
	for n, img := range imgs {
		if channels == 1 {
			g := image.NewGray(rect)
			draw.Copy(g, image.Point{}, img, img.Bounds(), draw.Src, nil)
			p := b.Plane(n, 0)
			for y := 0; y < h; y++ {
				row := g.Pix[y*g.Stride : y*g.Stride+w]
				for x, v := range row {
					p[y*w+x] = float64(v) * scale
				}
			}
			continue
		}
		rgba := image.NewNRGBA(rect)
		draw.Copy(rgba, image.Point{}, img, img.Bounds(), draw.Src, nil)
		r, gr, bl := b.Plane(n, 0), b.Plane(n, 1), b.Plane(n, 2)
		for y := 0; y < h; y++ {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+4*w]
			for x := 0; x < w; x++ {
				i := y*w + x
				r[i] = float64(row[4*x]) * scale
				gr[i] = float64(row[4*x+1]) * scale
				bl[i] = float64(row[4*x+2]) * scale
			}
		}
	}
	return b, nil
}

// Image converts sample n back to an 8-bit image, mapping [0, dataRange]
// to [0, 255] with clipping. One-channel batches yield *image.Gray and
// three-channel batches yield opaque *image.NRGBA.
func (b *Batch) Image(n int, dataRange float64) (image.Image, error) {
	if n < 0 || n >= b.N {
		return nil, fmt.Errorf("ssim: sample %d out of range [0, %d)", n, b.N)
	}
	if !(dataRange > 0) || !validFloat(dataRange) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataRange, dataRange)
	}
	scale := 255 / dataRange
	rect := image.Rect(0, 0, b.W, b.H)
	switch b.C {
	case 1:
		g := image.NewGray(rect)
		p := b.Plane(n, 0)
		for y := 0; y < b.H; y++ {
			for x := 0; x < b.W; x++ {
				g.SetGray(x, y, color.Gray{Y: to8(p[y*b.W+x], scale)})
			}
		}
		return g, nil
	case 3:
		img := image.NewNRGBA(rect)
		r, gr, bl := b.Plane(n, 0), b.Plane(n, 1), b.Plane(n, 2)
		for y := 0; y < b.H; y++ {
			for x := 0; x < b.W; x++ {
				i := y*b.W + x
				img.SetNRGBA(x, y, color.NRGBA{R: to8(r[i], scale), G: to8(gr[i], scale), B: to8(bl[i], scale), A: 255})
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: cannot render %d channels", ErrInvalidChannels, b.C)
	}
}

func to8(v, scale float64) uint8 {
	v = math.Round(v * scale)
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
