package imageproc

import (
	"errors"
	"image"
	"image/draw"
	"os"

	// Side-effect imports register format decoders with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Default and hard limits for the downscale target.
const (
	DefaultMaxDim = 128
	MinMaxDim     = 32
	MaxMaxDim     = 256
)

// Processing errors, matching the taxonomy in original_source's
// notification_image.rs (ImageError::Limits(DimensionError /
// InsufficientMemory)).
var (
	ErrDimension          = errors.New("imageproc: width and height must be positive")
	ErrInsufficientMemory = errors.New("imageproc: buffer shorter than rowstride*height")
)

// ProcessedImage is normalized RGBA (4 bytes/pixel, top-left origin, no
// row padding), already downscaled to fit within the configured bounds.
type ProcessedImage struct {
	RGBA   []byte
	Width  int
	Height int
}

// FromRaw ingests a raw pixel buffer as delivered by the image-data hint:
// width, height, rowstride (bytes per source row, which may exceed
// width*channels due to alignment padding) and whether the source already
// carries an alpha channel. Rows are copied one at a time from
// [y*rowstride, y*rowstride+width*channels), dropping any padding; a
// missing alpha channel is inflated to fully-opaque RGBA.
func FromRaw(data []byte, width, height, rowstride int, hasAlpha bool, maxW, maxH int) (ProcessedImage, error) {
	if width <= 0 || height <= 0 {
		return ProcessedImage{}, ErrDimension
	}
	channels := 3
	if hasAlpha {
		channels = 4
	}
	if len(data) < rowstride*height {
		return ProcessedImage{}, ErrInsufficientMemory
	}

	rowBytes := width * channels
	packed := make([]byte, 0, width*height*channels)
	for y := 0; y < height; y++ {
		start := y * rowstride
		packed = append(packed, data[start:start+rowBytes]...)
	}

	var rgba []byte
	if hasAlpha {
		rgba = packed
	} else {
		rgba = make([]byte, 0, width*height*4)
		for i := 0; i+2 < len(packed); i += 3 {
			rgba = append(rgba, packed[i], packed[i+1], packed[i+2], 255)
		}
	}

	return ResizeIfNeeded(ProcessedImage{RGBA: rgba, Width: width, Height: height}, maxW, maxH), nil
}

// FromPath decodes an arbitrary image file (PNG, JPEG, GIF, WebP) using the
// general-purpose decoder and normalizes it to RGBA.
func FromPath(path string, maxW, maxH int) (ProcessedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return ProcessedImage{}, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return ProcessedImage{}, err
	}

	return ResizeIfNeeded(toRGBA(src), maxW, maxH), nil
}

func toRGBA(src image.Image) ProcessedImage {
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	return ProcessedImage{RGBA: rgba.Pix, Width: b.Dx(), Height: b.Dy()}
}

// ResizeIfNeeded downscales img to fit within maxW x maxH (defaulting to
// DefaultMaxDim when zero), preserving aspect ratio: the longer axis
// reaches its cap, the shorter is scaled and clamped to >= 1. If img
// already fits, it is returned unchanged. The resize sequence is strictly
// (1) alpha-premultiply in place, (2) CatmullRom convolutional downscale,
// (3) alpha-demultiply in place — this order prevents halos forming at
// transparent edges (Alpha premultiplication).
func ResizeIfNeeded(img ProcessedImage, maxW, maxH int) ProcessedImage {
	if maxW <= 0 {
		maxW = DefaultMaxDim
	}
	if maxH <= 0 {
		maxH = DefaultMaxDim
	}
	if img.Width <= maxW && img.Height <= maxH {
		return img
	}

	aspect := float64(img.Width) / float64(img.Height)
	var newW, newH int
	if img.Width > img.Height {
		newW = maxW
		newH = maxInt(1, int(float64(newW)/aspect))
	} else {
		newH = maxH
		newW = maxInt(1, int(float64(newH)*aspect))
	}

	src := premultiply(img)
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	out := demultiply(dst)

	return ProcessedImage{RGBA: out, Width: newW, Height: newH}
}

func premultiply(img ProcessedImage) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	copy(out.Pix, img.RGBA)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		a := uint32(out.Pix[i+3])
		out.Pix[i] = uint8(uint32(out.Pix[i]) * a / 255)
		out.Pix[i+1] = uint8(uint32(out.Pix[i+1]) * a / 255)
		out.Pix[i+2] = uint8(uint32(out.Pix[i+2]) * a / 255)
	}
	return out
}

func demultiply(img *image.RGBA) []byte {
	out := make([]byte, len(img.Pix))
	copy(out, img.Pix)
	for i := 0; i+3 < len(out); i += 4 {
		a := uint32(out[i+3])
		if a == 0 {
			continue
		}
		out[i] = uint8(minInt(255, int(uint32(out[i])*255/a)))
		out[i+1] = uint8(minInt(255, int(uint32(out[i+1])*255/a)))
		out[i+2] = uint8(minInt(255, int(uint32(out[i+2])*255/a)))
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
