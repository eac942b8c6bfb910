// Package imaging provides content hashing, metadata extraction and
// preprocessing for source images before they reach a recognition backend.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"image/jpeg"

	// Registered decoders for Metadata and Preprocess.
	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/inkwell-ai/inkwell/internal/domain/recognition"
)

const (
	// MaxDimension is the longest edge an image is resized down to before
	// recognition. Larger inputs slow the vision models without improving
	// transcription.
	MaxDimension = 1024

	jpegQuality    = 95
	contrastFactor = 1.5
)

// Hash returns the hex-encoded SHA-256 digest of the image bytes. It is the
// identity of an image across caching, storage and workflow lookups.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Metadata extracts basic attributes from the image. Undecodable input is
// not an error: the size is still reported and the decode failure recorded.
func Metadata(data []byte) recognition.ImageInfo {
	info := recognition.ImageInfo{SizeKB: len(data) / 1024}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		info.Error = err.Error()
		return info
	}

	info.Format = format
	info.Width = cfg.Width
	info.Height = cfg.Height
	return info
}

// Preprocess prepares an image for recognition: downscale to MaxDimension,
// boost contrast, sharpen, and re-encode as high-quality JPEG. Any failure
// returns the original bytes so recognition can still proceed.
func Preprocess(data []byte) []byte {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	img := resize(src)
	img = adjustContrast(img, contrastFactor)
	img = sharpen(img)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return data
	}
	return out.Bytes()
}

// resize scales the image down so its longest edge is MaxDimension,
// preserving aspect ratio. Smaller images pass through untouched.
func resize(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if w > MaxDimension || h > MaxDimension {
		if w > h {
			h = h * MaxDimension / w
			w = MaxDimension
		} else {
			w = w * MaxDimension / h
			h = MaxDimension
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

// adjustContrast scales each channel's distance from mid-gray by factor.
func adjustContrast(img *image.RGBA, factor float64) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			out.SetRGBA(x, y, color.RGBA{
				R: scaleChannel(c.R, factor),
				G: scaleChannel(c.G, factor),
				B: scaleChannel(c.B, factor),
				A: c.A,
			})
		}
	}
	return out
}

func scaleChannel(v uint8, factor float64) uint8 {
	adjusted := (float64(v)-128)*factor + 128
	if adjusted < 0 {
		return 0
	}
	if adjusted > 255 {
		return 255
	}
	return uint8(adjusted)
}

// sharpen applies a 3x3 unsharp kernel.
func sharpen(img *image.RGBA) *image.RGBA {
	kernel := [3][3]float64{
		{0, -1, 0},
		{-1, 5, -1},
		{0, -1, 0},
	}

	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var r, g, bl float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					px, py := clampCoord(x+kx, b.Min.X, b.Max.X-1), clampCoord(y+ky, b.Min.Y, b.Max.Y-1)
					c := img.RGBAAt(px, py)
					w := kernel[ky+1][kx+1]
					r += float64(c.R) * w
					g += float64(c.G) * w
					bl += float64(c.B) * w
				}
			}
			out.SetRGBA(x, y, color.RGBA{
				R: clampChannel(r),
				G: clampChannel(g),
				B: clampChannel(bl),
				A: img.RGBAAt(x, y).A,
			})
		}
	}
	return out
}

func clampCoord(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampChannel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
