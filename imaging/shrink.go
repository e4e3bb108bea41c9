// Package imaging turns user-picked image files into size-bounded JPEGs and
// decides whether they are uploaded or kept as embedded data URIs.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/eringen/archivist/catalog"
)

const jpegMIME = "image/jpeg"

// ShrinkOptions bounds the re-encoding loop.
type ShrinkOptions struct {
	// Budget is the maximum data URI length in characters; 0 disables the loop.
	Budget        int
	Quality       int
	MinQuality    int
	QualityStep   int
	ShrinkFactor  float64
	MinDimension  int
	MaxIterations int
}

func (o ShrinkOptions) withDefaults() ShrinkOptions {
	if o.Quality <= 0 {
		o.Quality = 82
	}
	if o.MinQuality <= 0 {
		o.MinQuality = 50
	}
	if o.QualityStep <= 0 {
		o.QualityStep = 8
	}
	if o.ShrinkFactor <= 0 || o.ShrinkFactor >= 1 {
		o.ShrinkFactor = 0.8
	}
	if o.MinDimension <= 0 {
		o.MinDimension = 240
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 30
	}
	return o
}

// Encoded is a JPEG produced by ShrinkToBudget.
type Encoded struct {
	Data         []byte
	Width        int
	Height       int
	Quality      int
	Iterations   int
	WithinBudget bool
}

// DataURILen is the length of the data URI embedding e.
func (e Encoded) DataURILen() int {
	return catalog.DataURILen(jpegMIME, len(e.Data))
}

// ShrinkToBudget encodes img as JPEG and, while the data URI is over budget,
// lowers quality down to MinQuality and then shrinks the longest side by
// ShrinkFactor down to MinDimension. It stops after MaxIterations rounds or
// as soon as neither knob can move.
func ShrinkToBudget(img image.Image, opts ShrinkOptions) (Encoded, error) {
	opts = opts.withDefaults()
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return Encoded{}, fmt.Errorf("encode jpeg: empty image")
	}

	quality := opts.Quality
	cur := img
	data, err := encodeJPEG(cur, quality)
	if err != nil {
		return Encoded{}, err
	}
	over := func() bool {
		return opts.Budget > 0 && catalog.DataURILen(jpegMIME, len(data)) > opts.Budget
	}

	iterations := 0
	for iterations < opts.MaxIterations && over() {
		cw, ch := cur.Bounds().Dx(), cur.Bounds().Dy()
		switch {
		case quality > opts.MinQuality:
			quality = max(quality-opts.QualityStep, opts.MinQuality)
		case max(cw, ch) > opts.MinDimension:
			nw, nh := shrunkSize(cw, ch, opts.ShrinkFactor, opts.MinDimension)
			// Always resample from the original to avoid compounding blur.
			cur = scale(img, nw, nh)
		default:
			return result(cur, data, quality, iterations, false), nil
		}
		iterations++
		if data, err = encodeJPEG(cur, quality); err != nil {
			return Encoded{}, err
		}
	}
	return result(cur, data, quality, iterations, !over()), nil
}

func result(img image.Image, data []byte, quality, iterations int, ok bool) Encoded {
	b := img.Bounds()
	return Encoded{
		Data:         data,
		Width:        b.Dx(),
		Height:       b.Dy(),
		Quality:      quality,
		Iterations:   iterations,
		WithinBudget: ok,
	}
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// shrunkSize scales (w, h) by factor keeping the aspect ratio, with the
// longest side no smaller than floor.
func shrunkSize(w, h int, factor float64, floor int) (int, int) {
	longest := max(w, h)
	target := max(int(float64(longest)*factor), floor)
	if target >= longest {
		return w, h
	}
	return max(w*target/longest, 1), max(h*target/longest, 1)
}

// Fit scales img down so neither side exceeds maxDim. Smaller images are
// returned unchanged.
func Fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	nw, nh := w, h
	if w >= h {
		nw, nh = maxDim, max(h*maxDim/w, 1)
	} else {
		nw, nh = max(w*maxDim/h, 1), maxDim
	}
	// Very large sources get a cheap bilinear pass to twice the target first.
	if w > 4*nw {
		img = scaleWith(draw.ApproxBiLinear, img, nw*2, nh*2)
	}
	return scale(img, nw, nh)
}

func scale(img image.Image, w, h int) image.Image {
	return scaleWith(draw.CatmullRom, img, w, h)
}

func scaleWith(s draw.Scaler, img image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	s.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
