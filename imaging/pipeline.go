package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/labstack/gommon/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/eringen/archivist/catalog"
)

var (
	// ErrEmptyImage is returned for zero-byte input.
	ErrEmptyImage = errors.New("image file is empty")
	// ErrUnsupportedFormat is returned for formats that need a converter
	// nobody configured.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// maxInputSize caps how much of an input file is read.
const maxInputSize = 25 << 20

// Config controls the ingestion pipeline.
type Config struct {
	MaxDimension int `env:"MAX_DIMENSION" envDefault:"800"`
	Quality      int `env:"QUALITY" envDefault:"82"`
	// Bounded enables the size budget loop.
	Bounded       bool    `env:"BOUNDED" envDefault:"true"`
	Budget        int     `env:"BUDGET" envDefault:"42000"`
	MinQuality    int     `env:"MIN_QUALITY" envDefault:"50"`
	QualityStep   int     `env:"QUALITY_STEP" envDefault:"8"`
	ShrinkFactor  float64 `env:"SHRINK_FACTOR" envDefault:"0.8"`
	MinDimension  int     `env:"MIN_DIMENSION" envDefault:"240"`
	MaxIterations int     `env:"MAX_ITERATIONS" envDefault:"30"`
	// Upload sends encoded images through the uploader when one is set.
	Upload bool `env:"UPLOAD" envDefault:"false"`
}

func (c *Config) setDefaults() {
	if c.MaxDimension <= 0 {
		c.MaxDimension = 800
	}
	if c.Quality <= 0 {
		c.Quality = 82
	}
}

func (c Config) shrinkOptions() ShrinkOptions {
	o := ShrinkOptions{
		Quality:       c.Quality,
		MinQuality:    c.MinQuality,
		QualityStep:   c.QualityStep,
		ShrinkFactor:  c.ShrinkFactor,
		MinDimension:  c.MinDimension,
		MaxIterations: c.MaxIterations,
	}
	if c.Bounded {
		o.Budget = c.Budget
	}
	return o
}

// Converter turns formats the standard decoders cannot read (HEIC/HEIF)
// into something they can.
type Converter interface {
	Convert(ctx context.Context, data []byte, mimeType string) ([]byte, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, data []byte, mimeType string) ([]byte, error)

func (f ConverterFunc) Convert(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	return f(ctx, data, mimeType)
}

// Input is one picked file.
type Input struct {
	Filename string
	MimeType string
	Caption  string
	Body     io.Reader
}

// Result describes what the pipeline did with an input.
type Result struct {
	Image    catalog.Image
	Encoded  Encoded
	Uploaded bool
	// UploadErr is set when an upload was attempted and failed.
	UploadErr error
}

// Pipeline ingests picked files.
type Pipeline struct {
	cfg       Config
	uploader  catalog.ImageUploader
	converter Converter
	log       *log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithUploader sets the uploader used when Config.Upload is on.
func WithUploader(u catalog.ImageUploader) Option {
	return func(p *Pipeline) { p.uploader = u }
}

// WithConverter sets the HEIC/HEIF converter.
func WithConverter(c Converter) Option {
	return func(p *Pipeline) { p.converter = c }
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New returns a Pipeline.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.setDefaults()
	p := &Pipeline{cfg: cfg, log: log.New("imaging")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest decodes, bounds and encodes in, then uploads it or keeps it local.
// Decode problems are returned; upload problems only downgrade the image to
// a local one.
func (p *Pipeline) Ingest(ctx context.Context, in Input) (Result, error) {
	data, err := io.ReadAll(io.LimitReader(in.Body, maxInputSize+1))
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", in.Filename, err)
	}
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%s: %w", in.Filename, ErrEmptyImage)
	}
	if len(data) > maxInputSize {
		return Result{}, fmt.Errorf("%s: file too large (max %d MB)", in.Filename, maxInputSize>>20)
	}

	if isHEIF(in.Filename, in.MimeType) {
		if p.converter == nil {
			return Result{}, fmt.Errorf("%s: %w: HEIC/HEIF needs a converter", in.Filename, ErrUnsupportedFormat)
		}
		if data, err = p.converter.Convert(ctx, data, in.MimeType); err != nil {
			return Result{}, fmt.Errorf("convert %s: %w", in.Filename, err)
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode %s: %w", in.Filename, err)
	}

	enc, err := ShrinkToBudget(Fit(img, p.cfg.MaxDimension), p.cfg.shrinkOptions())
	if err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", in.Filename, err)
	}
	if p.cfg.Bounded && !enc.WithinBudget {
		p.log.Warnf("%s still %d chars after %d rounds (budget %d)", in.Filename, enc.DataURILen(), enc.Iterations, p.cfg.Budget)
	}
	p.log.Debugf("ingested %s (%s) as %dx%d q%d, %d bytes", in.Filename, format, enc.Width, enc.Height, enc.Quality, len(enc.Data))

	res := Result{Encoded: enc}
	if p.cfg.Upload && p.uploader != nil {
		up, err := p.uploader.UploadImage(ctx, catalog.ImageUpload{
			Filename: uploadName(in.Filename),
			MimeType: jpegMIME,
			Data:     enc.Data,
		})
		if err == nil {
			res.Uploaded = true
			res.Image = catalog.Image{URL: up.URL, Caption: in.Caption, State: catalog.ImageRemote}
			return res, nil
		}
		res.UploadErr = err
		if !errors.Is(err, catalog.ErrUploadDisabled) {
			p.log.Warnf("upload %s failed, keeping it local: %v", in.Filename, err)
		}
	}
	res.Image = catalog.Image{
		URL:     catalog.EncodeDataURI(jpegMIME, enc.Data),
		Caption: in.Caption,
		State:   catalog.ImageLocal,
	}
	return res, nil
}

func isHEIF(filename, mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".heic", ".heif":
		return true
	}
	return false
}

// uploadName converts a picked file name into a URL-safe .jpg name.
func uploadName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(strings.TrimSpace(base))
	var b strings.Builder
	prev := false
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		slug = "image"
	}
	return slug + ".jpg"
}
