package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/archivist/catalog"
)

type stubUploader struct {
	err   error
	calls []catalog.ImageUpload
}

func (s *stubUploader) UploadImage(_ context.Context, up catalog.ImageUpload) (catalog.UploadedImage, error) {
	s.calls = append(s.calls, up)
	if s.err != nil {
		return catalog.UploadedImage{}, s.err
	}
	return catalog.UploadedImage{ID: "u1", URL: "https://files.example.org/" + up.Filename, Name: up.Filename}, nil
}

func testConfig() Config {
	return Config{
		MaxDimension:  800,
		Quality:       82,
		Bounded:       true,
		Budget:        42000,
		MinQuality:    50,
		QualityStep:   8,
		ShrinkFactor:  0.8,
		MinDimension:  240,
		MaxIterations: 30,
	}
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestPipeline(cfg Config, opts ...Option) *Pipeline {
	opts = append([]Option{WithLogger(catalog.DiscardLogger("imaging"))}, opts...)
	return New(cfg, opts...)
}

func TestIngestRejectsEmptyFile(t *testing.T) {
	p := newTestPipeline(testConfig())
	_, err := p.Ingest(context.Background(), Input{Filename: "empty.jpg", Body: bytes.NewReader(nil)})
	require.ErrorIs(t, err, ErrEmptyImage)
}

func TestIngestRejectsUndecodableFile(t *testing.T) {
	p := newTestPipeline(testConfig())
	_, err := p.Ingest(context.Background(), Input{Filename: "notes.jpg", Body: strings.NewReader("definitely not an image")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode notes.jpg")
}

func TestIngestHEICNeedsConverter(t *testing.T) {
	p := newTestPipeline(testConfig())
	_, err := p.Ingest(context.Background(), Input{Filename: "IMG_0001.HEIC", Body: strings.NewReader("ftypheic")})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestIngestHEICUsesConverter(t *testing.T) {
	converted := pngBytes(t, flatImage(64, 48))
	var gotMime string
	conv := ConverterFunc(func(_ context.Context, _ []byte, mimeType string) ([]byte, error) {
		gotMime = mimeType
		return converted, nil
	})
	p := newTestPipeline(testConfig(), WithConverter(conv))
	res, err := p.Ingest(context.Background(), Input{Filename: "photo.heic", MimeType: "image/heic", Body: strings.NewReader("ftypheic")})
	require.NoError(t, err)
	assert.Equal(t, "image/heic", gotMime)
	assert.Equal(t, 64, res.Encoded.Width)
	assert.True(t, res.Image.IsLocal())
}

func TestIngestBoundsLargeImages(t *testing.T) {
	p := newTestPipeline(testConfig())
	res, err := p.Ingest(context.Background(), Input{
		Filename: "scan.png",
		Caption:  "Front",
		Body:     bytes.NewReader(pngBytes(t, flatImage(1600, 1000))),
	})
	require.NoError(t, err)
	assert.Equal(t, 800, res.Encoded.Width)
	assert.Equal(t, 500, res.Encoded.Height)
	assert.True(t, res.Encoded.WithinBudget)
	assert.Equal(t, "Front", res.Image.Caption)
	assert.Equal(t, catalog.ImageLocal, res.Image.State)
	assert.True(t, strings.HasPrefix(res.Image.URL, "data:image/jpeg;base64,"))
	assert.LessOrEqual(t, len(res.Image.URL), 42000)
}

func TestIngestUploadSuccessGivesRemoteImage(t *testing.T) {
	cfg := testConfig()
	cfg.Upload = true
	up := &stubUploader{}
	p := newTestPipeline(cfg, WithUploader(up))

	res, err := p.Ingest(context.Background(), Input{Filename: "My Vase (side).PNG", Body: bytes.NewReader(pngBytes(t, flatImage(40, 40)))})
	require.NoError(t, err)
	require.Len(t, up.calls, 1)
	assert.Equal(t, "my-vase-side.jpg", up.calls[0].Filename)
	assert.Equal(t, "image/jpeg", up.calls[0].MimeType)
	assert.True(t, res.Uploaded)
	assert.NoError(t, res.UploadErr)
	assert.Equal(t, catalog.ImageRemote, res.Image.State)
	assert.Equal(t, "https://files.example.org/my-vase-side.jpg", res.Image.URL)
}

func TestIngestUploadFailureKeepsImageLocal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"disabled", catalog.ErrUploadDisabled},
		{"network", errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Upload = true
			p := newTestPipeline(cfg, WithUploader(&stubUploader{err: tt.err}))

			res, err := p.Ingest(context.Background(), Input{Filename: "a.png", Body: bytes.NewReader(pngBytes(t, flatImage(40, 40)))})
			require.NoError(t, err)
			assert.False(t, res.Uploaded)
			assert.ErrorIs(t, res.UploadErr, tt.err)
			assert.True(t, res.Image.IsLocal())
		})
	}
}

func TestIngestSkipsUploaderWhenUploadOff(t *testing.T) {
	up := &stubUploader{}
	p := newTestPipeline(testConfig(), WithUploader(up))
	res, err := p.Ingest(context.Background(), Input{Filename: "a.png", Body: bytes.NewReader(pngBytes(t, flatImage(40, 40)))})
	require.NoError(t, err)
	assert.Empty(t, up.calls)
	assert.True(t, res.Image.IsLocal())
}

func TestFirstIngestedImageBecomesPrimary(t *testing.T) {
	p := newTestPipeline(testConfig())
	var images []catalog.Image
	for _, name := range []string{"front.png", "back.png"} {
		res, err := p.Ingest(context.Background(), Input{Filename: name, Body: bytes.NewReader(pngBytes(t, flatImage(20, 20)))})
		require.NoError(t, err)
		images = catalog.AddImage(images, res.Image)
	}
	require.Len(t, images, 2)
	assert.True(t, images[0].Primary)
	assert.False(t, images[1].Primary)
}

func TestUploadName(t *testing.T) {
	assert.Equal(t, "image.jpg", uploadName("???.png"))
	assert.Equal(t, "img-0001.jpg", uploadName("/tmp/IMG_0001.HEIC"))
}
