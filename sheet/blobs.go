package sheet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Blobs is the image folder behind uploadImage.
type Blobs interface {
	// Put stores data under name and returns its public URL.
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// DirBlobs keeps images in a local directory served at BaseURL.
type DirBlobs struct {
	Dir     string
	BaseURL string
}

// Put writes data to Dir/name.
func (d DirBlobs) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	name = filepath.Base(filepath.Clean("/" + name))
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create image folder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return joinURL(d.BaseURL, name), nil
}

// S3Config addresses an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"archival-photos"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
	// PublicURL is the prefix objects are reachable under. Defaults to
	// the endpoint plus bucket.
	PublicURL string `env:"PUBLIC_URL"`
}

// objectPutter is the part of the minio client MinioBlobs needs.
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioBlobs keeps images in an S3-compatible bucket.
type MinioBlobs struct {
	bucket    string
	publicURL string
	client    objectPutter
}

// NewMinioBlobs connects to the bucket described by cfg.
func NewMinioBlobs(cfg S3Config) (*MinioBlobs, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint + "/" + cfg.Bucket
	}
	return &MinioBlobs{bucket: cfg.Bucket, publicURL: public, client: client}, nil
}

// Put uploads data as a public object.
func (m *MinioBlobs) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType, CacheControl: "public, max-age=31536000"})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", name, err)
	}
	return joinURL(m.publicURL, name), nil
}

func joinURL(base, name string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "/" + strings.TrimLeft(path.Join(base, name), "/")
	}
	u.Path = path.Join("/", u.Path, name)
	return u.String()
}
