// Package remote talks to the spreadsheet endpoint that stores archive
// objects. Every call degrades instead of failing hard: callers get fallback
// data together with an error wrapping catalog.ErrFallback.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/eringen/archivist/catalog"
)

// maxResponseSize bounds how much of a response body is decoded.
const maxResponseSize = 32 << 20

// Config selects the endpoint.
type Config struct {
	// Endpoint is the deployed web app URL. Empty means unconfigured.
	Endpoint     string        `env:"ENDPOINT"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"30s"`
	UploadImages bool          `env:"UPLOAD_IMAGES" envDefault:"false"`
}

// Configured reports whether an endpoint is set.
func (c Config) Configured() bool { return c.Endpoint != "" }

// Client implements catalog.RemoteStore and catalog.ImageUploader.
type Client struct {
	cfg  Config
	http *http.Client
	log  *log.Logger
	now  func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock sets the clock used for generated ids.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a Client for cfg.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.New("remote"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ catalog.RemoteStore   = (*Client)(nil)
	_ catalog.ImageUploader = (*Client)(nil)
)

// envelope is the endpoint's response shape for every action.
type envelope struct {
	Success bool              `json:"success"`
	Objects []json.RawMessage `json:"objects,omitempty"`
	Result  json.RawMessage   `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type request struct {
	Action   string          `json:"action"`
	Object   *catalog.Object `json:"object,omitempty"`
	ID       string          `json:"id,omitempty"`
	Filename string          `json:"filename,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Data     string          `json:"data,omitempty"`
}

// DeleteResult is the endpoint's answer to a delete.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
	Error   string `json:"error,omitempty"`
}

// FetchAll returns every stored object. Unconfigured clients return the
// bundled samples; failures return the samples and an ErrFallback error.
func (c *Client) FetchAll(ctx context.Context) ([]catalog.Object, error) {
	if !c.cfg.Configured() {
		return catalog.SampleObjects(), nil
	}
	env, err := c.get(ctx, "getAll")
	if err != nil {
		c.log.Warnf("fetch all: %v", err)
		return catalog.SampleObjects(), fmt.Errorf("fetch all: %w: %w", catalog.ErrFallback, err)
	}
	return c.decodeRows(env.Objects), nil
}

// Create stores a new object and returns what the endpoint stored.
func (c *Client) Create(ctx context.Context, obj catalog.Object) (catalog.Object, error) {
	return c.write(ctx, "create", obj)
}

// Update replaces an object; the endpoint creates it when missing.
func (c *Client) Update(ctx context.Context, obj catalog.Object) (catalog.Object, error) {
	return c.write(ctx, "update", obj)
}

func (c *Client) write(ctx context.Context, action string, obj catalog.Object) (catalog.Object, error) {
	if !c.cfg.Configured() {
		if obj.ID == "" {
			obj.ID = catalog.NewID(c.now())
		}
		return obj, nil
	}
	env, err := c.post(ctx, request{Action: action, Object: &obj})
	if err != nil {
		c.log.Warnf("%s %s: %v", action, obj.ID, err)
		return obj, fmt.Errorf("%s: %w: %w", action, catalog.ErrFallback, err)
	}
	stored, err := decodeRow(env.Result)
	if err != nil {
		// Some deployments answer without echoing the object.
		return obj, nil
	}
	stored.Images = catalog.NormalizePrimary(stored.Images)
	return stored, nil
}

// Delete removes an object. It reports true when the endpoint confirmed the
// removal, or when no endpoint is configured.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	if !c.cfg.Configured() {
		return true, nil
	}
	env, err := c.post(ctx, request{Action: "delete", ID: id})
	if err != nil {
		c.log.Warnf("delete %s: %v", id, err)
		return false, fmt.Errorf("delete: %w", err)
	}
	var res DeleteResult
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return false, fmt.Errorf("delete: decode result: %w", err)
	}
	if !res.Deleted {
		c.log.Debugf("delete %s: endpoint reported %q", id, res.Error)
	}
	return res.Deleted, nil
}

// UploadImage sends image bytes to the endpoint's image folder.
func (c *Client) UploadImage(ctx context.Context, up catalog.ImageUpload) (catalog.UploadedImage, error) {
	if !c.cfg.UploadImages || !c.cfg.Configured() {
		return catalog.UploadedImage{}, catalog.ErrUploadDisabled
	}
	env, err := c.post(ctx, request{
		Action:   "uploadImage",
		Filename: up.Filename,
		MimeType: up.MimeType,
		Data:     base64.StdEncoding.EncodeToString(up.Data),
	})
	if err != nil {
		return catalog.UploadedImage{}, fmt.Errorf("upload image: %w", err)
	}
	var res catalog.UploadedImage
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return catalog.UploadedImage{}, fmt.Errorf("upload image: decode result: %w", err)
	}
	if res.URL == "" {
		return catalog.UploadedImage{}, errors.New("upload image: endpoint returned no url")
	}
	return res, nil
}

func (c *Client) get(ctx context.Context, action string) (envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint, nil)
	if err != nil {
		return envelope{}, err
	}
	q := req.URL.Query()
	q.Set("action", action)
	req.URL.RawQuery = q.Encode()
	return c.do(req)
}

func (c *Client) post(ctx context.Context, body request) (envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return envelope{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return envelope{}, err
	}
	// text/plain keeps the request "simple" for script endpoints.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "request failed"
		}
		return envelope{}, errors.New(msg)
	}
	return env, nil
}
