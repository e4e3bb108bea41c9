package sheet

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/eringen/archivist/catalog"
)

const maxRequestSize = 32 << 20

// Config switches the endpoint's behavior.
type Config struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	DBPath  string `env:"DB_PATH" envDefault:"data/sheet.db"`
	// ImageDir is the local image folder, used when no bucket is set.
	ImageDir string   `env:"IMAGE_DIR" envDefault:"data/images"`
	S3       S3Config `envPrefix:"S3_"`
}

// Handler answers the action protocol.
type Handler struct {
	table   *Table
	blobs   Blobs
	enabled bool
	log     *log.Logger
	newID   func() string
}

// NewHandler returns a Handler over table and blobs.
func NewHandler(table *Table, blobs Blobs, enabled bool, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New("sheet")
	}
	return &Handler{
		table:   table,
		blobs:   blobs,
		enabled: enabled,
		log:     logger,
		newID:   uuid.NewString,
	}
}

// Register mounts the endpoint at p on e.
func (h *Handler) Register(e *echo.Echo, p string) {
	e.GET(p, h.Get)
	e.POST(p, h.Post)
}

type response struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// listResponse always carries the objects array, even when empty.
type listResponse struct {
	Success bool             `json:"success"`
	Objects []catalog.Object `json:"objects"`
}

type actionRequest struct {
	Action   string          `json:"action"`
	Object   *catalog.Object `json:"object"`
	ID       string          `json:"id"`
	Filename string          `json:"filename"`
	MimeType string          `json:"mimeType"`
	Data     string          `json:"data"`
}

func fail(c echo.Context, err error) error {
	return c.JSON(http.StatusOK, response{Error: err.Error()})
}

var errUnknownAction = errors.New("Unknown action")

// Get handles ?action=getAll.
func (h *Handler) Get(c echo.Context) error {
	if c.QueryParam("action") != "getAll" {
		return fail(c, errUnknownAction)
	}
	if !h.enabled {
		return c.JSON(http.StatusOK, listResponse{Success: true, Objects: []catalog.Object{}})
	}
	objects, err := h.table.All(c.Request().Context())
	if err != nil {
		h.log.Errorf("get all: %v", err)
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, listResponse{Success: true, Objects: objects})
}

// Post handles create, update, delete and uploadImage. Bodies are JSON
// regardless of the declared content type.
func (h *Handler) Post(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRequestSize))
	if err != nil {
		return fail(c, err)
	}
	var req actionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fail(c, fmt.Errorf("invalid request body: %w", err))
	}

	ctx := c.Request().Context()
	var result any
	switch req.Action {
	case "create", "update":
		if !h.enabled {
			return fail(c, ErrDisabled)
		}
		if req.Object == nil {
			return fail(c, errors.New("Missing object"))
		}
		if req.Action == "create" {
			result, err = h.table.Create(ctx, *req.Object)
		} else {
			result, err = h.table.Update(ctx, *req.Object)
		}
	case "delete":
		if !h.enabled {
			return fail(c, ErrDisabled)
		}
		result, err = h.table.Delete(ctx, req.ID)
	case "uploadImage":
		result, err = h.uploadImage(c, req)
	default:
		return fail(c, errUnknownAction)
	}
	if err != nil {
		h.log.Warnf("%s: %v", req.Action, err)
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, response{Success: true, Result: result})
}

func (h *Handler) uploadImage(c echo.Context, req actionRequest) (catalog.UploadedImage, error) {
	if req.Data == "" {
		return catalog.UploadedImage{}, errors.New("Missing image data")
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return catalog.UploadedImage{}, fmt.Errorf("Failed to decode image data: %w", err)
	}
	if h.blobs == nil {
		return catalog.UploadedImage{}, errors.New("Failed to get image folder: none configured")
	}
	name := req.Filename
	if name == "" {
		name = "image"
	}
	id := h.newID()
	key := id + strings.ToLower(path.Ext(name))
	url, err := h.blobs.Put(c.Request().Context(), key, req.MimeType, data)
	if err != nil {
		return catalog.UploadedImage{}, fmt.Errorf("Failed to create file: %w", err)
	}
	h.log.Debugf("stored %s (%d bytes) as %s", name, len(data), key)
	return catalog.UploadedImage{ID: id, URL: url, Name: name}, nil
}
