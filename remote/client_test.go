package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/archivist/catalog"
)

type recorded struct {
	method      string
	action      string
	contentType string
	body        map[string]any
}

func newEndpoint(t *testing.T, reply func(r recorded) any) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, contentType: r.Header.Get("Content-Type")}
		if r.Method == http.MethodGet {
			rec.action = r.URL.Query().Get("action")
		} else {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &rec.body)
			rec.action, _ = rec.body["action"].(string)
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply(rec))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(endpoint string, upload bool) *Client {
	return New(Config{Endpoint: endpoint, Timeout: 5 * time.Second, UploadImages: upload},
		WithLogger(catalog.DiscardLogger("remote")))
}

func TestUnconfiguredClientUsesSamples(t *testing.T) {
	c := newTestClient("", true)
	ctx := context.Background()

	objects, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.SampleObjects(), objects)

	created, err := c.Create(ctx, catalog.Object{Title: "Lamp"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Lamp", created.Title)

	ok, err := c.Delete(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.UploadImage(ctx, catalog.ImageUpload{Filename: "a.jpg", Data: []byte{1}})
	assert.ErrorIs(t, err, catalog.ErrUploadDisabled)
}

func TestFetchAllDecodesObjects(t *testing.T) {
	srv, calls := newEndpoint(t, func(recorded) any {
		return map[string]any{"success": true, "objects": []map[string]any{{
			"id":    "7",
			"title": "Desk",
			"images": []map[string]any{
				{"url": "https://img/1.jpg"},
				{"url": "https://img/2.jpg"},
			},
			"keywords": []string{"oak"},
		}}}
	})
	objects, err := newTestClient(srv.URL, false).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "Desk", objects[0].Title)
	assert.True(t, objects[0].Images[0].Primary, "first image promoted")
	assert.Equal(t, []string{"oak"}, objects[0].Keywords)

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodGet, (*calls)[0].method)
	assert.Equal(t, "getAll", (*calls)[0].action)
}

func TestFetchAllReadsSpreadsheetTypedCells(t *testing.T) {
	srv, _ := newEndpoint(t, func(recorded) any {
		return map[string]any{"success": true, "objects": []any{
			map[string]any{
				"id":           1700000000000,
				"title":        "Ship Bell",
				"objectNumber": 12,
				"measurements": 30.5,
				"keywords":     `["brass", 1890]`,
				"parts":        "not json",
			},
			map[string]any{"id": "8", "title": "Oar", "keywords": []any{"wood"}},
			map[string]any{"id": "", "title": "Blank row"},
			map[string]any{"id": "9", "images": "{broken"},
			"garbage",
		}}
	})
	objects, err := newTestClient(srv.URL, false).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 3)

	bell := objects[0]
	assert.Equal(t, "1700000000000", bell.ID)
	assert.Equal(t, "12", bell.ObjectNumber)
	assert.Equal(t, "30.5", bell.Measurements)
	assert.Equal(t, []string{"brass", "1890"}, bell.Keywords)
	assert.Empty(t, bell.Parts)

	assert.Equal(t, "Oar", objects[1].Title)
	assert.Equal(t, []string{"wood"}, objects[1].Keywords)
	assert.Equal(t, "9", objects[2].ID)
	assert.Empty(t, objects[2].Images)
}

func TestCreateReadsNumericIDFromResult(t *testing.T) {
	srv, _ := newEndpoint(t, func(recorded) any {
		return map[string]any{"success": true, "result": map[string]any{"id": 1700000000001, "title": "Lamp"}}
	})
	created, err := newTestClient(srv.URL, false).Create(context.Background(), catalog.Object{Title: "Lamp"})
	require.NoError(t, err)
	assert.Equal(t, "1700000000001", created.ID)
}

func TestFetchAllFallsBackOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"garbage", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) }},
		{"unsuccessful", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"quota"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			objects, err := newTestClient(srv.URL, false).FetchAll(context.Background())
			require.ErrorIs(t, err, catalog.ErrFallback)
			assert.Equal(t, catalog.SampleObjects(), objects)
		})
	}
}

func TestCreatePostsPlainTextJSON(t *testing.T) {
	srv, calls := newEndpoint(t, func(r recorded) any {
		obj := r.body["object"].(map[string]any)
		obj["id"] = "1714560000000"
		obj["createdAt"] = "2024-05-01T12:00:00Z"
		return map[string]any{"success": true, "result": obj}
	})
	stored, err := newTestClient(srv.URL, false).Create(context.Background(), catalog.Object{Title: "Chair"})
	require.NoError(t, err)
	assert.Equal(t, "1714560000000", stored.ID)
	assert.Equal(t, "Chair", stored.Title)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "create", call.action)
	assert.Contains(t, call.contentType, "text/plain")
}

func TestUpdateFailureReturnsInputWithFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	in := catalog.Object{ID: "9", Title: "Clock"}
	out, err := newTestClient(srv.URL, false).Update(context.Background(), in)
	require.ErrorIs(t, err, catalog.ErrFallback)
	assert.Equal(t, in, out)
}

func TestDelete(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		srv, calls := newEndpoint(t, func(r recorded) any {
			return map[string]any{"success": true, "result": map[string]any{"deleted": true, "id": r.body["id"]}}
		})
		ok, err := newTestClient(srv.URL, false).Delete(context.Background(), "42")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "42", (*calls)[0].body["id"])
	})
	t.Run("not found", func(t *testing.T) {
		srv, _ := newEndpoint(t, func(r recorded) any {
			return map[string]any{"success": true, "result": map[string]any{"deleted": false, "id": "42", "error": "Not found"}}
		})
		ok, err := newTestClient(srv.URL, false).Delete(context.Background(), "42")
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		ok, err := newTestClient(srv.URL, false).Delete(context.Background(), "42")
		require.Error(t, err)
		assert.False(t, ok)
	})
}

func TestUploadImage(t *testing.T) {
	srv, calls := newEndpoint(t, func(r recorded) any {
		return map[string]any{"success": true, "result": map[string]any{"id": "abc", "url": "https://files/abc.jpg", "name": r.body["filename"]}}
	})

	_, err := newTestClient(srv.URL, false).UploadImage(context.Background(), catalog.ImageUpload{Filename: "a.jpg", Data: []byte{1}})
	require.ErrorIs(t, err, catalog.ErrUploadDisabled)
	assert.Empty(t, *calls, "disabled uploads fail fast")

	data := []byte{0xff, 0xd8, 0xff}
	res, err := newTestClient(srv.URL, true).UploadImage(context.Background(), catalog.ImageUpload{
		Filename: "vase.jpg", MimeType: "image/jpeg", Data: data,
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.UploadedImage{ID: "abc", URL: "https://files/abc.jpg", Name: "vase.jpg"}, res)

	require.Len(t, *calls, 1)
	body := (*calls)[0].body
	assert.Equal(t, "uploadImage", body["action"])
	assert.Equal(t, "image/jpeg", body["mimeType"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), body["data"])
}
