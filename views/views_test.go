package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/eringen/archivist"
	"github.com/eringen/archivist/catalog"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

var vase = catalog.Object{
	ID:         "7",
	Title:      "Celadon vase",
	AboutText:  "A tall vase with a crackle glaze.",
	Maker:      "Unknown workshop",
	ObjectType: "Ceramic",
	Keywords:   []string{"glaze", "vase"},
	Images: []catalog.Image{
		{URL: "data:image/jpeg;base64,AAAA", Caption: "Front", Primary: true, State: catalog.ImageLocal},
		{URL: "https://img.example.org/back.jpg", Caption: "Back"},
		{URL: "javascript:alert(1)", Caption: "Bad"},
	},
}

func TestBrowse(t *testing.T) {
	out := render(t, Funcs().Browse(archivist.BrowsePage{
		Site:    archivist.SiteInfo{Name: "North Star"},
		Meta:    archivist.PageMeta{Title: "North Star", JSONLD: `{"@type":"WebSite"}`},
		Objects: []catalog.Object{vase},
		Total:   3,
		Filter:  catalog.Filter{ObjectType: "Ceramic"},
		Facets:  catalog.Facets{ObjectTypes: []string{"Ceramic", "Textile"}},
	}))
	for _, want := range []string{
		`href="/objects/7/"`,
		"Celadon vase",
		`src="data:image/jpeg;base64,AAAA"`,
		`<option value="Ceramic" selected>`,
		"1 of 3 objects",
		`<script type="application/ld+json">{"@type":"WebSite"}</script>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("browse output missing %q", want)
		}
	}
}

func TestObjectPage(t *testing.T) {
	primary, _ := catalog.PrimaryImage(vase.Images)
	out := render(t, Funcs().Object(archivist.ObjectPage{
		Site:       archivist.SiteInfo{Name: "North Star"},
		Meta:       archivist.PageMeta{Title: "Celadon vase"},
		Object:     vase,
		Primary:    primary,
		HasPrimary: true,
		Related:    []catalog.Object{{ID: "8", Title: "Stoneware jar"}},
	}))
	for _, want := range []string{
		"<figcaption>Front</figcaption>",
		`src="https://img.example.org/back.jpg"`,
		"<dt>Maker</dt><dd>Unknown workshop</dd>",
		`href="/?keyword=glaze"`,
		"Stoneware jar",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("object output missing %q", want)
		}
	}
	if strings.Contains(out, "javascript:") {
		t.Errorf("unsafe image url rendered")
	}
}

func TestAdminForm(t *testing.T) {
	out := render(t, Funcs().AdminForm(archivist.FormPage{
		Object:    vase,
		Error:     "Title is required.",
		CSRFToken: "tok",
	}))
	for _, want := range []string{
		`name="_csrf" value="tok"`,
		`name="title" value="Celadon vase" required`,
		`name="keywords" value="glaze, vase"`,
		"Title is required.",
		`action="/admin/objects/7/images/1/primary/"`,
		"Not uploaded yet",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("form output missing %q", want)
		}
	}
}

func TestDeleteConfirm(t *testing.T) {
	out := render(t, Funcs().AdminDeleteConfirm(vase, "tok"))
	if !strings.Contains(out, `name="confirm" value="yes"`) {
		t.Errorf("confirm form missing confirm field")
	}
	if !strings.Contains(out, `action="/admin/objects/7/delete/"`) {
		t.Errorf("confirm form posts to the wrong place")
	}
}

func TestErrorPages(t *testing.T) {
	if out := render(t, Funcs().NotFound()); !strings.Contains(out, "Not found") {
		t.Errorf("unexpected not found page: %s", out)
	}
	if out := render(t, Funcs().ServerError()); !strings.Contains(out, "Something went wrong") {
		t.Errorf("unexpected error page: %s", out)
	}
}
