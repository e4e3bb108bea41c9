// Package views holds the default page templates for an archive site.
// Pages are html/template files exposed as templ components so they plug
// into archivist.ViewFuncs like any generated component.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/archivist"
	"github.com/eringen/archivist/catalog"
)

//go:embed templates/*.html
var files embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"imgsrc":    imageSource,
	"jsonld":    func(s string) template.JS { return template.JS(s) },
	"join":      archivist.JoinList,
	"excerpt":   archivist.Excerpt,
	"pathesc":   url.PathEscape,
	"primary":   primaryImage,
	"fields":    detailFields,
}).ParseFS(files, "templates/*.html"))

func page(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

// Funcs returns the default ViewFuncs.
func Funcs() archivist.ViewFuncs {
	return archivist.ViewFuncs{
		Browse: func(p archivist.BrowsePage) templ.Component { return page("browse", p) },
		Object: func(p archivist.ObjectPage) templ.Component { return page("object", p) },
		AdminLogin: func(showError bool, csrfToken string) templ.Component {
			return page("login", loginData{ShowError: showError, CSRFToken: csrfToken})
		},
		AdminDashboard: func(p archivist.DashboardPage) templ.Component { return page("dashboard", p) },
		AdminForm:      func(p archivist.FormPage) templ.Component { return page("form", formData{FormPage: p}) },
		AdminDeleteConfirm: func(obj catalog.Object, csrfToken string) templ.Component {
			return page("confirm", confirmData{Object: obj, CSRFToken: csrfToken})
		},
		NotFound:    func() templ.Component { return page("notfound", nil) },
		ServerError: func() templ.Component { return page("servererror", nil) },
	}
}

type loginData struct {
	ShowError bool
	CSRFToken string
}

type confirmData struct {
	Object    catalog.Object
	CSRFToken string
}

type formData struct {
	archivist.FormPage
}

// Field is one labelled text input of the object form.
type Field struct {
	Name      string
	Label     string
	Value     string
	Multiline bool
}

// Fields lists the editable text columns with their current values.
func (f formData) Fields() []Field {
	text := f.Object.TextFields()
	var out []Field
	for _, col := range catalog.Columns {
		switch col {
		case "id", "createdAt", "updatedAt":
			continue
		case "keywords":
			out = append(out, Field{Name: col, Label: labelFor(col), Value: archivist.JoinList(f.Object.Keywords)})
		case "parts":
			out = append(out, Field{Name: col, Label: labelFor(col), Value: strings.Join(f.Object.Parts, "\n"), Multiline: true})
		case "images":
			continue
		default:
			out = append(out, Field{
				Name:      col,
				Label:     labelFor(col),
				Value:     text[col],
				Multiline: col == "aboutText" || col == "acquisitionNotes" || col == "physicalCharacteristics",
			})
		}
	}
	return out
}

// imageSource lets embedded JPEG data URIs and http(s) URLs through as
// image sources; anything else is blanked.
func imageSource(img catalog.Image) template.URL {
	u := img.URL
	switch {
	case img.State == catalog.ImageLocal && strings.HasPrefix(u, "data:image/"):
		return template.URL(u)
	case strings.HasPrefix(u, "https://"), strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "/"):
		return template.URL(u)
	}
	return ""
}

func primaryImage(images []catalog.Image) *catalog.Image {
	img, ok := catalog.PrimaryImage(images)
	if !ok {
		return nil
	}
	return &img
}

type detailField struct {
	Label string
	Value string
}

// detailFields lists the non-empty descriptive fields shown on a detail page.
func detailFields(obj catalog.Object) []detailField {
	text := obj.TextFields()
	var out []detailField
	for _, col := range catalog.Columns {
		switch col {
		case "id", "title", "aboutText", "images", "keywords", "parts", "createdAt", "updatedAt":
			continue
		}
		if v := strings.TrimSpace(text[col]); v != "" {
			out = append(out, detailField{Label: labelFor(col), Value: v})
		}
	}
	return out
}

var labels = map[string]string{
	"title":                    "Title",
	"aboutText":                "About",
	"from":                     "From",
	"designer":                 "Designer",
	"maker":                    "Maker",
	"makerRole":                "Maker role",
	"portfolioTitle":           "Portfolio title",
	"mediumMaterials":          "Medium / materials",
	"measurements":             "Measurements",
	"keywords":                 "Keywords",
	"collection":               "Collection",
	"objectType":               "Object type",
	"objectNumber":             "Object number",
	"accessionDate":            "Accession date",
	"controllingInstitution":   "Controlling institution",
	"collectionType":           "Collection type",
	"classification":           "Classification",
	"physicalCharacteristics":  "Physical characteristics",
	"cataloguedDate":           "Catalogued date",
	"cataloguer":               "Cataloguer",
	"relatedAcquisitionRecord": "Related acquisition record",
	"acquisitionNotes":         "Acquisition notes",
	"parts":                    "Parts",
}

func labelFor(col string) string {
	if l, ok := labels[col]; ok {
		return l
	}
	return col
}
