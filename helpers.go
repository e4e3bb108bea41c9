package archivist

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/eringen/archivist/catalog"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SplitList splits a comma or newline separated form value.
func SplitList(s string) []string {
	return FilterEmpty(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	}))
}

// JoinList joins values for a form field.
func JoinList(vals []string) string {
	return strings.Join(vals, ", ")
}

// Excerpt shortens s to at most n runes on a word boundary.
func Excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := string([]rune(s)[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema.
func WebsiteJsonLD(cfg Config) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      BuildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ObjectJsonLD returns a JSON-LD string describing obj as a VisualArtwork.
func ObjectJsonLD(obj catalog.Object, cfg Config) string {
	objURL := BuildURL(cfg.URL, "objects", obj.ID)
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "VisualArtwork",
		"name":     obj.Title,
		"url":      objURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   objURL,
		},
	}
	if obj.AboutText != "" {
		data["description"] = Excerpt(obj.AboutText, 300)
	}
	if obj.Maker != "" {
		data["creator"] = map[string]string{"@type": "Person", "name": obj.Maker}
	}
	if obj.MediumMaterials != "" {
		data["artMedium"] = obj.MediumMaterials
	}
	if obj.ObjectType != "" {
		data["artform"] = obj.ObjectType
	}
	if obj.Collection != "" {
		data["isPartOf"] = map[string]string{"@type": "Collection", "name": obj.Collection}
	}
	if len(obj.Keywords) > 0 {
		data["keywords"] = strings.Join(obj.Keywords, ", ")
	}
	if img, ok := catalog.PrimaryImage(obj.Images); ok && !img.IsLocal() {
		data["image"] = img.URL
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{"@type": "Organization", "name": cfg.Name}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
