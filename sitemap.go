package archivist

import (
	"encoding/xml"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/archivist/catalog"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) renderSitemap(c echo.Context, objects []catalog.Object) error {
	base := a.Config.URL
	urls := []sitemapURL{{Loc: BuildURL(base)}}
	for _, o := range objects {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "objects", o.ID),
			LastMod: lastMod(o),
		})
	}
	return renderXML(c, sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	})
}

// lastMod is the object's update date in W3C date form, or empty.
func lastMod(o catalog.Object) string {
	for _, ts := range []string{o.UpdatedAt, o.CreatedAt} {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	return ""
}
