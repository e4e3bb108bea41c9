package archivist

import (
	"encoding/xml"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/archivist/catalog"
)

// feedSize is how many recently updated objects the feed lists.
const feedSize = 50

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Category    string `xml:"category,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

func (a *App) handleFeed(c echo.Context) error {
	return a.renderRSS(c, a.Catalog.Current(c.Request().Context()))
}

// renderRSS lists the most recently updated objects first.
func (a *App) renderRSS(c echo.Context, objects []catalog.Object) error {
	type dated struct {
		obj catalog.Object
		at  time.Time
	}
	list := make([]dated, 0, len(objects))
	for _, o := range objects {
		at, _ := time.Parse(time.RFC3339, o.UpdatedAt)
		list = append(list, dated{obj: o, at: at})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].at.After(list[j].at) })
	if len(list) > feedSize {
		list = list[:feedSize]
	}

	base := a.Config.URL
	items := make([]rssItem, 0, len(list))
	for _, d := range list {
		link := BuildURL(base, "objects", d.obj.ID)
		item := rssItem{
			Title:       d.obj.Title,
			Link:        link,
			Description: Excerpt(d.obj.AboutText, 300),
			Category:    d.obj.Collection,
			GUID:        link,
		}
		if !d.at.IsZero() {
			item.PubDate = d.at.Format(time.RFC1123Z)
		}
		items = append(items, item)
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	return renderXML(c, rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        BuildURL(base),
			Description: a.Config.Description,
			Items:       items,
		},
	})
}
