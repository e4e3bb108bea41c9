package archivist

import "github.com/eringen/archivist/catalog"

// SiteInfo is the site-wide data every page template receives.
type SiteInfo struct {
	Name        string
	URL         string
	Description string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	JSONLD      string
}

// BrowsePage is the public object list with its filters.
type BrowsePage struct {
	Site    SiteInfo
	Meta    PageMeta
	Objects []catalog.Object
	Total   int
	Filter  catalog.Filter
	Facets  catalog.Facets
	Source  catalog.Source
}

// ObjectPage is the public detail view of one object.
type ObjectPage struct {
	Site    SiteInfo
	Meta    PageMeta
	Object  catalog.Object
	Primary catalog.Image
	// HasPrimary is false for objects without images.
	HasPrimary bool
	Related    []catalog.Object
}

// DashboardPage is the admin object list.
type DashboardPage struct {
	Site      SiteInfo
	Objects   []catalog.Object
	Source    catalog.Source
	Message   string
	CSRFToken string
}

// FormPage is the admin create/edit form.
type FormPage struct {
	Object    catalog.Object
	IsNew     bool
	Error     string
	Warnings  []string
	CSRFToken string
}
