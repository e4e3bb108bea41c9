package archivist

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/archivist/catalog"
)

// relatedCount is how many related objects a detail page shows.
const relatedCount = 3

func (a *App) site() SiteInfo {
	return SiteInfo{Name: a.Config.Name, URL: a.Config.URL, Description: a.Config.Description}
}

func filterFromQuery(c echo.Context) catalog.Filter {
	return catalog.Filter{
		Query:      strings.TrimSpace(c.QueryParam("q")),
		ObjectType: c.QueryParam("type"),
		Collection: c.QueryParam("collection"),
		Keyword:    c.QueryParam("keyword"),
	}
}

func (a *App) handleBrowse(c echo.Context) error {
	ctx := c.Request().Context()
	all := a.Catalog.Current(ctx)
	filter := filterFromQuery(c)
	return Render(c, a.Views.Browse(BrowsePage{
		Site: a.site(),
		Meta: PageMeta{
			Title:       a.Config.Name,
			Description: a.Config.Description,
			URL:         BuildURL(a.Config.URL),
			OGType:      "website",
			JSONLD:      WebsiteJsonLD(a.Config),
		},
		Objects: catalog.Search(all, filter),
		Total:   len(all),
		Filter:  filter,
		Facets:  catalog.CollectFacets(all),
		Source:  a.Catalog.Source(),
	}))
}

func (a *App) handleObject(c echo.Context) error {
	obj, err := a.Catalog.Get(c.Param("id"))
	if errors.Is(err, catalog.ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	if err != nil {
		return err
	}
	primary, ok := catalog.PrimaryImage(obj.Images)
	meta := PageMeta{
		Title:       obj.Title + " | " + a.Config.Name,
		Description: Excerpt(obj.AboutText, 160),
		URL:         BuildURL(a.Config.URL, "objects", obj.ID),
		OGType:      "article",
		JSONLD:      ObjectJsonLD(obj, a.Config),
	}
	if ok && !primary.IsLocal() {
		meta.Image = primary.URL
	}
	return Render(c, a.Views.Object(ObjectPage{
		Site:       a.site(),
		Meta:       meta,
		Object:     obj,
		Primary:    primary,
		HasPrimary: ok,
		Related:    catalog.Related(obj, a.Catalog.Current(c.Request().Context()), relatedCount),
	}))
}

func (a *App) handleSitemap(c echo.Context) error {
	return a.renderSitemap(c, a.Catalog.Current(c.Request().Context()))
}

// apiObjects is the JSON list answer.
type apiObjects struct {
	Objects []catalog.Object `json:"objects"`
	Total   int              `json:"total"`
	Source  string           `json:"source"`
}

func (a *App) handleAPIObjects(c echo.Context) error {
	all := a.Catalog.Current(c.Request().Context())
	found := catalog.Search(all, filterFromQuery(c))
	if found == nil {
		found = []catalog.Object{}
	}
	return c.JSON(http.StatusOK, apiObjects{
		Objects: found,
		Total:   len(found),
		Source:  a.Catalog.Source().String(),
	})
}

func (a *App) handleAPIObject(c echo.Context) error {
	obj, err := a.Catalog.Get(c.Param("id"))
	if errors.Is(err, catalog.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "object not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, obj)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		a.Echo.DefaultHTTPErrorHandler(err, c)
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
