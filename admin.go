package archivist

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/archivist/catalog"
	"github.com/eringen/archivist/imaging"
)

// Form fields handled outside the generic text column loop.
var formSkip = map[string]bool{"id": true, "createdAt": true, "updatedAt": true}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		a.loginLimiter.Reset(ip)
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.loginLimiter.Record(ip)
	return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminRefresh(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	msg := "Refreshed from the remote store."
	if err := a.Catalog.Refresh(c.Request().Context()); err != nil {
		msg = "Refresh failed: " + err.Error()
	}
	return redirectDashboard(c, msg)
}

func (a *App) handleAdminNew(c echo.Context) error {
	return Render(c, a.Views.AdminForm(FormPage{IsNew: true, CSRFToken: CsrfToken(c)}))
}

func (a *App) handleAdminEdit(c echo.Context) error {
	obj, err := a.Catalog.Get(c.Param("id"))
	if err != nil {
		return a.notFoundOr(c, err)
	}
	return Render(c, a.Views.AdminForm(FormPage{Object: obj, CSRFToken: CsrfToken(c)}))
}

// handleAdminSave creates or updates an object from the form. Photos picked
// in the same form go through the image pipeline first.
func (a *App) handleAdminSave(c echo.Context) error {
	ctx := c.Request().Context()
	id := strings.TrimSpace(c.FormValue("id"))

	var obj catalog.Object
	isNew := true
	if id != "" {
		existing, err := a.Catalog.Get(id)
		switch {
		case err == nil:
			obj, isNew = existing, false
		case errors.Is(err, catalog.ErrNotFound):
			obj.ID = id
		default:
			return err
		}
	}
	applyForm(c, &obj)

	if strings.TrimSpace(obj.Title) == "" {
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.AdminForm(FormPage{
			Object:    obj,
			IsNew:     isNew,
			Error:     "Title is required.",
			CSRFToken: CsrfToken(c),
		}))
	}

	images, warnings := a.ingestForm(c)
	for _, img := range images {
		obj.Images = catalog.AddImage(obj.Images, img)
	}

	res, err := a.Catalog.Save(ctx, obj)
	if errors.Is(err, catalog.ErrTitleRequired) {
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.AdminForm(FormPage{
			Object: obj, IsNew: isNew, Error: "Title is required.", CSRFToken: CsrfToken(c),
		}))
	}
	if err != nil {
		return err
	}
	return redirectDashboard(c, saveMessage(res, warnings))
}

func (a *App) handleAdminDeleteConfirm(c echo.Context) error {
	obj, err := a.Catalog.Get(c.Param("id"))
	if err != nil {
		return a.notFoundOr(c, err)
	}
	return Render(c, a.Views.AdminDeleteConfirm(obj, CsrfToken(c)))
}

// handleAdminDelete removes an object once the confirmation form was
// submitted with confirm=yes.
func (a *App) handleAdminDelete(c echo.Context) error {
	id := c.Param("id")
	if c.FormValue("confirm") != "yes" {
		return c.Redirect(http.StatusSeeOther, "/admin/objects/"+url.PathEscape(id)+"/delete/")
	}
	res, err := a.Catalog.Delete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	msg := "Deleted."
	if !res.RemoteConfirmed {
		msg = "Deleted locally; the remote store did not confirm the delete."
	}
	return redirectDashboard(c, msg)
}

func (a *App) handleImageAdd(c echo.Context) error {
	obj, err := a.Catalog.Get(c.Param("id"))
	if err != nil {
		return a.notFoundOr(c, err)
	}
	images, warnings := a.ingestForm(c)
	if len(images) == 0 && len(warnings) == 0 {
		return a.redirectEdit(c, obj.ID)
	}
	for _, img := range images {
		obj.Images = catalog.AddImage(obj.Images, img)
	}
	res, err := a.Catalog.Save(c.Request().Context(), obj)
	if err != nil {
		return err
	}
	return redirectDashboard(c, saveMessage(res, warnings))
}

func (a *App) handleImagePrimary(c echo.Context) error {
	return a.editImages(c, catalog.SetPrimary)
}

func (a *App) handleImageRemove(c echo.Context) error {
	return a.editImages(c, catalog.RemoveImage)
}

func (a *App) editImages(c echo.Context, edit func([]catalog.Image, int) []catalog.Image) error {
	obj, err := a.Catalog.Get(c.Param("id"))
	if err != nil {
		return a.notFoundOr(c, err)
	}
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 || idx >= len(obj.Images) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image index")
	}
	obj.Images = edit(obj.Images, idx)
	if _, err := a.Catalog.Save(c.Request().Context(), obj); err != nil {
		return err
	}
	return a.redirectEdit(c, obj.ID)
}

// ingestForm runs every file in the "images" field through the pipeline.
// Files that cannot be ingested become warnings.
func (a *App) ingestForm(c echo.Context) ([]catalog.Image, []error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}
	files := form.File["images"]
	captions := form.Value["caption"]
	var images []catalog.Image
	var warnings []error
	for i, fh := range files {
		caption := ""
		if i < len(captions) {
			caption = strings.TrimSpace(captions[i])
		}
		img, err := a.ingestFile(c, fh, caption)
		if err != nil {
			warnings = append(warnings, err)
			continue
		}
		images = append(images, img)
	}
	return images, warnings
}

func (a *App) ingestFile(c echo.Context, fh *multipart.FileHeader, caption string) (catalog.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return catalog.Image{}, fmt.Errorf("%s: %w", fh.Filename, err)
	}
	defer f.Close()
	res, err := a.Pipeline.Ingest(c.Request().Context(), imaging.Input{
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Caption:  caption,
		Body:     f,
	})
	if err != nil {
		return catalog.Image{}, err
	}
	return res.Image, nil
}

// applyForm copies the posted fields onto obj.
func applyForm(c echo.Context, obj *catalog.Object) {
	for _, col := range catalog.Columns {
		if formSkip[col] || catalog.ArrayColumns[col] {
			continue
		}
		obj.SetTextField(col, strings.TrimSpace(c.FormValue(col)))
	}
	obj.Keywords = SplitList(c.FormValue("keywords"))
	obj.Parts = SplitList(c.FormValue("parts"))
}

func saveMessage(res catalog.SaveResult, ingestWarnings []error) string {
	var b strings.Builder
	if res.Created {
		b.WriteString("Created.")
	} else {
		b.WriteString("Saved.")
	}
	if !res.Persisted {
		b.WriteString(" The remote store is unavailable; changes are kept locally.")
	}
	var uploadErrs int
	for _, w := range res.Warnings {
		var ue *catalog.ImageUploadError
		if errors.As(w, &ue) {
			uploadErrs++
		}
	}
	if uploadErrs > 0 {
		fmt.Fprintf(&b, " %d image(s) could not be uploaded and stay local.", uploadErrs)
	}
	for _, w := range ingestWarnings {
		fmt.Fprintf(&b, " Skipped %v.", w)
	}
	return b.String()
}

func (a *App) notFoundOr(c echo.Context, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	return err
}

func (a *App) redirectEdit(c echo.Context, id string) error {
	return c.Redirect(http.StatusSeeOther, "/admin/objects/"+url.PathEscape(id)+"/")
}

func redirectDashboard(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(msg))
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	return Render(c, a.Views.AdminDashboard(DashboardPage{
		Site:      a.site(),
		Objects:   a.Catalog.Current(c.Request().Context()),
		Source:    a.Catalog.Source(),
		Message:   msg,
		CSRFToken: CsrfToken(c),
	}))
}
