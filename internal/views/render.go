package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/dashboard"
)

var pageTmpl *template.Template

// loadTemplatesFromFS loads page templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	pageTmpl, err = template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads the embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// RenderDashboard writes the full dashboard page.
func RenderDashboard(w io.Writer, page *dashboard.Page) error {
	if pageTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return pageTmpl.ExecuteTemplate(w, "dashboard.html", page)
}

// ErrorData is the view model for the error page.
type ErrorData struct {
	Title   string
	Status  string
	Message string
}

// NewErrorData builds an error page for an HTTP status code.
func NewErrorData(code int, message string) *ErrorData {
	return &ErrorData{
		Title:   dashboard.Title,
		Status:  http.StatusText(code),
		Message: message,
	}
}

// RenderError writes the error page shown when a page run fails.
func RenderError(w io.Writer, data *ErrorData) error {
	if pageTmpl == nil {
		return errors.New("error template not loaded: call views.LoadTemplates during startup")
	}
	return pageTmpl.ExecuteTemplate(w, "error.html", data)
}
