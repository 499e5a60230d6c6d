package api

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"taskflow/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var viewTemplates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

type viewRenderer struct {
	templates *template.Template
}

func (r viewRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type navLink struct {
	Label  string
	Href   string
	Active bool
}

// page is the model shared by every view. Logout is only offered on
// protected views.
type page struct {
	Title      string
	Path       string
	Nav        []navLink
	ShowLogout bool
	Error      string
	Notice     string
	UserKey    string
	BoardID    string
	Images     []domain.ImageEntry
}

func newPage(title, path string, protected bool) page {
	links := []navLink{{Label: "Login", Href: "/"}, {Label: "Register", Href: "/register"}}
	if protected {
		links = []navLink{{Label: "Tasks", Href: "/tasks"}, {Label: "Feed", Href: "/feed"}}
	}
	for i := range links {
		links[i].Active = links[i].Href == path
	}
	return page{Title: title, Path: path, Nav: links, ShowLogout: protected}
}

func loginPage() page          { return newPage("Login", "/", false) }
func registerPage() page       { return newPage("Register", "/register", false) }
func forgotPasswordPage() page { return newPage("Forgot password", "/forgot-password", false) }

func tasksPage(s domain.Session, boardID string) page {
	p := newPage("Tasks", "/tasks", true)
	p.UserKey = s.UserKey
	p.BoardID = boardID
	return p
}

func feedPage(s domain.Session, images []domain.ImageEntry) page {
	p := newPage("Feed", "/feed", true)
	p.UserKey = s.UserKey
	p.Images = images
	return p
}
