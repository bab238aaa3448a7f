package shell

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/fastygo/portal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type navLink struct {
	Href    string
	Title   string
	Section string
	Active  bool
}

type shellView struct {
	Shell   *Shell
	Screen  Screen
	Links   []navLink
	Session domain.Session
}

// RenderScreen renders the shell with the given screen active.
func RenderScreen(s *Shell, sc Screen, sess domain.Session) ([]byte, error) {
	links := make([]navLink, 0, len(s.Screens))
	for _, item := range s.Screens {
		links = append(links, navLink{
			Href:    s.Href(item),
			Title:   item.Title,
			Section: item.Section,
			Active:  item.Path == sc.Path,
		})
	}
	return execute("shell.html", shellView{Shell: s, Screen: sc, Links: links, Session: sess})
}

// RenderNotFound renders the dead-end page shown before a forced logout.
func RenderNotFound(path, loginPath string, delay time.Duration) ([]byte, error) {
	return execute("notfound.html", struct {
		Path      string
		LoginPath string
		Seconds   int
	}{Path: path, LoginPath: loginPath, Seconds: int(delay.Round(time.Second) / time.Second)})
}

// LoginView is the data of the login form.
type LoginView struct {
	Email   string
	Message string
}

func RenderLogin(v LoginView) ([]byte, error) {
	return execute("login.html", v)
}

func execute(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
