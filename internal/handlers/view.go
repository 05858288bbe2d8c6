package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/mindsight/journal/internal/session"
	"github.com/mindsight/journal/types"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageHome     = "home"
	pageRegister = "register"
	pageLogin    = "login"
	pageAddEntry = "add_entry"
	pageList     = "list"
	pageError    = "error"
)

var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string { return t.Local().Format("Jan 2, 2006 15:04") },
	"isoTime":    func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}

// pageData is the value every page template executes against.
type pageData struct {
	User          *types.User
	Flashes       []string
	Error         string
	Username      string
	Text          string
	Entries       []types.Entry
	ExportEnabled bool
	Status        int
	StatusText    string
}

// View renders the embedded HTML pages inside the shared layout.
type View struct {
	pages    map[string]*template.Template
	sessions *session.Manager
	logger   zerolog.Logger
}

func NewView(sessions *session.Manager, logger zerolog.Logger) (*View, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageHome, pageRegister, pageLogin, pageAddEntry, pageList, pageError} {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &View{pages: pages, sessions: sessions, logger: logger}, nil
}

// Render executes page with data, filling in the current user and pending
// flash messages.
func (v *View) Render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	tmpl, ok := v.pages[page]
	if !ok {
		v.logger.Error().Str("page", page).Msg("unknown page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if user, ok := userFromContext(r.Context()); ok {
		data.User = &user
	}
	data.Flashes = append(v.sessions.Flashes(w, r), data.Flashes...)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		v.logger.Error().Err(err).Str("page", page).Msg("render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error renders the error page for status.
func (v *View) Error(w http.ResponseWriter, r *http.Request, status int) {
	v.Render(w, r, status, pageError, pageData{Status: status, StatusText: http.StatusText(status)})
}
