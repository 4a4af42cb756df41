package handlers

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"couple-diary/internal/diary"
	"couple-diary/internal/models"
)

// render executes base.html with the view, or only its content block for
// htmx requests. Output is buffered so a template failure still yields a
// clean 500.
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, viewName string, data any) {
	funcs := template.FuncMap{
		"currentUser": func() *models.User { return GetUserFromContext(r) },
		"moodStyle":   getMoodStyle,
		"date":        func(t time.Time) string { return t.Local().Format("Mon, 02 Jan 2006 15:04") },
	}

	tmpl, err := template.New("base.html").Funcs(funcs).ParseFiles(
		filepath.Join(h.opts.TemplateDir, "base.html"),
		filepath.Join(h.opts.TemplateDir, viewName),
	)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, target, data); err != nil {
		h.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// redirect sends the browser to path. htmx requests get an HX-Location
// header so the swap targets #content instead of following a 302.
func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Location", `{"path":"`+path+`", "target":"#content"}`)
		return
	}
	http.Redirect(w, r, path, http.StatusFound)
}

// fail maps diary errors onto responses. Internal errors are logged and
// reported without detail.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, diary.ErrNotFound):
		http.Error(w, "Entry not found", http.StatusNotFound)
	case errors.Is(err, diary.ErrNoCouple):
		http.Error(w, "No couple relationship found", http.StatusBadRequest)
	case errors.Is(err, diary.ErrValidation):
		http.Error(w, validationMessage(err), http.StatusBadRequest)
	case errors.As(err, &tooLarge):
		http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
	default:
		h.serverError(w, r, err)
	}
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, diary.ErrValidation.Error()+": "); i >= 0 {
		msg = msg[i+len(diary.ErrValidation.Error())+2:]
	}
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
