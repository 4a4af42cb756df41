package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"couple-diary/internal/diary"
	"couple-diary/internal/models"
)

// multipartMemory is how much of a multipart form is kept in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

// MoodDef defines the properties of a mood offered by the entry form.
type MoodDef struct {
	ID    string
	Name  string
	Icon  string
	Color string
}

var moods = []MoodDef{
	{"happy", "Happy", "😊", "#fbbf24"},
	{"love", "In love", "❤️", "#fb7185"},
	{"excited", "Excited", "🤩", "#f472b6"},
	{"calm", "Calm", "😌", "#34d399"},
	{"tired", "Tired", "😴", "#a78bfa"},
	{"sad", "Sad", "😢", "#60a5fa"},
	{"angry", "Angry", "😠", "#f87171"},
}

// MoodStyle defines the visual style for a mood.
type MoodStyle struct {
	Name  string
	Icon  string
	Color string
}

func getMoodStyle(mood string) MoodStyle {
	id := strings.ToLower(strings.TrimSpace(mood))
	for _, m := range moods {
		if m.ID == id {
			return MoodStyle{Name: m.Name, Icon: m.Icon, Color: m.Color}
		}
	}
	if id == "" {
		return MoodStyle{Name: "No mood", Icon: "📝", Color: "#94a3b8"}
	}
	return MoodStyle{Name: mood, Icon: "📝", Color: "#94a3b8"}
}

// EntryItem represents an entry in the list view.
type EntryItem struct {
	models.Entry
	Time      string
	MoodStyle MoodStyle
	IsMine    bool
}

// EntryGroup groups entries by day.
type EntryGroup struct {
	Title string
	Date  string
	Items []EntryItem
}

// ListViewModel is the data passed to the list view template.
type ListViewModel struct {
	Count   int
	Groups  []EntryGroup
	Partner *models.User
}

// FormViewModel is the data passed to the create/edit form template.
type FormViewModel struct {
	Entry  *models.Entry
	IsEdit bool
	Moods  []MoodDef
}

// DetailViewModel is the data passed to the detail template.
type DetailViewModel struct {
	Entry EntryItem
}

func newEntryItem(e models.Entry, user *models.User, layout string) EntryItem {
	return EntryItem{
		Entry:     e,
		Time:      e.CreatedAt.Local().Format(layout),
		MoodStyle: getMoodStyle(e.Mood),
		IsMine:    user != nil && e.AuthorID == user.ID,
	}
}

// ListEntries renders the couple's entries grouped by day, newest first.
func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	entries, err := h.svc.List(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := time.Now()
	var groups []EntryGroup
	for _, e := range entries {
		local := e.CreatedAt.Local()
		dateStr := local.Format("2006-01-02")
		if len(groups) == 0 || groups[len(groups)-1].Date != dateStr {
			groups = append(groups, EntryGroup{Date: dateStr, Title: formatGroupTitle(local, now)})
		}
		g := &groups[len(groups)-1]
		g.Items = append(g.Items, newEntryItem(e, user, "15:04"))
	}

	partner, err := h.svc.Partner(r.Context(), user.ID)
	if err != nil && !errors.Is(err, diary.ErrNoCouple) {
		h.fail(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "list.html", ListViewModel{Count: len(entries), Groups: groups, Partner: partner})
}

// NewEntryForm renders the form to create a new entry.
func (h *Handlers) NewEntryForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "form.html", FormViewModel{Entry: &models.Entry{}, Moods: moods})
}

// CreateEntry handles the creation of a new entry.
func (h *Handlers) CreateEntry(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	in, upload, err := h.parseEntryForm(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if upload != nil {
		defer upload.close()
	}

	if _, err := h.svc.Create(r.Context(), user.ID, in, upload.diaryUpload()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirect(w, r, "/diary")
}

// EntryDetail renders a single entry.
func (h *Handlers) EntryDetail(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	entry, err := h.svc.Get(r.Context(), user.ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "detail.html", DetailViewModel{Entry: newEntryItem(*entry, user, "Mon, 02 Jan 2006 15:04")})
}

// EditEntryForm renders the form to edit an existing entry.
func (h *Handlers) EditEntryForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	entry, err := h.svc.Get(r.Context(), user.ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "form.html", FormViewModel{Entry: entry, IsEdit: true, Moods: moods})
}

// UpdateEntry handles the update of an existing entry.
func (h *Handlers) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	in, upload, err := h.parseEntryForm(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if upload != nil {
		defer upload.close()
	}

	removeImage := formBool(r.FormValue("removeImage"))
	if _, err := h.svc.Update(r.Context(), user.ID, id, in, upload.diaryUpload(), removeImage); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirect(w, r, "/diary")
}

// DeleteEntry removes an entry.
func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), user.ID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirect(w, r, "/diary")
}

// ServeUpload streams a stored photo.
func (h *Handlers) ServeUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rc, err := h.svc.OpenAttachment(r.Context(), name)
	if err != nil {
		if errors.Is(err, diary.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, r, err)
		return
	}
	defer rc.Close()

	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "failed to stream upload", "name", name, "error", err)
	}
}

// formUpload is the image part of an entry form.
type formUpload struct {
	filename string
	file     io.ReadCloser
}

func (u *formUpload) diaryUpload() *diary.Upload {
	if u == nil {
		return nil
	}
	return &diary.Upload{Filename: u.filename, Body: u.file}
}

func (u *formUpload) close() {
	u.file.Close()
}

// parseEntryForm reads the text fields and the optional image of an entry
// form. Plain urlencoded forms are accepted too.
func (h *Handlers) parseEntryForm(w http.ResponseWriter, r *http.Request) (diary.EntryInput, *formUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	var upload *formUpload
	err := r.ParseMultipartForm(multipartMemory)
	switch {
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			return diary.EntryInput{}, nil, badForm(err)
		}
	case err != nil:
		return diary.EntryInput{}, nil, badForm(err)
	default:
		file, header, err := r.FormFile("image")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return diary.EntryInput{}, nil, badForm(err)
		default:
			upload = &formUpload{filename: header.Filename, file: file}
		}
	}

	in := diary.EntryInput{
		Title:    strings.TrimSpace(r.FormValue("title")),
		Content:  r.FormValue("content"),
		Mood:     strings.TrimSpace(r.FormValue("mood")),
		Location: strings.TrimSpace(r.FormValue("location")),
	}
	return in, upload, nil
}

// badForm reports malformed submissions as validation errors. Oversized
// bodies keep their *http.MaxBytesError.
func badForm(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: invalid form submission", diary.ErrValidation)
}

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid diary ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func formBool(v string) bool {
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func formatGroupTitle(date, now time.Time) string {
	dateStr := date.Format("2006-01-02")

	if dateStr == now.Format("2006-01-02") {
		return "TODAY"
	}
	if dateStr == now.AddDate(0, 0, -1).Format("2006-01-02") {
		return "YESTERDAY"
	}
	return strings.ToUpper(date.Format("Mon, 02 Jan '06"))
}
