package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// MoodItem represents a mood with its share of the month.
type MoodItem struct {
	Mood       string
	Count      int
	Percentage float64
	MoodStyle  MoodStyle
}

// MoodsViewModel is the data passed to the mood summary template.
type MoodsViewModel struct {
	Year           int
	Month          int
	MonthName      string
	Total          int
	Moods          []MoodItem
	Entries        []EntryItem
	PrevYear       int
	PrevMonth      int
	NextYear       int
	NextMonth      int
	IsCurrentMonth bool
}

// Moods renders how the couple felt over a month.
func (h *Handlers) Moods(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	// Get year and month from query params, default to current month
	now := time.Now()
	year := now.Year()
	month := int(now.Month())

	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && y > 0 {
		year = y
	}
	if m, err := strconv.Atoi(r.URL.Query().Get("month")); err == nil && m >= 1 && m <= 12 {
		month = m
	}

	summary, err := h.svc.MoodSummary(r.Context(), user.ID, year, time.Month(month))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items := make([]MoodItem, 0, len(summary.Moods))
	for _, m := range summary.Moods {
		items = append(items, MoodItem{
			Mood:       m.Mood,
			Count:      m.Count,
			Percentage: m.Percentage,
			MoodStyle:  getMoodStyle(m.Mood),
		})
	}

	entries := make([]EntryItem, 0, len(summary.Entries))
	for _, e := range summary.Entries {
		entries = append(entries, newEntryItem(e, user, "Jan 02, 15:04"))
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	prevDate := first.AddDate(0, -1, 0)
	nextDate := first.AddDate(0, 1, 0)

	h.render(w, r, http.StatusOK, "moods.html", MoodsViewModel{
		Year:           year,
		Month:          month,
		MonthName:      time.Month(month).String(),
		Total:          summary.Total,
		Moods:          items,
		Entries:        entries,
		PrevYear:       prevDate.Year(),
		PrevMonth:      int(prevDate.Month()),
		NextYear:       nextDate.Year(),
		NextMonth:      int(nextDate.Month()),
		IsCurrentMonth: year == now.Year() && month == int(now.Month()),
	})
}
