package diary

import (
	"context"
	"fmt"
	"time"

	"couple-diary/internal/models"
)

// MoodShare is one mood's slice of a month.
type MoodShare struct {
	Mood       string
	Count      int
	Percentage float64
}

// MoodSummary describes how a couple felt over one calendar month.
type MoodSummary struct {
	Year    int
	Month   time.Month
	Total   int
	Moods   []MoodShare
	Entries []models.Entry
}

// MoodSummary counts the moods of the user's couple entries written in the
// given month (UTC), most frequent first. Entries without a mood are counted
// under "".
func (s *Service) MoodSummary(ctx context.Context, userID int64, year int, month time.Month) (*MoodSummary, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	counts, err := s.db.MoodCounts(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("mood counts: %w", err)
	}
	entries, err := s.db.ListEntriesBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list month entries: %w", err)
	}

	summary := &MoodSummary{Year: from.Year(), Month: from.Month(), Entries: entries}
	for _, c := range counts {
		summary.Total += c.Count
	}
	for _, c := range counts {
		share := MoodShare{Mood: c.Mood, Count: c.Count}
		if summary.Total > 0 {
			share.Percentage = float64(c.Count) / float64(summary.Total) * 100
		}
		summary.Moods = append(summary.Moods, share)
	}
	return summary, nil
}
