package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DateText is the label a history entry is listed under: "Today, 9:05",
// "Yesterday, 18:30" or "3 March 2024", relative to now's location.
func DateText(t, now time.Time) string {
	t = t.In(now.Location())
	clock := fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())
	switch {
	case sameDay(t, now):
		return "Today, " + clock
	case sameDay(t, now.AddDate(0, 0, -1)):
		return "Yesterday, " + clock
	}
	return t.Format("2 January 2006")
}

// MonthTitle is the month section a history entry is grouped under.
func MonthTitle(t time.Time) string {
	return t.Format("January 2006")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FilterHistory keeps the items whose title, date label or month title
// contains query, ignoring case. A blank query keeps everything.
func FilterHistory(items []HistoryItem, query string, now time.Time) []HistoryItem {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]HistoryItem, 0, len(items))
	for _, it := range items {
		local := it.CreatedAt.In(now.Location())
		if strings.Contains(strings.ToLower(it.Title), q) ||
			strings.Contains(strings.ToLower(DateText(local, now)), q) ||
			strings.Contains(strings.ToLower(MonthTitle(local)), q) {
			out = append(out, it)
		}
	}
	return out
}

// SearchHistory lists the newest items matching query, at most limit of them
// when limit > 0.
func (d *DB) SearchHistory(ctx context.Context, query string, limit int) ([]HistoryItem, error) {
	if strings.TrimSpace(query) == "" {
		return d.ListHistory(ctx, limit)
	}
	items, err := d.ListHistory(ctx, 0)
	if err != nil {
		return nil, err
	}
	items = FilterHistory(items, query, time.Now())
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
