package storage

import (
	"flagwatch/backend/internal/models"
	"strings"
	"time"
)

// Filter narrows a case record. All set fields must hold (logical AND);
// Limit is applied last and keeps the most recent entries.
type Filter struct {
	Risk   models.RiskTier `form:"risk" json:"risk,omitempty"`
	Match  string          `form:"match" json:"match,omitempty"`
	After  time.Time       `form:"after" time_format:"2006-01-02" time_utc:"1" json:"after,omitzero"`
	Before time.Time       `form:"before" time_format:"2006-01-02" time_utc:"1" json:"before,omitzero"`
	Limit  int             `form:"limit" json:"limit,omitempty" binding:"gte=0"`
}

// Apply returns the filtered events without modifying the input.
func (f Filter) Apply(events []models.ClassifiedEvent) []models.ClassifiedEvent {
	match := strings.ToLower(f.Match)
	out := make([]models.ClassifiedEvent, 0, len(events))
	for _, ev := range events {
		if f.Risk != "" && ev.Risk != f.Risk {
			continue
		}
		if match != "" && !strings.Contains(strings.ToLower(ev.Content), match) {
			continue
		}
		if !f.After.IsZero() && !ev.Timestamp.After(f.After) {
			continue
		}
		if !f.Before.IsZero() && !ev.Timestamp.Before(f.Before) {
			continue
		}
		out = append(out, ev)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
