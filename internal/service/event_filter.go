package service

import (
	"net/url"
	"strings"
	"time"

	"eventhub/internal/models"
	"eventhub/internal/repository"
)

const (
	DateToday = "today"
	DateWeek  = "week"
)

// EventFilter holds the raw listing options as sent by the client.
type EventFilter struct {
	Type     string
	Location string
	Date     string
}

func ParseEventFilter(values url.Values) EventFilter {
	return EventFilter{
		Type:     strings.TrimSpace(values.Get("type")),
		Location: strings.TrimSpace(values.Get("location")),
		Date:     strings.TrimSpace(values.Get("date")),
	}
}

// Resolve turns the options into a repository query. "today" and "week" are
// computed from now as seen in loc. Type is matched exactly, so a value other
// than free or paid simply matches nothing. A date that is neither keyword
// nor YYYY-MM-DD imposes no constraint.
func (f EventFilter) Resolve(now time.Time, loc *time.Location) repository.EventQuery {
	var q repository.EventQuery

	q.CostType = models.CostType(f.Type)

	q.Location = f.Location

	if f.Date != "" {
		if loc == nil {
			loc = time.Local
		}
		today := now.In(loc)

		switch f.Date {
		case DateToday:
			q.StartFrom = today.Format(models.DateLayout)
			q.StartTo = q.StartFrom
		case DateWeek:
			q.StartFrom = today.Format(models.DateLayout)
			q.StartTo = today.AddDate(0, 0, 7).Format(models.DateLayout)
		default:
			if day, err := time.Parse(models.DateLayout, f.Date); err == nil {
				q.StartFrom = day.Format(models.DateLayout)
			}
		}
	}

	return q
}
