package payouts

import (
	"fmt"
	"time"
)

// Local hours at which a payout window opens. A calendar day in the payout
// zone is cut into two 12-hour halves at these hours.
const (
	morningCutHour = 6
	eveningCutHour = 18
)

// Window is a half-open [Start, End) interval of UTC instants.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Label identifies the window by its local start, e.g. 2026-03-02T06:00+05:30.
func (w Window) Label(loc *time.Location) string {
	return w.Start.In(loc).Format("2006-01-02T15:04Z07:00")
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// WindowFor returns the window containing t, computed in loc.
func WindowFor(t time.Time, loc *time.Location) Window {
	local := t.In(loc)
	y, m, d := local.Date()
	morning := time.Date(y, m, d, morningCutHour, 0, 0, 0, loc)
	evening := time.Date(y, m, d, eveningCutHour, 0, 0, 0, loc)

	var start time.Time
	switch {
	case local.Before(morning):
		start = evening.AddDate(0, 0, -1)
	case local.Before(evening):
		start = morning
	default:
		start = evening
	}
	return Window{Start: start.UTC(), End: start.Add(12 * time.Hour).UTC()}
}

// PreviousWindow returns the last window that has fully closed at now.
func PreviousWindow(now time.Time, loc *time.Location) Window {
	current := WindowFor(now, loc)
	return WindowFor(current.Start.Add(-time.Nanosecond), loc)
}

// ParseWindow resolves an operator-supplied local start such as
// 2026-03-02T06:00 into the window it opens.
func ParseWindow(value string, loc *time.Location) (Window, error) {
	start, err := time.ParseInLocation("2006-01-02T15:04", value, loc)
	if err != nil {
		return Window{}, fmt.Errorf("parse window start: %w", err)
	}
	w := WindowFor(start, loc)
	if !w.Start.Equal(start.UTC()) {
		return Window{}, fmt.Errorf("window must start at %02d:00 or %02d:00 local", morningCutHour, eveningCutHour)
	}
	return w, nil
}
