package window

import (
	"time"

	"bank-sync-backend/internal/models"
)

const (
	// InitialBackfillDays is how far back the first sync of an account reaches.
	InitialBackfillDays = 90
	// OverlapDays re-requests the tail of the previous window to pick up
	// late-settled transactions. Duplicates are dropped by external id.
	OverlapDays = 1

	dateLayout = "2006-01-02"
)

// Window is a closed date range [Start, End], both at UTC midnight.
type Window struct {
	Start time.Time
	End   time.Time
}

// Compute returns the fetch window for an account given the time of its
// last successful sync. It is pure: the same inputs always give the same
// window.
func Compute(lastSuccessfulSync *time.Time, today time.Time) Window {
	end := truncateDay(today)
	if lastSuccessfulSync == nil {
		return Window{Start: end.AddDate(0, 0, -InitialBackfillDays), End: end}
	}
	return Window{Start: truncateDay(*lastSuccessfulSync).AddDate(0, 0, -OverlapDays), End: end}
}

func SyncType(lastSuccessfulSync *time.Time) models.SyncType {
	if lastSuccessfulSync == nil {
		return models.SyncTypeInitial
	}
	return models.SyncTypeIncremental
}

func (w Window) From() string {
	return w.Start.Format(dateLayout)
}

func (w Window) To() string {
	return w.End.Format(dateLayout)
}

func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
