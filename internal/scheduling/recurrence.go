package scheduling

import (
	"time"

	"github.com/google/uuid"

	"apertura/internal/models"
)

// cadenceStep describes one recurrence cadence: the calendar increment per
// occurrence and the total number of occurrences including the base.
type cadenceStep struct {
	days, months int
	total        int
}

var cadences = map[string]cadenceStep{
	models.RepeatDaily:     {days: 1, total: 7},
	models.RepeatWeekly:    {days: 7, total: 4},
	models.RepeatWeekly6M:  {days: 7, total: 26},
	models.RepeatWeekly1Y:  {days: 7, total: 52},
	models.RepeatMonthly6M: {months: 1, total: 6},
	models.RepeatMonthly1Y: {months: 1, total: 12},
}

// Expand generates the remaining occurrences of a repeating block-out.
// The base appointment is the first occurrence; the returned slice holds the
// other total-1, each shifted by a calendar-aware increment in the
// appointment's own time zone so wall-clock times survive DST transitions.
// Occurrences are independent rows: fresh ids, no series back-reference.
// Client-facing appointments are never expanded.
func Expand(base *models.Appointment, cadence string) []models.Appointment {
	if !base.IsBlockOut() {
		return nil
	}
	step, ok := cadences[cadence]
	if !ok {
		return nil
	}

	loc := time.UTC
	if base.TimeZone != "" {
		if l, err := time.LoadLocation(base.TimeZone); err == nil {
			loc = l
		}
	}

	occurrences := make([]models.Appointment, 0, step.total-1)
	for i := 1; i < step.total; i++ {
		occ := *base
		occ.ID = uuid.NewString()
		occ.Repeat = ""
		occ.StartAt = base.StartAt.In(loc).AddDate(0, step.months*i, step.days*i)
		occ.EndAt = base.EndAt.In(loc).AddDate(0, step.months*i, step.days*i)
		occ.CreatedAt = time.Time{}
		occurrences = append(occurrences, occ)
	}
	return occurrences
}
