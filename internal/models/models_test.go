package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppointment_Overlaps(t *testing.T) {
	base := &Appointment{
		StartAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
	}

	t.Run("back-to-back windows do not overlap", func(t *testing.T) {
		next := &Appointment{
			StartAt: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC),
		}
		assert.False(t, base.Overlaps(next))
		assert.False(t, next.Overlaps(base))
	})

	t.Run("partial overlap", func(t *testing.T) {
		other := &Appointment{
			StartAt: time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
			EndAt:   time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC),
		}
		assert.True(t, base.Overlaps(other))
	})

	t.Run("containment", func(t *testing.T) {
		inner := &Appointment{
			StartAt: time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC),
			EndAt:   time.Date(2025, 3, 10, 9, 45, 0, 0, time.UTC),
		}
		assert.True(t, base.Overlaps(inner))
		assert.True(t, inner.Overlaps(base))
	})
}

func TestAppointment_SharesCrewWith(t *testing.T) {
	appt := &Appointment{
		Crew: []CrewAssignment{
			{CrewMemberID: "cm-1", Role: "photographer"},
			{CrewMemberID: "cm-2", Role: "assistant"},
		},
	}

	assert.True(t, appt.SharesCrewWith([]string{"cm-2"}))
	assert.True(t, appt.SharesCrewWith([]string{"cm-9", "cm-1"}))
	assert.False(t, appt.SharesCrewWith([]string{"cm-9"}))
	assert.False(t, appt.SharesCrewWith(nil))
}

func TestAppointment_IsActive(t *testing.T) {
	for status, want := range map[string]bool{
		StatusRequested: true,
		StatusPencilled: true,
		StatusApproved:  true,
		StatusBlocked:   true,
		StatusDeclined:  false,
		StatusCancelled: false,
	} {
		appt := &Appointment{Status: status}
		assert.Equal(t, want, appt.IsActive(), "status %s", status)
	}
}

func TestTotalDuration(t *testing.T) {
	services := []Service{
		{ID: "svc-1", DurationMinutes: 60},
		{ID: "svc-2", DurationMinutes: 30, SlotType: SlotDusk},
	}
	assert.Equal(t, 90*time.Minute, TotalDuration(services))
	assert.Equal(t, time.Duration(0), TotalDuration(nil))
}

func TestService_IsSpecialized(t *testing.T) {
	assert.True(t, (&Service{SlotType: SlotSunrise}).IsSpecialized())
	assert.False(t, (&Service{}).IsSpecialized())
}
