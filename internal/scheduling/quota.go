package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"apertura/internal/config"
	"apertura/internal/models"
)

// QuotaCounter counts specialized appointments in a time window.
type QuotaCounter interface {
	CountSlotAppointments(ctx context.Context, tenantID string, from, to time.Time, slotType, excludeID string) (int, error)
}

// QuotaEnforcer applies per-tenant, per-day, per-slot-type caps.
type QuotaEnforcer struct {
	repo   QuotaCounter
	logger *zerolog.Logger
}

// NewQuotaEnforcer creates a quota enforcer over the appointment store.
func NewQuotaEnforcer(repo QuotaCounter, logger *zerolog.Logger) *QuotaEnforcer {
	return &QuotaEnforcer{repo: repo, logger: logger}
}

// EffectiveCap resolves the daily cap for a slot type from a weekday's
// operating config. An explicit cap always wins; otherwise an open day
// allows one specialized shoot and a closed day allows none.
func EffectiveCap(day config.DayConfig, slotType string) int {
	var explicit *int
	switch slotType {
	case models.SlotSunrise:
		explicit = day.SunriseCap
	case models.SlotDusk:
		explicit = day.DuskCap
	}
	if explicit != nil {
		return *explicit
	}
	if day.Open {
		return 1
	}
	return 0
}

// Check rejects the booking when the tenant's daily cap for the slot type is
// already reached on the given calendar day. excludeID keeps an edited
// appointment from counting against itself.
func (e *QuotaEnforcer) Check(ctx context.Context, tenant *config.TenantConfig, day time.Time, loc *time.Location, slotType, excludeID string) error {
	if slotType == "" {
		return nil
	}

	local := day.In(loc)
	limit := EffectiveCap(tenant.Day(local.Weekday()), slotType)

	// The sentinel disables counting entirely.
	if limit >= config.UncappedSentinel {
		return nil
	}

	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	if limit <= 0 {
		return &QuotaExceededError{SlotType: slotType, Day: dayStart, Limit: 0}
	}

	count, err := e.repo.CountSlotAppointments(ctx, tenant.ID, dayStart, dayEnd, slotType, excludeID)
	if err != nil {
		return fmt.Errorf("count %s appointments: %w", slotType, err)
	}

	if count >= limit {
		e.logger.Info().
			Str("tenant", tenant.ID).
			Str("slot_type", slotType).
			Int("cap", limit).
			Int("count", count).
			Msg("slot quota reached")
		return &QuotaExceededError{SlotType: slotType, Day: dayStart, Limit: limit}
	}
	return nil
}
