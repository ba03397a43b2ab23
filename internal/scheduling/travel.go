package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"apertura/internal/config"
	"apertura/internal/database"
	"apertura/internal/geo"
	"apertura/internal/models"
)

// CrewCalendar lists appointments that share crew members in a time window.
type CrewCalendar interface {
	ListByCrewBetween(ctx context.Context, tenantID string, from, to time.Time, crewIDs []string, excludeID string) ([]models.Appointment, error)
}

// LocationDirectory resolves location ids to records.
type LocationDirectory interface {
	GetLocation(ctx context.Context, id string) (*models.Location, error)
}

// TravelValidator checks that adjacent same-crew appointments leave enough
// time for the drive between locations plus a safety buffer.
type TravelValidator struct {
	calendar  CrewCalendar
	locations LocationDirectory
	router    geo.Router
	logger    *zerolog.Logger
}

// NewTravelValidator creates a validator over the calendar and routing provider.
func NewTravelValidator(calendar CrewCalendar, locations LocationDirectory, router geo.Router, logger *zerolog.Logger) *TravelValidator {
	return &TravelValidator{
		calendar:  calendar,
		locations: locations,
		router:    router,
		logger:    logger,
	}
}

// Validate rejects the appointment when any same-day, same-crew neighbour is
// too close to reach. The first failing pair aborts the validation. Pairs
// with no route available, with overlapping windows, or without a location
// are skipped.
func (v *TravelValidator) Validate(ctx context.Context, tenant *config.TenantConfig, appt *models.Appointment, loc *time.Location) error {
	if appt.LocationID == "" || len(appt.Crew) == 0 {
		return nil
	}

	location, err := v.locations.GetLocation(ctx, appt.LocationID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load appointment location: %w", err)
	}

	local := appt.StartAt.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	neighbours, err := v.calendar.ListByCrewBetween(ctx, appt.TenantID, dayStart, dayEnd, appt.CrewMemberIDs(), appt.ID)
	if err != nil {
		return fmt.Errorf("load same-day crew appointments: %w", err)
	}

	buffer := tenant.TravelBuffer()

	for i := range neighbours {
		neighbour := &neighbours[i]
		if neighbour.LocationID == "" {
			continue
		}

		// Strictly before or strictly after only; overlap is not this
		// check's concern.
		var gap time.Duration
		var origin, destination string
		switch {
		case !neighbour.EndAt.After(appt.StartAt):
			gap = appt.StartAt.Sub(neighbour.EndAt)
			origin, destination = neighbour.LocationID, appt.LocationID
		case !appt.EndAt.After(neighbour.StartAt):
			gap = neighbour.StartAt.Sub(appt.EndAt)
			origin, destination = appt.LocationID, neighbour.LocationID
		default:
			continue
		}

		originLoc, err := v.locationName(ctx, origin, location)
		if err != nil {
			return err
		}
		destLoc, err := v.locationName(ctx, destination, location)
		if err != nil {
			return err
		}
		if originLoc == "" || destLoc == "" {
			continue
		}

		drive, ok, err := v.router.RouteDuration(ctx, originLoc, destLoc)
		if err != nil {
			return fmt.Errorf("route %s to %s: %w", originLoc, destLoc, err)
		}
		if !ok {
			// No route data; give the booking the benefit of the doubt.
			continue
		}

		required := drive + buffer
		if gap < required {
			v.logger.Info().
				Str("tenant", appt.TenantID).
				Str("adjacent", neighbour.Title).
				Dur("required", required).
				Dur("available", gap).
				Msg("travel conflict")
			return &TravelConflictError{
				AdjacentTitle:    neighbour.Title,
				RequiredMinutes:  int(required.Minutes()),
				AvailableMinutes: int(gap.Minutes()),
			}
		}
	}
	return nil
}

func (v *TravelValidator) locationName(ctx context.Context, id string, known *models.Location) (string, error) {
	if known != nil && known.ID == id {
		return known.Name, nil
	}
	loc, err := v.locations.GetLocation(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load location %s: %w", id, err)
	}
	return loc.Name, nil
}
