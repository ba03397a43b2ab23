package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"apertura/internal/config"
	"apertura/internal/models"
	"apertura/internal/solar"
)

// Decomposer splits a mixed-service booking request into a primary request
// with the standard services and a secondary request carrying the
// specialized (sunrise/dusk) ones.
type Decomposer struct {
	resolver *solar.Resolver
	logger   *zerolog.Logger
}

// NewDecomposer creates a decomposer over the solar resolver.
func NewDecomposer(resolver *solar.Resolver, logger *zerolog.Logger) *Decomposer {
	return &Decomposer{resolver: resolver, logger: logger}
}

// Decompose partitions the request's services by slot type. When the request
// is brand new and mixes standard with specialized services, the returned
// primary keeps only the standard ones and a secondary request is synthesized
// for the specialized ones. The secondary carries a single slot type, so it
// can never be split again. Edits and single-partition requests pass through
// unchanged with a nil secondary.
func (d *Decomposer) Decompose(ctx context.Context, tenant *config.TenantConfig, req Request, services []models.Service) (Request, *Request) {
	if req.IsEdit() {
		return req, nil
	}

	var standard, specialized []models.Service
	for _, svc := range services {
		if svc.IsSpecialized() {
			specialized = append(specialized, svc)
		} else {
			standard = append(standard, svc)
		}
	}
	if len(standard) == 0 || len(specialized) == 0 {
		return req, nil
	}

	slotType := specialized[0].SlotType

	primary := req
	primary.ServiceIDs = serviceIDs(standard)

	secondary := req
	secondary.Title = fmt.Sprintf("%s (%s)", req.Title, slotType)
	secondary.ServiceIDs = serviceIDs(specialized)
	secondary.SlotType = slotType
	secondary.Repeat = ""

	secondary.StartAt = d.placeSecondary(ctx, tenant, req, slotType)
	secondary.EndAt = secondary.StartAt.Add(models.TotalDuration(specialized))

	return primary, &secondary
}

// placeSecondary asks the solar resolver for the recommended arrival time.
// Resolution failure is soft: the secondary falls back to the originally
// requested start.
func (d *Decomposer) placeSecondary(ctx context.Context, tenant *config.TenantConfig, req Request, slotType string) time.Time {
	var offset time.Duration
	switch slotType {
	case models.SlotSunrise:
		offset = tenant.SunriseArrival()
	case models.SlotDusk:
		offset = tenant.DuskArrival()
	}

	rec := d.resolver.Resolve(ctx, solar.Request{
		Address:       req.Address,
		Date:          req.StartAt,
		SlotType:      slotType,
		TimeZone:      req.TimeZone,
		ArrivalOffset: offset,
	})
	if rec == nil {
		d.logger.Debug().
			Str("address", req.Address).
			Str("slot_type", slotType).
			Msg("solar placement unavailable, keeping requested start")
		return req.StartAt
	}

	d.logger.Debug().
		Str("slot_type", slotType).
		Time("arrival", rec.Time).
		Str("label", rec.Label).
		Msg("secondary appointment auto-placed")
	return rec.Time
}

func serviceIDs(services []models.Service) []string {
	ids := make([]string, len(services))
	for i, svc := range services {
		ids[i] = svc.ID
	}
	return ids
}
