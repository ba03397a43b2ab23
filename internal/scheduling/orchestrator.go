package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"apertura/internal/config"
	"apertura/internal/database"
	"apertura/internal/events"
	"apertura/internal/geo"
	"apertura/internal/metrics"
	"apertura/internal/models"
)

// Repository is the persistence surface the orchestrator needs.
type Repository interface {
	SaveAppointment(ctx context.Context, appt *models.Appointment) error
	GetLocationByName(ctx context.Context, tenantID, name string) (*models.Location, error)
	CreateLocation(ctx context.Context, loc *models.Location) error
	GetServicesByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Service, error)
}

// TenantSource resolves tenant operating configuration.
type TenantSource interface {
	Tenant(id string) *config.TenantConfig
}

// Orchestrator is the single entry point for booking submissions. It links
// related records, runs the validators, persists the appointment (and any
// split-off secondary), expands block-out recurrences and publishes the
// lifecycle events that drive notifications.
//
// There is no lock spanning the validate-and-persist sequence: two
// concurrent requests for the same tenant and day can both pass the quota or
// travel check before either persists. This is a known window, accepted to
// match the engine's reference behaviour.
type Orchestrator struct {
	repo       Repository
	tenants    TenantSource
	geocoder   geo.Geocoder
	decomposer *Decomposer
	quota      *QuotaEnforcer
	travel     *TravelValidator
	bus        *events.EventBus
	logger     *zerolog.Logger
}

// NewOrchestrator wires the engine together.
func NewOrchestrator(
	repo Repository,
	tenants TenantSource,
	geocoder geo.Geocoder,
	decomposer *Decomposer,
	quota *QuotaEnforcer,
	travel *TravelValidator,
	bus *events.EventBus,
	logger *zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		tenants:    tenants,
		geocoder:   geocoder,
		decomposer: decomposer,
		quota:      quota,
		travel:     travel,
		bus:        bus,
		logger:     logger,
	}
}

// Upsert creates or updates the appointment described by the request.
// All rejection-class errors are raised before anything is written.
func (o *Orchestrator) Upsert(ctx context.Context, tenantID string, req Request) (*models.Appointment, error) {
	tenant := o.tenants.Tenant(tenantID)
	if tenant == nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("unknown tenant %q", tenantID)}
	}

	if req.IsBlockOut() {
		return o.upsertBlockOut(ctx, tenant, req)
	}

	if !req.HasClientIdentity() {
		return nil, &ValidationError{Msg: "appointment needs a client or a one-time client name"}
	}

	services, err := o.loadServices(ctx, tenant.ID, req.ServiceIDs)
	if err != nil {
		return nil, err
	}

	locationID, err := o.resolveLocation(ctx, tenant.ID, req.Address)
	if err != nil {
		return nil, err
	}

	primary := req
	var secondary *Request
	if tenant.SpecializedScheduling {
		primary, secondary = o.decomposer.Decompose(ctx, tenant, req, services)
		if secondary != nil {
			metrics.IncBookingSplit()
			o.logger.Info().
				Str("tenant", tenant.ID).
				Str("slot_type", secondary.SlotType).
				Msg("mixed booking split into primary and secondary")
		}
	}

	appt, err := o.upsertOne(ctx, tenant, primary, locationID)
	if err != nil {
		return nil, err
	}

	// The secondary carries a single slot type and can never split again,
	// so this stays an explicit two-step pipeline rather than recursion.
	if secondary != nil {
		if _, err := o.upsertOne(ctx, tenant, *secondary, locationID); err != nil {
			// The primary is already committed; the secondary is
			// reconstructable from the request, so surface the failure.
			return appt, fmt.Errorf("persist secondary appointment: %w", err)
		}
	}

	return appt, nil
}

// upsertOne validates and persists a single appointment, then publishes its
// lifecycle event.
func (o *Orchestrator) upsertOne(ctx context.Context, tenant *config.TenantConfig, req Request, locationID string) (*models.Appointment, error) {
	services, err := o.loadServices(ctx, tenant.ID, req.ServiceIDs)
	if err != nil {
		return nil, err
	}

	loc := o.timeZone(tenant, req.TimeZone)
	appt := o.buildAppointment(tenant, req, locationID, services)

	if tenant.SpecializedScheduling {
		if len(services) > 0 {
			appt.EndAt = appt.StartAt.Add(models.TotalDuration(services))
		}

		if err := o.quota.Check(ctx, tenant, appt.StartAt, loc, appt.SlotType, appt.ID); err != nil {
			if qe, ok := IsQuotaExceeded(err); ok {
				metrics.IncQuotaRejected(qe.SlotType)
			}
			return nil, err
		}

		if err := o.travel.Validate(ctx, tenant, appt, loc); err != nil {
			if _, ok := IsTravelConflict(err); ok {
				metrics.IncTravelConflict()
			}
			return nil, err
		}
	}

	if err := o.repo.SaveAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("save appointment: %w", err)
	}
	metrics.IncBookingCreated(appt.Status)

	o.publish(req.IsEdit(), appt)
	return appt, nil
}

func (o *Orchestrator) upsertBlockOut(ctx context.Context, tenant *config.TenantConfig, req Request) (*models.Appointment, error) {
	// Block-outs carry no client, location, agent or service linkage.
	appt := &models.Appointment{
		ID:       req.ID,
		TenantID: tenant.ID,
		Title:    req.Title,
		StartAt:  req.StartAt,
		EndAt:    req.EndAt,
		TimeZone: o.timeZoneName(tenant, req.TimeZone),
		Status:   models.StatusBlocked,
		Notes:    req.Notes,
		Repeat:   req.Repeat,
	}
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}

	if err := o.repo.SaveAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("save block-out: %w", err)
	}
	metrics.IncBookingCreated(appt.Status)

	if req.Repeat != "" && !req.IsEdit() {
		occurrences := Expand(appt, req.Repeat)
		for i := range occurrences {
			if err := o.repo.SaveAppointment(ctx, &occurrences[i]); err != nil {
				return appt, fmt.Errorf("save occurrence %d of %s: %w", i+1, req.Repeat, err)
			}
		}
		if len(occurrences) > 0 {
			metrics.AddRecurrenceExpanded(req.Repeat, len(occurrences))
			o.logger.Info().
				Str("tenant", tenant.ID).
				Str("cadence", req.Repeat).
				Int("occurrences", len(occurrences)+1).
				Msg("block-out series expanded")
		}
	}

	return appt, nil
}

func (o *Orchestrator) buildAppointment(tenant *config.TenantConfig, req Request, locationID string, services []models.Service) *models.Appointment {
	appt := &models.Appointment{
		ID:            req.ID,
		TenantID:      tenant.ID,
		Title:         req.Title,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		TimeZone:      o.timeZoneName(tenant, req.TimeZone),
		Status:        req.Status,
		SlotType:      req.EffectiveSlotType(services),
		LocationID:    locationID,
		ClientID:      req.ClientID,
		OTCName:       req.OTCName,
		OTCEmail:      req.OTCEmail,
		OTCPhone:      req.OTCPhone,
		OTCNotes:      req.OTCNotes,
		AgentID:       req.AgentID,
		ServiceIDs:    req.ServiceIDs,
		Notes:         req.Notes,
		PropertyState: req.PropertyState,
		Repeat:        req.Repeat,
	}
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = models.StatusRequested
	}
	for _, id := range req.CrewMemberIDs {
		appt.Crew = append(appt.Crew, models.CrewAssignment{CrewMemberID: id})
	}
	return appt
}

// resolveLocation finds the tenant's location by exact name, creating it on
// first use. Geocoding failure is soft: the location is still created, just
// without coordinates.
func (o *Orchestrator) resolveLocation(ctx context.Context, tenantID, address string) (string, error) {
	if address == "" {
		return "", nil
	}

	existing, err := o.repo.GetLocationByName(ctx, tenantID, address)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", fmt.Errorf("look up location: %w", err)
	}

	loc := &models.Location{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Name:     address,
	}
	if coords, err := o.geocoder.Geocode(ctx, address); err == nil && coords != nil {
		loc.Latitude = coords.Lat
		loc.Longitude = coords.Lng
	}
	if err := o.repo.CreateLocation(ctx, loc); err != nil {
		return "", fmt.Errorf("create location: %w", err)
	}

	o.logger.Debug().Str("tenant", tenantID).Str("name", address).Msg("location created on first use")
	return loc.ID, nil
}

func (o *Orchestrator) loadServices(ctx context.Context, tenantID string, ids []string) ([]models.Service, error) {
	services, err := o.repo.GetServicesByIDs(ctx, tenantID, ids)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &ValidationError{Msg: "request references an unknown service"}
	}
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	return services, nil
}

func (o *Orchestrator) timeZone(tenant *config.TenantConfig, name string) *time.Location {
	if name == "" {
		name = tenant.DefaultTimeZone
	}
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		o.logger.Warn().Str("zone", name).Msg("unknown time zone, using UTC")
		return time.UTC
	}
	return loc
}

func (o *Orchestrator) timeZoneName(tenant *config.TenantConfig, name string) string {
	if name != "" {
		return name
	}
	return tenant.DefaultTimeZone
}

// publish emits the lifecycle event that drives notifications. Failures here
// never surface: notification delivery is fire-and-forget by contract.
func (o *Orchestrator) publish(isEdit bool, appt *models.Appointment) {
	eventType := events.TypeBookingCreated
	if isEdit {
		eventType = events.TypeBookingUpdated
	}
	if err := o.bus.PublishJSON(eventType, appt); err != nil {
		o.logger.Error().Err(err).Str("appointment", appt.ID).Msg("failed to publish booking event")
	}
}
