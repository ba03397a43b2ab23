package scheduling

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"apertura/internal/config"
	"apertura/internal/database"
	"apertura/internal/events"
	"apertura/internal/geo"
	"apertura/internal/models"
	"apertura/internal/solar"
)

type mockRepo struct {
	mock.Mock
	saved []*models.Appointment
}

func (m *mockRepo) SaveAppointment(ctx context.Context, appt *models.Appointment) error {
	m.saved = append(m.saved, appt)
	return m.Called(ctx, appt).Error(0)
}

func (m *mockRepo) GetLocationByName(ctx context.Context, tenantID, name string) (*models.Location, error) {
	args := m.Called(ctx, tenantID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Location), args.Error(1)
}

func (m *mockRepo) CreateLocation(ctx context.Context, loc *models.Location) error {
	return m.Called(ctx, loc).Error(0)
}

func (m *mockRepo) GetServicesByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Service, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Service), args.Error(1)
}

type orchFixture struct {
	repo      *mockRepo
	counter   *mockCounter
	calendar  *mockCalendar
	locations *mockLocations
	router    *mockRouter
	orch      *Orchestrator
}

func newOrchFixture(t *testing.T, tenant config.TenantConfig, solarEvents *solar.Events) *orchFixture {
	t.Helper()
	logger := zerolog.New(io.Discard)

	repo := new(mockRepo)
	counter := new(mockCounter)
	calendar := new(mockCalendar)
	locations := new(mockLocations)
	router := new(mockRouter)

	geocoder := &stubGeocoder{coords: &geo.Coordinates{Lat: -33.86, Lng: 151.2}}
	resolver := solar.NewResolver(geocoder, &stubSolarEvents{events: solarEvents}, &logger)
	decomposer := NewDecomposer(resolver, &logger)
	quota := NewQuotaEnforcer(counter, &logger)
	travel := NewTravelValidator(calendar, locations, router, &logger)

	registry := config.NewTenantRegistry(&config.TenantsConfig{Tenants: []config.TenantConfig{tenant}})
	bus := events.NewEventBus()

	return &orchFixture{
		repo:      repo,
		counter:   counter,
		calendar:  calendar,
		locations: locations,
		router:    router,
		orch:      NewOrchestrator(repo, registry, geocoder, decomposer, quota, travel, bus, &logger),
	}
}

func specializedTenant() config.TenantConfig {
	return config.TenantConfig{
		ID:                    "studio-1",
		SpecializedScheduling: true,
		DefaultTimeZone:       "Australia/Sydney",
		Days:                  openAllWeek(nil),
	}
}

var orchestratorServices = []models.Service{
	{ID: "svc-std", TenantID: "studio-1", Name: "Standard photos", DurationMinutes: 60},
	{ID: "svc-dusk", TenantID: "studio-1", Name: "Dusk photos", DurationMinutes: 30, SlotType: models.SlotDusk},
}

func serviceSubset(ids []string) []models.Service {
	var out []models.Service
	for _, id := range ids {
		for _, svc := range orchestratorServices {
			if svc.ID == id {
				out = append(out, svc)
			}
		}
	}
	return out
}

func clientRequest() Request {
	return Request{
		Title:      "45 Seaview Tce",
		ClientID:   "client-1",
		Address:    "45 Seaview Tce",
		StartAt:    time.Date(2024, 6, 21, 2, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2024, 6, 21, 3, 30, 0, 0, time.UTC),
		TimeZone:   "Australia/Sydney",
		Status:     models.StatusRequested,
		ServiceIDs: []string{"svc-std", "svc-dusk"},
	}
}

func TestOrchestrator_ClientIdentityGuard(t *testing.T) {
	f := newOrchFixture(t, specializedTenant(), nil)
	ctx := context.Background()

	req := clientRequest()
	req.ClientID = ""
	req.OTCName = "   "

	// Calling twice must leave zero side effects both times.
	for i := 0; i < 2; i++ {
		_, err := f.orch.Upsert(ctx, "studio-1", req)
		require.Error(t, err)
		_, ok := IsValidationError(err)
		assert.True(t, ok)
	}

	f.repo.AssertNotCalled(t, "SaveAppointment")
	f.repo.AssertNotCalled(t, "CreateLocation")
}

func TestOrchestrator_UnknownTenant(t *testing.T) {
	f := newOrchFixture(t, specializedTenant(), nil)

	_, err := f.orch.Upsert(context.Background(), "nobody", clientRequest())
	require.Error(t, err)
	_, ok := IsValidationError(err)
	assert.True(t, ok)
}

func TestOrchestrator_MixedRequestSplits(t *testing.T) {
	f := newOrchFixture(t, specializedTenant(), &solar.Events{Sunset: "2024-06-21T16:53"})
	ctx := context.Background()

	f.repo.On("GetServicesByIDs", ctx, "studio-1", []string{"svc-std", "svc-dusk"}).
		Return(orchestratorServices, nil)
	f.repo.On("GetServicesByIDs", ctx, "studio-1", []string{"svc-std"}).
		Return(serviceSubset([]string{"svc-std"}), nil)
	f.repo.On("GetServicesByIDs", ctx, "studio-1", []string{"svc-dusk"}).
		Return(serviceSubset([]string{"svc-dusk"}), nil)
	f.repo.On("GetLocationByName", ctx, "studio-1", "45 Seaview Tce").
		Return(nil, database.ErrNotFound).Once()
	f.repo.On("CreateLocation", ctx, mock.Anything).Return(nil).Once()
	f.repo.On("SaveAppointment", ctx, mock.Anything).Return(nil).Times(2)
	f.counter.On("CountSlotAppointments", ctx, "studio-1", mock.Anything, mock.Anything, models.SlotDusk, mock.Anything).
		Return(0, nil).Once()
	f.calendar.On("ListByCrewBetween", ctx, "studio-1", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Appointment(nil), nil).Maybe()

	appt, err := f.orch.Upsert(ctx, "studio-1", clientRequest())
	require.NoError(t, err)
	require.Len(t, f.repo.saved, 2)

	primary, secondary := f.repo.saved[0], f.repo.saved[1]
	assert.Equal(t, appt.ID, primary.ID)
	assert.Equal(t, []string{"svc-std"}, primary.ServiceIDs)
	assert.Empty(t, primary.SlotType)
	// End recomputed from the standard service's 60 minutes.
	assert.Equal(t, time.Hour, primary.EndAt.Sub(primary.StartAt))

	assert.Equal(t, []string{"svc-dusk"}, secondary.ServiceIDs)
	assert.Equal(t, models.SlotDusk, secondary.SlotType)
	assert.NotEqual(t, primary.ID, secondary.ID)

	sydney, _ := time.LoadLocation("Australia/Sydney")
	assert.Equal(t, "16:28", secondary.StartAt.In(sydney).Format("15:04"))
	assert.Equal(t, 30*time.Minute, secondary.EndAt.Sub(secondary.StartAt))

	f.repo.AssertExpectations(t)
}

func TestOrchestrator_SplitFallsBackWithoutSolarData(t *testing.T) {
	f := newOrchFixture(t, specializedTenant(), nil)
	ctx := context.Background()

	req := clientRequest()
	f.repo.On("GetServicesByIDs", ctx, "studio-1", []string{"svc-std", "svc-dusk"}).
		Return(orchestratorServices, nil).Once()
	f.repo.On("GetServicesByIDs", ctx, "studio-1", []string{"svc-std"}).
		Return(serviceSubset([]string{"svc-std"}), nil)
	f.repo.On("GetServicesByIDs", ctx, "studio-1", []string{"svc-dusk"}).
		Return(serviceSubset([]string{"svc-dusk"}), nil)
	f.repo.On("GetLocationByName", ctx, "studio-1", "45 Seaview Tce").
		Return(&models.Location{ID: "loc-1", Name: "45 Seaview Tce"}, nil)
	f.repo.On("SaveAppointment", ctx, mock.Anything).Return(nil).Times(2)
	f.counter.On("CountSlotAppointments", ctx, "studio-1", mock.Anything, mock.Anything, models.SlotDusk, mock.Anything).
		Return(0, nil).Once()
	f.calendar.On("ListByCrewBetween", ctx, "studio-1", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Appointment(nil), nil).Maybe()

	_, err := f.orch.Upsert(ctx, "studio-1", req)
	require.NoError(t, err)
	require.Len(t, f.repo.saved, 2)

	secondary := f.repo.saved[1]
	assert.True(t, secondary.StartAt.Equal(req.StartAt), "secondary falls back to the requested start")
}

func TestOrchestrator_QuotaRejectionBeforeWrite(t *testing.T) {
	f := newOrchFixture(t, specializedTenant(), &solar.Events{Sunset: "2024-06-21T16:53"})
	ctx := context.Background()

	req := clientRequest()
	req.ServiceIDs = []string{"svc-dusk"}

	f.repo.On("GetServicesByIDs", ctx, "studio-1", []string{"svc-dusk"}).
		Return(serviceSubset([]string{"svc-dusk"}), nil)
	f.repo.On("GetLocationByName", ctx, "studio-1", "45 Seaview Tce").
		Return(&models.Location{ID: "loc-1", Name: "45 Seaview Tce"}, nil)
	f.counter.On("CountSlotAppointments", ctx, "studio-1", mock.Anything, mock.Anything, models.SlotDusk, mock.Anything).
		Return(1, nil).Once()

	_, err := f.orch.Upsert(ctx, "studio-1", req)
	require.Error(t, err)
	_, ok := IsQuotaExceeded(err)
	assert.True(t, ok)

	f.repo.AssertNotCalled(t, "SaveAppointment")
}

func TestOrchestrator_TravelConflictBeforeWrite(t *testing.T) {
	f := newOrchFixture(t, specializedTenant(), nil)
	ctx := context.Background()

	req := clientRequest()
	req.ServiceIDs = []string{"svc-std"}
	req.CrewMemberIDs = []string{"cm-x"}

	neighbour := models.Appointment{
		ID:         "appt-prior",
		TenantID:   "studio-1",
		Title:      "Morning shoot",
		StartAt:    time.Date(2024, 6, 20, 22, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2024, 6, 21, 1, 55, 0, 0, time.UTC),
		LocationID: "loc-a",
		Crew:       []models.CrewAssignment{{CrewMemberID: "cm-x"}},
	}

	f.repo.On("GetServicesByIDs", ctx, "studio-1", []string{"svc-std"}).
		Return(serviceSubset([]string{"svc-std"}), nil)
	f.repo.On("GetLocationByName", ctx, "studio-1", "45 Seaview Tce").
		Return(&models.Location{ID: "loc-1", Name: "45 Seaview Tce"}, nil)
	f.locations.On("GetLocation", ctx, "loc-1").
		Return(&models.Location{ID: "loc-1", Name: "45 Seaview Tce"}, nil)
	f.locations.On("GetLocation", ctx, "loc-a").
		Return(&models.Location{ID: "loc-a", Name: "12 Harbour Rd"}, nil)
	f.calendar.On("ListByCrewBetween", ctx, "studio-1", mock.Anything, mock.Anything, []string{"cm-x"}, mock.Anything).
		Return([]models.Appointment{neighbour}, nil)
	f.router.On("RouteDuration", ctx, "12 Harbour Rd", "45 Seaview Tce").
		Return(30*time.Minute, true, nil)

	_, err := f.orch.Upsert(ctx, "studio-1", req)
	require.Error(t, err)
	tc, ok := IsTravelConflict(err)
	require.True(t, ok)
	assert.Equal(t, 45, tc.RequiredMinutes)
	assert.Equal(t, 5, tc.AvailableMinutes)

	f.repo.AssertNotCalled(t, "SaveAppointment")
}

func TestOrchestrator_FlagOffSkipsEngineChecks(t *testing.T) {
	tenant := specializedTenant()
	tenant.SpecializedScheduling = false
	f := newOrchFixture(t, tenant, &solar.Events{Sunset: "2024-06-21T16:53"})
	ctx := context.Background()

	req := clientRequest()
	f.repo.On("GetServicesByIDs", ctx, "studio-1", []string{"svc-std", "svc-dusk"}).
		Return(orchestratorServices, nil)
	f.repo.On("GetLocationByName", ctx, "studio-1", "45 Seaview Tce").
		Return(&models.Location{ID: "loc-1", Name: "45 Seaview Tce"}, nil)
	f.repo.On("SaveAppointment", ctx, mock.Anything).Return(nil).Once()

	appt, err := f.orch.Upsert(ctx, "studio-1", req)
	require.NoError(t, err)

	// No split, no recompute, no quota or travel checks.
	require.Len(t, f.repo.saved, 1)
	assert.Equal(t, []string{"svc-std", "svc-dusk"}, appt.ServiceIDs)
	assert.True(t, appt.EndAt.Equal(req.EndAt))
	f.counter.AssertNotCalled(t, "CountSlotAppointments")
	f.calendar.AssertNotCalled(t, "ListByCrewBetween")
}

func TestOrchestrator_BlockOutRecurrence(t *testing.T) {
	f := newOrchFixture(t, specializedTenant(), nil)
	ctx := context.Background()

	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	req := Request{
		Title:    "Studio closed",
		StartAt:  start,
		EndAt:    start.Add(2 * time.Hour),
		TimeZone: "UTC",
		Status:   models.StatusBlocked,
		Repeat:   models.RepeatWeekly6M,
	}

	f.repo.On("SaveAppointment", ctx, mock.Anything).Return(nil).Times(26)

	appt, err := f.orch.Upsert(ctx, "studio-1", req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, appt.Status)

	// Base plus 25 weekly siblings, each shifted by 7*k days.
	require.Len(t, f.repo.saved, 26)
	for i, saved := range f.repo.saved[1:] {
		expected := start.AddDate(0, 0, 7*(i+1))
		assert.True(t, saved.StartAt.Equal(expected), "occurrence %d", i+1)
		assert.Equal(t, 2*time.Hour, saved.EndAt.Sub(saved.StartAt))
	}
	f.repo.AssertExpectations(t)

	// No client guard applies to block-outs, and nothing was linked.
	f.repo.AssertNotCalled(t, "GetLocationByName")
	f.repo.AssertNotCalled(t, "GetServicesByIDs")
}

func TestOrchestrator_BlockOutEditDoesNotReexpand(t *testing.T) {
	f := newOrchFixture(t, specializedTenant(), nil)
	ctx := context.Background()

	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	req := Request{
		ID:      "blk-1",
		Title:   "Studio closed",
		StartAt: start,
		EndAt:   start.Add(time.Hour),
		Status:  models.StatusBlocked,
		Repeat:  models.RepeatWeekly6M,
	}

	f.repo.On("SaveAppointment", ctx, mock.Anything).Return(nil).Once()

	_, err := f.orch.Upsert(ctx, "studio-1", req)
	require.NoError(t, err)
	require.Len(t, f.repo.saved, 1)
}
