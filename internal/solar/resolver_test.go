package solar

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apertura/internal/geo"
	"apertura/internal/models"
)

type stubGeocoder struct {
	coords *geo.Coordinates
}

func (s *stubGeocoder) Geocode(ctx context.Context, address string) (*geo.Coordinates, error) {
	return s.coords, nil
}

type stubEvents struct {
	events *Events
}

func (s *stubEvents) Events(ctx context.Context, lat, lng float64, date time.Time) (*Events, error) {
	return s.events, nil
}

type recordingEvents struct {
	events *Events
	date   time.Time
}

func (s *recordingEvents) Events(ctx context.Context, lat, lng float64, date time.Time) (*Events, error) {
	s.date = date
	return s.events, nil
}

func newTestResolver(coords *geo.Coordinates, events *Events) *Resolver {
	logger := zerolog.New(io.Discard)
	return NewResolver(&stubGeocoder{coords: coords}, &stubEvents{events: events}, &logger)
}

func TestReinterpretWallClock(t *testing.T) {
	t.Run("reproduces the wall clock in the target zone", func(t *testing.T) {
		instant, err := reinterpretWallClock("2024-06-21T06:03", "Australia/Sydney")
		require.NoError(t, err)

		sydney, err := time.LoadLocation("Australia/Sydney")
		require.NoError(t, err)

		local := instant.In(sydney)
		assert.Equal(t, "2024-06-21", local.Format("2006-01-02"))
		assert.Equal(t, "06:03", local.Format("15:04"))
	})

	t.Run("handles half-hour offsets", func(t *testing.T) {
		instant, err := reinterpretWallClock("2024-03-05T18:30:00", "Asia/Kolkata")
		require.NoError(t, err)

		kolkata, err := time.LoadLocation("Asia/Kolkata")
		require.NoError(t, err)
		assert.Equal(t, "18:30", instant.In(kolkata).Format("15:04"))
	})

	t.Run("handles zones during DST", func(t *testing.T) {
		// Sydney is on AEDT (+11) in December.
		instant, err := reinterpretWallClock("2024-12-21T20:05", "Australia/Sydney")
		require.NoError(t, err)

		sydney, err := time.LoadLocation("Australia/Sydney")
		require.NoError(t, err)
		local := instant.In(sydney)
		assert.Equal(t, "2024-12-21 20:05", local.Format("2006-01-02 15:04"))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := reinterpretWallClock("yesterday-ish", "Australia/Sydney")
		assert.Error(t, err)
	})

	t.Run("unknown zone errors", func(t *testing.T) {
		_, err := reinterpretWallClock("2024-06-21T06:03", "Mars/Olympus_Mons")
		assert.Error(t, err)
	})
}

func TestResolver_Resolve(t *testing.T) {
	date := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)

	t.Run("sunrise arrival is 15 minutes early", func(t *testing.T) {
		r := newTestResolver(
			&geo.Coordinates{Lat: -33.86, Lng: 151.2},
			&Events{Sunrise: "2024-06-21T07:00", Sunset: "2024-06-21T16:53"},
		)

		rec := r.Resolve(context.Background(), Request{
			Address:  "12 Harbour St, Sydney",
			Date:     date,
			SlotType: models.SlotSunrise,
			TimeZone: "Australia/Sydney",
		})
		require.NotNil(t, rec)

		sydney, _ := time.LoadLocation("Australia/Sydney")
		assert.Equal(t, "06:45", rec.Time.In(sydney).Format("15:04"))
		assert.Contains(t, rec.Label, "Sunrise")
	})

	t.Run("dusk arrival is 25 minutes early", func(t *testing.T) {
		r := newTestResolver(
			&geo.Coordinates{Lat: -33.86, Lng: 151.2},
			&Events{Sunrise: "2024-06-21T07:00", Sunset: "2024-06-21T16:53"},
		)

		rec := r.Resolve(context.Background(), Request{
			Address:  "12 Harbour St, Sydney",
			Date:     date,
			SlotType: models.SlotDusk,
			TimeZone: "Australia/Sydney",
		})
		require.NotNil(t, rec)

		sydney, _ := time.LoadLocation("Australia/Sydney")
		assert.Equal(t, "16:28", rec.Time.In(sydney).Format("15:04"))
	})

	t.Run("custom arrival offset wins", func(t *testing.T) {
		r := newTestResolver(
			&geo.Coordinates{Lat: -33.86, Lng: 151.2},
			&Events{Sunset: "2024-06-21T16:53"},
		)

		rec := r.Resolve(context.Background(), Request{
			Address:       "12 Harbour St, Sydney",
			Date:          date,
			SlotType:      models.SlotDusk,
			TimeZone:      "Australia/Sydney",
			ArrivalOffset: time.Hour,
		})
		require.NotNil(t, rec)

		sydney, _ := time.LoadLocation("Australia/Sydney")
		assert.Equal(t, "15:53", rec.Time.In(sydney).Format("15:04"))
	})

	t.Run("provider is asked for the local calendar day", func(t *testing.T) {
		// 22:00 UTC on the 21st is already the morning of the 22nd in Sydney.
		source := &recordingEvents{events: &Events{Sunrise: "2024-06-22T07:00"}}
		logger := zerolog.New(io.Discard)
		r := NewResolver(&stubGeocoder{coords: &geo.Coordinates{Lat: -33.86, Lng: 151.2}}, source, &logger)

		rec := r.Resolve(context.Background(), Request{
			Address:  "12 Harbour St, Sydney",
			Date:     time.Date(2024, 6, 21, 22, 0, 0, 0, time.UTC),
			SlotType: models.SlotSunrise,
			TimeZone: "Australia/Sydney",
		})
		require.NotNil(t, rec)

		assert.Equal(t, "2024-06-22", source.date.Format("2006-01-02"))

		sydney, _ := time.LoadLocation("Australia/Sydney")
		assert.Equal(t, "2024-06-22 06:45", rec.Time.In(sydney).Format("2006-01-02 15:04"))
	})

	t.Run("nil on geocode miss", func(t *testing.T) {
		r := newTestResolver(nil, &Events{Sunrise: "2024-06-21T07:00"})
		rec := r.Resolve(context.Background(), Request{
			Address:  "nowhere in particular",
			Date:     date,
			SlotType: models.SlotSunrise,
			TimeZone: "Australia/Sydney",
		})
		assert.Nil(t, rec)
	})

	t.Run("nil on missing solar data", func(t *testing.T) {
		r := newTestResolver(&geo.Coordinates{Lat: 1, Lng: 1}, nil)
		rec := r.Resolve(context.Background(), Request{
			Address:  "12 Harbour St, Sydney",
			Date:     date,
			SlotType: models.SlotDusk,
			TimeZone: "Australia/Sydney",
		})
		assert.Nil(t, rec)
	})

	t.Run("nil for standard slot type", func(t *testing.T) {
		r := newTestResolver(&geo.Coordinates{Lat: 1, Lng: 1}, &Events{Sunrise: "2024-06-21T07:00"})
		rec := r.Resolve(context.Background(), Request{
			Address:  "12 Harbour St, Sydney",
			Date:     date,
			SlotType: "",
			TimeZone: "Australia/Sydney",
		})
		assert.Nil(t, rec)
	})
}
