package solar

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"apertura/internal/geo"
	"apertura/internal/models"
)

// Default arrival offsets before the solar instant.
const (
	DefaultSunriseArrival = 15 * time.Minute
	DefaultDuskArrival    = 25 * time.Minute
)

// Recommendation is a suggested arrival instant for a specialized shoot.
type Recommendation struct {
	Time  time.Time
	Label string
}

// Request describes one resolution: where, when and which solar event.
// A zero ArrivalOffset selects the default for the slot type.
type Request struct {
	Address       string
	Date          time.Time
	SlotType      string // models.SlotSunrise or models.SlotDusk
	TimeZone      string // IANA name; empty falls back to server-local parsing
	ArrivalOffset time.Duration
}

// Resolver turns an address and date into a recommended arrival time
// for a sunrise or dusk shoot.
type Resolver struct {
	geocoder geo.Geocoder
	events   EventSource
	logger   *zerolog.Logger
}

// NewResolver creates a resolver over the given providers.
func NewResolver(geocoder geo.Geocoder, events EventSource, logger *zerolog.Logger) *Resolver {
	return &Resolver{geocoder: geocoder, events: events, logger: logger}
}

// Resolve returns the recommended arrival instant, or nil when the address
// cannot be geocoded or the solar data is unavailable. A nil result means
// "cannot auto-place"; it is never an error.
func (r *Resolver) Resolve(ctx context.Context, req Request) *Recommendation {
	coords, err := r.geocoder.Geocode(ctx, req.Address)
	if err != nil || coords == nil {
		r.logger.Debug().Str("address", req.Address).Msg("geocode returned no result")
		return nil
	}

	events, err := r.events.Events(ctx, coords.Lat, coords.Lng, localDay(req.Date, req.TimeZone))
	if err != nil || events == nil {
		r.logger.Debug().
			Float64("lat", coords.Lat).Float64("lng", coords.Lng).
			Msg("no solar data for date")
		return nil
	}

	var raw string
	var offset time.Duration
	var label string
	switch req.SlotType {
	case models.SlotSunrise:
		raw, offset, label = events.Sunrise, DefaultSunriseArrival, "Sunrise"
	case models.SlotDusk:
		raw, offset, label = events.Sunset, DefaultDuskArrival, "Dusk"
	default:
		return nil
	}
	if req.ArrivalOffset > 0 {
		offset = req.ArrivalOffset
	}
	if raw == "" {
		return nil
	}

	instant, err := reinterpretWallClock(raw, req.TimeZone)
	if err != nil {
		r.logger.Debug().Err(err).Str("raw", raw).Msg("could not parse solar timestamp")
		return nil
	}

	arrival := instant.Add(-offset)
	return &Recommendation{
		Time:  arrival,
		Label: fmt.Sprintf("%s %s", label, formatInZone(instant, req.TimeZone)),
	}
}

// localDay shifts the instant into the target zone so the provider is asked
// for the booking's local calendar day. A UTC-rendered evening instant can
// already be the next morning in the target zone.
func localDay(date time.Time, timeZone string) time.Time {
	if timeZone == "" {
		return date
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return date
	}
	return date.In(loc)
}

// Wall-clock layouts the provider is known to emit.
var wallClockLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// reinterpretWallClock takes a provider timestamp that carries no UTC offset
// and pins it to the supplied IANA zone. The literal digits are first read as
// a UTC guess; formatting that guess back through the target zone shows how
// far off the guess is, and shifting by that discrepancy lands on the instant
// whose local wall clock in the target zone matches the provider string.
// A second pass covers dates where the shift itself crosses a DST boundary.
func reinterpretWallClock(raw, timeZone string) (time.Time, error) {
	if timeZone == "" {
		// Best-effort fallback: read the literal as server-local time.
		return parseWallClock(raw, time.Local)
	}

	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load zone %s: %w", timeZone, err)
	}

	guess, layout, err := parseWallClockUTC(raw)
	if err != nil {
		return time.Time{}, err
	}

	instant := guess
	for i := 0; i < 2; i++ {
		observed, err := time.Parse(layout, instant.In(loc).Format(layout))
		if err != nil {
			return time.Time{}, err
		}
		drift := observed.Sub(guess)
		if drift == 0 {
			break
		}
		instant = instant.Add(-drift)
	}
	return instant, nil
}

func parseWallClockUTC(raw string) (time.Time, string, error) {
	for _, layout := range wallClockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, layout, nil
		}
	}
	return time.Time{}, "", fmt.Errorf("unrecognized timestamp %q", raw)
}

func parseWallClock(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func formatInZone(t time.Time, timeZone string) string {
	if timeZone == "" {
		return t.Format("15:04")
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return t.Format("15:04")
	}
	return t.In(loc).Format("15:04")
}
