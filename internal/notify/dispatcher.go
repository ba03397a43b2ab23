package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"apertura/internal/events"
	"apertura/internal/metrics"
	"apertura/internal/models"
)

// CrewDirectory resolves crew member ids to contact records.
type CrewDirectory interface {
	GetCrewMember(ctx context.Context, id string) (*models.CrewMember, error)
}

// DispatcherConfig controls delivery behaviour.
type DispatcherConfig struct {
	// RatePerSecond limits outgoing sends. Default: 20.
	RatePerSecond float64
	// Burst is the limiter's bucket size. Default: 30.
	Burst int
	// QueueSize bounds the pending event queue. Default: 256.
	QueueSize int
	// SendTimeout bounds each individual delivery. Default: 10s.
	SendTimeout time.Duration
}

func (c *DispatcherConfig) defaults() {
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = 30
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
}

// Dispatcher consumes booking lifecycle events and fans them out as
// notifications. Every failure is caught, logged and counted; nothing ever
// propagates back to the booking path.
type Dispatcher struct {
	webhook  Notifier
	telegram Notifier
	crew     CrewDirectory
	limiter  *rate.Limiter
	config   DispatcherConfig
	logger   *zerolog.Logger

	queue   chan events.Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewDispatcher creates a dispatcher. Either notifier may be nil; the
// corresponding channel is then skipped.
func NewDispatcher(webhook, telegram Notifier, crew CrewDirectory, cfg DispatcherConfig, logger *zerolog.Logger) *Dispatcher {
	cfg.defaults()
	return &Dispatcher{
		webhook:  webhook,
		telegram: telegram,
		crew:     crew,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		config:   cfg,
		logger:   logger,
		queue:    make(chan events.Event, cfg.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// SubscribeTo registers the dispatcher on the bus for booking events.
// The handler only enqueues, so publishing never blocks on delivery.
func (d *Dispatcher) SubscribeTo(bus *events.EventBus) {
	handler := func(event events.Event) error {
		select {
		case d.queue <- event:
		default:
			d.logger.Warn().Str("type", event.Type).Msg("notification queue full, dropping event")
		}
		return nil
	}
	bus.Subscribe(events.TypeBookingCreated, handler)
	bus.Subscribe(events.TypeBookingUpdated, handler)
}

// Start begins the delivery loop.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.loop()

	d.logger.Info().
		Float64("rate_per_second", d.config.RatePerSecond).
		Msg("Notification dispatcher started")
}

// Stop drains the loop and waits for in-flight sends.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()

	d.logger.Info().Msg("Notification dispatcher stopped")
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			// Deliver whatever is already queued before exiting.
			for {
				select {
				case event := <-d.queue:
					d.handle(event)
				default:
					return
				}
			}
		case event := <-d.queue:
			d.handle(event)
		}
	}
}

func (d *Dispatcher) handle(event events.Event) {
	var appt models.Appointment
	if err := json.Unmarshal(event.Payload, &appt); err != nil {
		d.logger.Error().Err(err).Str("type", event.Type).Msg("bad event payload")
		return
	}

	// Block-outs have nobody to notify.
	if appt.IsBlockOut() {
		return
	}

	ctx := context.Background()
	for _, n := range d.buildNotifications(ctx, &appt) {
		d.deliver(ctx, n)
	}
}

func (d *Dispatcher) buildNotifications(ctx context.Context, appt *models.Appointment) []Notification {
	base := Notification{
		TenantID:      appt.TenantID,
		AppointmentID: appt.ID,
		Title:         appt.Title,
		StartAt:       appt.StartAt,
		EndAt:         appt.EndAt,
		TimeZone:      appt.TimeZone,
	}

	var out []Notification

	studio := base
	studio.Kind = KindNewBooking
	out = append(out, studio)

	if appt.ClientID != "" || appt.OTCEmail != "" {
		confirm := base
		confirm.Kind = KindConfirmation
		confirm.Email = appt.OTCEmail
		out = append(out, confirm)
	}

	for _, assignment := range appt.Crew {
		n := base
		n.Kind = KindAssignment
		n.Role = assignment.Role
		member, err := d.crew.GetCrewMember(ctx, assignment.CrewMemberID)
		if err != nil {
			d.logger.Warn().Err(err).
				Str("crew_member", assignment.CrewMemberID).
				Msg("crew member lookup failed, skipping alert")
			continue
		}
		n.CrewMemberName = member.Name
		n.Email = member.Email
		n.ChatID = member.ChatID
		out = append(out, n)
	}
	return out
}

// deliver sends one notification. Failure is logged and counted, never returned.
func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	if err := d.limiter.Wait(ctx); err != nil {
		return
	}

	notifier := d.webhook
	if n.ChatID != 0 && d.telegram != nil {
		notifier = d.telegram
	}
	if notifier == nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	if err := notifier.Send(sendCtx, n); err != nil {
		metrics.IncNotificationFailed(n.Kind)
		d.logger.Error().Err(err).
			Str("kind", n.Kind).
			Str("appointment", n.AppointmentID).
			Msg("notification failed")
	}
}
