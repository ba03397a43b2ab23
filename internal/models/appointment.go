package models

import (
	"time"
)

// Appointment statuses.
const (
	StatusRequested = "requested"
	StatusPencilled = "pencilled"
	StatusApproved  = "approved"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
	StatusBlocked   = "blocked"
)

// Slot types for time-of-day-constrained shoots.
const (
	SlotSunrise = "sunrise"
	SlotDusk    = "dusk"
)

// Repeat cadences for block-out appointments.
const (
	RepeatDaily     = "daily"
	RepeatWeekly    = "weekly"
	RepeatWeekly6M  = "weekly_6m"
	RepeatWeekly1Y  = "weekly_1y"
	RepeatMonthly6M = "monthly_6m"
	RepeatMonthly1Y = "monthly_1y"
)

// CrewAssignment links a crew member to an appointment with a role.
type CrewAssignment struct {
	CrewMemberID string `json:"crew_member_id"`
	Role         string `json:"role"`
}

// Appointment represents a scheduled booking for a tenant.
// A blocked appointment carries no client, location, agent or service linkage.
type Appointment struct {
	ID            string           `json:"id"`
	TenantID      string           `json:"tenant_id"`
	Title         string           `json:"title"`
	StartAt       time.Time        `json:"start_at"`
	EndAt         time.Time        `json:"end_at"`
	TimeZone      string           `json:"time_zone"` // IANA name, e.g. "Australia/Sydney"
	Status        string           `json:"status"`
	SlotType      string           `json:"slot_type,omitempty"` // sunrise, dusk or empty
	IsPlaceholder bool             `json:"is_placeholder"`
	LocationID    string           `json:"location_id,omitempty"`
	ClientID      string           `json:"client_id,omitempty"`
	OTCName       string           `json:"otc_name,omitempty"`
	OTCEmail      string           `json:"otc_email,omitempty"`
	OTCPhone      string           `json:"otc_phone,omitempty"`
	OTCNotes      string           `json:"otc_notes,omitempty"`
	AgentID       string           `json:"agent_id,omitempty"`
	ServiceIDs    []string         `json:"service_ids,omitempty"`
	Crew          []CrewAssignment `json:"crew,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	PropertyState string           `json:"property_state,omitempty"`
	Repeat        string           `json:"repeat,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsBlockOut reports whether the appointment is a non-client block-out.
func (a *Appointment) IsBlockOut() bool {
	return a.Status == StatusBlocked
}

// IsActive reports whether the appointment still occupies its time window.
func (a *Appointment) IsActive() bool {
	return a.Status != StatusCancelled && a.Status != StatusDeclined
}

// Duration returns the length of the appointment window.
func (a *Appointment) Duration() time.Duration {
	return a.EndAt.Sub(a.StartAt)
}

// Overlaps checks whether two appointment windows intersect.
// Windows use half-open interval [start, end) semantics.
func (a *Appointment) Overlaps(other *Appointment) bool {
	return a.StartAt.Before(other.EndAt) && other.StartAt.Before(a.EndAt)
}

// CrewMemberIDs returns the ids of all assigned crew members in order.
func (a *Appointment) CrewMemberIDs() []string {
	ids := make([]string, 0, len(a.Crew))
	for _, c := range a.Crew {
		ids = append(ids, c.CrewMemberID)
	}
	return ids
}

// SharesCrewWith reports whether any crew member works on both appointments.
func (a *Appointment) SharesCrewWith(ids []string) bool {
	for _, c := range a.Crew {
		for _, id := range ids {
			if c.CrewMemberID == id {
				return true
			}
		}
	}
	return false
}

// Location is a named place for a tenant, resolvable to coordinates.
// Created on first use when an appointment references an unknown address.
type Location struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is a bookable product with a fixed duration.
// A non-empty SlotType marks the service as specialized (sunrise/dusk).
type Service struct {
	ID              string `json:"id"`
	TenantID        string `json:"tenant_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	SlotType        string `json:"slot_type,omitempty"`
}

// IsSpecialized reports whether the service is tied to a solar slot.
func (s *Service) IsSpecialized() bool {
	return s.SlotType != ""
}

// TotalDuration sums service durations.
func TotalDuration(services []Service) time.Duration {
	var total time.Duration
	for _, s := range services {
		total += time.Duration(s.DurationMinutes) * time.Minute
	}
	return total
}

// CrewMember is the unit of travel-feasibility comparison.
type CrewMember struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	// ChatID is set when the member linked a Telegram account for alerts.
	ChatID int64 `json:"chat_id,omitempty"`
}
