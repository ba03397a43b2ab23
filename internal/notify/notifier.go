package notify

import (
	"context"
	"time"
)

// Notification kinds.
const (
	KindNewBooking   = "new_booking"
	KindConfirmation = "confirmation"
	KindAssignment   = "assignment"
)

// Notification is one message to be delivered about an appointment.
type Notification struct {
	Kind          string    `json:"kind"`
	TenantID      string    `json:"tenant_id"`
	AppointmentID string    `json:"appointment_id"`
	Title         string    `json:"title"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	TimeZone      string    `json:"time_zone,omitempty"`

	// Recipient routing: at most one of these is set.
	Email  string `json:"email,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`

	CrewMemberName string `json:"crew_member_name,omitempty"`
	Role           string `json:"role,omitempty"`
}

// Notifier delivers a notification over one channel.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
