package scheduling

import (
	"strings"
	"time"

	"apertura/internal/models"
)

// Request is the single logical booking submission the engine accepts.
// An empty ID means a brand-new appointment; a set ID means an edit.
// A block-out (Status == models.StatusBlocked) carries no client, address,
// agent or service fields.
type Request struct {
	ID            string    `json:"id,omitempty"`
	Title         string    `json:"title"`
	ClientID      string    `json:"client_id,omitempty"`
	OTCName       string    `json:"otc_name,omitempty"`
	OTCEmail      string    `json:"otc_email,omitempty"`
	OTCPhone      string    `json:"otc_phone,omitempty"`
	OTCNotes      string    `json:"otc_notes,omitempty"`
	Address       string    `json:"address,omitempty"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	TimeZone      string    `json:"time_zone,omitempty"`
	Status        string    `json:"status"`
	ServiceIDs    []string  `json:"service_ids,omitempty"`
	CrewMemberIDs []string  `json:"team_member_ids,omitempty"`
	AgentID       string    `json:"agent_id,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	PropertyState string    `json:"property_state,omitempty"`
	SlotType      string    `json:"slot_type,omitempty"`
	Repeat        string    `json:"repeat,omitempty"`
}

// IsEdit reports whether the request targets an existing appointment.
func (r *Request) IsEdit() bool {
	return r.ID != ""
}

// IsBlockOut reports whether the request is a non-client block-out.
func (r *Request) IsBlockOut() bool {
	return r.Status == models.StatusBlocked
}

// HasClientIdentity reports whether the request names a durable client or a
// one-time client.
func (r *Request) HasClientIdentity() bool {
	return r.ClientID != "" || strings.TrimSpace(r.OTCName) != ""
}

// EffectiveSlotType returns the explicit slot type, or the shared slot type
// of the request's services when every service carries the same one.
func (r *Request) EffectiveSlotType(services []models.Service) string {
	if r.SlotType != "" {
		return r.SlotType
	}
	if len(services) == 0 {
		return ""
	}
	slot := services[0].SlotType
	for _, svc := range services[1:] {
		if svc.SlotType != slot {
			return ""
		}
	}
	return slot
}
