package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"apertura/internal/models"
)

// SaveAppointment upserts the appointment row together with its service and
// crew join rows in a single transaction. All three land or none do.
func (db *DB) SaveAppointment(ctx context.Context, appt *models.Appointment) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO appointments (
			id, tenant_id, title, start_at, end_at, time_zone, status, slot_type,
			is_placeholder, location_id, client_id, otc_name, otc_email, otc_phone,
			otc_notes, agent_id, notes, property_state, repeat, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			time_zone = excluded.time_zone,
			status = excluded.status,
			slot_type = excluded.slot_type,
			is_placeholder = excluded.is_placeholder,
			location_id = excluded.location_id,
			client_id = excluded.client_id,
			otc_name = excluded.otc_name,
			otc_email = excluded.otc_email,
			otc_phone = excluded.otc_phone,
			otc_notes = excluded.otc_notes,
			agent_id = excluded.agent_id,
			notes = excluded.notes,
			property_state = excluded.property_state,
			repeat = excluded.repeat,
			updated_at = excluded.updated_at`,
		appt.ID, appt.TenantID, appt.Title, appt.StartAt.UTC(), appt.EndAt.UTC(),
		appt.TimeZone, appt.Status, appt.SlotType, appt.IsPlaceholder,
		nullable(appt.LocationID), nullable(appt.ClientID), appt.OTCName, appt.OTCEmail,
		appt.OTCPhone, appt.OTCNotes, nullable(appt.AgentID), appt.Notes,
		appt.PropertyState, appt.Repeat, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert appointment: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM appointment_services WHERE appointment_id = ?`, appt.ID); err != nil {
		return fmt.Errorf("clear service links: %w", err)
	}
	for i, serviceID := range appt.ServiceIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO appointment_services (appointment_id, service_id, position) VALUES (?, ?, ?)`,
			appt.ID, serviceID, i,
		); err != nil {
			return fmt.Errorf("link service %s: %w", serviceID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM appointment_crew WHERE appointment_id = ?`, appt.ID); err != nil {
		return fmt.Errorf("clear crew links: %w", err)
	}
	for _, c := range appt.Crew {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO appointment_crew (appointment_id, crew_member_id, role) VALUES (?, ?, ?)`,
			appt.ID, c.CrewMemberID, c.Role,
		); err != nil {
			return fmt.Errorf("link crew member %s: %w", c.CrewMemberID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetAppointment loads one appointment with its service and crew links.
func (db *DB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, tenant_id, title, start_at, end_at, time_zone, status, slot_type,
			is_placeholder, COALESCE(location_id, ''), COALESCE(client_id, ''),
			otc_name, otc_email, otc_phone, otc_notes, COALESCE(agent_id, ''),
			notes, property_state, repeat, created_at, updated_at
		FROM appointments WHERE id = ?`, id)

	appt, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}

	if err := db.loadLinks(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// ListByCrewBetween returns non-cancelled, non-declined appointments for the
// tenant whose [start, end) window overlaps [from, to) and that involve at
// least one of the given crew members. Overlap rather than start-in-window,
// so a shoot running past midnight still shows up as a neighbour the next
// morning. The appointment with excludeID is left out so edits do not
// conflict with themselves.
func (db *DB) ListByCrewBetween(ctx context.Context, tenantID string, from, to time.Time, crewIDs []string, excludeID string) ([]models.Appointment, error) {
	if len(crewIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT a.id, a.tenant_id, a.title, a.start_at, a.end_at, a.time_zone,
			a.status, a.slot_type, a.is_placeholder, COALESCE(a.location_id, ''),
			COALESCE(a.client_id, ''), a.otc_name, a.otc_email, a.otc_phone, a.otc_notes,
			COALESCE(a.agent_id, ''), a.notes, a.property_state, a.repeat,
			a.created_at, a.updated_at
		FROM appointments a
		JOIN appointment_crew ac ON ac.appointment_id = a.id
		WHERE a.tenant_id = ?
			AND a.start_at < ? AND a.end_at > ?
			AND a.status NOT IN (?, ?)
			AND a.id != ?
			AND ac.crew_member_id IN (` + placeholders(len(crewIDs)) + `)
		ORDER BY a.start_at`

	args := []any{tenantID, to.UTC(), from.UTC(), models.StatusCancelled, models.StatusDeclined, excludeID}
	for _, id := range crewIDs {
		args = append(args, id)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list by crew: %w", err)
	}
	defer rows.Close()

	var appts []models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		if err := db.loadLinks(ctx, appt); err != nil {
			return nil, err
		}
		appts = append(appts, *appt)
	}
	return appts, rows.Err()
}

// CountSlotAppointments counts non-cancelled, non-declined, non-placeholder
// appointments of the given slot type starting in [from, to).
func (db *DB) CountSlotAppointments(ctx context.Context, tenantID string, from, to time.Time, slotType, excludeID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE tenant_id = ? AND slot_type = ?
			AND start_at >= ? AND start_at < ?
			AND status NOT IN (?, ?)
			AND is_placeholder = 0
			AND id != ?`,
		tenantID, slotType, from.UTC(), to.UTC(),
		models.StatusCancelled, models.StatusDeclined, excludeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count slot appointments: %w", err)
	}
	return count, nil
}

// ListBetween returns all active appointments starting in [from, to).
func (db *DB) ListBetween(ctx context.Context, tenantID string, from, to time.Time) ([]models.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, tenant_id, title, start_at, end_at, time_zone, status, slot_type,
			is_placeholder, COALESCE(location_id, ''), COALESCE(client_id, ''),
			otc_name, otc_email, otc_phone, otc_notes, COALESCE(agent_id, ''),
			notes, property_state, repeat, created_at, updated_at
		FROM appointments
		WHERE tenant_id = ? AND start_at >= ? AND start_at < ?
			AND status NOT IN (?, ?)
		ORDER BY start_at`,
		tenantID, from.UTC(), to.UTC(), models.StatusCancelled, models.StatusDeclined)
	if err != nil {
		return nil, fmt.Errorf("list between: %w", err)
	}
	defer rows.Close()

	var appts []models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		if err := db.loadLinks(ctx, appt); err != nil {
			return nil, err
		}
		appts = append(appts, *appt)
	}
	return appts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var appt models.Appointment
	err := row.Scan(
		&appt.ID, &appt.TenantID, &appt.Title, &appt.StartAt, &appt.EndAt,
		&appt.TimeZone, &appt.Status, &appt.SlotType, &appt.IsPlaceholder,
		&appt.LocationID, &appt.ClientID, &appt.OTCName, &appt.OTCEmail,
		&appt.OTCPhone, &appt.OTCNotes, &appt.AgentID, &appt.Notes,
		&appt.PropertyState, &appt.Repeat, &appt.CreatedAt, &appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (db *DB) loadLinks(ctx context.Context, appt *models.Appointment) error {
	rows, err := db.QueryContext(ctx,
		`SELECT service_id FROM appointment_services WHERE appointment_id = ? ORDER BY position`,
		appt.ID)
	if err != nil {
		return fmt.Errorf("load service links: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		appt.ServiceIDs = append(appt.ServiceIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	crewRows, err := db.QueryContext(ctx,
		`SELECT crew_member_id, role FROM appointment_crew WHERE appointment_id = ? ORDER BY crew_member_id`,
		appt.ID)
	if err != nil {
		return fmt.Errorf("load crew links: %w", err)
	}
	defer crewRows.Close()
	for crewRows.Next() {
		var c models.CrewAssignment
		if err := crewRows.Scan(&c.CrewMemberID, &c.Role); err != nil {
			return err
		}
		appt.Crew = append(appt.Crew, c)
	}
	return crewRows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
