package database

import (
	"context"
	"database/sql"
	"fmt"

	"apertura/internal/models"
)

// GetLocationByName returns the tenant's location with the exact name.
func (db *DB) GetLocationByName(ctx context.Context, tenantID, name string) (*models.Location, error) {
	var loc models.Location
	err := db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, latitude, longitude, created_at
		FROM locations WHERE tenant_id = ? AND name = ?`,
		tenantID, name,
	).Scan(&loc.ID, &loc.TenantID, &loc.Name, &loc.Latitude, &loc.Longitude, &loc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location by name: %w", err)
	}
	return &loc, nil
}

// GetLocation returns a location by id.
func (db *DB) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	var loc models.Location
	err := db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, latitude, longitude, created_at
		FROM locations WHERE id = ?`, id,
	).Scan(&loc.ID, &loc.TenantID, &loc.Name, &loc.Latitude, &loc.Longitude, &loc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &loc, nil
}

// CreateLocation inserts a new location for the tenant.
func (db *DB) CreateLocation(ctx context.Context, loc *models.Location) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO locations (id, tenant_id, name, latitude, longitude)
		VALUES (?, ?, ?, ?, ?)`,
		loc.ID, loc.TenantID, loc.Name, loc.Latitude, loc.Longitude)
	if err != nil {
		return fmt.Errorf("create location: %w", err)
	}
	return nil
}

// GetServicesByIDs loads services preserving the order of the given ids.
func (db *DB) GetServicesByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, tenant_id, name, duration_minutes, slot_type
		FROM services WHERE tenant_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := []any{tenantID}
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get services: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Service, len(ids))
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.ID, &svc.TenantID, &svc.Name, &svc.DurationMinutes, &svc.SlotType); err != nil {
			return nil, err
		}
		byID[svc.ID] = svc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	services := make([]models.Service, 0, len(ids))
	for _, id := range ids {
		svc, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("service %s: %w", id, ErrNotFound)
		}
		services = append(services, svc)
	}
	return services, nil
}

// CreateService inserts a service into the tenant's catalogue.
func (db *DB) CreateService(ctx context.Context, svc *models.Service) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO services (id, tenant_id, name, duration_minutes, slot_type)
		VALUES (?, ?, ?, ?, ?)`,
		svc.ID, svc.TenantID, svc.Name, svc.DurationMinutes, svc.SlotType)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// GetCrewMember returns a crew member by id.
func (db *DB) GetCrewMember(ctx context.Context, id string) (*models.CrewMember, error) {
	var cm models.CrewMember
	err := db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, email, phone, chat_id
		FROM crew_members WHERE id = ?`, id,
	).Scan(&cm.ID, &cm.TenantID, &cm.Name, &cm.Email, &cm.Phone, &cm.ChatID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get crew member: %w", err)
	}
	return &cm, nil
}

// CreateCrewMember inserts a crew member.
func (db *DB) CreateCrewMember(ctx context.Context, cm *models.CrewMember) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO crew_members (id, tenant_id, name, email, phone, chat_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cm.ID, cm.TenantID, cm.Name, cm.Email, cm.Phone, cm.ChatID)
	if err != nil {
		return fmt.Errorf("create crew member: %w", err)
	}
	return nil
}
