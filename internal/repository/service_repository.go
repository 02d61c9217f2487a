package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/agendapro/agenda-api/internal/models"
)

const serviceColumns = `id, name, description, duration_minutes, price, active, created_at, updated_at`

// ServiceRepository persists the service catalog.
type ServiceRepository struct {
	db *sqlx.DB
}

func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

func (r *ServiceRepository) List(ctx context.Context, filter models.ServiceFilter) ([]models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE 1=1`
	var args []interface{}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		query += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args))
	}
	query += " ORDER BY name ASC"

	var services []models.Service
	if err := r.db.SelectContext(ctx, &services, query, args...); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// FindByIDs loads the services in ids. Missing ids are simply absent from
// the result; callers compare lengths.
func (r *ServiceRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = ANY($1)`
	var services []models.Service
	if err := r.db.SelectContext(ctx, &services, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find services by ids: %w", err)
	}
	return services, nil
}

func (r *ServiceRepository) FindByID(ctx context.Context, id string) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	var svc models.Service
	if err := r.db.GetContext(ctx, &svc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find service: %w", err)
	}
	return &svc, nil
}

func (r *ServiceRepository) Create(ctx context.Context, svc *models.Service) error {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	svc.CreatedAt, svc.UpdatedAt = now, now

	const query = `INSERT INTO services (id, name, description, duration_minutes, price, active, created_at, updated_at)
VALUES (:id, :name, :description, :duration_minutes, :price, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, svc); err != nil {
		return uniqueError("create service", err)
	}
	return nil
}

func (r *ServiceRepository) Update(ctx context.Context, svc *models.Service) error {
	svc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE services SET name = :name, description = :description, duration_minutes = :duration_minutes,
price = :price, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, svc)
	if err != nil {
		return uniqueError("update service", err)
	}
	return requireAffected(res)
}

func (r *ServiceRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE services SET active = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set service active: %w", err)
	}
	return requireAffected(res)
}

// requireAffected turns "no row matched" into sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
