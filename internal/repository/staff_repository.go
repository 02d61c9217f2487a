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

	"github.com/agendapro/agenda-api/internal/models"
)

const staffColumns = `id, name, specialties, active, user_id, created_at, updated_at`

// StaffRepository persists staff members, their weekly windows and absences.
type StaffRepository struct {
	db *sqlx.DB
}

func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE 1=1`
	var args []interface{}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if filter.Specialty != "" {
		args = append(args, filter.Specialty)
		query += fmt.Sprintf(" AND $%d = ANY(specialties)", len(args))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		query += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args))
	}
	query += " ORDER BY name ASC"

	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query, args...); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}

func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	return r.findOne(ctx, "find staff", `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id)
}

// FindByUserID resolves the staff record linked to a STAFF account.
func (r *StaffRepository) FindByUserID(ctx context.Context, userID string) (*models.Staff, error) {
	return r.findOne(ctx, "find staff by user", `SELECT `+staffColumns+` FROM staff WHERE user_id = $1`, userID)
}

func (r *StaffRepository) findOne(ctx context.Context, op, query string, arg interface{}) (*models.Staff, error) {
	var s models.Staff
	if err := r.db.GetContext(ctx, &s, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &s, nil
}

func (r *StaffRepository) Create(ctx context.Context, s *models.Staff) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	const query = `INSERT INTO staff (id, name, specialties, active, user_id, created_at, updated_at)
VALUES (:id, :name, :specialties, :active, :user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return uniqueError("create staff", err)
	}
	return nil
}

func (r *StaffRepository) Update(ctx context.Context, s *models.Staff) error {
	s.UpdatedAt = time.Now().UTC()
	const query = `UPDATE staff SET name = :name, specialties = :specialties, active = :active, user_id = :user_id,
updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return uniqueError("update staff", err)
	}
	return requireAffected(res)
}

func (r *StaffRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE staff SET active = $2, updated_at = $3 WHERE id = $1`, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set staff active: %w", err)
	}
	return requireAffected(res)
}

// ListWindows returns the weekly schedule ordered by weekday and start.
func (r *StaffRepository) ListWindows(ctx context.Context, staffID string) ([]models.AvailabilityWindow, error) {
	const query = `SELECT id, staff_id, weekday, start_time, end_time, created_at FROM availability_windows
WHERE staff_id = $1 ORDER BY weekday ASC, start_time ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, staffID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// ReplaceWindows swaps the staff member's whole weekly schedule atomically.
func (r *StaffRepository) ReplaceWindows(ctx context.Context, staffID string, windows []models.AvailabilityWindow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace windows tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_windows WHERE staff_id = $1`, staffID); err != nil {
		return fmt.Errorf("clear availability windows: %w", err)
	}

	const insert = `INSERT INTO availability_windows (id, staff_id, weekday, start_time, end_time, created_at)
VALUES (:id, :staff_id, :weekday, :start_time, :end_time, :created_at)`
	now := time.Now().UTC()
	for i := range windows {
		w := &windows[i]
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		w.StaffID = staffID
		w.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, insert, w); err != nil {
			return fmt.Errorf("insert availability window: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace windows tx: %w", err)
	}
	return nil
}

func (r *StaffRepository) ListAbsences(ctx context.Context, staffID string, from, to time.Time) ([]models.Absence, error) {
	const query = `SELECT id, staff_id, date, reason, created_at FROM staff_absences
WHERE staff_id = $1 AND date BETWEEN $2 AND $3 ORDER BY date ASC`
	var absences []models.Absence
	if err := r.db.SelectContext(ctx, &absences, query, staffID, from, to); err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	return absences, nil
}

// HasAbsence reports whether staffID is absent on date.
func (r *StaffRepository) HasAbsence(ctx context.Context, staffID string, date time.Time) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM staff_absences WHERE staff_id = $1 AND date = $2)`
	if err := r.db.GetContext(ctx, &exists, query, staffID, date); err != nil {
		return false, fmt.Errorf("check absence: %w", err)
	}
	return exists, nil
}

func (r *StaffRepository) CreateAbsence(ctx context.Context, a *models.Absence) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO staff_absences (id, staff_id, date, reason, created_at) VALUES (:id, :staff_id, :date, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return uniqueError("create absence", err)
	}
	return nil
}

func (r *StaffRepository) DeleteAbsence(ctx context.Context, staffID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM staff_absences WHERE id = $1 AND staff_id = $2`, id, staffID)
	if err != nil {
		return fmt.Errorf("delete absence: %w", err)
	}
	return requireAffected(res)
}
