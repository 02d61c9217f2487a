package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agendapro/agenda-api/internal/models"
)

const appointmentColumns = `id, client_id, staff_id, date, start_time, end_time, status, service_ids, notes, created_by, created_at, updated_at`

const appointmentDetailSelect = `SELECT a.id, a.client_id, a.staff_id, a.date, a.start_time, a.end_time, a.status, a.service_ids,
a.notes, a.created_by, a.created_at, a.updated_at,
u.full_name AS client_name, u.email AS client_email, u.phone AS client_phone, s.name AS staff_name
FROM appointments a
JOIN users u ON u.id = a.client_id
JOIN staff s ON s.id = a.staff_id`

// SlotVerifier is called inside the booking transaction with the staff
// member's confirmed appointments on the target date, excluding the one
// being written. Returning an error aborts the write.
type SlotVerifier func(existing []models.Appointment) error

// AppointmentRepository persists bookings.
type AppointmentRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// ListConfirmed returns the confirmed appointments of staffID on date, the
// only ones that block availability.
func (r *AppointmentRepository) ListConfirmed(ctx context.Context, staffID string, date time.Time) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
WHERE staff_id = $1 AND date = $2 AND status = $3 ORDER BY start_time ASC`
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, staffID, date, models.AppointmentConfirmed); err != nil {
		return nil, fmt.Errorf("list confirmed appointments: %w", err)
	}
	return appts, nil
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &appt, nil
}

func (r *AppointmentRepository) FindDetailByID(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	var detail models.AppointmentDetail
	if err := r.db.GetContext(ctx, &detail, appointmentDetailSelect+` WHERE a.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find appointment detail: %w", err)
	}
	return &detail, nil
}

// ListDetails returns joined appointments matching filter in chronological
// order together with the total match count.
func (r *AppointmentRepository) ListDetails(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where += fmt.Sprintf(" AND "+cond, len(args))
	}

	if filter.Date != nil {
		add("a.date = $%d", *filter.Date)
	}
	if filter.DateFrom != nil {
		add("a.date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("a.date <= $%d", *filter.DateTo)
	}
	if filter.StaffID != "" {
		add("a.staff_id = $%d", filter.StaffID)
	}
	if filter.ClientID != "" {
		add("a.client_id = $%d", filter.ClientID)
	}
	if filter.Status != nil {
		add("a.status = $%d", *filter.Status)
	}

	query := appointmentDetailSelect + where + " ORDER BY a.date ASC, a.start_time ASC"
	if filter.PageSize > 0 {
		limit, offset := paging(filter.Page, filter.PageSize)
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	var details []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	if filter.PageSize <= 0 {
		return details, len(details), nil
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM appointments a`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	return details, total, nil
}

// Create books appt. The staff row is locked and the day's confirmed
// appointments are re-read under SERIALIZABLE isolation so verify sees the
// same state the insert commits against. Conflicts surface as ErrSlotTaken.
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment, verify SlotVerifier) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	appt.CreatedAt, appt.UpdatedAt = now, now
	if appt.Status == "" {
		appt.Status = models.AppointmentConfirmed
	}

	const insert = `INSERT INTO appointments (id, client_id, staff_id, date, start_time, end_time, status, service_ids, notes, created_by, created_at, updated_at)
VALUES (:id, :client_id, :staff_id, :date, :start_time, :end_time, :status, :service_ids, :notes, :created_by, :created_at, :updated_at)`

	return r.withSlotLock(ctx, "create appointment", appt, verify, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, insert, appt)
		return err
	})
}

// Reschedule rewrites staff, date, times and services of an existing
// appointment with the same guarantees as Create.
func (r *AppointmentRepository) Reschedule(ctx context.Context, appt *models.Appointment, verify SlotVerifier) error {
	appt.UpdatedAt = time.Now().UTC()
	const update = `UPDATE appointments SET staff_id = :staff_id, date = :date, start_time = :start_time, end_time = :end_time,
service_ids = :service_ids, notes = :notes, updated_at = :updated_at WHERE id = :id AND status = 'CONFIRMED'`

	return r.withSlotLock(ctx, "reschedule appointment", appt, verify, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, update, appt)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

func (r *AppointmentRepository) withSlotLock(ctx context.Context, op string, appt *models.Appointment, verify SlotVerifier, write func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM staff WHERE id = $1 AND active = TRUE FOR UPDATE`, appt.StaffID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return bookingError("lock staff", err)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments
WHERE staff_id = $1 AND date = $2 AND status = $3 AND id <> $4 ORDER BY start_time ASC`
	var existing []models.Appointment
	if err := tx.SelectContext(ctx, &existing, query, appt.StaffID, appt.Date, models.AppointmentConfirmed, appt.ID); err != nil {
		return bookingError("load confirmed appointments", err)
	}

	if verify != nil {
		if err := verify(existing); err != nil {
			return err
		}
	}

	if err := write(tx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return bookingError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return bookingError("commit "+op, err)
	}
	return nil
}

// UpdateStatus moves id from one status to another. It returns sql.ErrNoRows
// when the appointment does not exist or is no longer in status from.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, from, to models.AppointmentStatus) error {
	const query = `UPDATE appointments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	return requireAffected(res)
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return requireAffected(res)
}
