package pgstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgForeignKey      = "23503"
)

const appointmentColumns = `id::text, tenant_id, customer_name, customer_email, customer_phone, service_id,
			COALESCE(assigned_staff_id, ''), appt_date, start_minute, end_minute, status, source,
			total_price::text, payment_status, payment_method, COALESCE(payment_reference, ''),
			created_at, updated_at`

const templateColumns = `id::text, tenant_id, weekday, open_minute, close_minute, slot_duration_minutes,
			active, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a                                  model.Appointment
		date                               time.Time
		start, end                         int
		status, source, payStatus, payMeth string
		price                              string
	)
	if err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.Customer.Name,
		&a.Customer.Email,
		&a.Customer.Phone,
		&a.ServiceID,
		&a.AssignedStaffID,
		&date,
		&start,
		&end,
		&status,
		&source,
		&price,
		&payStatus,
		&payMeth,
		&a.PaymentReference,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return model.Appointment{}, err
	}
	total, err := parseMoney(price)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = model.DateOf(date)
	a.StartTime = model.ClockTime(start)
	a.EndTime = model.ClockTime(end)
	a.Status = model.Status(status)
	a.Source = model.Source(source)
	a.TotalPrice = total
	a.PaymentStatus = model.PaymentStatus(payStatus)
	a.PaymentMethod = model.PaymentMethod(payMeth)
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanTemplate(row pgx.Row) (model.AvailabilityTemplate, error) {
	var (
		tpl                   model.AvailabilityTemplate
		weekday, open, closeM int
	)
	if err := row.Scan(&tpl.ID, &tpl.TenantID, &weekday, &open, &closeM, &tpl.SlotDurationMinutes,
		&tpl.Active, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
		return model.AvailabilityTemplate{}, err
	}
	tpl.Weekday = time.Weekday(weekday)
	tpl.OpenTime = model.ClockTime(open)
	tpl.CloseTime = model.ClockTime(closeM)
	return tpl, nil
}

func collectTemplates(rows pgx.Rows) ([]model.AvailabilityTemplate, error) {
	defer rows.Close()
	var out []model.AvailabilityTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// translate maps constraint violations onto domain errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == "appointments_active_slot" {
			return fmt.Errorf("%w: %s", model.ErrBookingConflict, pgErr.Detail)
		}
		return fmt.Errorf("%w: duplicate %s", model.ErrInvalidInput, pgErr.ConstraintName)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", model.ErrInvalidInput, pgErr.ConstraintName)
	case pgForeignKey:
		return fmt.Errorf("%w: %s", model.ErrNotFound, pgErr.ConstraintName)
	}
	return err
}

// isUUID guards uuid columns so malformed ids read as misses instead of cast errors.
func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
