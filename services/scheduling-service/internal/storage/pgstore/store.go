package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
)

// queryer is satisfied by both the pool and an open transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres storage adapter. Per-tenant serialisation uses a
// transaction scoped advisory lock; the partial unique index on active
// appointment starts backs it at the row level.
type Store struct {
	reader
	pool *db.Pool
}

var _ storage.Store = (*Store)(nil)

func New(pool *db.Pool) *Store {
	return &Store{reader: reader{q: pool}, pool: pool}
}

func (s *Store) Ping(ctx context.Context) error { return db.ReadyCheck(s.pool)(ctx) }

func (s *Store) WithTenantLock(ctx context.Context, tenantID string, fn func(storage.Tx) error) error {
	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, tenantID); err != nil {
			return fmt.Errorf("tenant lock: %w", err)
		}
		return fn(&unitOfWork{reader: reader{q: tx, lockRows: true}, tx: tx})
	})
}

type reader struct {
	q        queryer
	lockRows bool
}

func (r reader) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, tenantID).Scan(&ok)
	return ok, err
}

func (r reader) GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	var svc model.Service
	var price string
	err := r.q.QueryRow(ctx, `
		SELECT id, tenant_id, name, duration_minutes, price::text, is_active
		FROM catalog_services
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, serviceID).Scan(&svc.ID, &svc.TenantID, &svc.Name, &svc.DurationMinutes, &price, &svc.IsActive)
	if err != nil {
		if isNotFound(err) {
			return model.Service{}, fmt.Errorf("%w: %s", model.ErrServiceNotFound, serviceID)
		}
		return model.Service{}, err
	}
	if svc.Price, err = parseMoney(price); err != nil {
		return model.Service{}, err
	}
	return svc, nil
}

func (r reader) GetStaff(ctx context.Context, tenantID, staffID string) (model.Staff, error) {
	var st model.Staff
	err := r.q.QueryRow(ctx, `
		SELECT id, tenant_id, name, is_active
		FROM staff
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, staffID).Scan(&st.ID, &st.TenantID, &st.Name, &st.IsActive)
	if err != nil {
		if isNotFound(err) {
			return model.Staff{}, fmt.Errorf("%w: staff %s", model.ErrNotFound, staffID)
		}
		return model.Staff{}, err
	}
	return st, nil
}

func (r reader) ListActiveTemplates(ctx context.Context, tenantID string, weekday time.Weekday) ([]model.AvailabilityTemplate, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+templateColumns+`
		FROM availability_templates
		WHERE tenant_id = $1 AND weekday = $2 AND active
		ORDER BY open_minute, id
	`, tenantID, int(weekday))
	if err != nil {
		return nil, err
	}
	return collectTemplates(rows)
}

func (r reader) ListActiveAppointments(ctx context.Context, tenantID string, date model.Date) ([]model.Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND appt_date = $2 AND status NOT IN ('CANCELLED', 'REJECTED')
		ORDER BY start_minute
	`, tenantID, date.Time())
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r reader) GetAppointment(ctx context.Context, tenantID, id string) (model.Appointment, error) {
	if !isUUID(id) {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	sql := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = $1 AND tenant_id = $2`
	if r.lockRows {
		sql += ` FOR UPDATE`
	}
	appt, err := scanAppointment(r.q.QueryRow(ctx, sql, id, tenantID))
	if err != nil {
		if isNotFound(err) {
			return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Store) ListAppointments(ctx context.Context, tenantID string, f storage.AppointmentFilter) ([]model.Appointment, error) {
	var date *time.Time
	if !f.Date.IsZero() {
		d := f.Date.Time()
		date = &d
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
			AND ($2::date IS NULL OR appt_date = $2)
			AND ($3 = '' OR status = $3)
		ORDER BY appt_date DESC, start_minute DESC
		LIMIT $4
	`, tenantID, date, string(f.Status), storage.ClampLimit(f.Limit))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *Store) ListTransfers(ctx context.Context, tenantID string, f storage.TransferFilter) ([]model.StaffTransfer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, appointment_id::text, tenant_id, COALESCE(from_staff_id, ''), to_staff_id,
			transferred_by, COALESCE(reason, ''), created_at
		FROM staff_transfers
		WHERE tenant_id = $1
			AND ($2 = '' OR appointment_id::text = $2)
			AND ($3 = '' OR from_staff_id = $3 OR to_staff_id = $3)
		ORDER BY created_at, id
	`, tenantID, f.AppointmentID, f.StaffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StaffTransfer
	for rows.Next() {
		var tr model.StaffTransfer
		if err := rows.Scan(&tr.ID, &tr.AppointmentID, &tr.TenantID, &tr.FromStaffID, &tr.ToStaffID,
			&tr.TransferredBy, &tr.Reason, &tr.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (s *Store) ListTemplates(ctx context.Context, tenantID string) ([]model.AvailabilityTemplate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM availability_templates
		WHERE tenant_id = $1
		ORDER BY weekday, open_minute, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	return collectTemplates(rows)
}

func (s *Store) GetTemplate(ctx context.Context, tenantID, id string) (model.AvailabilityTemplate, error) {
	if !isUUID(id) {
		return model.AvailabilityTemplate{}, fmt.Errorf("%w: template %s", model.ErrNotFound, id)
	}
	tpl, err := scanTemplate(s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM availability_templates
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID))
	if err != nil {
		if isNotFound(err) {
			return model.AvailabilityTemplate{}, fmt.Errorf("%w: template %s", model.ErrNotFound, id)
		}
		return model.AvailabilityTemplate{}, err
	}
	return tpl, nil
}

func (s *Store) CreateTemplate(ctx context.Context, tpl model.AvailabilityTemplate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO availability_templates
			(id, tenant_id, weekday, open_minute, close_minute, slot_duration_minutes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tpl.ID, tpl.TenantID, int(tpl.Weekday), int(tpl.OpenTime), int(tpl.CloseTime), tpl.SlotDurationMinutes,
		tpl.Active, tpl.CreatedAt, tpl.UpdatedAt)
	return translate(err)
}

func (s *Store) UpdateTemplate(ctx context.Context, tpl model.AvailabilityTemplate) error {
	if !isUUID(tpl.ID) {
		return fmt.Errorf("%w: template %s", model.ErrNotFound, tpl.ID)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE availability_templates
		SET weekday = $3,
			open_minute = $4,
			close_minute = $5,
			slot_duration_minutes = $6,
			active = $7,
			updated_at = $8
		WHERE id = $1 AND tenant_id = $2
	`, tpl.ID, tpl.TenantID, int(tpl.Weekday), int(tpl.OpenTime), int(tpl.CloseTime), tpl.SlotDurationMinutes,
		tpl.Active, tpl.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: template %s", model.ErrNotFound, tpl.ID)
	}
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, tenantID, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("%w: template %s", model.ErrNotFound, id)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM availability_templates WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: template %s", model.ErrNotFound, id)
	}
	return nil
}

func (s *Store) UpsertTenant(ctx context.Context, t model.Tenant) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenants (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name,
		              updated_at = now()
	`, t.ID, t.Name)
	return err
}

func (s *Store) UpsertService(ctx context.Context, svc model.Service) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO catalog_services (tenant_id, id, name, duration_minutes, price, is_active)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		ON CONFLICT (tenant_id, id)
		DO UPDATE SET name = EXCLUDED.name,
		              duration_minutes = EXCLUDED.duration_minutes,
		              price = EXCLUDED.price,
		              is_active = EXCLUDED.is_active,
		              updated_at = now()
	`, svc.TenantID, svc.ID, svc.Name, svc.DurationMinutes, svc.Price.String(), svc.IsActive)
	return translate(err)
}

func (s *Store) UpsertStaff(ctx context.Context, st model.Staff) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO staff (tenant_id, id, name, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, id)
		DO UPDATE SET name = EXCLUDED.name,
		              is_active = EXCLUDED.is_active,
		              updated_at = now()
	`, st.TenantID, st.ID, st.Name, st.IsActive)
	return err
}

// unitOfWork is the storage.Tx handed out by WithTenantLock.
type unitOfWork struct {
	reader
	tx pgx.Tx
}

func (u *unitOfWork) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, tenant_id, customer_name, customer_email, customer_phone, service_id, assigned_staff_id,
			 appt_date, start_minute, end_minute, status, source, total_price,
			 payment_status, payment_method, payment_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13::numeric, $14, $15, NULLIF($16, ''), $17, $18)
	`, a.ID, a.TenantID, a.Customer.Name, a.Customer.Email, a.Customer.Phone, a.ServiceID, a.AssignedStaffID,
		a.Date.Time(), int(a.StartTime), int(a.EndTime), string(a.Status), string(a.Source), a.TotalPrice.String(),
		string(a.PaymentStatus), string(a.PaymentMethod), a.PaymentReference, a.CreatedAt, a.UpdatedAt)
	return translate(err)
}

func (u *unitOfWork) UpdateAppointment(ctx context.Context, a model.Appointment) error {
	tag, err := u.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3,
			assigned_staff_id = NULLIF($4, ''),
			payment_status = $5,
			payment_method = $6,
			payment_reference = NULLIF($7, ''),
			updated_at = $8
		WHERE id = $1 AND tenant_id = $2
	`, a.ID, a.TenantID, string(a.Status), a.AssignedStaffID, string(a.PaymentStatus), string(a.PaymentMethod),
		a.PaymentReference, a.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: appointment %s", model.ErrNotFound, a.ID)
	}
	return nil
}

func (u *unitOfWork) DeleteAppointment(ctx context.Context, tenantID, id string) error {
	// staff_transfers rows go with it through ON DELETE CASCADE.
	tag, err := u.tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	return nil
}

func (u *unitOfWork) InsertTransfer(ctx context.Context, tr model.StaffTransfer) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO staff_transfers
			(id, appointment_id, tenant_id, from_staff_id, to_staff_id, transferred_by, reason, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8)
	`, tr.ID, tr.AppointmentID, tr.TenantID, tr.FromStaffID, tr.ToStaffID, tr.TransferredBy, tr.Reason, tr.CreatedAt)
	return translate(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
