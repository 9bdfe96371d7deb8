package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/availability-booking/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanSpecialist(row pgx.Row) (*Specialist, error) {
	var s Specialist
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Specialty,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSpecialistNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanBranch(row pgx.Row) (*Branch, error) {
	var b Branch
	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBranchNotFound
		}
		return nil, err
	}
	return &b, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.PatientID,
		&a.SpecialistID,
		&a.BranchID,
		&a.RoomID,
		&a.Title,
		&a.VisitType,
		&a.Cost,
		&a.Notes,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

const appointmentColumns = `id, slot_id, patient_id, specialist_id, branch_id, room_id, title, visit_type, cost, notes, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetSpecialistByID(ctx context.Context, id uuid.UUID) (*Specialist, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM specialists
		WHERE id = $1
	`, id)
	return scanSpecialist(row)
}

func (r *PgRepository) GetBranchByID(ctx context.Context, id uuid.UUID) (*Branch, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM branches
		WHERE id = $1
	`, id)
	return scanBranch(row)
}

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, name, phone, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Name, p.Phone, p.Email, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{Appointment: *appt}

	var slot schedule.TimeSlot
	err = r.pool.QueryRow(ctx, `
		SELECT id, available_date_id, definition_id, specialist_id, branch_id, date, start_time, end_time, status, created_at, updated_at
		FROM time_slots
		WHERE id = $1
	`, appt.SlotID).Scan(
		&slot.ID, &slot.AvailableDateID, &slot.DefinitionID, &slot.SpecialistID, &slot.BranchID,
		&slot.Date, &slot.StartTime, &slot.EndTime, &slot.Status, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrSlotNotFound
		}
		return nil, err
	}
	detail.Slot = &slot

	if detail.Patient, err = r.GetPatientByID(ctx, appt.PatientID); err != nil {
		return nil, err
	}
	if detail.Specialist, err = r.GetSpecialistByID(ctx, appt.SpecialistID); err != nil {
		return nil, err
	}
	if detail.Branch, err = r.GetBranchByID(ctx, appt.BranchID); err != nil {
		return nil, err
	}

	return detail, nil
}

// lockBookableSlot finds the slot at the given coordinates with an available
// status and an open parent date, taking a row lock on it for the rest of the
// transaction.
func lockBookableSlot(ctx context.Context, tx pgx.Tx, specialistID, branchID uuid.UUID, day time.Time, startTime string) (uuid.UUID, error) {
	var slotID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT s.id
		FROM time_slots s
		JOIN available_dates d ON d.id = s.available_date_id
		WHERE s.specialist_id = $1
		  AND s.branch_id = $2
		  AND s.date = $3
		  AND s.start_time = $4
		  AND s.status = 'available'
		  AND d.status = 'open'
		FOR UPDATE OF s
	`, specialistID, branchID, day, startTime).Scan(&slotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrSlotUnavailable
		}
		return uuid.Nil, err
	}
	return slotID, nil
}

// occupySlot flips a slot to occupied, guarded by a compare-and-swap on its
// current status.
func occupySlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE time_slots
		SET status = 'occupied',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'available'
	`, slotID)
	if err != nil {
		return fmt.Errorf("occupy slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func releaseSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE time_slots
		SET status = 'available',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'occupied'
	`, slotID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (r *PgRepository) BookSlot(ctx context.Context, p BookParams) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	slotID, err := lockBookableSlot(ctx, tx, p.SpecialistID, p.BranchID, p.Day, p.StartTime)
	if err != nil {
		return nil, err
	}
	if err := occupySlot(ctx, tx, slotID); err != nil {
		return nil, err
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, patient_id, specialist_id, branch_id, room_id, title, visit_type, cost, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending', now(), now())
		RETURNING `+appointmentColumns+`
	`, id, slotID, p.PatientID, p.SpecialistID, p.BranchID, p.Metadata.RoomID, p.Metadata.Title, p.Metadata.VisitType, p.Metadata.Cost, p.Metadata.Notes)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) MoveSlot(ctx context.Context, appointmentID uuid.UUID, day time.Time, startTime string) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID))
	if err != nil {
		return nil, err
	}

	newSlotID, err := lockBookableSlot(ctx, tx, current.SpecialistID, current.BranchID, day, startTime)
	if err != nil {
		return nil, err
	}
	if err := occupySlot(ctx, tx, newSlotID); err != nil {
		return nil, err
	}
	if err := releaseSlot(ctx, tx, current.SlotID); err != nil {
		return nil, err
	}

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET slot_id = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, appointmentID, newSlotID))
	if err != nil {
		return nil, fmt.Errorf("repoint appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) UpdateStatusReleasingSlot(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	appt, err := updateStatusTx(ctx, tx, id, from, to)
	if err != nil {
		return nil, err
	}
	if err := releaseSlot(ctx, tx, appt.SlotID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) UpdateStatusReacquiringSlot(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var slotID uuid.UUID
	if err := tx.QueryRow(ctx, `
		SELECT slot_id FROM appointments WHERE id = $1 FOR UPDATE
	`, id).Scan(&slotID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	// Another booking may have taken the slot since this appointment released
	// it; the CAS refuses the reactivation in that case.
	if err := occupySlot(ctx, tx, slotID); err != nil {
		return nil, err
	}

	appt, err := updateStatusTx(ctx, tx, id, from, to)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func updateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var slotID uuid.UUID
	if err := tx.QueryRow(ctx, `
		SELECT slot_id FROM appointments WHERE id = $1 FOR UPDATE
	`, id).Scan(&slotID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppointmentNotFound
		}
		return err
	}

	if err := releaseSlot(ctx, tx, slotID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	return tx.Commit(ctx)
}
