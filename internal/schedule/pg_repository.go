package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Helpers

func scanDefinition(row pgx.Row) (*ScheduleDefinition, error) {
	var d ScheduleDefinition
	err := row.Scan(
		&d.ID,
		&d.SpecialistID,
		&d.BranchID,
		&d.StartDate,
		&d.EndDate,
		&d.StartTime,
		&d.EndTime,
		&d.IntervalMinutes,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDefinitionNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanDate(row pgx.Row) (*AvailableDate, error) {
	var d AvailableDate
	err := row.Scan(
		&d.ID,
		&d.DefinitionID,
		&d.SpecialistID,
		&d.BranchID,
		&d.Date,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDateNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(
		&s.ID,
		&s.AvailableDateID,
		&s.DefinitionID,
		&s.SpecialistID,
		&s.BranchID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

const definitionColumns = `id, specialist_id, branch_id, start_date, end_date, start_time, end_time, interval_minutes, status, created_at, updated_at`
const dateColumns = `id, definition_id, specialist_id, branch_id, date, status, created_at, updated_at`
const slotColumns = `id, available_date_id, definition_id, specialist_id, branch_id, date, start_time, end_time, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) CreateDefinition(ctx context.Context, def *ScheduleDefinition) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_definitions (id, specialist_id, branch_id, start_date, end_date, start_time, end_time, interval_minutes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, def.ID, def.SpecialistID, def.BranchID, def.StartDate, def.EndDate, def.StartTime, def.EndTime, def.IntervalMinutes, def.Status, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert definition: %w", err)
	}
	return nil
}

func (r *PgRepository) GetDefinitionByID(ctx context.Context, id uuid.UUID) (*ScheduleDefinition, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+definitionColumns+`
		FROM schedule_definitions
		WHERE id = $1
	`, id)
	return scanDefinition(row)
}

func (r *PgRepository) UpdateDefinitionStatus(ctx context.Context, id uuid.UUID, from, to DefinitionStatus) (*ScheduleDefinition, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_definitions
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+definitionColumns+`
	`, id, to, from)
	return scanDefinition(row)
}

func (r *PgRepository) FindDefinitionsToActivate(ctx context.Context, today time.Time) ([]ScheduleDefinition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+definitionColumns+`
		FROM schedule_definitions
		WHERE status = 'scheduled'
		  AND start_date <= $1
	`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDefinitions(rows)
}

func (r *PgRepository) FindDefinitionsToFinish(ctx context.Context, today time.Time) ([]ScheduleDefinition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+definitionColumns+`
		FROM schedule_definitions
		WHERE status = 'active'
		  AND end_date < $1
	`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDefinitions(rows)
}

func collectDefinitions(rows pgx.Rows) ([]ScheduleDefinition, error) {
	var result []ScheduleDefinition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CountDates(ctx context.Context, definitionID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM available_dates WHERE definition_id = $1
	`, definitionID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// InsertExpansion writes the whole expansion in one transaction so a storage
// failure leaves no partial date/slot set behind.
func (r *PgRepository) InsertExpansion(ctx context.Context, dates []AvailableDate, slots []TimeSlot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, d := range dates {
		_, err := tx.Exec(ctx, `
			INSERT INTO available_dates (`+dateColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, d.ID, d.DefinitionID, d.SpecialistID, d.BranchID, d.Date, d.Status, d.CreatedAt, d.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyExpanded
			}
			return fmt.Errorf("insert date: %w", err)
		}
	}

	for _, s := range slots {
		_, err := tx.Exec(ctx, `
			INSERT INTO time_slots (`+slotColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, s.ID, s.AvailableDateID, s.DefinitionID, s.SpecialistID, s.BranchID, s.Date, s.StartTime, s.EndTime, s.Status, s.CreatedAt, s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) CreateDate(ctx context.Context, d *AvailableDate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO available_dates (`+dateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.DefinitionID, d.SpecialistID, d.BranchID, d.Date, d.Status, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDateExists
		}
		return fmt.Errorf("insert date: %w", err)
	}
	return nil
}

func (r *PgRepository) CreateSlot(ctx context.Context, s *TimeSlot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO time_slots (`+slotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.ID, s.AvailableDateID, s.DefinitionID, s.SpecialistID, s.BranchID, s.Date, s.StartTime, s.EndTime, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotExists
		}
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *PgRepository) GetDateByID(ctx context.Context, id uuid.UUID) (*AvailableDate, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+dateColumns+` FROM available_dates WHERE id = $1
	`, id)
	return scanDate(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+` FROM time_slots WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) UpdateDateStatus(ctx context.Context, id uuid.UUID, from, to DateStatus) (*AvailableDate, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE available_dates
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+dateColumns+`
	`, id, to, from)
	return scanDate(row)
}

func (r *PgRepository) UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE time_slots
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+slotColumns+`
	`, id, to, from)
	return scanSlot(row)
}

// UpdateDateDay moves a date and its slots' denormalized date in one
// transaction, so the two can never disagree.
func (r *PgRepository) UpdateDateDay(ctx context.Context, id uuid.UUID, day time.Time) (*AvailableDate, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE available_dates
		SET date = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+dateColumns+`
	`, id, day)
	d, err := scanDate(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDateExists
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE time_slots SET date = $2, updated_at = now() WHERE available_date_id = $1
	`, id, day); err != nil {
		return nil, fmt.Errorf("update slot dates: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PgRepository) UpdateSlotTime(ctx context.Context, id uuid.UUID, startTime, endTime string) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE time_slots
		SET start_time = $2,
		    end_time = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, id, startTime, endTime)
	s, err := scanSlot(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotExists
		}
		return nil, err
	}
	return s, nil
}

func (r *PgRepository) DeleteDate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM available_dates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDateNotFound
	}
	return nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM time_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) ListOpenDates(ctx context.Context, specialistID, branchID uuid.UUID) ([]AvailableDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+dateColumns+`
		FROM available_dates
		WHERE specialist_id = $1
		  AND branch_id = $2
		  AND status = 'open'
		ORDER BY date
	`, specialistID, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailableDate
	for rows.Next() {
		d, err := scanDate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, specialistID, branchID uuid.UUID, day time.Time) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.available_date_id, s.definition_id, s.specialist_id, s.branch_id, s.date, s.start_time, s.end_time, s.status, s.created_at, s.updated_at
		FROM time_slots s
		JOIN available_dates d ON d.id = s.available_date_id
		WHERE s.specialist_id = $1
		  AND s.branch_id = $2
		  AND s.date = $3
		  AND s.status = 'available'
		  AND d.status = 'open'
		ORDER BY s.start_time
	`, specialistID, branchID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) FindBookableSlot(ctx context.Context, specialistID, branchID uuid.UUID, day time.Time, startTime string) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT s.id, s.available_date_id, s.definition_id, s.specialist_id, s.branch_id, s.date, s.start_time, s.end_time, s.status, s.created_at, s.updated_at
		FROM time_slots s
		JOIN available_dates d ON d.id = s.available_date_id
		WHERE s.specialist_id = $1
		  AND s.branch_id = $2
		  AND s.date = $3
		  AND s.start_time = $4
		  AND s.status = 'available'
		  AND d.status = 'open'
	`, specialistID, branchID, day, startTime)
	return scanSlot(row)
}
