package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDefinitionNotFound = errors.New("schedule definition not found")
	ErrDateNotFound       = errors.New("available date not found")
	ErrSlotNotFound       = errors.New("time slot not found")
	ErrAlreadyExpanded    = errors.New("schedule definition already expanded")
	ErrDateExists         = errors.New("available date already exists for that day")
	ErrSlotExists         = errors.New("time slot already exists at that time")
	ErrSlotOccupied       = errors.New("time slot is occupied")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrValidation         = errors.New("validation failed")
)

// Repository contains all DB interactions needed by the schedule service.
type Repository interface {
	CreateDefinition(ctx context.Context, def *ScheduleDefinition) error
	GetDefinitionByID(ctx context.Context, id uuid.UUID) (*ScheduleDefinition, error)
	UpdateDefinitionStatus(ctx context.Context, id uuid.UUID, from, to DefinitionStatus) (*ScheduleDefinition, error)

	// Worker queries
	FindDefinitionsToActivate(ctx context.Context, today time.Time) ([]ScheduleDefinition, error)
	FindDefinitionsToFinish(ctx context.Context, today time.Time) ([]ScheduleDefinition, error)

	// Expansion. InsertExpansion writes all dates and slots in one unit;
	// CountDates backs the fail-fast AlreadyExpanded check.
	CountDates(ctx context.Context, definitionID uuid.UUID) (int, error)
	InsertExpansion(ctx context.Context, dates []AvailableDate, slots []TimeSlot) error

	// Manual date/slot management
	CreateDate(ctx context.Context, d *AvailableDate) error
	CreateSlot(ctx context.Context, s *TimeSlot) error
	GetDateByID(ctx context.Context, id uuid.UUID) (*AvailableDate, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	UpdateDateStatus(ctx context.Context, id uuid.UUID, from, to DateStatus) (*AvailableDate, error)
	UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*TimeSlot, error)
	UpdateDateDay(ctx context.Context, id uuid.UUID, day time.Time) (*AvailableDate, error)
	UpdateSlotTime(ctx context.Context, id uuid.UUID, startTime, endTime string) (*TimeSlot, error)
	DeleteDate(ctx context.Context, id uuid.UUID) error // cascades to slots
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	// Availability queries. Both only consider open dates.
	ListOpenDates(ctx context.Context, specialistID, branchID uuid.UUID) ([]AvailableDate, error)
	ListAvailableSlots(ctx context.Context, specialistID, branchID uuid.UUID, day time.Time) ([]TimeSlot, error)
	FindBookableSlot(ctx context.Context, specialistID, branchID uuid.UUID, day time.Time, startTime string) (*TimeSlot, error)
}
