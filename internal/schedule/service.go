package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	MinIntervalMinutes = 15
	MaxIntervalMinutes = 120
)

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// DefinitionParams carries the administrator input for a new definition.
type DefinitionParams struct {
	SpecialistID    uuid.UUID
	BranchID        uuid.UUID
	StartDate       time.Time
	EndDate         time.Time
	StartTime       string
	EndTime         string
	IntervalMinutes int
}

func (p DefinitionParams) validate() error {
	start, err := ParseClock(p.StartTime)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	end, err := ParseClock(p.EndTime)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if start >= end {
		return fmt.Errorf("%w: start time %s must be before end time %s", ErrValidation, p.StartTime, p.EndTime)
	}
	if p.StartDate.After(p.EndDate) {
		return fmt.Errorf("%w: start date %s is after end date %s", ErrValidation, FormatDate(p.StartDate), FormatDate(p.EndDate))
	}
	if p.IntervalMinutes < MinIntervalMinutes || p.IntervalMinutes > MaxIntervalMinutes {
		return fmt.Errorf("%w: interval must be between %d and %d minutes", ErrValidation, MinIntervalMinutes, MaxIntervalMinutes)
	}
	return nil
}

// CreateDefinition stores a new schedule definition in status scheduled.
// Expansion is a separate, independently retryable operation.
func (s *Service) CreateDefinition(ctx context.Context, p DefinitionParams) (*ScheduleDefinition, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	def := &ScheduleDefinition{
		ID:              uuid.New(),
		SpecialistID:    p.SpecialistID,
		BranchID:        p.BranchID,
		StartDate:       TruncateToDay(p.StartDate),
		EndDate:         TruncateToDay(p.EndDate),
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		IntervalMinutes: p.IntervalMinutes,
		Status:          DefinitionScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateDefinition(ctx, def); err != nil {
		return nil, fmt.Errorf("create definition: %w", err)
	}

	s.log.Info().
		Str("definition_id", def.ID.String()).
		Str("specialist_id", def.SpecialistID.String()).
		Str("range", FormatDate(def.StartDate)+".."+FormatDate(def.EndDate)).
		Msg("schedule definition created")

	return def, nil
}

func (s *Service) GetDefinition(ctx context.Context, id uuid.UUID) (*ScheduleDefinition, error) {
	return s.repo.GetDefinitionByID(ctx, id)
}

// SetDefinitionStatus applies one edge of the definition lifecycle.
func (s *Service) SetDefinitionStatus(ctx context.Context, id uuid.UUID, to DefinitionStatus) (*ScheduleDefinition, error) {
	def, err := s.repo.GetDefinitionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}
	if !CanTransitionDefinition(def.Status, to) {
		return nil, fmt.Errorf("%w: definition %s -> %s", ErrInvalidTransition, def.Status, to)
	}
	updated, err := s.repo.UpdateDefinitionStatus(ctx, id, def.Status, to)
	if err != nil {
		return nil, fmt.Errorf("update definition status: %w", err)
	}
	return updated, nil
}

// AdvanceDefinitions moves scheduled definitions whose range has begun to
// active, and active ones whose range has passed to finished. Called
// periodically by the schedule worker.
func (s *Service) AdvanceDefinitions(ctx context.Context, now time.Time) (activated, finished int, err error) {
	today := TruncateToDay(now)

	toActivate, err := s.repo.FindDefinitionsToActivate(ctx, today)
	if err != nil {
		return 0, 0, fmt.Errorf("find definitions to activate: %w", err)
	}
	for _, def := range toActivate {
		if _, err := s.repo.UpdateDefinitionStatus(ctx, def.ID, DefinitionScheduled, DefinitionActive); err != nil {
			s.log.Error().Err(err).Str("definition_id", def.ID.String()).Msg("failed to activate definition")
			continue
		}
		activated++
	}

	toFinish, err := s.repo.FindDefinitionsToFinish(ctx, today)
	if err != nil {
		return activated, 0, fmt.Errorf("find definitions to finish: %w", err)
	}
	for _, def := range toFinish {
		if _, err := s.repo.UpdateDefinitionStatus(ctx, def.ID, DefinitionActive, DefinitionFinished); err != nil {
			s.log.Error().Err(err).Str("definition_id", def.ID.String()).Msg("failed to finish definition")
			continue
		}
		finished++
	}

	return activated, finished, nil
}

// Availability queries

func (s *Service) ListAvailableDates(ctx context.Context, specialistID, branchID uuid.UUID) ([]AvailableDate, error) {
	dates, err := s.repo.ListOpenDates(ctx, specialistID, branchID)
	if err != nil {
		return nil, fmt.Errorf("list open dates: %w", err)
	}
	return dates, nil
}

func (s *Service) ListAvailableSlots(ctx context.Context, specialistID, branchID uuid.UUID, day time.Time) ([]TimeSlot, error) {
	slots, err := s.repo.ListAvailableSlots(ctx, specialistID, branchID, TruncateToDay(day))
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// CheckSlotAvailability reports whether a bookable slot exists at the given
// coordinates: slot available, parent date open.
func (s *Service) CheckSlotAvailability(ctx context.Context, specialistID, branchID uuid.UUID, day time.Time, startTime string) (bool, error) {
	if _, err := ParseClock(startTime); err != nil {
		return false, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	_, err := s.repo.FindBookableSlot(ctx, specialistID, branchID, TruncateToDay(day), startTime)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find bookable slot: %w", err)
	}
	return true, nil
}

// Date administration. Every operation checks the target belongs to the
// stated definition; a mismatch reads as not found.

func (s *Service) CreateDate(ctx context.Context, definitionID uuid.UUID, day time.Time) (*AvailableDate, error) {
	def, err := s.repo.GetDefinitionByID(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}

	now := time.Now().UTC()
	date := &AvailableDate{
		ID:           uuid.New(),
		DefinitionID: def.ID,
		SpecialistID: def.SpecialistID,
		BranchID:     def.BranchID,
		Date:         TruncateToDay(day),
		Status:       DateOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateDate(ctx, date); err != nil {
		return nil, fmt.Errorf("create date: %w", err)
	}
	return date, nil
}

func (s *Service) OpenDate(ctx context.Context, definitionID, dateID uuid.UUID) (*AvailableDate, error) {
	return s.setDateStatus(ctx, definitionID, dateID, DateOpen)
}

func (s *Service) CloseDate(ctx context.Context, definitionID, dateID uuid.UUID) (*AvailableDate, error) {
	return s.setDateStatus(ctx, definitionID, dateID, DateClosed)
}

func (s *Service) setDateStatus(ctx context.Context, definitionID, dateID uuid.UUID, to DateStatus) (*AvailableDate, error) {
	date, err := s.ownedDate(ctx, definitionID, dateID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionDate(date.Status, to) {
		return nil, fmt.Errorf("%w: date %s -> %s", ErrInvalidTransition, date.Status, to)
	}
	updated, err := s.repo.UpdateDateStatus(ctx, dateID, date.Status, to)
	if err != nil {
		return nil, fmt.Errorf("update date status: %w", err)
	}
	return updated, nil
}

func (s *Service) EditDate(ctx context.Context, definitionID, dateID uuid.UUID, newDay time.Time) (*AvailableDate, error) {
	if _, err := s.ownedDate(ctx, definitionID, dateID); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateDateDay(ctx, dateID, TruncateToDay(newDay))
	if err != nil {
		return nil, fmt.Errorf("update date day: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteDate(ctx context.Context, definitionID, dateID uuid.UUID) error {
	if _, err := s.ownedDate(ctx, definitionID, dateID); err != nil {
		return err
	}
	if err := s.repo.DeleteDate(ctx, dateID); err != nil {
		return fmt.Errorf("delete date: %w", err)
	}
	return nil
}

// Slot administration

func (s *Service) CreateSlot(ctx context.Context, definitionID, dateID uuid.UUID, startTime string) (*TimeSlot, error) {
	date, err := s.ownedDate(ctx, definitionID, dateID)
	if err != nil {
		return nil, err
	}
	def, err := s.repo.GetDefinitionByID(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}
	start, err := ParseClock(startTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := time.Now().UTC()
	slot := &TimeSlot{
		ID:              uuid.New(),
		AvailableDateID: date.ID,
		DefinitionID:    def.ID,
		SpecialistID:    def.SpecialistID,
		BranchID:        def.BranchID,
		Date:            date.Date,
		StartTime:       startTime,
		EndTime:         FormatClock(start + def.IntervalMinutes),
		Status:          SlotAvailable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return slot, nil
}

func (s *Service) OpenSlot(ctx context.Context, definitionID, slotID uuid.UUID) (*TimeSlot, error) {
	return s.setSlotStatus(ctx, definitionID, slotID, SlotAvailable)
}

func (s *Service) CloseSlot(ctx context.Context, definitionID, slotID uuid.UUID) (*TimeSlot, error) {
	return s.setSlotStatus(ctx, definitionID, slotID, SlotClosed)
}

func (s *Service) setSlotStatus(ctx context.Context, definitionID, slotID uuid.UUID, to SlotStatus) (*TimeSlot, error) {
	slot, err := s.ownedSlot(ctx, definitionID, slotID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionSlot(slot.Status, to) {
		return nil, fmt.Errorf("%w: slot %s -> %s", ErrInvalidTransition, slot.Status, to)
	}
	updated, err := s.repo.UpdateSlotStatus(ctx, slotID, slot.Status, to)
	if err != nil {
		return nil, fmt.Errorf("update slot status: %w", err)
	}
	return updated, nil
}

func (s *Service) EditSlot(ctx context.Context, definitionID, slotID uuid.UUID, newStartTime string) (*TimeSlot, error) {
	slot, err := s.ownedSlot(ctx, definitionID, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status == SlotOccupied {
		return nil, ErrSlotOccupied
	}
	oldStart, err := ParseClock(slot.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	oldEnd, err := ParseClock(slot.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	newStart, err := ParseClock(newStartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	updated, err := s.repo.UpdateSlotTime(ctx, slotID, newStartTime, FormatClock(newStart+(oldEnd-oldStart)))
	if err != nil {
		return nil, fmt.Errorf("update slot time: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteSlot(ctx context.Context, definitionID, slotID uuid.UUID) error {
	slot, err := s.ownedSlot(ctx, definitionID, slotID)
	if err != nil {
		return err
	}
	if slot.Status == SlotOccupied {
		return ErrSlotOccupied
	}
	if err := s.repo.DeleteSlot(ctx, slotID); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

func (s *Service) ownedDate(ctx context.Context, definitionID, dateID uuid.UUID) (*AvailableDate, error) {
	date, err := s.repo.GetDateByID(ctx, dateID)
	if err != nil {
		return nil, fmt.Errorf("load date: %w", err)
	}
	if date.DefinitionID != definitionID {
		return nil, ErrDateNotFound
	}
	return date, nil
}

func (s *Service) ownedSlot(ctx context.Context, definitionID, slotID uuid.UUID) (*TimeSlot, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if slot.DefinitionID != definitionID {
		return nil, ErrSlotNotFound
	}
	return slot, nil
}
