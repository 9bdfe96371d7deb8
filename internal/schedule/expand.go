package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExpansionResult reports what Expand materialized.
type ExpansionResult struct {
	DatesCreated int
	SlotsCreated int
}

// slotWindow is one interval-sized step inside a day's time range.
type slotWindow struct {
	start string
	end   string
}

// dailyWindows cuts [startTime, endTime) into interval-sized windows. A window
// that would end past endTime is dropped rather than overflowing.
func dailyWindows(startTime, endTime string, intervalMinutes int) ([]slotWindow, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return nil, err
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return nil, err
	}

	var windows []slotWindow
	for cur := start; cur+intervalMinutes <= end; cur += intervalMinutes {
		windows = append(windows, slotWindow{
			start: FormatClock(cur),
			end:   FormatClock(cur + intervalMinutes),
		})
	}
	return windows, nil
}

// Expand materializes one AvailableDate per calendar day of the definition's
// range and one TimeSlot per interval step of each day. It fails fast with
// ErrAlreadyExpanded if the definition already has dates, so re-running it
// never duplicates rows.
func (s *Service) Expand(ctx context.Context, definitionID uuid.UUID) (*ExpansionResult, error) {
	def, err := s.repo.GetDefinitionByID(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}

	existing, err := s.repo.CountDates(ctx, def.ID)
	if err != nil {
		return nil, fmt.Errorf("count existing dates: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyExpanded
	}

	windows, err := dailyWindows(def.StartTime, def.EndTime, def.IntervalMinutes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := time.Now().UTC()

	var dates []AvailableDate
	var slots []TimeSlot
	for day := def.StartDate; !day.After(def.EndDate); day = day.AddDate(0, 0, 1) {
		date := AvailableDate{
			ID:           uuid.New(),
			DefinitionID: def.ID,
			SpecialistID: def.SpecialistID,
			BranchID:     def.BranchID,
			Date:         day,
			Status:       DateOpen,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		dates = append(dates, date)

		for _, w := range windows {
			slots = append(slots, TimeSlot{
				ID:              uuid.New(),
				AvailableDateID: date.ID,
				DefinitionID:    def.ID,
				SpecialistID:    def.SpecialistID,
				BranchID:        def.BranchID,
				Date:            day,
				StartTime:       w.start,
				EndTime:         w.end,
				Status:          SlotAvailable,
				CreatedAt:       now,
				UpdatedAt:       now,
			})
		}
	}

	if err := s.repo.InsertExpansion(ctx, dates, slots); err != nil {
		return nil, fmt.Errorf("insert expansion: %w", err)
	}

	s.log.Info().
		Str("definition_id", def.ID.String()).
		Int("dates", len(dates)).
		Int("slots", len(slots)).
		Msg("schedule expanded")

	return &ExpansionResult{DatesCreated: len(dates), SlotsCreated: len(slots)}, nil
}
