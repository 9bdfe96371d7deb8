package schedule

import (
	"time"

	"github.com/google/uuid"
)

type DefinitionStatus string

const (
	DefinitionScheduled DefinitionStatus = "scheduled"
	DefinitionActive    DefinitionStatus = "active"
	DefinitionFinished  DefinitionStatus = "finished"
	DefinitionCancelled DefinitionStatus = "cancelled"
)

type DateStatus string

const (
	DateClosed DateStatus = "closed"
	DateOpen   DateStatus = "open"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotOccupied  SlotStatus = "occupied"
	SlotClosed    SlotStatus = "closed"
)

// ScheduleDefinition is a recurring availability template for one specialist
// at one branch. Its date/time/interval fields are frozen once slots have been
// generated; only the status moves after that.
type ScheduleDefinition struct {
	ID              uuid.UUID
	SpecialistID    uuid.UUID
	BranchID        uuid.UUID
	StartDate       time.Time // midnight UTC
	EndDate         time.Time // midnight UTC, inclusive
	StartTime       string    // "15:04"
	EndTime         string    // "15:04"
	IntervalMinutes int
	Status          DefinitionStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AvailableDate is one calendar day's availability container. A closed date
// hides all of its slots from availability queries regardless of their
// individual status.
type AvailableDate struct {
	ID           uuid.UUID
	DefinitionID uuid.UUID
	SpecialistID uuid.UUID
	BranchID     uuid.UUID
	Date         time.Time
	Status       DateStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TimeSlot is one discrete bookable instant within an AvailableDate.
type TimeSlot struct {
	ID              uuid.UUID
	AvailableDateID uuid.UUID
	DefinitionID    uuid.UUID
	SpecialistID    uuid.UUID
	BranchID        uuid.UUID
	Date            time.Time
	StartTime       string // "15:04"
	EndTime         string // "15:04"
	Status          SlotStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var definitionTransitions = map[DefinitionStatus][]DefinitionStatus{
	DefinitionScheduled: {DefinitionActive, DefinitionCancelled},
	DefinitionActive:    {DefinitionFinished, DefinitionCancelled},
	DefinitionFinished:  {},
	DefinitionCancelled: {},
}

var dateTransitions = map[DateStatus][]DateStatus{
	DateClosed: {DateOpen},
	DateOpen:   {DateClosed},
}

// Slot transitions out of occupied happen only through the booking manager,
// which releases slots via its own repository operations. The admin-facing
// table therefore has no occupied edges.
var slotTransitions = map[SlotStatus][]SlotStatus{
	SlotClosed:    {SlotAvailable},
	SlotAvailable: {SlotClosed, SlotOccupied},
	SlotOccupied:  {},
}

func CanTransitionDefinition(from, to DefinitionStatus) bool {
	for _, s := range definitionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CanTransitionDate(from, to DateStatus) bool {
	for _, s := range dateTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CanTransitionSlot(from, to SlotStatus) bool {
	for _, s := range slotTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
