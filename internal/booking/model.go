package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/availability-booking/internal/schedule"
)

type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Specialist struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Branch struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment owns the occupation of its slot: while it holds any
// non-cancelled status, the referenced slot is occupied.
type Appointment struct {
	ID           uuid.UUID
	SlotID       uuid.UUID
	PatientID    uuid.UUID
	SpecialistID uuid.UUID
	BranchID     uuid.UUID
	RoomID       *uuid.UUID
	Title        string
	VisitType    string
	Cost         float64
	Notes        string
	Status       AppointmentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AppointmentDetail struct {
	Appointment
	Slot       *schedule.TimeSlot
	Patient    *Patient
	Specialist *Specialist
	Branch     *Branch
}

// PatientRef identifies a patient either by id or, for walk-ins, by bare name.
type PatientRef struct {
	ID   *uuid.UUID
	Name string
}

// Metadata carries the clinical fields that ride along on a booking but play
// no part in slot correctness.
type Metadata struct {
	Title     string
	VisitType string
	Cost      float64
	Notes     string
	RoomID    *uuid.UUID
}

var releasedStatuses = map[AppointmentStatus]bool{
	StatusCancelled: true,
	StatusNoShow:    true,
}

// IsReleased reports whether the status means the appointment no longer holds
// its slot.
func IsReleased(s AppointmentStatus) bool {
	return releasedStatuses[s]
}

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted:  {},
	StatusCancelled:  {StatusPending, StatusConfirmed, StatusInProgress},
	StatusNoShow:     {StatusPending, StatusConfirmed, StatusInProgress},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, s := range appointmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
