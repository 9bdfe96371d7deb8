package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSpecialistNotFound  = errors.New("specialist not found")
	ErrBranchNotFound      = errors.New("branch not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotUnavailable     = errors.New("slot is not available")
	ErrBusy                = errors.New("slot is currently being booked, please retry")
	ErrInvalidTransition   = errors.New("invalid appointment status transition")
	ErrValidation          = errors.New("validation failed")
)

// BookParams locates the slot to occupy and describes the appointment to
// create on it.
type BookParams struct {
	SpecialistID uuid.UUID
	BranchID     uuid.UUID
	Day          time.Time
	StartTime    string
	PatientID    uuid.UUID
	Metadata     Metadata
}

// Repository contains all DB interactions needed by the booking service.
// BookSlot, MoveSlot, UpdateStatusReleasingSlot, UpdateStatusReacquiringSlot
// and DeleteAppointment each execute as a single atomic unit: the slot status
// change and the appointment write commit together or not at all.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetSpecialistByID(ctx context.Context, id uuid.UUID) (*Specialist, error)
	GetBranchByID(ctx context.Context, id uuid.UUID) (*Branch, error)
	CreatePatient(ctx context.Context, p *Patient) error

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// BookSlot finds the available slot at the given coordinates (parent date
	// open), flips it to occupied and inserts a pending appointment. Fails
	// with ErrSlotUnavailable when no such slot exists.
	BookSlot(ctx context.Context, p BookParams) (*Appointment, error)

	// MoveSlot occupies the slot at the new coordinates, releases the
	// appointment's current slot and repoints the appointment. The original
	// slot stays occupied when the new one cannot be taken.
	MoveSlot(ctx context.Context, appointmentID uuid.UUID, day time.Time, startTime string) (*Appointment, error)

	// Status changes with slot side effects.
	UpdateStatusReleasingSlot(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	UpdateStatusReacquiringSlot(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// DeleteAppointment releases the slot unconditionally, then removes the
	// appointment row.
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
}
