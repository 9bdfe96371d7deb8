package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/clinicore/availability-booking/internal/redis"
	"github.com/clinicore/availability-booking/internal/schedule"
)

// Walk-in bookings that arrive with only a patient name get a record with
// these defaults. The placeholder contact data is a deliberate simplification
// carried over from the clinic's intake flow; reception reconciles it later.
const (
	placeholderPhone = "000000000"
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	log    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		log:    log,
	}
}

// BookRequest is the input to Book. Patient may carry an id or a bare name.
type BookRequest struct {
	SpecialistID uuid.UUID
	BranchID     uuid.UUID
	Day          time.Time
	StartTime    string
	Patient      PatientRef
	Metadata     Metadata
}

func slotKey(specialistID, branchID uuid.UUID, day time.Time, startTime string) string {
	return fmt.Sprintf("%s:%s:%s:%s", specialistID, branchID, schedule.FormatDate(day), startTime)
}

// Book reserves the slot at the given coordinates for a patient. The
// availability check and the occupation run under a per-slot distributed lock
// and commit as one unit, so concurrent requests for the same slot cannot
// both succeed.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if _, err := schedule.ParseClock(req.StartTime); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if _, err := s.repo.GetSpecialistByID(ctx, req.SpecialistID); err != nil {
		return nil, fmt.Errorf("load specialist: %w", err)
	}
	if _, err := s.repo.GetBranchByID(ctx, req.BranchID); err != nil {
		return nil, fmt.Errorf("load branch: %w", err)
	}

	patient, err := s.ResolveOrCreatePatient(ctx, req.Patient)
	if err != nil {
		return nil, err
	}

	day := schedule.TruncateToDay(req.Day)

	var created *Appointment
	err = s.locker.WithLock(ctx, slotKey(req.SpecialistID, req.BranchID, day, req.StartTime), func(lockCtx context.Context) error {
		appt, err := s.repo.BookSlot(lockCtx, BookParams{
			SpecialistID: req.SpecialistID,
			BranchID:     req.BranchID,
			Day:          day,
			StartTime:    req.StartTime,
			PatientID:    patient.ID,
			Metadata:     req.Metadata,
		})
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBusy
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("slot_id", created.SlotID.String()).
		Str("patient_id", patient.ID.String()).
		Msg("appointment booked")

	return created, nil
}

// ResolveOrCreatePatient returns the referenced patient, creating a
// placeholder record when only a name is supplied.
func (s *Service) ResolveOrCreatePatient(ctx context.Context, ref PatientRef) (*Patient, error) {
	if ref.ID != nil {
		p, err := s.repo.GetPatientByID(ctx, *ref.ID)
		if err != nil {
			return nil, fmt.Errorf("load patient: %w", err)
		}
		return p, nil
	}

	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: patient id or name is required", ErrValidation)
	}

	now := time.Now().UTC()
	phone := placeholderPhone
	p := &Patient{
		ID:        uuid.New(),
		Name:      name,
		Phone:     &phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}

	s.log.Info().Str("patient_id", p.ID.String()).Msg("placeholder patient created")
	return p, nil
}

// Reschedule moves an appointment to a new date and/or start time. The swap
// is atomic: if the target slot cannot be occupied, the appointment keeps its
// current slot.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDay *time.Time, newStartTime *string) (*Appointment, error) {
	if newDay == nil && newStartTime == nil {
		return nil, fmt.Errorf("%w: nothing to reschedule", ErrValidation)
	}

	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if IsReleased(detail.Status) || detail.Status == StatusCompleted {
		return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, detail.Status)
	}

	day := detail.Slot.Date
	startTime := detail.Slot.StartTime
	if newDay != nil {
		day = schedule.TruncateToDay(*newDay)
	}
	if newStartTime != nil {
		if _, err := schedule.ParseClock(*newStartTime); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		startTime = *newStartTime
	}

	if day.Equal(detail.Slot.Date) && startTime == detail.Slot.StartTime {
		return &detail.Appointment, nil
	}

	var moved *Appointment
	err = s.locker.WithLock(ctx, slotKey(detail.SpecialistID, detail.BranchID, day, startTime), func(lockCtx context.Context) error {
		appt, err := s.repo.MoveSlot(lockCtx, id, day, startTime)
		if err != nil {
			return err
		}
		moved = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBusy
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("new_slot_id", moved.SlotID.String()).
		Msg("appointment rescheduled")

	return moved, nil
}

// SetStatus applies one edge of the appointment lifecycle, releasing or
// re-occupying the slot as the edge demands. Reactivation out of
// cancelled/no_show only succeeds while the slot is still available.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	from := appt.Status
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	switch {
	case !IsReleased(from) && IsReleased(to):
		updated, err := s.repo.UpdateStatusReleasingSlot(ctx, id, from, to)
		if err != nil {
			return nil, fmt.Errorf("release slot: %w", err)
		}
		s.log.Info().Str("appointment_id", id.String()).Str("status", string(to)).Msg("appointment released its slot")
		return updated, nil

	case IsReleased(from) && !IsReleased(to):
		// Lock by the slot's coordinates, the same key Book and Reschedule
		// use, so a reactivation and a fresh booking contend on one lock.
		detail, err := s.repo.GetAppointmentDetail(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load appointment: %w", err)
		}
		var updated *Appointment
		err = s.locker.WithLock(ctx, slotKey(detail.SpecialistID, detail.BranchID, detail.Slot.Date, detail.Slot.StartTime), func(lockCtx context.Context) error {
			u, err := s.repo.UpdateStatusReacquiringSlot(lockCtx, id, from, to)
			if err != nil {
				return err
			}
			updated = u
			return nil
		})
		if err != nil {
			if errors.Is(err, redisclient.ErrLockNotAcquired) {
				return nil, ErrBusy
			}
			return nil, err
		}
		s.log.Info().Str("appointment_id", id.String()).Str("status", string(to)).Msg("appointment re-occupied its slot")
		return updated, nil

	default:
		updated, err := s.repo.UpdateStatus(ctx, id, from, to)
		if err != nil {
			return nil, fmt.Errorf("update status: %w", err)
		}
		return updated, nil
	}
}

// Delete removes an appointment, releasing its slot unconditionally.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetAppointmentByID(ctx, id); err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.log.Info().Str("appointment_id", id.String()).Msg("appointment deleted")
	return nil
}

// Get retrieves a fully hydrated appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}
