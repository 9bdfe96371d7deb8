// Package memory provides an in-memory implementation of the schedule and
// booking repositories, used by tests and ephemeral environments. A single
// mutex guards all state, so every repository operation is an atomic unit
// with the same compare-and-swap semantics as the Postgres implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/availability-booking/internal/booking"
	"github.com/clinicore/availability-booking/internal/schedule"
)

var (
	_ schedule.Repository = (*Store)(nil)
	_ booking.Repository  = (*Store)(nil)
)

type Store struct {
	mu           sync.Mutex
	definitions  map[uuid.UUID]schedule.ScheduleDefinition
	dates        map[uuid.UUID]schedule.AvailableDate
	slots        map[uuid.UUID]schedule.TimeSlot
	patients     map[uuid.UUID]booking.Patient
	specialists  map[uuid.UUID]booking.Specialist
	branches     map[uuid.UUID]booking.Branch
	appointments map[uuid.UUID]booking.Appointment
}

func NewStore() *Store {
	return &Store{
		definitions:  make(map[uuid.UUID]schedule.ScheduleDefinition),
		dates:        make(map[uuid.UUID]schedule.AvailableDate),
		slots:        make(map[uuid.UUID]schedule.TimeSlot),
		patients:     make(map[uuid.UUID]booking.Patient),
		specialists:  make(map[uuid.UUID]booking.Specialist),
		branches:     make(map[uuid.UUID]booking.Branch),
		appointments: make(map[uuid.UUID]booking.Appointment),
	}
}

// Directory seeding helpers for tests.

func (s *Store) PutSpecialist(sp booking.Specialist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specialists[sp.ID] = sp
}

func (s *Store) PutBranch(b booking.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[b.ID] = b
}

func (s *Store) PutPatient(p booking.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

// schedule.Repository

func (s *Store) CreateDefinition(ctx context.Context, def *schedule.ScheduleDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[def.ID] = *def
	return nil
}

func (s *Store) GetDefinitionByID(ctx context.Context, id uuid.UUID) (*schedule.ScheduleDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.definitions[id]
	if !ok {
		return nil, schedule.ErrDefinitionNotFound
	}
	return &def, nil
}

func (s *Store) UpdateDefinitionStatus(ctx context.Context, id uuid.UUID, from, to schedule.DefinitionStatus) (*schedule.ScheduleDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.definitions[id]
	if !ok || def.Status != from {
		return nil, schedule.ErrDefinitionNotFound
	}
	def.Status = to
	def.UpdatedAt = time.Now().UTC()
	s.definitions[id] = def
	return &def, nil
}

func (s *Store) FindDefinitionsToActivate(ctx context.Context, today time.Time) ([]schedule.ScheduleDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []schedule.ScheduleDefinition
	for _, def := range s.definitions {
		if def.Status == schedule.DefinitionScheduled && !def.StartDate.After(today) {
			result = append(result, def)
		}
	}
	return result, nil
}

func (s *Store) FindDefinitionsToFinish(ctx context.Context, today time.Time) ([]schedule.ScheduleDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []schedule.ScheduleDefinition
	for _, def := range s.definitions {
		if def.Status == schedule.DefinitionActive && def.EndDate.Before(today) {
			result = append(result, def)
		}
	}
	return result, nil
}

func (s *Store) CountDates(ctx context.Context, definitionID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, d := range s.dates {
		if d.DefinitionID == definitionID {
			count++
		}
	}
	return count, nil
}

func (s *Store) InsertExpansion(ctx context.Context, dates []schedule.AvailableDate, slots []schedule.TimeSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range dates {
		for _, existing := range s.dates {
			if existing.DefinitionID == d.DefinitionID && existing.Date.Equal(d.Date) {
				return schedule.ErrAlreadyExpanded
			}
		}
	}
	for _, d := range dates {
		s.dates[d.ID] = d
	}
	for _, sl := range slots {
		s.slots[sl.ID] = sl
	}
	return nil
}

func (s *Store) CreateDate(ctx context.Context, d *schedule.AvailableDate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.dates {
		if existing.DefinitionID == d.DefinitionID && existing.Date.Equal(d.Date) {
			return schedule.ErrDateExists
		}
	}
	s.dates[d.ID] = *d
	return nil
}

func (s *Store) CreateSlot(ctx context.Context, sl *schedule.TimeSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.slots {
		if existing.AvailableDateID == sl.AvailableDateID && existing.StartTime == sl.StartTime {
			return schedule.ErrSlotExists
		}
	}
	s.slots[sl.ID] = *sl
	return nil
}

func (s *Store) GetDateByID(ctx context.Context, id uuid.UUID) (*schedule.AvailableDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dates[id]
	if !ok {
		return nil, schedule.ErrDateNotFound
	}
	return &d, nil
}

func (s *Store) GetSlotByID(ctx context.Context, id uuid.UUID) (*schedule.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	return &sl, nil
}

func (s *Store) UpdateDateStatus(ctx context.Context, id uuid.UUID, from, to schedule.DateStatus) (*schedule.AvailableDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dates[id]
	if !ok || d.Status != from {
		return nil, schedule.ErrDateNotFound
	}
	d.Status = to
	d.UpdatedAt = time.Now().UTC()
	s.dates[id] = d
	return &d, nil
}

func (s *Store) UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to schedule.SlotStatus) (*schedule.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok || sl.Status != from {
		return nil, schedule.ErrSlotNotFound
	}
	sl.Status = to
	sl.UpdatedAt = time.Now().UTC()
	s.slots[id] = sl
	return &sl, nil
}

func (s *Store) UpdateDateDay(ctx context.Context, id uuid.UUID, day time.Time) (*schedule.AvailableDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dates[id]
	if !ok {
		return nil, schedule.ErrDateNotFound
	}
	for _, existing := range s.dates {
		if existing.ID != id && existing.DefinitionID == d.DefinitionID && existing.Date.Equal(day) {
			return nil, schedule.ErrDateExists
		}
	}
	d.Date = day
	d.UpdatedAt = time.Now().UTC()
	s.dates[id] = d
	for slotID, sl := range s.slots {
		if sl.AvailableDateID == id {
			sl.Date = day
			s.slots[slotID] = sl
		}
	}
	return &d, nil
}

func (s *Store) UpdateSlotTime(ctx context.Context, id uuid.UUID, startTime, endTime string) (*schedule.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	for _, existing := range s.slots {
		if existing.ID != id && existing.AvailableDateID == sl.AvailableDateID && existing.StartTime == startTime {
			return nil, schedule.ErrSlotExists
		}
	}
	sl.StartTime = startTime
	sl.EndTime = endTime
	sl.UpdatedAt = time.Now().UTC()
	s.slots[id] = sl
	return &sl, nil
}

func (s *Store) DeleteDate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dates[id]; !ok {
		return schedule.ErrDateNotFound
	}
	delete(s.dates, id)
	for slotID, sl := range s.slots {
		if sl.AvailableDateID == id {
			delete(s.slots, slotID)
		}
	}
	return nil
}

func (s *Store) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[id]; !ok {
		return schedule.ErrSlotNotFound
	}
	delete(s.slots, id)
	return nil
}

func (s *Store) ListOpenDates(ctx context.Context, specialistID, branchID uuid.UUID) ([]schedule.AvailableDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []schedule.AvailableDate
	for _, d := range s.dates {
		if d.SpecialistID == specialistID && d.BranchID == branchID && d.Status == schedule.DateOpen {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (s *Store) ListAvailableSlots(ctx context.Context, specialistID, branchID uuid.UUID, day time.Time) ([]schedule.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []schedule.TimeSlot
	for _, sl := range s.slots {
		if sl.SpecialistID != specialistID || sl.BranchID != branchID || !sl.Date.Equal(day) {
			continue
		}
		if sl.Status != schedule.SlotAvailable {
			continue
		}
		if parent, ok := s.dates[sl.AvailableDateID]; !ok || parent.Status != schedule.DateOpen {
			continue
		}
		result = append(result, sl)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime < result[j].StartTime })
	return result, nil
}

func (s *Store) FindBookableSlot(ctx context.Context, specialistID, branchID uuid.UUID, day time.Time, startTime string) (*schedule.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.findBookableLocked(specialistID, branchID, day, startTime)
	if err != nil {
		return nil, err
	}
	out := *sl
	return &out, nil
}

func (s *Store) findBookableLocked(specialistID, branchID uuid.UUID, day time.Time, startTime string) (*schedule.TimeSlot, error) {
	for id, sl := range s.slots {
		if sl.SpecialistID != specialistID || sl.BranchID != branchID {
			continue
		}
		if !sl.Date.Equal(day) || sl.StartTime != startTime {
			continue
		}
		if sl.Status != schedule.SlotAvailable {
			continue
		}
		if parent, ok := s.dates[sl.AvailableDateID]; !ok || parent.Status != schedule.DateOpen {
			continue
		}
		found := s.slots[id]
		return &found, nil
	}
	return nil, schedule.ErrSlotNotFound
}

// booking.Repository

func (s *Store) GetPatientByID(ctx context.Context, id uuid.UUID) (*booking.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, booking.ErrPatientNotFound
	}
	return &p, nil
}

func (s *Store) GetSpecialistByID(ctx context.Context, id uuid.UUID) (*booking.Specialist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.specialists[id]
	if !ok {
		return nil, booking.ErrSpecialistNotFound
	}
	return &sp, nil
}

func (s *Store) GetBranchByID(ctx context.Context, id uuid.UUID) (*booking.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[id]
	if !ok {
		return nil, booking.ErrBranchNotFound
	}
	return &b, nil
}

func (s *Store) CreatePatient(ctx context.Context, p *booking.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = *p
	return nil
}

func (s *Store) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	return &a, nil
}

func (s *Store) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*booking.AppointmentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	detail := &booking.AppointmentDetail{Appointment: a}
	if sl, ok := s.slots[a.SlotID]; ok {
		slot := sl
		detail.Slot = &slot
	} else {
		return nil, schedule.ErrSlotNotFound
	}
	if p, ok := s.patients[a.PatientID]; ok {
		patient := p
		detail.Patient = &patient
	}
	if sp, ok := s.specialists[a.SpecialistID]; ok {
		specialist := sp
		detail.Specialist = &specialist
	}
	if b, ok := s.branches[a.BranchID]; ok {
		branch := b
		detail.Branch = &branch
	}
	return detail, nil
}

func (s *Store) BookSlot(ctx context.Context, p booking.BookParams) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.findBookableLocked(p.SpecialistID, p.BranchID, p.Day, p.StartTime)
	if err != nil {
		return nil, booking.ErrSlotUnavailable
	}

	now := time.Now().UTC()
	sl.Status = schedule.SlotOccupied
	sl.UpdatedAt = now
	s.slots[sl.ID] = *sl

	appt := booking.Appointment{
		ID:           uuid.New(),
		SlotID:       sl.ID,
		PatientID:    p.PatientID,
		SpecialistID: p.SpecialistID,
		BranchID:     p.BranchID,
		RoomID:       p.Metadata.RoomID,
		Title:        p.Metadata.Title,
		VisitType:    p.Metadata.VisitType,
		Cost:         p.Metadata.Cost,
		Notes:        p.Metadata.Notes,
		Status:       booking.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.appointments[appt.ID] = appt
	return &appt, nil
}

func (s *Store) MoveSlot(ctx context.Context, appointmentID uuid.UUID, day time.Time, startTime string) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[appointmentID]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}

	newSlot, err := s.findBookableLocked(a.SpecialistID, a.BranchID, day, startTime)
	if err != nil {
		return nil, booking.ErrSlotUnavailable
	}

	now := time.Now().UTC()
	newSlot.Status = schedule.SlotOccupied
	newSlot.UpdatedAt = now
	s.slots[newSlot.ID] = *newSlot

	if old, ok := s.slots[a.SlotID]; ok && old.Status == schedule.SlotOccupied {
		old.Status = schedule.SlotAvailable
		old.UpdatedAt = now
		s.slots[old.ID] = old
	}

	a.SlotID = newSlot.ID
	a.UpdatedAt = now
	s.appointments[a.ID] = a
	return &a, nil
}

func (s *Store) UpdateStatusReleasingSlot(ctx context.Context, id uuid.UUID, from, to booking.AppointmentStatus) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok || a.Status != from {
		return nil, booking.ErrAppointmentNotFound
	}

	now := time.Now().UTC()
	a.Status = to
	a.UpdatedAt = now
	s.appointments[id] = a

	if sl, ok := s.slots[a.SlotID]; ok && sl.Status == schedule.SlotOccupied {
		sl.Status = schedule.SlotAvailable
		sl.UpdatedAt = now
		s.slots[sl.ID] = sl
	}
	return &a, nil
}

func (s *Store) UpdateStatusReacquiringSlot(ctx context.Context, id uuid.UUID, from, to booking.AppointmentStatus) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok || a.Status != from {
		return nil, booking.ErrAppointmentNotFound
	}

	sl, ok := s.slots[a.SlotID]
	if !ok || sl.Status != schedule.SlotAvailable {
		return nil, booking.ErrSlotUnavailable
	}

	now := time.Now().UTC()
	sl.Status = schedule.SlotOccupied
	sl.UpdatedAt = now
	s.slots[sl.ID] = sl

	a.Status = to
	a.UpdatedAt = now
	s.appointments[id] = a
	return &a, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, from, to booking.AppointmentStatus) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok || a.Status != from {
		return nil, booking.ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	s.appointments[id] = a
	return &a, nil
}

func (s *Store) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return booking.ErrAppointmentNotFound
	}

	if sl, ok := s.slots[a.SlotID]; ok && sl.Status == schedule.SlotOccupied {
		sl.Status = schedule.SlotAvailable
		sl.UpdatedAt = time.Now().UTC()
		s.slots[sl.ID] = sl
	}
	delete(s.appointments, id)
	return nil
}
