package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/availability-booking/internal/booking"
	redisclient "github.com/clinicore/availability-booking/internal/redis"
	"github.com/clinicore/availability-booking/internal/schedule"
	"github.com/clinicore/availability-booking/internal/store/memory"
)

type fixture struct {
	store    *memory.Store
	bookings *booking.Service
	schedule *schedule.Service

	specialist booking.Specialist
	branch     booking.Branch
	patient    booking.Patient

	day time.Time
}

// newFixture wires the services against the in-memory store and expands one
// definition with two slots (09:00 and 09:30) on a single day.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	log := zerolog.Nop()

	f := &fixture{
		store:    store,
		bookings: booking.NewService(store, memory.NewLocker(), log),
		schedule: schedule.NewService(store, log),
	}

	f.specialist = booking.Specialist{ID: uuid.New(), Name: "Dr. Reyes"}
	f.branch = booking.Branch{ID: uuid.New(), Name: "Downtown Clinic"}
	f.patient = booking.Patient{ID: uuid.New(), Name: "Ana Torres"}
	store.PutSpecialist(f.specialist)
	store.PutBranch(f.branch)
	store.PutPatient(f.patient)

	f.day = mustDate(t, "2024-03-04")

	def, err := f.schedule.CreateDefinition(context.Background(), schedule.DefinitionParams{
		SpecialistID:    f.specialist.ID,
		BranchID:        f.branch.ID,
		StartDate:       f.day,
		EndDate:         f.day,
		StartTime:       "09:00",
		EndTime:         "10:00",
		IntervalMinutes: 30,
	})
	require.NoError(t, err)
	_, err = f.schedule.Expand(context.Background(), def.ID)
	require.NoError(t, err)

	return f
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := schedule.ParseDate(s)
	require.NoError(t, err)
	return d
}

func (f *fixture) bookRequest(startTime string) booking.BookRequest {
	return booking.BookRequest{
		SpecialistID: f.specialist.ID,
		BranchID:     f.branch.ID,
		Day:          f.day,
		StartTime:    startTime,
		Patient:      booking.PatientRef{ID: &f.patient.ID},
		Metadata:     booking.Metadata{Title: "Checkup", VisitType: "consultation", Cost: 50},
	}
}

func (f *fixture) slotStatus(t *testing.T, slotID uuid.UUID) schedule.SlotStatus {
	t.Helper()
	sl, err := f.store.GetSlotByID(context.Background(), slotID)
	require.NoError(t, err)
	return sl.Status
}

func TestBookOccupiesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, appt.Status)
	assert.Equal(t, f.patient.ID, appt.PatientID)
	assert.Equal(t, "Checkup", appt.Title)
	assert.Equal(t, schedule.SlotOccupied, f.slotStatus(t, appt.SlotID))

	available, err := f.schedule.CheckSlotAvailability(ctx, f.specialist.ID, f.branch.ID, f.day, "09:00")
	require.NoError(t, err)
	assert.False(t, available)
}

func TestBookSameSlotTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)

	_, err = f.bookings.Book(ctx, f.bookRequest("09:00"))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("malformed time", func(t *testing.T) {
		req := f.bookRequest("9 o'clock")
		_, err := f.bookings.Book(ctx, req)
		assert.ErrorIs(t, err, booking.ErrValidation)
	})

	t.Run("unknown specialist", func(t *testing.T) {
		req := f.bookRequest("09:00")
		req.SpecialistID = uuid.New()
		_, err := f.bookings.Book(ctx, req)
		assert.ErrorIs(t, err, booking.ErrSpecialistNotFound)
	})

	t.Run("unknown branch", func(t *testing.T) {
		req := f.bookRequest("09:00")
		req.BranchID = uuid.New()
		_, err := f.bookings.Book(ctx, req)
		assert.ErrorIs(t, err, booking.ErrBranchNotFound)
	})

	t.Run("empty patient ref", func(t *testing.T) {
		req := f.bookRequest("09:00")
		req.Patient = booking.PatientRef{}
		_, err := f.bookings.Book(ctx, req)
		assert.ErrorIs(t, err, booking.ErrValidation)
	})

	t.Run("no matching slot", func(t *testing.T) {
		req := f.bookRequest("13:00")
		_, err := f.bookings.Book(ctx, req)
		assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
	})
}

func TestBookWalkInCreatesPlaceholderPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.bookRequest("09:00")
	req.Patient = booking.PatientRef{Name: "  Walk-in Pete  "}

	appt, err := f.bookings.Book(ctx, req)
	require.NoError(t, err)

	p, err := f.store.GetPatientByID(ctx, appt.PatientID)
	require.NoError(t, err)
	assert.Equal(t, "Walk-in Pete", p.Name)
	require.NotNil(t, p.Phone)
	assert.Equal(t, "000000000", *p.Phone)
}

func TestBookClosedDateFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dates, err := f.store.ListOpenDates(ctx, f.specialist.ID, f.branch.ID)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	_, err = f.store.UpdateDateStatus(ctx, dates[0].ID, schedule.DateOpen, schedule.DateClosed)
	require.NoError(t, err)

	_, err = f.bookings.Book(ctx, f.bookRequest("09:00"))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)

	cancelled, err := f.bookings.SetStatus(ctx, appt.ID, booking.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)
	assert.Equal(t, schedule.SlotAvailable, f.slotStatus(t, appt.SlotID))

	available, err := f.schedule.CheckSlotAvailability(ctx, f.specialist.ID, f.branch.ID, f.day, "09:00")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestReactivationReoccupiesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)

	_, err = f.bookings.SetStatus(ctx, appt.ID, booking.StatusCancelled)
	require.NoError(t, err)

	confirmed, err := f.bookings.SetStatus(ctx, appt.ID, booking.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, confirmed.Status)
	assert.Equal(t, schedule.SlotOccupied, f.slotStatus(t, appt.SlotID))
}

func TestReactivationFailsWhenSlotRebooked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)
	_, err = f.bookings.SetStatus(ctx, appt.ID, booking.StatusNoShow)
	require.NoError(t, err)

	// Another patient grabs the freed slot.
	other := booking.Patient{ID: uuid.New(), Name: "Luis Mora"}
	f.store.PutPatient(other)
	req := f.bookRequest("09:00")
	req.Patient = booking.PatientRef{ID: &other.ID}
	_, err = f.bookings.Book(ctx, req)
	require.NoError(t, err)

	_, err = f.bookings.SetStatus(ctx, appt.ID, booking.StatusConfirmed)
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)

	// The failed reactivation leaves the first appointment untouched.
	got, err := f.store.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusNoShow, got.Status)
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)

	_, err = f.bookings.SetStatus(ctx, appt.ID, booking.StatusCompleted)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	for _, to := range []booking.AppointmentStatus{
		booking.StatusConfirmed,
		booking.StatusInProgress,
		booking.StatusCompleted,
	} {
		updated, err := f.bookings.SetStatus(ctx, appt.ID, to)
		require.NoError(t, err)
		assert.Equal(t, to, updated.Status)
	}

	// Completed is terminal, the slot stays occupied.
	_, err = f.bookings.SetStatus(ctx, appt.ID, booking.StatusPending)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	assert.Equal(t, schedule.SlotOccupied, f.slotStatus(t, appt.SlotID))
}

func TestRescheduleSwapsSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)
	oldSlotID := appt.SlotID

	newTime := "09:30"
	moved, err := f.bookings.Reschedule(ctx, appt.ID, nil, &newTime)
	require.NoError(t, err)
	assert.NotEqual(t, oldSlotID, moved.SlotID)
	assert.Equal(t, schedule.SlotAvailable, f.slotStatus(t, oldSlotID))
	assert.Equal(t, schedule.SlotOccupied, f.slotStatus(t, moved.SlotID))

	detail, err := f.bookings.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:30", detail.Slot.StartTime)
}

func TestRescheduleToTakenSlotKeepsOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)

	other := booking.Patient{ID: uuid.New(), Name: "Luis Mora"}
	f.store.PutPatient(other)
	req := f.bookRequest("09:30")
	req.Patient = booking.PatientRef{ID: &other.ID}
	_, err = f.bookings.Book(ctx, req)
	require.NoError(t, err)

	newTime := "09:30"
	_, err = f.bookings.Reschedule(ctx, appt.ID, nil, &newTime)
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)

	// Original slot stays occupied and the appointment still points at it.
	assert.Equal(t, schedule.SlotOccupied, f.slotStatus(t, appt.SlotID))
	got, err := f.store.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.SlotID, got.SlotID)
}

func TestRescheduleGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)

	t.Run("nothing to change", func(t *testing.T) {
		_, err := f.bookings.Reschedule(ctx, appt.ID, nil, nil)
		assert.ErrorIs(t, err, booking.ErrValidation)
	})

	t.Run("same coordinates is a no-op", func(t *testing.T) {
		sameTime := "09:00"
		moved, err := f.bookings.Reschedule(ctx, appt.ID, nil, &sameTime)
		require.NoError(t, err)
		assert.Equal(t, appt.SlotID, moved.SlotID)
	})

	t.Run("cancelled appointment cannot move", func(t *testing.T) {
		_, err := f.bookings.SetStatus(ctx, appt.ID, booking.StatusCancelled)
		require.NoError(t, err)

		newTime := "09:30"
		_, err = f.bookings.Reschedule(ctx, appt.ID, nil, &newTime)
		assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	})
}

func TestDeleteReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)

	require.NoError(t, f.bookings.Delete(ctx, appt.ID))
	assert.Equal(t, schedule.SlotAvailable, f.slotStatus(t, appt.SlotID))

	_, err = f.bookings.Get(ctx, appt.ID)
	assert.ErrorIs(t, err, booking.ErrAppointmentNotFound)

	// The slot is bookable again.
	_, err = f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)
}

// keyRecordingLocker remembers every lock key it is asked for.
type keyRecordingLocker struct {
	inner redisclient.Locker
	mu    sync.Mutex
	keys  []string
}

func (l *keyRecordingLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return l.inner.WithLock(ctx, key, fn)
}

func TestReactivationContendsOnBookingLockKey(t *testing.T) {
	store := memory.NewStore()
	log := zerolog.Nop()
	rec := &keyRecordingLocker{inner: memory.NewLocker()}
	bookings := booking.NewService(store, rec, log)
	schedules := schedule.NewService(store, log)
	ctx := context.Background()

	specialist := booking.Specialist{ID: uuid.New(), Name: "Dr. Reyes"}
	branch := booking.Branch{ID: uuid.New(), Name: "Downtown Clinic"}
	patient := booking.Patient{ID: uuid.New(), Name: "Ana Torres"}
	store.PutSpecialist(specialist)
	store.PutBranch(branch)
	store.PutPatient(patient)

	day := mustDate(t, "2024-03-04")
	def, err := schedules.CreateDefinition(ctx, schedule.DefinitionParams{
		SpecialistID:    specialist.ID,
		BranchID:        branch.ID,
		StartDate:       day,
		EndDate:         day,
		StartTime:       "09:00",
		EndTime:         "09:30",
		IntervalMinutes: 30,
	})
	require.NoError(t, err)
	_, err = schedules.Expand(ctx, def.ID)
	require.NoError(t, err)

	appt, err := bookings.Book(ctx, booking.BookRequest{
		SpecialistID: specialist.ID,
		BranchID:     branch.ID,
		Day:          day,
		StartTime:    "09:00",
		Patient:      booking.PatientRef{ID: &patient.ID},
	})
	require.NoError(t, err)
	_, err = bookings.SetStatus(ctx, appt.ID, booking.StatusCancelled)
	require.NoError(t, err)
	_, err = bookings.SetStatus(ctx, appt.ID, booking.StatusConfirmed)
	require.NoError(t, err)

	// One lock for the booking, one for the reactivation, same key both
	// times: a racing fresh booking of that slot would queue behind it.
	require.Len(t, rec.keys, 2)
	assert.Equal(t, rec.keys[0], rec.keys[1])
}

func TestGetHydratesDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, f.bookRequest("09:00"))
	require.NoError(t, err)

	detail, err := f.bookings.Get(ctx, appt.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Slot)
	assert.Equal(t, "09:00", detail.Slot.StartTime)
	require.NotNil(t, detail.Patient)
	assert.Equal(t, f.patient.Name, detail.Patient.Name)
	require.NotNil(t, detail.Specialist)
	assert.Equal(t, f.specialist.Name, detail.Specialist.Name)
	require.NotNil(t, detail.Branch)
	assert.Equal(t, f.branch.Name, detail.Branch.Name)
}
