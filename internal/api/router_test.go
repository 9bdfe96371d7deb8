package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/availability-booking/internal/api"
	"github.com/clinicore/availability-booking/internal/booking"
	"github.com/clinicore/availability-booking/internal/schedule"
	"github.com/clinicore/availability-booking/internal/store/memory"
)

type apiFixture struct {
	server *httptest.Server
	store  *memory.Store

	specialist booking.Specialist
	branch     booking.Branch
	patient    booking.Patient
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := memory.NewStore()
	log := zerolog.Nop()

	f := &apiFixture{
		store:      store,
		specialist: booking.Specialist{ID: uuid.New(), Name: "Dr. Reyes"},
		branch:     booking.Branch{ID: uuid.New(), Name: "Downtown Clinic"},
		patient:    booking.Patient{ID: uuid.New(), Name: "Ana Torres"},
	}
	store.PutSpecialist(f.specialist)
	store.PutBranch(f.branch)
	store.PutPatient(f.patient)

	router := api.NewRouter(api.RouterConfig{
		Schedules: schedule.NewService(store, log),
		Bookings:  booking.NewService(store, memory.NewLocker(), log),
		Log:       log,
		Env:       "test",
		Version:   "test",
	})
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)

	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *apiFixture) createSchedule(t *testing.T) api.ScheduleResponse {
	t.Helper()

	var resp api.ScheduleResponse
	status := f.do(t, http.MethodPost, "/schedules?expand=true", api.CreateScheduleRequest{
		SpecialistID:    f.specialist.ID.String(),
		BranchID:        f.branch.ID.String(),
		StartDate:       "2024-03-04",
		EndDate:         "2024-03-04",
		StartTime:       "09:00",
		EndTime:         "10:00",
		IntervalMinutes: 30,
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	require.Empty(t, resp.ExpansionError)
	return resp
}

func (f *apiFixture) partyQuery() string {
	return fmt.Sprintf("specialist_id=%s&branch_id=%s", f.specialist.ID, f.branch.ID)
}

func TestCreateScheduleWithExpansion(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.createSchedule(t)
	assert.Equal(t, "scheduled", resp.Status)
	require.NotNil(t, resp.Expansion)
	assert.Equal(t, 1, resp.Expansion.DatesCreated)
	assert.Equal(t, 2, resp.Expansion.SlotsCreated)

	var slots []api.SlotResponse
	status := f.do(t, http.MethodGet, "/availability/slots?"+f.partyQuery()+"&date=2024-03-04", nil, &slots)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "09:30", slots[1].StartTime)
}

func TestExpandTwiceConflicts(t *testing.T) {
	f := newAPIFixture(t)
	sched := f.createSchedule(t)

	var errResp api.ErrorResponse
	status := f.do(t, http.MethodPost, "/schedules/"+sched.ID.String()+"/expand", nil, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_expanded", errResp.Error)
}

func TestBookingFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.createSchedule(t)

	pid := f.patient.ID.String()
	bookReq := api.BookAppointmentRequest{
		SpecialistID: f.specialist.ID.String(),
		BranchID:     f.branch.ID.String(),
		Date:         "2024-03-04",
		Time:         "09:00",
		PatientID:    &pid,
		Title:        "Checkup",
	}

	var appt api.AppointmentResponse
	status := f.do(t, http.MethodPost, "/appointments", bookReq, &appt)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "pending", appt.Status)

	// The same coordinates are now taken.
	var errResp api.ErrorResponse
	status = f.do(t, http.MethodPost, "/appointments", bookReq, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "slot_unavailable", errResp.Error)

	var check api.CheckResponse
	status = f.do(t, http.MethodGet, "/availability/check?"+f.partyQuery()+"&date=2024-03-04&time=09:00", nil, &check)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, check.Available)

	// Cancelling frees the slot.
	var updated api.AppointmentResponse
	status = f.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/status", api.StatusRequest{Status: "cancelled"}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", updated.Status)

	status = f.do(t, http.MethodGet, "/availability/check?"+f.partyQuery()+"&date=2024-03-04&time=09:00", nil, &check)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, check.Available)
}

func TestRescheduleEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.createSchedule(t)

	pid := f.patient.ID.String()
	var appt api.AppointmentResponse
	status := f.do(t, http.MethodPost, "/appointments", api.BookAppointmentRequest{
		SpecialistID: f.specialist.ID.String(),
		BranchID:     f.branch.ID.String(),
		Date:         "2024-03-04",
		Time:         "09:00",
		PatientID:    &pid,
	}, &appt)
	require.Equal(t, http.StatusCreated, status)

	newTime := "09:30"
	var moved api.AppointmentResponse
	status = f.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/reschedule", api.RescheduleRequest{NewTime: &newTime}, &moved)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, appt.SlotID, moved.SlotID)

	var detail api.AppointmentDetailResponse
	status = f.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil, &detail)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, detail.Slot)
	assert.Equal(t, "09:30", detail.Slot.StartTime)
	require.NotNil(t, detail.Patient)
	assert.Equal(t, f.patient.Name, detail.Patient.Name)
}

func TestDeleteAppointmentEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.createSchedule(t)

	pid := f.patient.ID.String()
	var appt api.AppointmentResponse
	status := f.do(t, http.MethodPost, "/appointments", api.BookAppointmentRequest{
		SpecialistID: f.specialist.ID.String(),
		BranchID:     f.branch.ID.String(),
		Date:         "2024-03-04",
		Time:         "09:00",
		PatientID:    &pid,
	}, &appt)
	require.Equal(t, http.StatusCreated, status)

	status = f.do(t, http.MethodDelete, "/appointments/"+appt.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNoContent, status)

	var errResp api.ErrorResponse
	status = f.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "appointment_not_found", errResp.Error)
}

func TestErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	sched := f.createSchedule(t)

	t.Run("malformed id is a 400", func(t *testing.T) {
		var errResp api.ErrorResponse
		status := f.do(t, http.MethodGet, "/schedules/not-a-uuid", nil, &errResp)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_id", errResp.Error)
	})

	t.Run("unknown schedule is a 404", func(t *testing.T) {
		var errResp api.ErrorResponse
		status := f.do(t, http.MethodGet, "/schedules/"+uuid.NewString(), nil, &errResp)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "schedule_not_found", errResp.Error)
	})

	t.Run("invalid definition params are a 400", func(t *testing.T) {
		var errResp api.ErrorResponse
		status := f.do(t, http.MethodPost, "/schedules", api.CreateScheduleRequest{
			SpecialistID:    f.specialist.ID.String(),
			BranchID:        f.branch.ID.String(),
			StartDate:       "2024-03-04",
			EndDate:         "2024-03-04",
			StartTime:       "10:00",
			EndTime:         "09:00",
			IntervalMinutes: 30,
		}, &errResp)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "validation_failed", errResp.Error)
	})

	t.Run("malformed date edit is a 400", func(t *testing.T) {
		var dates []api.DateResponse
		status := f.do(t, http.MethodGet, "/availability/dates?"+f.partyQuery(), nil, &dates)
		require.Equal(t, http.StatusOK, status)
		require.NotEmpty(t, dates)

		var errResp api.ErrorResponse
		status = f.do(t, http.MethodPatch, "/schedules/"+sched.ID.String()+"/dates/"+dates[0].ID.String(),
			api.EditDateRequest{Date: "not-a-date"}, &errResp)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "validation_failed", errResp.Error)
	})

	t.Run("invalid status transition is a 409", func(t *testing.T) {
		var errResp api.ErrorResponse
		status := f.do(t, http.MethodPost, "/schedules/"+sched.ID.String()+"/status", api.StatusRequest{Status: "finished"}, &errResp)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "invalid_transition", errResp.Error)
	})
}
