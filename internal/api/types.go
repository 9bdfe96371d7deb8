package api

import (
	"github.com/google/uuid"

	"github.com/clinicore/availability-booking/internal/booking"
	"github.com/clinicore/availability-booking/internal/schedule"
)

type CreateScheduleRequest struct {
	SpecialistID    string `json:"specialist_id"`
	BranchID        string `json:"branch_id"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	IntervalMinutes int    `json:"interval_minutes"`
}

type ScheduleResponse struct {
	ID              uuid.UUID          `json:"id"`
	SpecialistID    uuid.UUID          `json:"specialist_id"`
	BranchID        uuid.UUID          `json:"branch_id"`
	StartDate       string             `json:"start_date"`
	EndDate         string             `json:"end_date"`
	StartTime       string             `json:"start_time"`
	EndTime         string             `json:"end_time"`
	IntervalMinutes int                `json:"interval_minutes"`
	Status          string             `json:"status"`
	Expansion       *ExpansionResponse `json:"expansion,omitempty"`
	ExpansionError  string             `json:"expansion_error,omitempty"`
}

type ExpansionResponse struct {
	DatesCreated int `json:"dates_created"`
	SlotsCreated int `json:"slots_created"`
}

type DateResponse struct {
	ID           uuid.UUID `json:"id"`
	DefinitionID uuid.UUID `json:"schedule_id"`
	Date         string    `json:"date"`
	Status       string    `json:"status"`
}

type SlotResponse struct {
	ID              uuid.UUID `json:"id"`
	AvailableDateID uuid.UUID `json:"date_id"`
	DefinitionID    uuid.UUID `json:"schedule_id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Status          string    `json:"status"`
}

type CheckResponse struct {
	Available bool `json:"available"`
}

type BookAppointmentRequest struct {
	SpecialistID string  `json:"specialist_id"`
	BranchID     string  `json:"branch_id"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	PatientID    *string `json:"patient_id,omitempty"`
	PatientName  string  `json:"patient_name,omitempty"`
	Title        string  `json:"title,omitempty"`
	VisitType    string  `json:"visit_type,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	RoomID       *string `json:"room_id,omitempty"`
}

type RescheduleRequest struct {
	NewDate *string `json:"new_date,omitempty"`
	NewTime *string `json:"new_time,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type EditSlotRequest struct {
	StartTime string `json:"start_time"`
}

type EditDateRequest struct {
	Date string `json:"date"`
}

type CreateDateRequest struct {
	Date string `json:"date"`
}

type CreateSlotRequest struct {
	DateID    string `json:"date_id"`
	StartTime string `json:"start_time"`
}

type AppointmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	SlotID       uuid.UUID  `json:"slot_id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	SpecialistID uuid.UUID  `json:"specialist_id"`
	BranchID     uuid.UUID  `json:"branch_id"`
	RoomID       *uuid.UUID `json:"room_id,omitempty"`
	Title        string     `json:"title,omitempty"`
	VisitType    string     `json:"visit_type,omitempty"`
	Cost         float64    `json:"cost,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Status       string     `json:"status"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	Slot       *SlotResponse `json:"slot,omitempty"`
	Patient    *PartyInfo    `json:"patient,omitempty"`
	Specialist *PartyInfo    `json:"specialist,omitempty"`
	Branch     *PartyInfo    `json:"branch,omitempty"`
}

type PartyInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toScheduleResponse(def *schedule.ScheduleDefinition) ScheduleResponse {
	return ScheduleResponse{
		ID:              def.ID,
		SpecialistID:    def.SpecialistID,
		BranchID:        def.BranchID,
		StartDate:       schedule.FormatDate(def.StartDate),
		EndDate:         schedule.FormatDate(def.EndDate),
		StartTime:       def.StartTime,
		EndTime:         def.EndTime,
		IntervalMinutes: def.IntervalMinutes,
		Status:          string(def.Status),
	}
}

func toDateResponse(d *schedule.AvailableDate) DateResponse {
	return DateResponse{
		ID:           d.ID,
		DefinitionID: d.DefinitionID,
		Date:         schedule.FormatDate(d.Date),
		Status:       string(d.Status),
	}
}

func toSlotResponse(s *schedule.TimeSlot) SlotResponse {
	return SlotResponse{
		ID:              s.ID,
		AvailableDateID: s.AvailableDateID,
		DefinitionID:    s.DefinitionID,
		Date:            schedule.FormatDate(s.Date),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Status:          string(s.Status),
	}
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		SlotID:       a.SlotID,
		PatientID:    a.PatientID,
		SpecialistID: a.SpecialistID,
		BranchID:     a.BranchID,
		RoomID:       a.RoomID,
		Title:        a.Title,
		VisitType:    a.VisitType,
		Cost:         a.Cost,
		Notes:        a.Notes,
		Status:       string(a.Status),
	}
}

func toAppointmentDetailResponse(d *booking.AppointmentDetail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
	}
	if d.Slot != nil {
		slot := toSlotResponse(d.Slot)
		resp.Slot = &slot
	}
	if d.Patient != nil {
		resp.Patient = &PartyInfo{ID: d.Patient.ID, Name: d.Patient.Name}
	}
	if d.Specialist != nil {
		resp.Specialist = &PartyInfo{ID: d.Specialist.ID, Name: d.Specialist.Name}
	}
	if d.Branch != nil {
		resp.Branch = &PartyInfo{ID: d.Branch.ID, Name: d.Branch.Name}
	}
	return resp
}
