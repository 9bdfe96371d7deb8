package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/availability-booking/internal/booking"
	"github.com/clinicore/availability-booking/internal/schedule"
)

func bookAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		specialistID, err := uuid.Parse(req.SpecialistID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_specialist_id", "specialist_id must be a valid UUID")
			return
		}
		branchID, err := uuid.Parse(req.BranchID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branch_id must be a valid UUID")
			return
		}
		day, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		patient := booking.PatientRef{Name: req.PatientName}
		if req.PatientID != nil {
			id, err := uuid.Parse(*req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			patient.ID = &id
		}

		var roomID *uuid.UUID
		if req.RoomID != nil {
			id, err := uuid.Parse(*req.RoomID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_room_id", "room_id must be a valid UUID")
				return
			}
			roomID = &id
		}

		appt, err := svc.Book(r.Context(), booking.BookRequest{
			SpecialistID: specialistID,
			BranchID:     branchID,
			Day:          day,
			StartTime:    req.Time,
			Patient:      patient,
			Metadata: booking.Metadata{
				Title:     req.Title,
				VisitType: req.VisitType,
				Cost:      req.Cost,
				Notes:     req.Notes,
				RoomID:    roomID,
			},
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
	}
}

func rescheduleAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var newDay *time.Time
		if req.NewDate != nil {
			day, err := schedule.ParseDate(*req.NewDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
				return
			}
			newDay = &day
		}

		appt, err := svc.Reschedule(r.Context(), id, newDay, req.NewTime)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func setAppointmentStatusHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		appt, err := svc.SetStatus(r.Context(), id, booking.AppointmentStatus(req.Status))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
