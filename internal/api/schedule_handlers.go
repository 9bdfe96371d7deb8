package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/availability-booking/internal/schedule"
)

func createScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateScheduleRequest
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
		startDate, err := schedule.ParseDate(req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		endDate, err := schedule.ParseDate(req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		def, err := svc.CreateDefinition(r.Context(), schedule.DefinitionParams{
			SpecialistID:    specialistID,
			BranchID:        branchID,
			StartDate:       startDate,
			EndDate:         endDate,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			IntervalMinutes: req.IntervalMinutes,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := toScheduleResponse(def)

		// Expansion failure does not undo the definition: the caller gets a
		// 201 either way and can retry the expansion on its own.
		if r.URL.Query().Get("expand") == "true" {
			result, expErr := svc.Expand(r.Context(), def.ID)
			if expErr != nil {
				resp.ExpansionError = expErr.Error()
			} else {
				resp.Expansion = &ExpansionResponse{
					DatesCreated: result.DatesCreated,
					SlotsCreated: result.SlotsCreated,
				}
			}
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func getScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "scheduleID")
		if !ok {
			return
		}
		def, err := svc.GetDefinition(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(def))
	}
}

func expandScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "scheduleID")
		if !ok {
			return
		}
		result, err := svc.Expand(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ExpansionResponse{
			DatesCreated: result.DatesCreated,
			SlotsCreated: result.SlotsCreated,
		})
	}
}

func setScheduleStatusHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "scheduleID")
		if !ok {
			return
		}
		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		def, err := svc.SetDefinitionStatus(r.Context(), id, schedule.DefinitionStatus(req.Status))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(def))
	}
}

func listDatesHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialistID, branchID, ok := parsePartyQuery(w, r)
		if !ok {
			return
		}
		dates, err := svc.ListAvailableDates(r.Context(), specialistID, branchID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		resp := make([]DateResponse, 0, len(dates))
		for i := range dates {
			resp = append(resp, toDateResponse(&dates[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialistID, branchID, ok := parsePartyQuery(w, r)
		if !ok {
			return
		}
		day, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		slots, err := svc.ListAvailableSlots(r.Context(), specialistID, branchID, day)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, toSlotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func checkAvailabilityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialistID, branchID, ok := parsePartyQuery(w, r)
		if !ok {
			return
		}
		day, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		available, err := svc.CheckSlotAvailability(r.Context(), specialistID, branchID, day, r.URL.Query().Get("time"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CheckResponse{Available: available})
	}
}

func createDateHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheduleID, ok := parseIDParam(w, r, "scheduleID")
		if !ok {
			return
		}
		var req CreateDateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		day, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		date, err := svc.CreateDate(r.Context(), scheduleID, day)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDateResponse(date))
	}
}

func dateActionHandler(svc *schedule.Service, action func(*schedule.Service, *http.Request, uuid.UUID, uuid.UUID) (*schedule.AvailableDate, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheduleID, ok := parseIDParam(w, r, "scheduleID")
		if !ok {
			return
		}
		dateID, ok := parseIDParam(w, r, "dateID")
		if !ok {
			return
		}
		date, err := action(svc, r, scheduleID, dateID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDateResponse(date))
	}
}

func openDateHandler(svc *schedule.Service) http.HandlerFunc {
	return dateActionHandler(svc, func(s *schedule.Service, r *http.Request, scheduleID, dateID uuid.UUID) (*schedule.AvailableDate, error) {
		return s.OpenDate(r.Context(), scheduleID, dateID)
	})
}

func closeDateHandler(svc *schedule.Service) http.HandlerFunc {
	return dateActionHandler(svc, func(s *schedule.Service, r *http.Request, scheduleID, dateID uuid.UUID) (*schedule.AvailableDate, error) {
		return s.CloseDate(r.Context(), scheduleID, dateID)
	})
}

func editDateHandler(svc *schedule.Service) http.HandlerFunc {
	return dateActionHandler(svc, func(s *schedule.Service, r *http.Request, scheduleID, dateID uuid.UUID) (*schedule.AvailableDate, error) {
		var req EditDateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, schedule.ErrValidation
		}
		day, err := schedule.ParseDate(req.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", schedule.ErrValidation, err)
		}
		return s.EditDate(r.Context(), scheduleID, dateID, day)
	})
}

func deleteDateHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheduleID, ok := parseIDParam(w, r, "scheduleID")
		if !ok {
			return
		}
		dateID, ok := parseIDParam(w, r, "dateID")
		if !ok {
			return
		}
		if err := svc.DeleteDate(r.Context(), scheduleID, dateID); err != nil {
			handleDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheduleID, ok := parseIDParam(w, r, "scheduleID")
		if !ok {
			return
		}
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		dateID, err := uuid.Parse(req.DateID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_id", "date_id must be a valid UUID")
			return
		}
		slot, err := svc.CreateSlot(r.Context(), scheduleID, dateID, req.StartTime)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

func slotActionHandler(svc *schedule.Service, action func(*schedule.Service, *http.Request, uuid.UUID, uuid.UUID) (*schedule.TimeSlot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheduleID, ok := parseIDParam(w, r, "scheduleID")
		if !ok {
			return
		}
		slotID, ok := parseIDParam(w, r, "slotID")
		if !ok {
			return
		}
		slot, err := action(svc, r, scheduleID, slotID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func openSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return slotActionHandler(svc, func(s *schedule.Service, r *http.Request, scheduleID, slotID uuid.UUID) (*schedule.TimeSlot, error) {
		return s.OpenSlot(r.Context(), scheduleID, slotID)
	})
}

func closeSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return slotActionHandler(svc, func(s *schedule.Service, r *http.Request, scheduleID, slotID uuid.UUID) (*schedule.TimeSlot, error) {
		return s.CloseSlot(r.Context(), scheduleID, slotID)
	})
}

func editSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return slotActionHandler(svc, func(s *schedule.Service, r *http.Request, scheduleID, slotID uuid.UUID) (*schedule.TimeSlot, error) {
		var req EditSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, schedule.ErrValidation
		}
		return s.EditSlot(r.Context(), scheduleID, slotID, req.StartTime)
	})
}

func deleteSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheduleID, ok := parseIDParam(w, r, "scheduleID")
		if !ok {
			return
		}
		slotID, ok := parseIDParam(w, r, "slotID")
		if !ok {
			return
		}
		if err := svc.DeleteSlot(r.Context(), scheduleID, slotID); err != nil {
			handleDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePartyQuery(w http.ResponseWriter, r *http.Request) (specialistID, branchID uuid.UUID, ok bool) {
	specialistID, err := uuid.Parse(r.URL.Query().Get("specialist_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_specialist_id", "specialist_id must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}
	branchID, err = uuid.Parse(r.URL.Query().Get("branch_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_branch_id", "branch_id must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}
	return specialistID, branchID, true
}
