package api

import (
	"errors"
	"net/http"

	"github.com/clinicore/availability-booking/internal/booking"
	redisclient "github.com/clinicore/availability-booking/internal/redis"
	"github.com/clinicore/availability-booking/internal/schedule"
)

// handleDomainError maps domain sentinels onto the error envelope. Conflict
// codes mean the same request will keep failing; slot_being_booked is the one
// transient code a client should retry.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrValidation), errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())

	case errors.Is(err, schedule.ErrDefinitionNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	case errors.Is(err, schedule.ErrDateNotFound):
		writeError(w, http.StatusNotFound, "date_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrSpecialistNotFound):
		writeError(w, http.StatusNotFound, "specialist_not_found", err.Error())
	case errors.Is(err, booking.ErrBranchNotFound):
		writeError(w, http.StatusNotFound, "branch_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())

	case errors.Is(err, schedule.ErrAlreadyExpanded):
		writeError(w, http.StatusConflict, "already_expanded", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, schedule.ErrInvalidTransition), errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, schedule.ErrSlotOccupied):
		writeError(w, http.StatusConflict, "slot_occupied", err.Error())
	case errors.Is(err, schedule.ErrDateExists):
		writeError(w, http.StatusConflict, "date_exists", err.Error())
	case errors.Is(err, schedule.ErrSlotExists):
		writeError(w, http.StatusConflict, "slot_exists", err.Error())

	case errors.Is(err, booking.ErrBusy), errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
