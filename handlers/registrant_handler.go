package handlers

import (
	"net/http"
	"strings"

	"github.com/Dosada05/tournament-officiating/services"
)

type RegistrantHandler struct {
	registrationService services.RegistrationService
}

func NewRegistrantHandler(rs services.RegistrationService) *RegistrantHandler {
	return &RegistrantHandler{registrationService: rs}
}

// ValidateHandler обрабатывает POST /tournaments/{tournamentID}/registrants/validate.
// It always answers 200; the result says whether the registrant is legal.
func (h *RegistrantHandler) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitRegistrantInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.registrationService.Validate(r.Context(), tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitHandler обрабатывает POST /tournaments/{tournamentID}/registrants
func (h *RegistrantHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitRegistrantInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registrant, err := h.registrationService.Submit(r.Context(), tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registrant": registrant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler обрабатывает GET /tournaments/{tournamentID}/registrants?session_id=...
func (h *RegistrantHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	registrants, err := h.registrationService.List(r.Context(), tournamentID, sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrants": registrants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteHandler обрабатывает DELETE /tournaments/{tournamentID}/registrants/{registrantID}
func (h *RegistrantHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	registrantID, err := getIDFromURL(r, "registrantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.registrationService.Delete(r.Context(), tournamentID, registrantID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReviewBatchHandler обрабатывает POST /tournaments/{tournamentID}/registrants/bulk/review
func (h *RegistrantHandler) ReviewBatchHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.BulkRegisterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.registrationService.ReviewBatch(r.Context(), tournamentID, input.Lines)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BulkRegisterHandler обрабатывает POST /tournaments/{tournamentID}/registrants/bulk
func (h *RegistrantHandler) BulkRegisterHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.BulkRegisterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registrants, err := h.registrationService.BulkRegister(r.Context(), tournamentID, input.Lines)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registrants": registrants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
