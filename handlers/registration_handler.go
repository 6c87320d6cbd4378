package handlers

import (
	"net/http"

	"github.com/svxarena/tourneyzone/middleware"
	"github.com/svxarena/tourneyzone/services"
)

type RegistrationHandler struct {
	registrationService services.RegistrationService
}

func NewRegistrationHandler(rs services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrationService: rs}
}

// RegisterTeam godoc
// @Summary      Register the caller's team; the organizer checks the UTR
// @Tags         player
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      int                         true  "tournament id"
// @Param        input  body      services.RegisterTeamInput  true  "team and payment details"
// @Success      201    {object}  map[string]interface{}
// @Failure      409    {object}  map[string]interface{}
// @Router       /player/tournaments/{id}/register [post]
func (h *RegistrationHandler) RegisterTeam(w http.ResponseWriter, r *http.Request) {
	playerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.RegisterTeamInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	reg, err := h.registrationService.Register(r.Context(), playerID, tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMine godoc
// @Summary      Registrations of the caller's teams
// @Tags         player
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /player/registrations [get]
func (h *RegistrationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	playerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	regs, err := h.registrationService.ListMyRegistrations(r.Context(), playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": regs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
