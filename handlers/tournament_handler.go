package handlers

import (
	"errors"
	"net/http"

	"github.com/svxarena/tourneyzone/middleware"
	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/repositories"
	"github.com/svxarena/tourneyzone/services"
)

const defaultTournamentPageSize = 20

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts}
}

type rejectRegistrationInput struct {
	Reason string `json:"reason" validate:"max=200"`
}

// ListHandler godoc
// @Summary      List tournaments
// @Tags         tournaments
// @Produce      json
// @Param        organizer_id  query  int     false  "organizer id"
// @Param        game          query  string  false  "game name"
// @Param        type          query  string  false  "regular or scrim"
// @Param        status        query  string  false  "upcoming, ongoing or completed"
// @Param        limit         query  int     false  "page size"
// @Param        offset        query  int     false  "offset"
// @Success      200  {object}  map[string]interface{}
// @Router       /tournaments [get]
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := tournamentFilterFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournaments, err := h.tournamentService.ListTournaments(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler godoc
// @Summary      Tournament details; registrations and room password only for the owner
// @Tags         tournaments
// @Produce      json
// @Param        tournamentID  path  int  true  "tournament id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /tournaments/{tournamentID} [get]
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	viewerID, viewerRole := middleware.OptionalViewer(r.Context())
	tournament, err := h.tournamentService.GetTournament(r.Context(), id, viewerID, viewerRole)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResultsHandler godoc
// @Summary      Published results, newest first
// @Tags         tournaments
// @Produce      json
// @Param        limit  query  int  false  "max results"
// @Success      200  {object}  map[string]interface{}
// @Router       /results [get]
func (h *TournamentHandler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}

	results, err := h.tournamentService.ListResults(r.Context(), n)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateHandler godoc
// @Summary      Create a tournament; the listing fee is charged from the organizer wallet
// @Tags         organizer
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input  body      services.CreateTournamentInput  true  "tournament"
// @Success      201    {object}  map[string]interface{}
// @Failure      402    {object}  map[string]interface{}
// @Router       /organizer/tournaments [post]
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create tournament")
		return
	}

	var input services.CreateTournamentInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), organizerID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMineHandler godoc
// @Summary      Tournaments owned by the caller
// @Tags         organizer
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /organizer/tournaments [get]
func (h *TournamentHandler) ListMineHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	filter, err := tournamentFilterFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	filter.OrganizerID = &organizerID

	tournaments, err := h.tournamentService.ListTournaments(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateHandler godoc
// @Summary      Update tournament details
// @Tags         organizer
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      int                             true  "tournament id"
// @Param        input  body      services.UpdateTournamentInput  true  "fields to change"
// @Success      200    {object}  map[string]interface{}
// @Failure      409    {object}  map[string]interface{}
// @Router       /organizer/tournaments/{id} [put]
func (h *TournamentHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateTournamentInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	tournament, err := h.tournamentService.UpdateTournament(r.Context(), organizerID, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteHandler godoc
// @Summary      Delete a tournament that has not been settled
// @Tags         organizer
// @Security     BearerAuth
// @Param        id  path  int  true  "tournament id"
// @Success      204
// @Failure      409  {object}  map[string]interface{}
// @Router       /organizer/tournaments/{id} [delete]
func (h *TournamentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.DeleteTournament(r.Context(), actorID, role, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveRegistrationHandler godoc
// @Summary      Accept a pending registration
// @Tags         organizer
// @Produce      json
// @Security     BearerAuth
// @Param        id              path  int  true  "tournament id"
// @Param        registrationID  path  int  true  "registration id"
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /organizer/tournaments/{id}/registrations/{registrationID}/approve [post]
func (h *TournamentHandler) ApproveRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, tournamentID, registrationID, ok := h.registrationPath(w, r)
	if !ok {
		return
	}

	reg, err := h.tournamentService.ApproveRegistration(r.Context(), organizerID, tournamentID, registrationID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RejectRegistrationHandler godoc
// @Summary      Reject a pending registration
// @Tags         organizer
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id              path  int                      true   "tournament id"
// @Param        registrationID  path  int                      true   "registration id"
// @Param        input           body  rejectRegistrationInput  false  "reason, defaults to Invalid UTR"
// @Success      200  {object}  map[string]interface{}
// @Router       /organizer/tournaments/{id}/registrations/{registrationID}/reject [post]
func (h *TournamentHandler) RejectRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, tournamentID, registrationID, ok := h.registrationPath(w, r)
	if !ok {
		return
	}

	var input rejectRegistrationInput
	if r.ContentLength != 0 {
		if !decodeAndValidate(w, r, &input) {
			return
		}
	}

	reg, err := h.tournamentService.RejectRegistration(r.Context(), organizerID, tournamentID, registrationID, input.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ShareRoomHandler godoc
// @Summary      Share room id and password with every accepted team
// @Tags         organizer
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      int                        true  "tournament id"
// @Param        input  body      services.RoomDetailsInput  true  "room details"
// @Success      200    {object}  map[string]interface{}
// @Router       /organizer/tournaments/{id}/room [post]
func (h *TournamentHandler) ShareRoomHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.RoomDetailsInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	sent, err := h.tournamentService.ShareRoomDetails(r.Context(), organizerID, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"emails_queued": sent}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitResultsHandler godoc
// @Summary      Publish the podium and settle the prize pool
// @Tags         organizer
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      int                          true  "tournament id"
// @Param        input  body      services.SubmitResultsInput  true  "leader usernames of the top three teams"
// @Success      200    {object}  map[string]interface{}
// @Failure      409    {object}  map[string]interface{}
// @Failure      422    {object}  map[string]interface{}
// @Router       /organizer/tournaments/{id}/results [post]
func (h *TournamentHandler) SubmitResultsHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitResultsInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	settlement, err := h.tournamentService.SubmitResults(r.Context(), organizerID, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"settlement": settlement}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) registrationPath(w http.ResponseWriter, r *http.Request) (organizerID, tournamentID, registrationID int, ok bool) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return 0, 0, 0, false
	}
	tournamentID, err = getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, 0, false
	}
	registrationID, err = getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, 0, false
	}
	return organizerID, tournamentID, registrationID, true
}

func tournamentFilterFromQuery(r *http.Request) (repositories.ListTournamentsFilter, error) {
	filter := repositories.ListTournamentsFilter{Limit: defaultTournamentPageSize}

	organizerID, err := queryInt(r, "organizer_id")
	if err != nil {
		return filter, err
	}
	filter.OrganizerID = organizerID
	filter.Game = queryString(r, "game")

	if raw := queryString(r, "type"); raw != nil {
		t := models.TournamentType(*raw)
		if t != models.TournamentTypeRegular && t != models.TournamentTypeScrim {
			return filter, errors.New("invalid type query parameter")
		}
		filter.Type = &t
	}
	if raw := queryString(r, "status"); raw != nil {
		s := models.TournamentStatus(*raw)
		switch s {
		case models.StatusUpcoming, models.StatusOngoing, models.StatusCompleted:
			filter.Status = &s
		default:
			return filter, errors.New("invalid status query parameter")
		}
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		return filter, err
	}
	if limit != nil && *limit > 0 {
		filter.Limit = *limit
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return filter, err
	}
	if offset != nil {
		filter.Offset = *offset
	}
	return filter, nil
}
