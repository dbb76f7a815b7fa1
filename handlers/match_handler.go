package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Dosada05/family-ranking/middleware"
	"github.com/Dosada05/family-ranking/models"
	"github.com/Dosada05/family-ranking/services"
)

type MatchHandler struct {
	matchService   services.MatchService
	rankingService services.RankingService
}

func NewMatchHandler(matchService services.MatchService, rankingService services.RankingService) *MatchHandler {
	return &MatchHandler{
		matchService:   matchService,
		rankingService: rankingService,
	}
}

func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	creatorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.ProposeMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Propose(r.Context(), creatorID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchService.Accept)
}

func (h *MatchHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchService.Reject)
}

func (h *MatchHandler) RequestSettlement(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchService.RequestSettlement)
}

func (h *MatchHandler) ConfirmSettlement(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchService.ConfirmSettlement)
}

// transition runs one of the actor-plus-match-id lifecycle operations and
// writes the resulting match back.
func (h *MatchHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actorID, matchID int) (*models.Match, error),
) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := op(r.Context(), actorID, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMine returns the caller's matches, optionally filtered with a
// ?status= query parameter.
func (h *MatchHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var status *models.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		candidate := models.MatchStatus(raw)
		switch candidate {
		case models.MatchStatusPending, models.MatchStatusRejected, models.MatchStatusCompleted:
			status = &candidate
		default:
			badRequestResponse(w, r, errors.New("status must be PENDING, REJECTED or COMPLETED"))
			return
		}
	}

	matches, err := h.matchService.ListMyMatches(r.Context(), actorID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Ranking returns the current standings of a game, recomputed from its
// completed match history.
func (h *MatchHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("game_id")
	if raw == "" {
		badRequestResponse(w, r, errors.New("game_id query parameter is required"))
		return
	}
	gameID, err := strconv.Atoi(raw)
	if err != nil || gameID <= 0 {
		badRequestResponse(w, r, errors.New("game_id must be a positive integer"))
		return
	}

	entries, err := h.rankingService.ComputeRanking(r.Context(), gameID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"ranking": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
