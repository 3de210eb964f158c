package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/service"
	"github.com/nomance-app/nomance/internal/transport/http/middleware"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

type MatchHandler struct {
	matchService *service.MatchService
}

func NewMatchHandler(matchService *service.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

func (h *MatchHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}

	match, err := h.matchService.Like(r.Context(), userID, input.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCannotLikeSelf):
			writeError(w, http.StatusBadRequest, "CANNOT_LIKE_SELF", "Cannot like yourself")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrAlreadyLiked):
			writeError(w, http.StatusConflict, "ALREADY_LIKED", "You already liked this user")
		case errors.Is(err, service.ErrAlreadyMatched):
			writeError(w, http.StatusConflict, "ALREADY_MATCHED", "You are already matched")
		default:
			jww.ERROR.Printf("like: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, match)
}

func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	matches, err := h.matchService.ListMatches(r.Context(), userID)
	if err != nil {
		jww.ERROR.Printf("list matches: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, matches)
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid match ID")
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), userID, matchID)
	if err != nil {
		writeMatchError(w, "get match", err)
		return
	}

	writeJSON(w, http.StatusOK, match)
}

// writeMatchError maps conversation access errors shared by match and
// message endpoints.
func writeMatchError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Match not found")
	case errors.Is(err, service.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this match")
	case errors.Is(err, service.ErrMatchNotAccepted):
		writeError(w, http.StatusForbidden, "MATCH_NOT_ACCEPTED", "This match has not been accepted yet")
	default:
		jww.ERROR.Printf("%s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
