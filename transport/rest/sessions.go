package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
)

type sessionUseCase interface {
	CreateSession(ctx context.Context) (*entity.Session, error)
	GetState(ctx context.Context, id string) (*entity.Session, error)
	DeleteSession(ctx context.Context, id string) error

	ApplyMove(ctx context.Context, id string, cell int) (tictactoe.MoveResult, error)
	Reset(ctx context.Context, id string) (*entity.Session, error)
	NewGame(ctx context.Context, id string) (*entity.Session, error)
}

const maxMoveBodySize = 1024

type moveRequest struct {
	Cell *int `json:"cell"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type SessionHandlers struct {
	logger   *slog.Logger
	sessions sessionUseCase
}

func NewSessionHandlers(logger *slog.Logger, sessions sessionUseCase) *SessionHandlers {
	return &SessionHandlers{
		logger:   logger.With("component", "rest"),
		sessions: sessions,
	}
}

func (that *SessionHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := that.sessions.CreateSession(r.Context())
	if err != nil {
		that.respondError(w, "CreateSession", err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (that *SessionHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := that.sessions.GetState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.respondError(w, "GetSession", err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (that *SessionHandlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := that.sessions.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		that.respondError(w, "DeleteSession", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (that *SessionHandlers) ApplyMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMoveBodySize)).Decode(&req)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return
	}

	if err != nil || req.Cell == nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "cell is required"})
		return
	}

	result, err := that.sessions.ApplyMove(r.Context(), chi.URLParam(r, "id"), *req.Cell)
	if errors.Is(err, apperror.ErrInvalidMove) {
		respondJSON(w, http.StatusConflict, result)
		return
	}

	if err != nil {
		that.respondError(w, "ApplyMove", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (that *SessionHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	session, err := that.sessions.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.respondError(w, "Reset", err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (that *SessionHandlers) NewGame(w http.ResponseWriter, r *http.Request) {
	session, err := that.sessions.NewGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.respondError(w, "NewGame", err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (that *SessionHandlers) respondError(w http.ResponseWriter, method string, err error) {
	if errors.Is(err, apperror.ErrSessionNotFound) {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: apperror.ErrSessionNotFound.Error()})
		return
	}

	that.logger.Error("request failed", "method", method, "error", err)
	respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}
