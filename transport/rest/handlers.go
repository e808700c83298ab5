package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/blinktactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/entity"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/setup"
)

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)

	CategoriesHandler(w http.ResponseWriter, _ *http.Request)
	GameHandler(w http.ResponseWriter, r *http.Request)
}

type gameReader interface {
	Categories() []setup.Category
	GetGame(ctx context.Context, gameID string) (*entity.Game, error)
}

type errorResponse struct {
	Error  string          `json:"error"`
	Reason apperror.Reason `json:"reason"`
}

type categoriesResponse struct {
	Categories []setup.Category `json:"categories"`
}

type handlers struct {
	logger *slog.Logger
	games  gameReader
}

func NewHandlers(logger *slog.Logger, games gameReader) Handlers {
	return &handlers{
		logger: logger.With("component", "rest"),
		games:  games,
	}
}

func (that *handlers) CategoriesHandler(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusOK, categoriesResponse{Categories: that.games.Categories()})
}

func (that *handlers) GameHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "GameHandler")

	gameID := r.PathValue("id")

	game, err := that.games.GetGame(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, apperror.ErrGameNotFound) {
			that.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Reason: apperror.ReasonGameNotFound})
			return
		}

		if errors.Is(err, apperror.ErrInvalidState) {
			that.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Reason: apperror.ReasonInvalidState})
			return
		}

		log.Error("failed to get game", "gameID", gameID, "error", err)
		that.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Reason: apperror.ReasonInternal})
		return
	}

	that.writeJSON(w, http.StatusOK, game)
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
