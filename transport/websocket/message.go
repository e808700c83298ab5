package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/blinktactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/entity"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/setup"
)

const (
	actionGameNew   = "game:new"
	actionGameTurn  = "game:turn"
	actionGameReset = "game:reset"
	actionGameState = "game:state"
	actionGameLeave = "game:leave"
	actionGameEnd   = "game:end"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type GameRef struct {
	ID string `json:"id"`
}

type Payload struct {
	Players []setup.PlayerRequest `json:"players,omitempty"`
	Game    *GameRef              `json:"game,omitempty"`
	Cell    *int                  `json:"cell,omitempty"`
}

type ResponsePayload struct {
	Game   *entity.Game    `json:"game,omitempty"`
	Winner *entity.Winner  `json:"winner,omitempty"`
	Error  string          `json:"error,omitempty"`
	Reason apperror.Reason `json:"reason,omitempty"`
}

type response struct {
	Action  string          `json:"action"`
	Payload ResponsePayload `json:"payload"`
}

func (that *Server) sendMessage(c *client, action string, payload ResponsePayload) error {
	if err := c.writeJSON(response{Action: action, Payload: payload}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// sendError replies with the rejection reason, and the current game when there is one.
func (that *Server) sendError(c *client, action string, err error, game *entity.Game) error {
	payload := ResponsePayload{
		Game:   game,
		Error:  err.Error(),
		Reason: apperror.ReasonOf(err),
	}

	if payload.Reason == apperror.ReasonInternal {
		// internal failures are logged, not shown
		payload.Error = "internal error"
	}

	if err = that.sendMessage(c, action, payload); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}

// broadcast sends a game update to every connection watching it.
func (that *Server) broadcast(action string, payload ResponsePayload) {
	log := that.logger.With("method", "broadcast", "action", action)

	for _, c := range that.watchersOf(payload.Game.ID) {
		if err := that.sendMessage(c, action, payload); err != nil {
			log.Error("failed to send game update", "gameID", payload.Game.ID, "error", err)
		}
	}
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", apperror.ErrBadRequest, err)
}

func unknownAction(action string) error {
	return fmt.Errorf("%w: %q", apperror.ErrUnknownAction, action)
}
