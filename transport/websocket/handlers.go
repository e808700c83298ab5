package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/blinktactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/entity"
)

var (
	errTwoPlayersRequired = errors.New("exactly two players are required")
	errGameIDRequired     = errors.New("game id is required")
	errCellRequired       = errors.New("cell is required")
)

func (that *Server) handleNewGame(ctx context.Context, c *client, msg *Message) error {
	log := that.logger.With("method", "handleNewGame")

	payloadReq, err := parsePayload(msg)
	if err != nil {
		return that.sendError(c, msg.Action, err, nil)
	}

	if len(payloadReq.Players) != 2 {
		return that.sendError(c, msg.Action, fmt.Errorf("%w: %w", apperror.ErrInvalidConfiguration, errTwoPlayersRequired), nil)
	}

	game, err := that.uGame.StartGame(ctx, payloadReq.Players[0], payloadReq.Players[1])
	if err != nil {
		return that.reject(c, msg.Action, err, nil)
	}

	that.watch(c, game.ID)

	log.Info("game created", "gameID", game.ID)

	return that.sendMessage(c, msg.Action, ResponsePayload{Game: game})
}

func (that *Server) handleGameTurn(ctx context.Context, c *client, msg *Message) error {
	payloadReq, err := parseGamePayload(msg)
	if err != nil {
		return that.sendError(c, msg.Action, err, nil)
	}

	if payloadReq.Cell == nil {
		return that.sendError(c, msg.Action, badRequest(errCellRequired), nil)
	}

	gameID := payloadReq.Game.ID

	// a winning move pushes game:end before PlaceMarker returns
	that.watch(c, gameID)

	game, err := that.uGame.PlaceMarker(ctx, gameID, *payloadReq.Cell)
	if err != nil {
		if errors.Is(err, apperror.ErrGameNotFound) {
			that.unwatch(c, gameID)
		}
		return that.reject(c, msg.Action, err, game)
	}

	that.broadcast(msg.Action, ResponsePayload{Game: game})

	return nil
}

func (that *Server) handleGameReset(ctx context.Context, c *client, msg *Message) error {
	payloadReq, err := parseGamePayload(msg)
	if err != nil {
		return that.sendError(c, msg.Action, err, nil)
	}

	game, err := that.uGame.ResetGame(ctx, payloadReq.Game.ID)
	if err != nil {
		return that.reject(c, msg.Action, err, nil)
	}

	that.watch(c, game.ID)

	that.broadcast(msg.Action, ResponsePayload{Game: game})

	return nil
}

func (that *Server) handleGameState(ctx context.Context, c *client, msg *Message) error {
	payloadReq, err := parseGamePayload(msg)
	if err != nil {
		return that.sendError(c, msg.Action, err, nil)
	}

	game, err := that.uGame.GetGame(ctx, payloadReq.Game.ID)
	if err != nil {
		return that.reject(c, msg.Action, err, nil)
	}

	that.watch(c, game.ID)

	return that.sendMessage(c, msg.Action, ResponsePayload{Game: game})
}

func (that *Server) handleGameLeave(ctx context.Context, c *client, msg *Message) error {
	log := that.logger.With("method", "handleGameLeave")

	payloadReq, err := parseGamePayload(msg)
	if err != nil {
		return that.sendError(c, msg.Action, err, nil)
	}

	gameID := payloadReq.Game.ID

	game, err := that.uGame.GetGame(ctx, gameID)
	if err != nil {
		return that.reject(c, msg.Action, err, nil)
	}

	if err = that.uGame.CloseGame(ctx, gameID); err != nil {
		return that.reject(c, msg.Action, err, nil)
	}

	notified := false
	for _, watcher := range that.unwatchAll(gameID) {
		if watcher == c {
			notified = true
		}

		if err = that.sendMessage(watcher, msg.Action, ResponsePayload{Game: game}); err != nil {
			log.Error("failed to send game:leave message", "gameID", gameID, "error", err)
		}
	}

	if !notified {
		if err = that.sendMessage(c, msg.Action, ResponsePayload{Game: game}); err != nil {
			return err
		}
	}

	log.Info("game left", "gameID", gameID)

	return nil
}

// handleGameEnd pushes the final board and the winner to everyone watching the game.
func (that *Server) handleGameEnd(end entity.GameEnd) {
	log := that.logger.With("method", "handleGameEnd")

	game, err := that.uGame.GetGame(context.Background(), end.GameID)
	if err != nil {
		log.Error("failed to get finished game", "gameID", end.GameID, "error", err)
		return
	}

	winner := end.Winner
	that.broadcast(actionGameEnd, ResponsePayload{Game: game, Winner: &winner})
}

// reject answers a failed request. Unexpected failures are logged before the
// client gets a generic error.
func (that *Server) reject(c *client, action string, err error, game *entity.Game) error {
	if apperror.IsRejection(err) {
		that.logger.Debug("request rejected", "action", action, "reason", apperror.ReasonOf(err))
	} else {
		that.logger.Error("request failed", "action", action, "error", err)
	}

	return that.sendError(c, action, err, game)
}

func parsePayload(msg *Message) (Payload, error) {
	var payloadReq Payload

	if len(msg.Payload) == 0 {
		return payloadReq, nil
	}

	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return Payload{}, badRequest(err)
	}

	return payloadReq, nil
}

func parseGamePayload(msg *Message) (Payload, error) {
	payloadReq, err := parsePayload(msg)
	if err != nil {
		return Payload{}, err
	}

	if payloadReq.Game == nil || payloadReq.Game.ID == "" {
		return Payload{}, badRequest(errGameIDRequired)
	}

	return payloadReq, nil
}
