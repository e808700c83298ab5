package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/blinktactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/blinktactoe"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/entity"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/pkg"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/random"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/setup"
)

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	DeleteByID(ctx context.Context, id string) error
}

// GameEndListener is told about every won game.
type GameEndListener func(end entity.GameEnd)

// RandomizerFactory builds the marker randomizer of a new or reloaded game.
type RandomizerFactory func() (blinktactoe.Randomizer, error)

// SeededRandomizers returns per-game generators; seed 0 means a fresh crypto seed per game.
func SeededRandomizers(seed int64) RandomizerFactory {
	newRand := random.Factory(seed)

	return func() (blinktactoe.Randomizer, error) {
		rnd, err := newRand()
		if err != nil {
			return nil, err
		}
		return rnd, nil
	}
}

// session serializes a game's move with the write that persists it.
type session struct {
	mu       sync.Mutex
	engine   *blinktactoe.Engine
	lastUsed time.Time
	// closed is set under mu once the game is deleted
	closed bool
}

type GameManager struct {
	logger        *slog.Logger
	gameRepo      gameRepo
	catalog       *setup.Catalog
	newRandomizer RandomizerFactory
	now           func() time.Time

	sessionsMutex sync.Mutex
	sessions      map[string]*session

	listenersMutex sync.RWMutex
	listeners      []GameEndListener
}

func NewGameManager(logger *slog.Logger, gameRepo gameRepo, catalog *setup.Catalog, newRandomizer RandomizerFactory) *GameManager {
	if catalog == nil {
		catalog = setup.NewCatalog()
	}

	if newRandomizer == nil {
		newRandomizer = SeededRandomizers(0)
	}

	return &GameManager{
		logger:        logger.With("component", "game_manager"),
		gameRepo:      gameRepo,
		catalog:       catalog,
		newRandomizer: newRandomizer,
		now:           time.Now,
		sessions:      make(map[string]*session),
	}
}

func (that *GameManager) Categories() []setup.Category {
	return that.catalog.Categories()
}

// OnGameEnd registers a listener for won games.
func (that *GameManager) OnGameEnd(listener GameEndListener) {
	that.listenersMutex.Lock()
	defer that.listenersMutex.Unlock()

	that.listeners = append(that.listeners, listener)
}

// StartGame validates the setup of both players and opens a new game.
func (that *GameManager) StartGame(ctx context.Context, player1, player2 setup.PlayerRequest) (*entity.Game, error) {
	log := that.logger.With("method", "StartGame")

	players, err := that.catalog.Validate(player1, player2)
	if err != nil {
		return nil, fmt.Errorf("failed to validate setup: %w", err)
	}

	gameID := pkg.GenerateGameID()

	engine, err := that.newEngine(gameID)
	if err != nil {
		return nil, err
	}

	state, err := engine.Initialize(players[0], players[1])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize game: %w", err)
	}

	game := entity.NewGame(gameID, players, state)
	if err = that.updateGame(ctx, game); err != nil {
		return nil, err
	}

	that.sessionsMutex.Lock()
	that.sessions[gameID] = &session{engine: engine, lastUsed: that.now()}
	that.sessionsMutex.Unlock()

	log.Info("game started", "gameID", gameID, "player1", players[0].Name, "player2", players[1].Name)

	return game, nil
}

// PlaceMarker plays the current player's turn. A rejected move returns the
// unchanged game together with the rejection. A move that cannot be stored is
// not played.
func (that *GameManager) PlaceMarker(ctx context.Context, gameID string, cell int) (*entity.Game, error) {
	sess, err := that.getSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	return that.placeMarker(ctx, gameID, sess, cell)
}

func (that *GameManager) placeMarker(ctx context.Context, gameID string, sess *session, cell int) (*entity.Game, error) {
	log := that.logger.With("method", "PlaceMarker", "gameID", gameID, "cell", cell)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
	}

	players := sess.engine.Players()

	var saveErr error
	state, err := sess.engine.PlaceMarkerAndSave(cell, func(next entity.State) error {
		saveErr = that.updateGame(ctx, entity.NewGame(gameID, players, next))
		return saveErr
	})

	if saveErr != nil {
		return nil, saveErr
	}

	game := entity.NewGame(gameID, players, state)

	if err != nil {
		log.Debug("move rejected", "reason", apperror.ReasonOf(err))
		return game, fmt.Errorf("failed to place marker: %w", err)
	}

	return game, nil
}

// ResetGame starts the round over with the same players.
func (that *GameManager) ResetGame(ctx context.Context, gameID string) (*entity.Game, error) {
	log := that.logger.With("method", "ResetGame", "gameID", gameID)

	sess, err := that.getSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
	}

	players := sess.engine.Players()

	state, err := sess.engine.ResetAndSave(func(next entity.State) error {
		return that.updateGame(ctx, entity.NewGame(gameID, players, next))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset game: %w", err)
	}

	log.Info("game reset")

	return entity.NewGame(gameID, players, state), nil
}

func (that *GameManager) GetGame(ctx context.Context, gameID string) (*entity.Game, error) {
	sess, err := that.getSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	return entity.NewGame(gameID, sess.engine.Players(), sess.engine.Snapshot()), nil
}

// CloseGame forgets the game in memory and in storage. A move in flight on the
// same game finishes before the record is deleted.
func (that *GameManager) CloseGame(ctx context.Context, gameID string) error {
	log := that.logger.With("method", "CloseGame", "gameID", gameID)

	that.sessionsMutex.Lock()
	sess, ok := that.sessions[gameID]
	delete(that.sessions, gameID)
	that.sessionsMutex.Unlock()

	if ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		sess.closed = true
	}

	if err := that.gameRepo.DeleteByID(ctx, gameID); err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}

	log.Info("game closed")

	return nil
}

// EvictIdle drops in-memory games untouched for longer than maxIdle. Their
// records stay in storage until the ttl expires, so they can still be reloaded.
func (that *GameManager) EvictIdle(maxIdle time.Duration) int {
	deadline := that.now().Add(-maxIdle)

	that.sessionsMutex.Lock()
	defer that.sessionsMutex.Unlock()

	evicted := 0
	for gameID, sess := range that.sessions {
		if sess.lastUsed.Before(deadline) {
			delete(that.sessions, gameID)
			evicted++
		}
	}

	return evicted
}

// RunJanitor evicts idle games every interval until ctx is done.
func (that *GameManager) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	log := that.logger.With("method", "RunJanitor")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := that.EvictIdle(maxIdle); evicted > 0 {
				log.Debug("evicted idle games", "count", evicted)
			}
		}
	}
}

func (that *GameManager) getSession(ctx context.Context, gameID string) (*session, error) {
	that.sessionsMutex.Lock()
	sess, ok := that.sessions[gameID]
	if ok {
		sess.lastUsed = that.now()
	}
	that.sessionsMutex.Unlock()

	if ok {
		return sess, nil
	}

	loaded, err := that.loadSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	that.sessionsMutex.Lock()
	defer that.sessionsMutex.Unlock()

	// another request may have loaded the game meanwhile
	if existing, ok := that.sessions[gameID]; ok {
		existing.lastUsed = that.now()
		return existing, nil
	}

	that.sessions[gameID] = loaded

	return loaded, nil
}

func (that *GameManager) loadSession(ctx context.Context, gameID string) (*session, error) {
	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, apperror.ErrGameNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	engine, err := that.newEngine(gameID)
	if err != nil {
		return nil, err
	}

	if err = engine.Restore(game.Players, game.State); err != nil {
		return nil, fmt.Errorf("failed to restore game %s: %w", gameID, err)
	}

	that.logger.Debug("game restored from storage", "gameID", gameID)

	return &session{engine: engine, lastUsed: that.now()}, nil
}

func (that *GameManager) newEngine(gameID string) (*blinktactoe.Engine, error) {
	rnd, err := that.newRandomizer()
	if err != nil {
		return nil, fmt.Errorf("failed to create randomizer: %w", err)
	}

	return blinktactoe.New(
		blinktactoe.WithRandomizer(rnd),
		blinktactoe.WithGameEndListener(func(winner entity.Winner) {
			that.notifyGameEnd(entity.GameEnd{GameID: gameID, Winner: winner})
		}),
	), nil
}

func (that *GameManager) notifyGameEnd(end entity.GameEnd) {
	that.logger.Info("game finished",
		"gameID", end.GameID,
		"winner", end.Winner.Player,
		"marker", end.Winner.Marker,
		"line", end.Winner.Line,
	)

	that.listenersMutex.RLock()
	listeners := append([]GameEndListener(nil), that.listeners...)
	that.listenersMutex.RUnlock()

	for _, listener := range listeners {
		listener(end)
	}
}

func (that *GameManager) updateGame(ctx context.Context, game *entity.Game) error {
	if err := that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}

	return nil
}
