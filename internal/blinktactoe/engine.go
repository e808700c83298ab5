// Package blinktactoe implements the rules of Blink Tac Toe: a 3x3 game where every
// player keeps at most three markers on the board and the oldest one vanishes when a
// fourth is placed.
//
// An Engine owns one game. All of its methods are safe for concurrent use; calls are
// serialized so that each placement is applied or rejected as a whole.
package blinktactoe

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rocketscienceinc/blinktactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/entity"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/random"
)

// GameEndListener receives the winner once per game.
type GameEndListener func(winner entity.Winner)

type Option func(*Engine)

// WithRandomizer sets the source of marker draws.
func WithRandomizer(rnd Randomizer) Option {
	return func(that *Engine) {
		if rnd != nil {
			that.rnd = rnd
		}
	}
}

// WithGameEndListener registers a listener for finished games.
func WithGameEndListener(listener GameEndListener) Option {
	return func(that *Engine) {
		if listener != nil {
			that.listeners = append(that.listeners, listener)
		}
	}
}

type Engine struct {
	mu sync.Mutex

	initialized bool
	players     [2]entity.PlayerConfig
	state       entity.State

	rnd       Randomizer
	listeners []GameEndListener
}

// New returns an engine waiting for Initialize.
func New(opts ...Option) *Engine {
	engine := &Engine{
		state: entity.NewState(),
	}

	for _, opt := range opts {
		opt(engine)
	}

	if engine.rnd == nil {
		engine.rnd = random.New(rand.Int64())
	}

	return engine
}

// Initialize starts a fresh game for the two players.
func (that *Engine) Initialize(player1, player2 entity.PlayerConfig) (entity.State, error) {
	players := [2]entity.PlayerConfig{player1.Clone(), player2.Clone()}
	if err := validateConfig(players); err != nil {
		return that.Snapshot(), err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.players = players
	that.state = entity.NewState()
	that.initialized = true

	return that.state.Clone(), nil
}

// Restore loads a previously saved game. No listener is notified, even when the
// restored game is already won.
func (that *Engine) Restore(players [2]entity.PlayerConfig, state entity.State) error {
	players = [2]entity.PlayerConfig{players[0].Clone(), players[1].Clone()}
	if err := validateConfig(players); err != nil {
		return err
	}

	if err := validateState(state); err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.players = players
	that.state = state.Clone()
	that.initialized = true

	return nil
}

// SaveFunc persists a state before an engine commits it. An error keeps the
// engine on its previous state.
type SaveFunc func(next entity.State) error

// PlaceMarker plays the current player's turn on cell. A rejected move leaves the
// game untouched and returns an error wrapping the apperror rejection.
func (that *Engine) PlaceMarker(cell int) (entity.State, error) {
	return that.PlaceMarkerAndSave(cell, nil)
}

// PlaceMarkerAndSave is PlaceMarker with the accepted state handed to save first.
// The move is committed and listeners are notified only when save succeeds.
func (that *Engine) PlaceMarkerAndSave(cell int, save SaveFunc) (entity.State, error) {
	that.mu.Lock()

	if !that.initialized {
		that.mu.Unlock()
		return that.state.Clone(), apperror.ErrGameNotInitialized
	}

	next, err := placeMarker(that.state, that.players, cell, that.rnd)
	if err != nil {
		snapshot := that.state.Clone()
		that.mu.Unlock()
		return snapshot, fmt.Errorf("invalid move: %w", err)
	}

	if save != nil {
		if err = save(next.Clone()); err != nil {
			snapshot := that.state.Clone()
			that.mu.Unlock()
			return snapshot, err
		}
	}

	that.state = next
	snapshot := next.Clone()
	listeners := that.listeners
	that.mu.Unlock()

	// listeners run outside the lock so they may read the engine
	if snapshot.Winner != nil {
		for _, listener := range listeners {
			listener(*snapshot.Winner)
		}
	}

	return snapshot, nil
}

// Reset starts the round over with the same players.
func (that *Engine) Reset() (entity.State, error) {
	return that.ResetAndSave(nil)
}

// ResetAndSave is Reset with the empty state handed to save before it is committed.
func (that *Engine) ResetAndSave(save SaveFunc) (entity.State, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.initialized {
		return that.state.Clone(), apperror.ErrGameNotInitialized
	}

	next := entity.NewState()
	if save != nil {
		if err := save(next.Clone()); err != nil {
			return that.state.Clone(), err
		}
	}

	that.state = next

	return that.state.Clone(), nil
}

func (that *Engine) Snapshot() entity.State {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state.Clone()
}

func (that *Engine) Players() [2]entity.PlayerConfig {
	that.mu.Lock()
	defer that.mu.Unlock()

	return [2]entity.PlayerConfig{that.players[0].Clone(), that.players[1].Clone()}
}

func (that *Engine) IsInitialized() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.initialized
}
