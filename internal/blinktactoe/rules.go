package blinktactoe

import (
	"fmt"

	"github.com/rocketscienceinc/blinktactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/entity"
)

// WinCombos is scanned in order: rows top to bottom, columns left to right, then diagonals.
var WinCombos = [8]entity.Line{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Randomizer picks the palette slot of every placed marker.
type Randomizer interface {
	IntN(n int) int
}

// CheckWinner returns the first line in scan order whose three cells hold equal markers.
// Only symbol values are compared; which player owns a cell does not matter.
func CheckWinner(board entity.Board) (entity.Line, bool) {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if !a.IsEmpty() && !b.IsEmpty() && !c.IsEmpty() && a.Marker == b.Marker && b.Marker == c.Marker {
			return combo, true
		}
	}

	return entity.Line{}, false
}

// placeMarker is the single transition of a round. It never mutates state; on
// rejection the returned error wraps one of the apperror move rejections.
func placeMarker(state entity.State, players [2]entity.PlayerConfig, cell int, rnd Randomizer) (entity.State, error) {
	if err := validateMove(state, cell); err != nil {
		return state, err
	}

	next := state.Clone()
	player := next.CurrentPlayer
	queue := next.Active[player]

	next.LastVanished = nil
	if len(queue) >= entity.MaxActiveMarkers {
		oldest := queue[0]
		next.Board[oldest.Index] = entity.Cell{}
		next.LastVanished = &oldest
		queue = queue[1:]
	}

	palette := players[player-1].Palette
	marker := palette[rnd.IntN(len(palette))]

	next.Board[cell] = entity.Cell{Marker: marker, Owner: player}
	next.Active[player] = append(append([]entity.Placement{}, queue...), entity.Placement{Marker: marker, Index: cell})

	if _, ok := next.FirstPlacement[player]; !ok {
		next.FirstPlacement[player] = cell
	}

	if line, ok := CheckWinner(next.Board); ok {
		next.Winner = &entity.Winner{
			Player: player,
			Marker: next.Board[line[0]].Marker,
			Line:   line,
		}
		return next, nil
	}

	next.CurrentPlayer = player.Other()

	return next, nil
}

// validateMove - checks if the move is allowed for the current player.
func validateMove(state entity.State, cell int) error {
	if state.IsFinished() {
		return apperror.ErrGameFinished
	}

	if cell < 0 || cell >= entity.BoardSize {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if !state.Board[cell].IsEmpty() {
		return fmt.Errorf("%w: cell %d", apperror.ErrCellOccupied, cell)
	}

	player := state.CurrentPlayer
	first, ok := state.FirstPlacement[player]
	if ok && len(state.Active[player]) >= entity.MaxActiveMarkers && cell == first {
		return fmt.Errorf("%w: cell %d", apperror.ErrFirstCellProtected, cell)
	}

	return nil
}

// validateConfig - checks the palettes handed over by setup.
func validateConfig(players [2]entity.PlayerConfig) error {
	for i, player := range players {
		if len(player.Palette) != entity.PaletteSize {
			return fmt.Errorf("%w: player %d has %d markers", apperror.ErrInvalidConfiguration, i+1, len(player.Palette))
		}

		for _, marker := range player.Palette {
			if marker == "" {
				return fmt.Errorf("%w: player %d has an empty marker", apperror.ErrInvalidConfiguration, i+1)
			}
		}
	}

	return nil
}

// validateState - checks a persisted round before it is loaded into an engine.
func validateState(state entity.State) error {
	if !state.CurrentPlayer.IsValid() {
		return fmt.Errorf("%w: current player %d", apperror.ErrInvalidState, state.CurrentPlayer)
	}

	var expected entity.Board
	for _, player := range []entity.PlayerID{entity.Player1, entity.Player2} {
		queue := state.Active[player]
		if len(queue) > entity.MaxActiveMarkers {
			return fmt.Errorf("%w: player %d has %d active markers", apperror.ErrInvalidState, player, len(queue))
		}

		for _, placement := range queue {
			if placement.Index < 0 || placement.Index >= entity.BoardSize {
				return fmt.Errorf("%w: placement at cell %d", apperror.ErrInvalidState, placement.Index)
			}
			if !expected[placement.Index].IsEmpty() {
				return fmt.Errorf("%w: cell %d is held twice", apperror.ErrInvalidState, placement.Index)
			}
			expected[placement.Index] = entity.Cell{Marker: placement.Marker, Owner: player}
		}
	}

	for i, cell := range state.Board {
		if cell != expected[i] {
			return fmt.Errorf("%w: cell %d does not match the active markers", apperror.ErrInvalidState, i)
		}
	}

	if err := validateFirstPlacements(state); err != nil {
		return err
	}

	return validateWinner(state)
}

// validateFirstPlacements - a player has a first cell exactly when it has markers on the board.
func validateFirstPlacements(state entity.State) error {
	for player := range state.FirstPlacement {
		if !player.IsValid() {
			return fmt.Errorf("%w: first placement of player %d", apperror.ErrInvalidState, player)
		}
	}

	for _, player := range []entity.PlayerID{entity.Player1, entity.Player2} {
		first, ok := state.FirstPlacement[player]
		placed := len(state.Active[player]) > 0

		if ok != placed {
			return fmt.Errorf("%w: player %d first placement does not match its markers", apperror.ErrInvalidState, player)
		}

		if ok && (first < 0 || first >= entity.BoardSize) {
			return fmt.Errorf("%w: player %d first placement at cell %d", apperror.ErrInvalidState, player, first)
		}
	}

	return nil
}

// validateWinner - the recorded winner must be the line the board shows, and the
// winner keeps the turn.
func validateWinner(state entity.State) error {
	line, won := CheckWinner(state.Board)

	if state.Winner == nil {
		if won {
			return fmt.Errorf("%w: line %v is complete without a winner", apperror.ErrInvalidState, line)
		}
		return nil
	}

	winner := state.Winner
	switch {
	case !won:
		return fmt.Errorf("%w: winner recorded without a complete line", apperror.ErrInvalidState)
	case !winner.Player.IsValid() || winner.Player != state.CurrentPlayer:
		return fmt.Errorf("%w: winner %d", apperror.ErrInvalidState, winner.Player)
	case winner.Line != line || winner.Marker != state.Board[line[0]].Marker:
		return fmt.Errorf("%w: winner line %v does not match the board", apperror.ErrInvalidState, winner.Line)
	}

	return nil
}
