package blinktactoe

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/blinktactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/entity"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/random"
)

var (
	animals = entity.PlayerConfig{Name: "Ann", Category: "animals", Palette: []entity.Marker{"🐶", "🐱", "🐵"}}
	food    = entity.PlayerConfig{Name: "Bob", Category: "food", Palette: []entity.Marker{"🍕", "🍟", "🍔"}}
)

// scriptedRand replays draws in a loop. With no draws it always picks the first slot.
type scriptedRand struct {
	mu    sync.Mutex
	draws []int
	calls int
}

func (that *scriptedRand) IntN(n int) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.draws) == 0 {
		return 0
	}

	draw := that.draws[that.calls%len(that.draws)]
	that.calls++

	return draw % n
}

func newStartedEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	engine := New(append([]Option{WithRandomizer(&scriptedRand{})}, opts...)...)
	_, err := engine.Initialize(animals, food)
	require.NoError(t, err)

	return engine
}

func play(t *testing.T, engine *Engine, cells ...int) entity.State {
	t.Helper()

	var state entity.State
	for _, cell := range cells {
		var err error
		state, err = engine.PlaceMarker(cell)
		require.NoError(t, err, "cell %d", cell)
	}

	return state
}

func TestEngine_Initialize(t *testing.T) {
	t.Run("Starts a fresh game", func(t *testing.T) {
		// Given: a new engine
		engine := New()

		// When: it is initialized with two valid players
		state, err := engine.Initialize(animals, food)

		// Then: the round is empty and player 1 moves first
		require.NoError(t, err)
		require.Equal(t, entity.NewState(), state)
		assert.True(t, engine.IsInitialized())
		assert.Equal(t, [2]entity.PlayerConfig{animals, food}, engine.Players())
	})

	t.Run("Rejects palettes that are not exactly three markers", func(t *testing.T) {
		short := entity.PlayerConfig{Name: "Short", Palette: []entity.Marker{"🐶", "🐱"}}
		long := entity.PlayerConfig{Name: "Long", Palette: []entity.Marker{"🍕", "🍟", "🍔", "🍩"}}
		blank := entity.PlayerConfig{Name: "Blank", Palette: []entity.Marker{"🍕", "", "🍔"}}

		for name, players := range map[string][2]entity.PlayerConfig{
			"two markers":   {short, food},
			"four markers":  {animals, long},
			"empty marker":  {animals, blank},
			"empty palette": {{Name: "Nobody"}, food},
		} {
			t.Run(name, func(t *testing.T) {
				// Given: a new engine
				engine := New()

				// When: it is initialized with a bad palette
				_, err := engine.Initialize(players[0], players[1])

				// Then: the configuration is rejected and the engine stays uninitialized
				require.ErrorIs(t, err, apperror.ErrInvalidConfiguration)
				assert.False(t, engine.IsInitialized())

				_, err = engine.PlaceMarker(0)
				require.ErrorIs(t, err, apperror.ErrGameNotInitialized)
			})
		}
	})

	t.Run("Does not re-validate overlapping palettes", func(t *testing.T) {
		// Given: two players sharing symbols
		engine := New()

		// When: the engine is initialized
		_, err := engine.Initialize(animals, animals)

		// Then: it is accepted
		require.NoError(t, err)
	})
}

func TestEngine_NotInitialized(t *testing.T) {
	// Given: an engine that was never initialized
	engine := New()

	// When: a marker is placed or the game reset
	_, placeErr := engine.PlaceMarker(4)
	_, resetErr := engine.Reset()

	// Then: both calls are rejected with not initialized
	require.ErrorIs(t, placeErr, apperror.ErrGameNotInitialized)
	require.ErrorIs(t, resetErr, apperror.ErrGameNotInitialized)
	assert.Equal(t, apperror.ReasonNotInitialized, apperror.ReasonOf(placeErr))
}

func TestEngine_PlaceMarker(t *testing.T) {
	t.Run("First placement", func(t *testing.T) {
		// Given: a started game
		engine := newStartedEngine(t)

		// When: player 1 places on cell 4
		state, err := engine.PlaceMarker(4)
		require.NoError(t, err)

		// Then: the marker is on the board, queued and remembered as the first placement
		expected := entity.NewState()
		expected.Board[4] = entity.Cell{Marker: "🐶", Owner: entity.Player1}
		expected.Active[entity.Player1] = []entity.Placement{{Marker: "🐶", Index: 4}}
		expected.FirstPlacement[entity.Player1] = 4
		expected.CurrentPlayer = entity.Player2

		require.Equal(t, expected, state)
		require.Equal(t, expected, engine.Snapshot())
	})

	t.Run("Draws the marker from the acting player's palette", func(t *testing.T) {
		// Given: a randomizer that picks the third slot and then the second
		engine := New(WithRandomizer(&scriptedRand{draws: []int{2, 1}}))
		_, err := engine.Initialize(animals, food)
		require.NoError(t, err)

		// When: both players place once
		state := play(t, engine, 0, 8)

		// Then: each marker comes from its owner's palette
		assert.Equal(t, entity.Cell{Marker: "🐵", Owner: entity.Player1}, state.Board[0])
		assert.Equal(t, entity.Cell{Marker: "🍟", Owner: entity.Player2}, state.Board[8])
	})

	t.Run("Invalid cell index", func(t *testing.T) {
		engine := newStartedEngine(t)

		for _, cell := range []int{-1, 9, 20} {
			// When: a cell outside the board is played
			state, err := engine.PlaceMarker(cell)

			// Then: it is rejected and nothing changes
			require.ErrorIs(t, err, apperror.ErrInvalidCell)
			assert.Equal(t, apperror.ReasonInvalidCellIndex, apperror.ReasonOf(err))
			assert.Equal(t, entity.NewState(), state)
		}
	})

	t.Run("Occupied cell is rejected whoever holds it", func(t *testing.T) {
		// Given: player 1 on cell 0 and player 2 on cell 1
		engine := newStartedEngine(t)
		before := play(t, engine, 0, 1)

		// When: player 1 plays on its own cell and then on the opponent's
		_, ownErr := engine.PlaceMarker(0)
		_, otherErr := engine.PlaceMarker(1)

		// Then: both are cell occupied rejections and the state is unchanged
		require.ErrorIs(t, ownErr, apperror.ErrCellOccupied)
		require.ErrorIs(t, otherErr, apperror.ErrCellOccupied)
		require.Equal(t, before, engine.Snapshot())
	})

	t.Run("Same first cell before the cap is only cell occupied", func(t *testing.T) {
		// Given: player 1 has a single marker on its first cell
		engine := newStartedEngine(t)
		play(t, engine, 0, 4)

		// When: player 1 plays its first cell again
		_, err := engine.PlaceMarker(0)

		// Then: the occupied rule fires, not the first cell rule
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		require.NotErrorIs(t, err, apperror.ErrFirstCellProtected)
	})
}

func TestEngine_Win(t *testing.T) {
	t.Run("Column win with forced draws", func(t *testing.T) {
		// Given: a game where player 1 always draws 🐶 and player 2 always draws 🍕
		var winners []entity.Winner
		engine := newStartedEngine(t, WithGameEndListener(func(winner entity.Winner) {
			winners = append(winners, winner)
		}))

		// When: the players alternate and player 1 completes the left column
		state := play(t, engine, 0, 1, 3, 4, 6)

		// Then: player 1 wins on column 0-3-6 and the turn stays frozen
		expectedWinner := entity.Winner{Player: entity.Player1, Marker: "🐶", Line: entity.Line{0, 3, 6}}
		require.NotNil(t, state.Winner)
		assert.Equal(t, expectedWinner, *state.Winner)
		assert.Equal(t, entity.Player1, state.CurrentPlayer)

		// Then: the listener is told exactly once
		require.Equal(t, []entity.Winner{expectedWinner}, winners)
	})

	t.Run("No placement after the game is over", func(t *testing.T) {
		// Given: a finished game
		calls := 0
		engine := newStartedEngine(t, WithGameEndListener(func(entity.Winner) { calls++ }))
		finished := play(t, engine, 0, 1, 3, 4, 6)

		// When: any further placement is attempted
		_, err := engine.PlaceMarker(8)
		_, invalidErr := engine.PlaceMarker(42)

		// Then: it is rejected as game over, the state is unchanged and no new notification is sent
		require.ErrorIs(t, err, apperror.ErrGameFinished)
		require.ErrorIs(t, invalidErr, apperror.ErrGameFinished)
		assert.Equal(t, apperror.ReasonGameAlreadyOver, apperror.ReasonOf(err))
		require.Equal(t, finished, engine.Snapshot())
		assert.Equal(t, 1, calls)
	})

	t.Run("Listener may read the engine", func(t *testing.T) {
		// Given: a listener that snapshots the engine
		var engine *Engine
		var seen entity.State
		engine = newStartedEngine(t, WithGameEndListener(func(entity.Winner) {
			seen = engine.Snapshot()
		}))

		// When: the game is won
		play(t, engine, 0, 1, 3, 4, 6)

		// Then: the listener saw the finished state
		require.NotNil(t, seen.Winner)
	})
}

func TestEngine_Vanish(t *testing.T) {
	t.Run("Fourth placement removes the oldest marker", func(t *testing.T) {
		// Given: player 1 has markers on 0, 1 and 2 and never loses the turn
		state := entity.NewState()
		rnd := &scriptedRand{draws: []int{0, 1, 2, 0}}
		players := [2]entity.PlayerConfig{animals, food}

		var err error
		for _, cell := range []int{0, 1, 2, 3} {
			state.CurrentPlayer = entity.Player1
			state, err = placeMarker(state, players, cell, rnd)
			require.NoError(t, err)
		}

		// Then: cell 0 is empty and reported as vanished
		assert.True(t, state.Board[0].IsEmpty())
		require.NotNil(t, state.LastVanished)
		assert.Equal(t, entity.Placement{Marker: "🐶", Index: 0}, *state.LastVanished)

		// Then: the queue keeps the three newest markers with the new one last
		assert.Equal(t, []entity.Placement{
			{Marker: "🐱", Index: 1},
			{Marker: "🐵", Index: 2},
			{Marker: "🐶", Index: 3},
		}, state.Active[entity.Player1])
		assert.Equal(t, 0, state.FirstPlacement[entity.Player1])
	})

	t.Run("Vanished marker is cleared by the next placement", func(t *testing.T) {
		// Given: player 1's fourth placement vanished its first marker
		engine := newStartedEngine(t)
		state := play(t, engine, 0, 1, 5, 6, 7, 8, 2)
		require.NotNil(t, state.LastVanished)
		assert.Equal(t, entity.Placement{Marker: "🐶", Index: 0}, *state.LastVanished)

		// When: player 2 places its fourth marker
		state = play(t, engine, 3)

		// Then: the signal now reports player 2's vanished marker
		require.NotNil(t, state.LastVanished)
		assert.Equal(t, entity.Placement{Marker: "🍕", Index: 1}, *state.LastVanished)

		// When: player 1 places its fifth marker
		state = play(t, engine, 4)

		// Then: player 1 vanished cell 5 this time
		require.NotNil(t, state.LastVanished)
		assert.Equal(t, 5, state.LastVanished.Index)
	})

	t.Run("Vanished marker is cleared when nothing vanishes", func(t *testing.T) {
		// Given: player 1's fourth placement vanished cell 0 while player 2 has no markers
		state := entity.NewState()
		rnd := &scriptedRand{draws: []int{0, 1, 2, 0, 0}}
		players := [2]entity.PlayerConfig{animals, food}

		var err error
		for _, cell := range []int{0, 1, 3, 4} {
			state.CurrentPlayer = entity.Player1
			state, err = placeMarker(state, players, cell, rnd)
			require.NoError(t, err)
		}
		require.NotNil(t, state.LastVanished)
		require.Equal(t, 0, state.LastVanished.Index)

		// When: player 2 places a marker, still under the cap
		state.CurrentPlayer = entity.Player2
		state, err = placeMarker(state, players, 8, rnd)

		// Then: no marker vanished and the signal is gone
		require.NoError(t, err)
		assert.Nil(t, state.LastVanished)
		assert.Len(t, state.Active[entity.Player2], 1)
		assert.Len(t, state.Active[entity.Player1], 3)
	})
}

func TestEngine_PlaceMarkerAndSave(t *testing.T) {
	errSave := errors.New("storage down")

	t.Run("Failed save keeps the previous state and does not notify", func(t *testing.T) {
		// Given: a game one move from a win
		calls := 0
		engine := newStartedEngine(t, WithGameEndListener(func(entity.Winner) { calls++ }))
		before := play(t, engine, 0, 1, 3, 4)

		// When: the winning move cannot be saved
		state, err := engine.PlaceMarkerAndSave(6, func(next entity.State) error {
			require.NotNil(t, next.Winner)
			return errSave
		})

		// Then: the save error is returned and nothing was committed
		require.ErrorIs(t, err, errSave)
		assert.False(t, apperror.IsRejection(err))
		assert.Equal(t, before, state)
		assert.Equal(t, before, engine.Snapshot())
		assert.Zero(t, calls)

		// When: the move is retried and saved
		var saved entity.State
		state, err = engine.PlaceMarkerAndSave(6, func(next entity.State) error {
			saved = next
			return nil
		})

		// Then: it is committed, saved as committed, and notified once
		require.NoError(t, err)
		assert.Equal(t, saved, state)
		require.NotNil(t, state.Winner)
		assert.Equal(t, 1, calls)
	})

	t.Run("Rejected move is never saved", func(t *testing.T) {
		engine := newStartedEngine(t)
		play(t, engine, 4)

		_, err := engine.PlaceMarkerAndSave(4, func(entity.State) error {
			t.Fatal("rejected move reached save")
			return nil
		})

		require.ErrorIs(t, err, apperror.ErrCellOccupied)
	})

	t.Run("Failed reset save keeps the board", func(t *testing.T) {
		engine := newStartedEngine(t)
		before := play(t, engine, 4)

		state, err := engine.ResetAndSave(func(entity.State) error { return errSave })

		require.ErrorIs(t, err, errSave)
		assert.Equal(t, before, state)
		assert.Equal(t, before, engine.Snapshot())
	})
}

func TestEngine_FirstCellProtected(t *testing.T) {
	// Given: both players rotated once, so player 1's first cell 0 is empty again
	engine := newStartedEngine(t)
	before := play(t, engine, 0, 1, 5, 6, 7, 8, 2, 3)
	require.True(t, before.Board[0].IsEmpty())
	require.Len(t, before.Active[entity.Player1], 3)
	require.Equal(t, entity.Player1, before.CurrentPlayer)

	// When: player 1 tries to reclaim cell 0
	state, err := engine.PlaceMarker(0)

	// Then: the move is rejected and nothing changes
	require.ErrorIs(t, err, apperror.ErrFirstCellProtected)
	assert.Equal(t, apperror.ReasonFirstCellProtected, apperror.ReasonOf(err))
	require.Equal(t, before, state)
	require.Equal(t, before, engine.Snapshot())

	// Then: another empty cell is still allowed
	_, err = engine.PlaceMarker(1)
	require.NoError(t, err)
}

func TestEngine_Reset(t *testing.T) {
	t.Run("Fresh and finished games reset to the same state", func(t *testing.T) {
		// Given: a fresh game and a finished one
		fresh := newStartedEngine(t)
		finished := newStartedEngine(t)
		play(t, finished, 0, 1, 3, 4, 6)

		// When: both are reset
		freshState, err := fresh.Reset()
		require.NoError(t, err)
		finishedState, err := finished.Reset()
		require.NoError(t, err)

		// Then: both are the initial empty state with players kept
		require.Equal(t, entity.NewState(), freshState)
		require.Equal(t, freshState, finishedState)
		assert.Equal(t, [2]entity.PlayerConfig{animals, food}, finished.Players())
	})

	t.Run("First placement after reset behaves like a new game", func(t *testing.T) {
		// Given: a finished game that is reset
		engine := newStartedEngine(t)
		play(t, engine, 0, 1, 3, 4, 6)
		_, err := engine.Reset()
		require.NoError(t, err)

		// When: a marker is placed
		state := play(t, engine, 6)

		// Then: it is player 1's first placement again
		fresh := newStartedEngine(t)
		require.Equal(t, play(t, fresh, 6), state)
		assert.Equal(t, 6, state.FirstPlacement[entity.Player1])
	})
}

func TestEngine_Restore(t *testing.T) {
	players := [2]entity.PlayerConfig{animals, food}

	t.Run("Restored game continues where it stopped", func(t *testing.T) {
		// Given: a saved game after three moves
		source := newStartedEngine(t)
		saved := play(t, source, 0, 4, 8)

		// When: it is restored into a new engine and played on
		engine := New(WithRandomizer(&scriptedRand{}))
		require.NoError(t, engine.Restore(players, saved))

		// Then: both engines agree on the next move
		require.Equal(t, play(t, source, 2), play(t, engine, 2))
	})

	t.Run("Restored finished game does not notify", func(t *testing.T) {
		// Given: a saved finished game
		saved := play(t, newStartedEngine(t), 0, 1, 3, 4, 6)
		calls := 0
		engine := New(WithGameEndListener(func(entity.Winner) { calls++ }))

		// When: it is restored and a move attempted
		require.NoError(t, engine.Restore(players, saved))
		_, err := engine.PlaceMarker(8)

		// Then: the move is rejected and no notification was sent
		require.ErrorIs(t, err, apperror.ErrGameFinished)
		assert.Zero(t, calls)
	})

	t.Run("Rejects inconsistent states", func(t *testing.T) {
		tooMany := entity.NewState()
		for i := range 4 {
			tooMany.Board[i] = entity.Cell{Marker: "🐶", Owner: entity.Player1}
			tooMany.Active[entity.Player1] = append(tooMany.Active[entity.Player1], entity.Placement{Marker: "🐶", Index: i})
		}

		orphan := entity.NewState()
		orphan.Board[3] = entity.Cell{Marker: "🍕", Owner: entity.Player2}

		shared := entity.NewState()
		shared.Board[0] = entity.Cell{Marker: "🐶", Owner: entity.Player1}
		shared.Active[entity.Player1] = []entity.Placement{{Marker: "🐶", Index: 0}}
		shared.Active[entity.Player2] = []entity.Placement{{Marker: "🍕", Index: 0}}

		noTurn := entity.NewState()
		noTurn.CurrentPlayer = entity.NoPlayer

		// a rotated game whose first cell memo was lost
		noFirstCell := play(t, newStartedEngine(t), 0, 1, 5, 6, 7, 8, 2, 3)
		delete(noFirstCell.FirstPlacement, entity.Player1)

		firstCellOffBoard := play(t, newStartedEngine(t), 0, 1)
		firstCellOffBoard.FirstPlacement[entity.Player1] = 9

		firstCellWithoutMarkers := entity.NewState()
		firstCellWithoutMarkers.FirstPlacement[entity.Player2] = 4

		lineWithoutWinner := entity.NewState()
		for i := range 3 {
			lineWithoutWinner.Board[i] = entity.Cell{Marker: "🐶", Owner: entity.Player1}
			lineWithoutWinner.Active[entity.Player1] = append(lineWithoutWinner.Active[entity.Player1], entity.Placement{Marker: "🐶", Index: i})
		}
		lineWithoutWinner.FirstPlacement[entity.Player1] = 0
		lineWithoutWinner.CurrentPlayer = entity.Player2

		won := play(t, newStartedEngine(t), 0, 1, 3, 4, 6)

		winnerWithoutLine := play(t, newStartedEngine(t), 0, 4)
		winnerWithoutLine.Winner = &entity.Winner{Player: entity.Player1, Marker: "🐶", Line: entity.Line{0, 3, 6}}

		wrongLine := won.Clone()
		wrongLine.Winner.Line = entity.Line{0, 1, 2}

		wrongPlayer := won.Clone()
		wrongPlayer.Winner.Player = entity.Player2

		for name, state := range map[string]entity.State{
			"four active markers":          tooMany,
			"marker without queue":         orphan,
			"cell in two queues":           shared,
			"no current player":            noTurn,
			"markers without first cell":   noFirstCell,
			"first cell off the board":     firstCellOffBoard,
			"first cell without markers":   firstCellWithoutMarkers,
			"complete line without winner": lineWithoutWinner,
			"winner without complete line": winnerWithoutLine,
			"winner on another line":       wrongLine,
			"winner is not the mover":      wrongPlayer,
		} {
			t.Run(name, func(t *testing.T) {
				engine := New()

				err := engine.Restore(players, state)

				require.ErrorIs(t, err, apperror.ErrInvalidState)
				assert.False(t, engine.IsInitialized())
			})
		}
	})
}

func TestEngine_Invariants(t *testing.T) {
	// Given: a seeded game played with random legal and illegal moves
	engine := New(WithRandomizer(random.New(11)))
	_, err := engine.Initialize(animals, food)
	require.NoError(t, err)

	moves := random.New(12)
	for range 500 {
		before := engine.Snapshot()

		// When: a random cell is played
		state, err := engine.PlaceMarker(moves.IntN(entity.BoardSize))

		// Then: the invariants hold after every call
		require.NoError(t, validateState(state))
		for _, player := range []entity.PlayerID{entity.Player1, entity.Player2} {
			require.LessOrEqual(t, len(state.Active[player]), entity.MaxActiveMarkers)
		}

		if err != nil {
			require.True(t, apperror.IsRejection(err))
			require.Equal(t, before, state)
		}

		if state.Winner != nil {
			_, err = engine.Reset()
			require.NoError(t, err)
		}
	}
}

func TestEngine_ConcurrentPlacements(t *testing.T) {
	// Given: a started game with distinct draws so nobody wins early
	engine := New(WithRandomizer(&scriptedRand{draws: []int{0, 0, 1, 1, 2, 2}}))
	_, err := engine.Initialize(animals, food)
	require.NoError(t, err)

	// When: every cell is played at the same time
	var wg sync.WaitGroup
	for cell := range entity.BoardSize {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.PlaceMarker(cell)
		}()
	}
	wg.Wait()

	// Then: the calls were serialized into a consistent state
	state := engine.Snapshot()
	require.NoError(t, validateState(state))
}

func TestCheckWinner(t *testing.T) {
	dog := entity.Cell{Marker: "🐶", Owner: entity.Player1}
	pizza := entity.Cell{Marker: "🍕", Owner: entity.Player2}

	t.Run("Empty board has no winner", func(t *testing.T) {
		_, ok := CheckWinner(entity.Board{})
		assert.False(t, ok)
	})

	t.Run("Mixed markers do not win", func(t *testing.T) {
		board := entity.Board{dog, dog, pizza}

		_, ok := CheckWinner(board)

		assert.False(t, ok)
	})

	t.Run("Row is reported before column", func(t *testing.T) {
		// Given: row 0-1-2 and column 0-3-6 both complete
		board := entity.Board{
			dog, dog, dog,
			dog, {}, {},
			dog, {}, {},
		}

		// When: checking for a winner
		line, ok := CheckWinner(board)

		// Then: the row comes first
		require.True(t, ok)
		assert.Equal(t, entity.Line{0, 1, 2}, line)
	})

	t.Run("Column is reported before diagonal", func(t *testing.T) {
		board := entity.Board{
			{}, {}, dog,
			{}, dog, dog,
			dog, {}, dog,
		}

		line, ok := CheckWinner(board)

		require.True(t, ok)
		assert.Equal(t, entity.Line{2, 5, 8}, line)
	})

	t.Run("Main diagonal before anti-diagonal", func(t *testing.T) {
		board := entity.Board{
			pizza, {}, pizza,
			{}, pizza, {},
			pizza, {}, pizza,
		}

		line, ok := CheckWinner(board)

		require.True(t, ok)
		assert.Equal(t, entity.Line{0, 4, 8}, line)
	})

	t.Run("Owner does not matter, only the symbol", func(t *testing.T) {
		// Given: equal symbols placed by different players
		theirDog := entity.Cell{Marker: "🐶", Owner: entity.Player2}
		board := entity.Board{{}, {}, {}, dog, theirDog, dog}

		// When: checking for a winner
		line, ok := CheckWinner(board)

		// Then: the middle row wins
		require.True(t, ok)
		assert.Equal(t, entity.Line{3, 4, 5}, line)
	})
}
