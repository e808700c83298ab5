package entity

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"

	BoardSize        = 9
	MaxActiveMarkers = 3
)

// Cell is one board position. A cell without an owner is empty.
type Cell struct {
	Marker Marker   `json:"marker,omitempty"`
	Owner  PlayerID `json:"owner,omitempty"`
}

type Board [BoardSize]Cell

// Placement is a marker that is on the board, together with its cell.
type Placement struct {
	Marker Marker `json:"marker"`
	Index  int    `json:"index"`
}

// Line is three cell indexes that win when they hold the same marker.
type Line [3]int

type Winner struct {
	Player PlayerID `json:"player"`
	Marker Marker   `json:"marker"`
	Line   Line     `json:"line"`
}

// GameEnd is emitted once when a placement completes a line.
type GameEnd struct {
	GameID string `json:"game_id,omitempty"`
	Winner Winner `json:"winner"`
}

// State is the round-local part of a game. Values returned to callers are deep copies.
type State struct {
	Board          Board                    `json:"board"`
	CurrentPlayer  PlayerID                 `json:"current_player"`
	Active         map[PlayerID][]Placement `json:"active"`
	FirstPlacement map[PlayerID]int         `json:"first_placement"`
	Winner         *Winner                  `json:"winner,omitempty"`
	LastVanished   *Placement               `json:"last_vanished,omitempty"`
}

// Game is a hosted game: its players and the current round.
type Game struct {
	ID      string          `json:"id"`
	Players [2]PlayerConfig `json:"players"`
	State   State           `json:"state"`
	Status  string          `json:"status"`
}

func NewState() State {
	return State{
		CurrentPlayer: Player1,
		Active: map[PlayerID][]Placement{
			Player1: {},
			Player2: {},
		},
		FirstPlacement: map[PlayerID]int{},
	}
}

func NewGame(id string, players [2]PlayerConfig, state State) *Game {
	game := &Game{
		ID:      id,
		Players: [2]PlayerConfig{players[0].Clone(), players[1].Clone()},
		State:   state.Clone(),
	}
	game.UpdateStatus()

	return game
}

func (that Cell) IsEmpty() bool {
	return that.Owner == NoPlayer
}

func (that *State) IsFinished() bool {
	return that.Winner != nil
}

// Clone returns a copy sharing no memory with the receiver.
func (that State) Clone() State {
	clone := that

	clone.Active = make(map[PlayerID][]Placement, len(that.Active))
	for player, queue := range that.Active {
		clone.Active[player] = append([]Placement{}, queue...)
	}

	clone.FirstPlacement = make(map[PlayerID]int, len(that.FirstPlacement))
	for player, index := range that.FirstPlacement {
		clone.FirstPlacement[player] = index
	}

	if that.Winner != nil {
		winner := *that.Winner
		clone.Winner = &winner
	}

	if that.LastVanished != nil {
		vanished := *that.LastVanished
		clone.LastVanished = &vanished
	}

	return clone
}

func (that *Game) UpdateStatus() {
	if that.State.IsFinished() {
		that.Status = StatusFinished
		return
	}
	that.Status = StatusOngoing
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

// Player returns the config of the given seat.
func (that *Game) Player(id PlayerID) PlayerConfig {
	if id == Player2 {
		return that.Players[1]
	}
	return that.Players[0]
}
