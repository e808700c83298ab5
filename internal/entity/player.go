package entity

// PlayerID identifies a seat at the board.
type PlayerID int

const (
	NoPlayer PlayerID = 0
	Player1  PlayerID = 1
	Player2  PlayerID = 2
)

// PaletteSize is the number of marker symbols each player brings to a game.
const PaletteSize = 3

// Marker is an opaque symbol. Two markers are the same when their values are equal.
type Marker string

// PlayerConfig is the validated setup of one player. It is fixed for the whole game.
type PlayerConfig struct {
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Palette  []Marker `json:"palette"`
}

func (that PlayerID) Other() PlayerID {
	if that == Player1 {
		return Player2
	}
	return Player1
}

func (that PlayerID) IsValid() bool {
	return that == Player1 || that == Player2
}

func (that PlayerConfig) Clone() PlayerConfig {
	that.Palette = append([]Marker(nil), that.Palette...)
	return that
}
