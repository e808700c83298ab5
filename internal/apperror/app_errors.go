package apperror

import "errors"

// Move rejections.
var (
	ErrGameFinished         = errors.New("game is already finished")
	ErrCellOccupied         = errors.New("cell is already occupied")
	ErrFirstCellProtected   = errors.New("cannot reclaim your first cell")
	ErrInvalidCell          = errors.New("invalid cell index")
	ErrGameNotInitialized   = errors.New("game is not initialized")
	ErrInvalidConfiguration = errors.New("invalid player configuration")
	ErrInvalidState         = errors.New("invalid game state")
)

// Setup rejections.
var (
	ErrMissingName        = errors.New("player name is required")
	ErrMissingCategory    = errors.New("player category is required")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrCategoryTaken      = errors.New("category is already selected by the other player")
	ErrWrongEmojiCount    = errors.New("exactly 3 emojis must be chosen")
	ErrDuplicateEmoji     = errors.New("emoji is chosen twice")
	ErrEmojiNotInCategory = errors.New("emoji does not belong to the category")
)

var ErrGameNotFound = errors.New("game not found")

// Transport rejections.
var (
	ErrBadRequest    = errors.New("malformed request")
	ErrUnknownAction = errors.New("unknown action")
)
