package apperror

import "errors"

// Reason is the wire code of a rejected request.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonGameAlreadyOver      Reason = "game_already_over"
	ReasonCellOccupied         Reason = "cell_occupied"
	ReasonFirstCellProtected   Reason = "first_cell_protected"
	ReasonInvalidCellIndex     Reason = "invalid_cell_index"
	ReasonNotInitialized       Reason = "not_initialized"
	ReasonInvalidConfiguration Reason = "invalid_configuration"
	ReasonInvalidState         Reason = "invalid_state"
	ReasonMissingName          Reason = "missing_name"
	ReasonMissingCategory      Reason = "missing_category"
	ReasonUnknownCategory      Reason = "unknown_category"
	ReasonCategoryTaken        Reason = "category_taken"
	ReasonWrongEmojiCount      Reason = "wrong_emoji_count"
	ReasonDuplicateEmoji       Reason = "duplicate_emoji"
	ReasonEmojiNotInCategory   Reason = "emoji_not_in_category"
	ReasonGameNotFound         Reason = "game_not_found"
	ReasonBadRequest           Reason = "bad_request"
	ReasonUnknownAction        Reason = "unknown_action"
	ReasonInternal             Reason = "internal"
)

var reasons = []struct {
	err    error
	reason Reason
}{
	{ErrGameFinished, ReasonGameAlreadyOver},
	{ErrCellOccupied, ReasonCellOccupied},
	{ErrFirstCellProtected, ReasonFirstCellProtected},
	{ErrInvalidCell, ReasonInvalidCellIndex},
	{ErrGameNotInitialized, ReasonNotInitialized},
	{ErrMissingName, ReasonMissingName},
	{ErrMissingCategory, ReasonMissingCategory},
	{ErrUnknownCategory, ReasonUnknownCategory},
	{ErrCategoryTaken, ReasonCategoryTaken},
	{ErrWrongEmojiCount, ReasonWrongEmojiCount},
	{ErrDuplicateEmoji, ReasonDuplicateEmoji},
	{ErrEmojiNotInCategory, ReasonEmojiNotInCategory},
	{ErrInvalidConfiguration, ReasonInvalidConfiguration},
	{ErrInvalidState, ReasonInvalidState},
	{ErrGameNotFound, ReasonGameNotFound},
	{ErrBadRequest, ReasonBadRequest},
	{ErrUnknownAction, ReasonUnknownAction},
}

// ReasonOf maps err to its wire code. Setup errors are checked before
// ErrInvalidConfiguration because setup wraps both.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}

	return ReasonInternal
}

// IsRejection reports whether err is an expected rejection rather than a failure.
func IsRejection(err error) bool {
	reason := ReasonOf(err)
	return reason != ReasonNone && reason != ReasonInternal
}
