package domain

import "errors"

var (
	// ErrRoundNotFound is returned when a player has no active round.
	ErrRoundNotFound = errors.New("round not found")
	// ErrRoundNotActive is returned when an operation needs a running round.
	ErrRoundNotActive = errors.New("round is not active")
	// ErrRoundStarted is returned when Start is called twice on the same round.
	ErrRoundStarted = errors.New("round already started")
	// ErrRoundPaused is returned when answering a paused round.
	ErrRoundPaused = errors.New("round is paused")
	// ErrAnswerPending means the current question was already answered and the next one is on its way.
	ErrAnswerPending = errors.New("answer already submitted for current question")
	// ErrInvalidAnswer is a user-input validation error: the answer is not a number.
	ErrInvalidAnswer = errors.New("answer must be a whole number")
	// ErrInvalidQuestion flags a generated question that breaks its invariants.
	ErrInvalidQuestion   = errors.New("invalid question")
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrInvalidDifficulty = errors.New("unknown difficulty")
	ErrInvalidMode       = errors.New("unknown presentation mode")
	ErrInvalidSettings   = errors.New("invalid settings")
	// ErrItemNotFound is returned when selecting an unknown personalization item.
	ErrItemNotFound = errors.New("personalization item not found")
	// ErrItemLocked is returned when selecting an item the player has not unlocked.
	ErrItemLocked = errors.New("personalization item is locked")
	// ErrArchiveDisabled is returned when round history is requested without an archive.
	ErrArchiveDisabled = errors.New("round archive not configured")
)
