package domain

import "errors"

// Errors returned by the engine. Every one of them means "this turn did not happen":
// committed state is left exactly as it was before the call.
var (
	// Turn rejections
	ErrValidation           = errors.New("validation failed")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrProposalRejected     = errors.New("narration proposal rejected")
	ErrInsufficientResource = errors.New("insufficient resource")

	// Story state
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidStatus     = errors.New("operation not allowed in current story status")
	ErrMiniGameActive    = errors.New("a mini-game is in progress")
	ErrNoMiniGame        = errors.New("no active mini-game")
	ErrCharacterNotFound = errors.New("character not found")
	ErrCharacterClaimed  = errors.New("character already claimed")
	ErrAlreadyJoined     = errors.New("player already joined this story")

	// Concurrency
	ErrActionPending   = errors.New("another action is pending for this story")
	ErrActionCancelled = errors.New("action cancelled")
	ErrVersionConflict = errors.New("story was modified concurrently")
)
