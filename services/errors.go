package services

import "errors"

// Sentinel errors shared across services and the HTTP mapping. Four kinds:
// not-found, validation, forbidden, conflict. Handlers translate them with
// mapServiceErrorToHTTP.
var (
	// Not found
	ErrGameNotFound  = errors.New("game not found")
	ErrTeamNotFound  = errors.New("team not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrMatchNotFound = errors.New("match not found")

	// Validation / business rules
	ErrGameNameRequired    = errors.New("game name is required")
	ErrGamePointsInvalid   = errors.New("game points must be non-negative")
	ErrTeamNameRequired    = errors.New("team name is required")
	ErrUsernameRequired    = errors.New("username is required")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrMatchTypeMismatch   = errors.New("match type does not correspond to the game type")
	ErrMatchSelfPlay       = errors.New("cannot create a match against yourself")
	ErrMatchSameTeam       = errors.New("a team cannot play against itself")
	ErrTeamGameMismatch    = errors.New("team does not belong to this game")
	ErrTeamsShareMembers   = errors.New("competing teams share a member")
	ErrMatchWinnerInvalid  = errors.New("winner must be one of the match participants")
	ErrMatchScoreInvalid   = errors.New("scores must be non-negative")
	ErrMatchBetTypeInvalid = errors.New("unknown bet type")

	// Forbidden
	ErrNotCounterpart = errors.New("only the opponent can perform this action")
	ErrNotParticipant = errors.New("you are not a participant in this match")
	ErrNotLoser       = errors.New("only the loser sends the bet settlement")
	ErrNotWinner      = errors.New("only the winner can confirm the settlement")

	// Conflicts
	ErrMatchNotPending            = errors.New("match is no longer pending")
	ErrMatchNotCompleted          = errors.New("match is not completed")
	ErrBetNotWagered              = errors.New("friendly matches carry no bet to settle")
	ErrMatchHasNoWinner           = errors.New("drawn matches cannot be settled")
	ErrSettlementAlreadyRequested = errors.New("settlement has already been requested")
	ErrSettlementNotRequested     = errors.New("settlement has not been requested yet")
	ErrSettlementAlreadyConfirmed = errors.New("settlement has already been confirmed")
	ErrGameNameConflict           = errors.New("game name already exists")
	ErrUsernameConflict           = errors.New("username is already taken")
	ErrEmailConflict              = errors.New("email is already registered")

	// Authentication
	ErrAuthInvalidCredentials = errors.New("invalid username or password")
	ErrResetTokenInvalid      = errors.New("invalid or expired reset token")
)
