package models

import "time"

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "PENDING"
	MatchStatusRejected  MatchStatus = "REJECTED"
	MatchStatusCompleted MatchStatus = "COMPLETED"

	// MatchStatusAccepted is reserved for a two-step finalize flow. Accepting
	// a match currently transitions it straight to COMPLETED, so this value
	// is never stored.
	MatchStatusAccepted MatchStatus = "ACCEPTED"
)

type BetType string

const (
	BetFriendly BetType = "FRIENDLY"
	BetLyNuoc   BetType = "LY_NUOC"
	BetOther    BetType = "OTHER"
)

func (b BetType) Valid() bool {
	switch b {
	case BetFriendly, BetLyNuoc, BetOther:
		return true
	}
	return false
}

// Match is a single recorded contest between two individuals or two teams
// within one game. Exactly one of the player pair or the team pair is set,
// fixed at creation. WinnerID holds a user id or a team id depending on
// TeamMatch; nil denotes a draw unless the scores decide it.
type Match struct {
	ID        int  `json:"id" db:"id"`
	GameID    int  `json:"game_id" db:"game_id"`
	TeamMatch bool `json:"team_match" db:"is_team_match"`

	Player1ID *int `json:"player1_id,omitempty" db:"player1_id"`
	Player2ID *int `json:"player2_id,omitempty" db:"player2_id"`
	Team1ID   *int `json:"team1_id,omitempty" db:"team1_id"`
	Team2ID   *int `json:"team2_id,omitempty" db:"team2_id"`

	BetType        BetType `json:"bet_type" db:"bet_type"`
	BetDescription *string `json:"bet_description,omitempty" db:"bet_description"`

	Score1   *int `json:"score1,omitempty" db:"score1"`
	Score2   *int `json:"score2,omitempty" db:"score2"`
	WinnerID *int `json:"winner_id,omitempty" db:"winner_id"`

	Status MatchStatus `json:"status" db:"status"`

	BetSettledRequested   bool       `json:"bet_settled_requested" db:"bet_settled_requested"`
	BetSettledRequestedAt *time.Time `json:"bet_settled_requested_at,omitempty" db:"bet_settled_requested_at"`
	BetSettledConfirmed   bool       `json:"bet_settled_confirmed" db:"bet_settled_confirmed"`

	CreatedByID int       `json:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DecideWinnerID resolves the effective winner of the match: the explicit
// WinnerID when present, otherwise the side with the higher score. Returns
// nil for a draw or when there is nothing to decide by.
func (m *Match) DecideWinnerID() *int {
	if m.WinnerID != nil {
		return m.WinnerID
	}
	if m.Score1 == nil || m.Score2 == nil {
		return nil
	}
	switch {
	case *m.Score1 > *m.Score2:
		if m.TeamMatch {
			return m.Team1ID
		}
		return m.Player1ID
	case *m.Score2 > *m.Score1:
		if m.TeamMatch {
			return m.Team2ID
		}
		return m.Player2ID
	}
	return nil
}
