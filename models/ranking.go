package models

// RankingEntry is one participant's aggregated tally for a game, with its
// 1-based position after sorting.
type RankingEntry struct {
	Rank     int     `json:"rank"`
	UserID   int     `json:"user_id"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar,omitempty"`
	Points   int     `json:"points"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	Draws    int     `json:"draws"`
}
