package models

import "time"

// Game carries the scoring weights used by the ranking fold. TeamGame fixes
// whether matches of this game are contested between teams or individuals.
type Game struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	WinPoint    int       `json:"win_point" db:"win_point"`
	DrawPoint   int       `json:"draw_point" db:"draw_point"`
	LossPoint   int       `json:"loss_point" db:"loss_point"`
	TeamGame    bool      `json:"team_game" db:"is_team_game"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
