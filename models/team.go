package models

import "time"

// Team is scoped to exactly one game. A user may belong to several teams of
// the same game.
type Team struct {
	ID        int       `json:"id" db:"id"`
	GameID    int       `json:"game_id" db:"game_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Members []User `json:"members,omitempty" db:"-"`
}

func (t *Team) HasMember(userID int) bool {
	for _, m := range t.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}
