package models

import "testing"

func intPtr(v int) *int { return &v }

func TestDecideWinnerID(t *testing.T) {
	tests := []struct {
		name  string
		match Match
		want  *int
	}{
		{
			name:  "explicit winner wins over scores",
			match: Match{Player1ID: intPtr(1), Player2ID: intPtr(2), WinnerID: intPtr(2), Score1: intPtr(5), Score2: intPtr(0)},
			want:  intPtr(2),
		},
		{
			name:  "player1 by score",
			match: Match{Player1ID: intPtr(1), Player2ID: intPtr(2), Score1: intPtr(3), Score2: intPtr(1)},
			want:  intPtr(1),
		},
		{
			name:  "player2 by score",
			match: Match{Player1ID: intPtr(1), Player2ID: intPtr(2), Score1: intPtr(0), Score2: intPtr(1)},
			want:  intPtr(2),
		},
		{
			name:  "equal scores are a draw",
			match: Match{Player1ID: intPtr(1), Player2ID: intPtr(2), Score1: intPtr(2), Score2: intPtr(2)},
			want:  nil,
		},
		{
			name:  "no winner and no scores",
			match: Match{Player1ID: intPtr(1), Player2ID: intPtr(2)},
			want:  nil,
		},
		{
			name:  "one score missing is undecidable",
			match: Match{Player1ID: intPtr(1), Player2ID: intPtr(2), Score1: intPtr(2)},
			want:  nil,
		},
		{
			name:  "team match resolves to team id",
			match: Match{TeamMatch: true, Team1ID: intPtr(10), Team2ID: intPtr(20), Score1: intPtr(1), Score2: intPtr(4)},
			want:  intPtr(20),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.match.DecideWinnerID()
			switch {
			case got == nil && tc.want == nil:
			case got == nil || tc.want == nil:
				t.Errorf("DecideWinnerID() = %v, want %v", got, tc.want)
			case *got != *tc.want:
				t.Errorf("DecideWinnerID() = %d, want %d", *got, *tc.want)
			}
		})
	}
}

func TestBetTypeValid(t *testing.T) {
	for _, valid := range []BetType{BetFriendly, BetLyNuoc, BetOther} {
		if !valid.Valid() {
			t.Errorf("%s should be valid", valid)
		}
	}
	if BetType("BEER").Valid() {
		t.Error("unknown bet type should be invalid")
	}
}
