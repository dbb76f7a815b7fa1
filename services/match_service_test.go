package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/family-ranking/models"
)

type matchFixture struct {
	gameRepo  *fakeGameRepo
	userRepo  *fakeUserRepo
	teamRepo  *fakeTeamRepo
	matchRepo *fakeMatchRepo
	svc       MatchService
}

func newMatchFixture(t *testing.T) *matchFixture {
	t.Helper()
	gameRepo := newFakeGameRepo()
	userRepo := newFakeUserRepo()
	teamRepo := newFakeTeamRepo()
	matchRepo := newFakeMatchRepo()
	matchRepo.teams = teamRepo

	svc := NewMatchService(matchRepo, gameRepo, userRepo, teamRepo, nil, nil, nil, nil)
	return &matchFixture{
		gameRepo:  gameRepo,
		userRepo:  userRepo,
		teamRepo:  teamRepo,
		matchRepo: matchRepo,
		svc:       svc,
	}
}

func (f *matchFixture) addGame(teamGame bool) *models.Game {
	return f.gameRepo.add(&models.Game{Name: "game", WinPoint: 3, DrawPoint: 1, TeamGame: teamGame})
}

func (f *matchFixture) addUser(username string) *models.User {
	return f.userRepo.add(&models.User{Username: username})
}

func TestProposeIndividualMatch(t *testing.T) {
	f := newMatchFixture(t)
	game := f.addGame(false)
	creator := f.addUser("creator")
	opponent := f.addUser("opponent")

	match, err := f.svc.Propose(context.Background(), creator.ID, ProposeMatchInput{
		GameID:     game.ID,
		OpponentID: intPtr(opponent.ID),
		BetType:    models.BetFriendly,
		Score1:     intPtr(2),
		Score2:     intPtr(1),
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	if match.Status != models.MatchStatusPending {
		t.Errorf("Status = %s, want PENDING", match.Status)
	}
	if match.Player1ID == nil || *match.Player1ID != creator.ID {
		t.Errorf("Player1ID = %v, want creator %d", match.Player1ID, creator.ID)
	}
	if match.Player2ID == nil || *match.Player2ID != opponent.ID {
		t.Errorf("Player2ID = %v, want opponent %d", match.Player2ID, opponent.ID)
	}
}

func TestProposeValidation(t *testing.T) {
	f := newMatchFixture(t)
	game := f.addGame(false)
	teamGameRec := f.addGame(true)
	creator := f.addUser("creator")
	opponent := f.addUser("opponent")
	stranger := f.addUser("stranger")

	tests := []struct {
		name    string
		input   ProposeMatchInput
		wantErr error
	}{
		{
			name:    "unknown game",
			input:   ProposeMatchInput{GameID: 999, OpponentID: intPtr(opponent.ID), BetType: models.BetFriendly},
			wantErr: ErrGameNotFound,
		},
		{
			name:    "individual match against team game",
			input:   ProposeMatchInput{GameID: teamGameRec.ID, OpponentID: intPtr(opponent.ID), BetType: models.BetFriendly},
			wantErr: ErrMatchTypeMismatch,
		},
		{
			name:    "self play",
			input:   ProposeMatchInput{GameID: game.ID, OpponentID: intPtr(creator.ID), BetType: models.BetFriendly},
			wantErr: ErrMatchSelfPlay,
		},
		{
			name:    "unknown bet type",
			input:   ProposeMatchInput{GameID: game.ID, OpponentID: intPtr(opponent.ID), BetType: "BEER"},
			wantErr: ErrMatchBetTypeInvalid,
		},
		{
			name:    "negative score",
			input:   ProposeMatchInput{GameID: game.ID, OpponentID: intPtr(opponent.ID), BetType: models.BetFriendly, Score1: intPtr(-1)},
			wantErr: ErrMatchScoreInvalid,
		},
		{
			name:    "winner not a participant",
			input:   ProposeMatchInput{GameID: game.ID, OpponentID: intPtr(opponent.ID), BetType: models.BetFriendly, WinnerID: intPtr(stranger.ID)},
			wantErr: ErrMatchWinnerInvalid,
		},
		{
			name:    "unknown opponent",
			input:   ProposeMatchInput{GameID: game.ID, OpponentID: intPtr(999), BetType: models.BetFriendly},
			wantErr: ErrUserNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Propose(context.Background(), creator.ID, tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Propose error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestProposeFriendlyClearsBetDescription(t *testing.T) {
	f := newMatchFixture(t)
	game := f.addGame(false)
	creator := f.addUser("creator")
	opponent := f.addUser("opponent")

	desc := "loser buys drinks"
	match, err := f.svc.Propose(context.Background(), creator.ID, ProposeMatchInput{
		GameID:         game.ID,
		OpponentID:     intPtr(opponent.ID),
		BetType:        models.BetFriendly,
		BetDescription: &desc,
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if match.BetDescription != nil {
		t.Errorf("BetDescription = %q, want nil on a friendly match", *match.BetDescription)
	}
}

func TestProposeTeamMatchRejectsSharedMembers(t *testing.T) {
	f := newMatchFixture(t)
	game := f.addGame(true)
	creator := f.addUser("creator")

	team1 := &models.Team{GameID: game.ID, Name: "reds"}
	f.teamRepo.Create(context.Background(), nil, team1, []int{1, 2})
	team2 := &models.Team{GameID: game.ID, Name: "blues"}
	f.teamRepo.Create(context.Background(), nil, team2, []int{2, 3})

	_, err := f.svc.Propose(context.Background(), creator.ID, ProposeMatchInput{
		GameID:    game.ID,
		TeamMatch: true,
		Team1ID:   intPtr(team1.ID),
		Team2ID:   intPtr(team2.ID),
		BetType:   models.BetFriendly,
	})
	if !errors.Is(err, ErrTeamsShareMembers) {
		t.Errorf("Propose error = %v, want %v", err, ErrTeamsShareMembers)
	}
}

func (f *matchFixture) propose(t *testing.T, creatorID, opponentID int, betType models.BetType, winnerID *int) *models.Match {
	t.Helper()
	game := f.addGame(false)
	match, err := f.svc.Propose(context.Background(), creatorID, ProposeMatchInput{
		GameID:     game.ID,
		OpponentID: intPtr(opponentID),
		BetType:    betType,
		WinnerID:   winnerID,
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	return match
}

func TestAcceptByCounterpart(t *testing.T) {
	f := newMatchFixture(t)
	creator := f.addUser("creator")
	opponent := f.addUser("opponent")
	match := f.propose(t, creator.ID, opponent.ID, models.BetFriendly, intPtr(creator.ID))

	accepted, err := f.svc.Accept(context.Background(), opponent.ID, match.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != models.MatchStatusCompleted {
		t.Errorf("Status = %s, want COMPLETED", accepted.Status)
	}
}

func TestAcceptByCreatorForbidden(t *testing.T) {
	f := newMatchFixture(t)
	creator := f.addUser("creator")
	opponent := f.addUser("opponent")
	match := f.propose(t, creator.ID, opponent.ID, models.BetFriendly, nil)

	if _, err := f.svc.Accept(context.Background(), creator.ID, match.ID); !errors.Is(err, ErrNotCounterpart) {
		t.Errorf("Accept error = %v, want %v", err, ErrNotCounterpart)
	}
}

func TestRejectThenAcceptConflicts(t *testing.T) {
	f := newMatchFixture(t)
	creator := f.addUser("creator")
	opponent := f.addUser("opponent")
	match := f.propose(t, creator.ID, opponent.ID, models.BetFriendly, nil)

	if _, err := f.svc.Reject(context.Background(), opponent.ID, match.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := f.svc.Accept(context.Background(), opponent.ID, match.ID); !errors.Is(err, ErrMatchNotPending) {
		t.Errorf("Accept after reject = %v, want %v", err, ErrMatchNotPending)
	}
}

// Two concurrent finalizations of the same pending match must resolve to
// exactly one winner; the compare-and-set on the repository guarantees it.
func TestConcurrentFinalizeExactlyOneWins(t *testing.T) {
	f := newMatchFixture(t)
	creator := f.addUser("creator")
	opponent := f.addUser("opponent")

	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		match := f.propose(t, creator.ID, opponent.ID, models.BetFriendly, nil)

		var wg sync.WaitGroup
		successes := 0
		for _, op := range []func(context.Context, int, int) (*models.Match, error){f.svc.Accept, f.svc.Reject} {
			wg.Add(1)
			go func(op func(context.Context, int, int) (*models.Match, error)) {
				defer wg.Done()
				if _, err := op(context.Background(), opponent.ID, match.ID); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}(op)
		}
		wg.Wait()

		if successes != 1 {
			t.Fatalf("run %d: %d operations succeeded, want exactly 1", i, successes)
		}
	}
}

func TestSettlementFlow(t *testing.T) {
	f := newMatchFixture(t)
	creator := f.addUser("creator")
	opponent := f.addUser("opponent")
	outsider := f.addUser("outsider")

	// Creator records a won bet match; opponent (the loser) accepts it.
	match := f.propose(t, creator.ID, opponent.ID, models.BetLyNuoc, intPtr(creator.ID))
	if _, err := f.svc.Accept(context.Background(), opponent.ID, match.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	ctx := context.Background()

	// Confirm before request.
	if _, err := f.svc.ConfirmSettlement(ctx, creator.ID, match.ID); !errors.Is(err, ErrSettlementNotRequested) {
		t.Errorf("ConfirmSettlement before request = %v, want %v", err, ErrSettlementNotRequested)
	}
	// Winner cannot request.
	if _, err := f.svc.RequestSettlement(ctx, creator.ID, match.ID); !errors.Is(err, ErrNotLoser) {
		t.Errorf("RequestSettlement by winner = %v, want %v", err, ErrNotLoser)
	}
	// Outsider cannot touch it.
	if _, err := f.svc.RequestSettlement(ctx, outsider.ID, match.ID); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("RequestSettlement by outsider = %v, want %v", err, ErrNotParticipant)
	}

	// Loser requests.
	requested, err := f.svc.RequestSettlement(ctx, opponent.ID, match.ID)
	if err != nil {
		t.Fatalf("RequestSettlement: %v", err)
	}
	if !requested.BetSettledRequested || requested.BetSettledRequestedAt == nil {
		t.Errorf("request did not mark the match: %+v", requested)
	}

	// Second request conflicts.
	if _, err := f.svc.RequestSettlement(ctx, opponent.ID, match.ID); !errors.Is(err, ErrSettlementAlreadyRequested) {
		t.Errorf("second RequestSettlement = %v, want %v", err, ErrSettlementAlreadyRequested)
	}
	// Loser cannot confirm.
	if _, err := f.svc.ConfirmSettlement(ctx, opponent.ID, match.ID); !errors.Is(err, ErrNotWinner) {
		t.Errorf("ConfirmSettlement by loser = %v, want %v", err, ErrNotWinner)
	}

	// Winner confirms.
	confirmed, err := f.svc.ConfirmSettlement(ctx, creator.ID, match.ID)
	if err != nil {
		t.Fatalf("ConfirmSettlement: %v", err)
	}
	if !confirmed.BetSettledConfirmed {
		t.Errorf("confirm did not mark the match: %+v", confirmed)
	}

	// Repeat confirm conflicts.
	if _, err := f.svc.ConfirmSettlement(ctx, creator.ID, match.ID); !errors.Is(err, ErrSettlementAlreadyConfirmed) {
		t.Errorf("second ConfirmSettlement = %v, want %v", err, ErrSettlementAlreadyConfirmed)
	}
	// After confirmation the winner still cannot request.
	if _, err := f.svc.RequestSettlement(ctx, creator.ID, match.ID); !errors.Is(err, ErrNotLoser) {
		t.Errorf("RequestSettlement by winner after confirm = %v, want %v", err, ErrNotLoser)
	}
}

func TestSettlementGates(t *testing.T) {
	f := newMatchFixture(t)
	creator := f.addUser("creator")
	opponent := f.addUser("opponent")
	ctx := context.Background()

	// Pending match: not completed yet.
	pending := f.propose(t, creator.ID, opponent.ID, models.BetLyNuoc, intPtr(creator.ID))
	if _, err := f.svc.RequestSettlement(ctx, opponent.ID, pending.ID); !errors.Is(err, ErrMatchNotCompleted) {
		t.Errorf("RequestSettlement on pending = %v, want %v", err, ErrMatchNotCompleted)
	}

	// Friendly match: nothing to settle.
	friendly := f.propose(t, creator.ID, opponent.ID, models.BetFriendly, intPtr(creator.ID))
	if _, err := f.svc.Accept(ctx, opponent.ID, friendly.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := f.svc.RequestSettlement(ctx, opponent.ID, friendly.ID); !errors.Is(err, ErrBetNotWagered) {
		t.Errorf("RequestSettlement on friendly = %v, want %v", err, ErrBetNotWagered)
	}

	// Drawn bet match: no winner, no settlement.
	draw := f.propose(t, creator.ID, opponent.ID, models.BetOther, nil)
	if _, err := f.svc.Accept(ctx, opponent.ID, draw.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := f.svc.RequestSettlement(ctx, opponent.ID, draw.ID); !errors.Is(err, ErrMatchHasNoWinner) {
		t.Errorf("RequestSettlement on draw = %v, want %v", err, ErrMatchHasNoWinner)
	}
}

func TestTeamMatchCounterpartAuthorization(t *testing.T) {
	f := newMatchFixture(t)
	game := f.addGame(true)
	creator := f.addUser("creator")
	ally := f.addUser("ally")
	rival := f.addUser("rival")
	outsider := f.addUser("outsider")

	team1 := &models.Team{GameID: game.ID, Name: "reds"}
	f.teamRepo.Create(context.Background(), nil, team1, []int{creator.ID, ally.ID})
	team2 := &models.Team{GameID: game.ID, Name: "blues"}
	f.teamRepo.Create(context.Background(), nil, team2, []int{rival.ID})

	newTeamMatch := func() *models.Match {
		match, err := f.svc.Propose(context.Background(), creator.ID, ProposeMatchInput{
			GameID:    game.ID,
			TeamMatch: true,
			Team1ID:   intPtr(team1.ID),
			Team2ID:   intPtr(team2.ID),
			BetType:   models.BetFriendly,
		})
		if err != nil {
			t.Fatalf("Propose: %v", err)
		}
		return match
	}

	ctx := context.Background()

	// The creator cannot confirm their own record.
	match := newTeamMatch()
	if _, err := f.svc.Accept(ctx, creator.ID, match.ID); !errors.Is(err, ErrNotCounterpart) {
		t.Errorf("Accept by creator = %v, want %v", err, ErrNotCounterpart)
	}
	// An outsider cannot either.
	if _, err := f.svc.Accept(ctx, outsider.ID, match.ID); !errors.Is(err, ErrNotCounterpart) {
		t.Errorf("Accept by outsider = %v, want %v", err, ErrNotCounterpart)
	}
	// A member of the opposing team can.
	if _, err := f.svc.Accept(ctx, rival.ID, match.ID); err != nil {
		t.Errorf("Accept by rival: %v", err)
	}

	// A teammate of the creator can too.
	match = newTeamMatch()
	if _, err := f.svc.Accept(ctx, ally.ID, match.ID); err != nil {
		t.Errorf("Accept by teammate: %v", err)
	}
}
