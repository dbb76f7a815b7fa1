package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/Dosada05/family-ranking/models"
	"github.com/Dosada05/family-ranking/repositories"
	"golang.org/x/sync/singleflight"
)

// Outcome is one user's win/loss/draw tally over a set of counted matches.
type Outcome struct {
	Wins   int
	Losses int
	Draws  int
}

// Points weighs the tally with the game's scoring.
func (o Outcome) Points(game *models.Game) int {
	return o.Wins*game.WinPoint + o.Draws*game.DrawPoint + o.Losses*game.LossPoint
}

type RankingService interface {
	// ComputeRanking folds the completed matches of a game into ordered
	// standings. Read-only and idempotent: the same match set always yields
	// the same sequence.
	ComputeRanking(ctx context.Context, gameID int) ([]models.RankingEntry, error)
	// ComputeUserTotals derives the profile counters of a user from the same
	// fold, across all games.
	ComputeUserTotals(ctx context.Context, userID int) (models.UserProfile, error)
}

type rankingService struct {
	gameRepo  repositories.GameRepository
	teamRepo  repositories.TeamRepository
	userRepo  repositories.UserRepository
	matchRepo repositories.MatchRepository

	// Collapses concurrent recomputes of the same game's standings.
	flight singleflight.Group
}

func NewRankingService(
	gameRepo repositories.GameRepository,
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	matchRepo repositories.MatchRepository,
) RankingService {
	return &rankingService{
		gameRepo:  gameRepo,
		teamRepo:  teamRepo,
		userRepo:  userRepo,
		matchRepo: matchRepo,
	}
}

// AggregateOutcomes attributes one outcome unit per counted match to every
// participating individual. Team matches credit every member of each side;
// a match with no decidable winner is a draw for everyone involved. Matches
// that are not COMPLETED are skipped.
func AggregateOutcomes(matches []*models.Match, membersByTeam map[int][]int) map[int]Outcome {
	outcomes := make(map[int]Outcome)

	credit := func(userID int, wins, losses, draws int) {
		o := outcomes[userID]
		o.Wins += wins
		o.Losses += losses
		o.Draws += draws
		outcomes[userID] = o
	}

	for _, match := range matches {
		if match.Status != models.MatchStatusCompleted {
			continue
		}
		winnerID := match.DecideWinnerID()

		if !match.TeamMatch {
			if match.Player1ID == nil || match.Player2ID == nil {
				continue
			}
			p1, p2 := *match.Player1ID, *match.Player2ID
			switch {
			case winnerID == nil:
				credit(p1, 0, 0, 1)
				credit(p2, 0, 0, 1)
			case *winnerID == p1:
				credit(p1, 1, 0, 0)
				credit(p2, 0, 1, 0)
			default:
				credit(p2, 1, 0, 0)
				credit(p1, 0, 1, 0)
			}
			continue
		}

		if match.Team1ID == nil || match.Team2ID == nil {
			continue
		}
		for _, teamID := range []int{*match.Team1ID, *match.Team2ID} {
			var wins, losses, draws int
			switch {
			case winnerID == nil:
				draws = 1
			case *winnerID == teamID:
				wins = 1
			default:
				losses = 1
			}
			for _, memberID := range membersByTeam[teamID] {
				credit(memberID, wins, losses, draws)
			}
		}
	}
	return outcomes
}

func (s *rankingService) ComputeRanking(ctx context.Context, gameID int) ([]models.RankingEntry, error) {
	result, err, _ := s.flight.Do(strconv.Itoa(gameID), func() (interface{}, error) {
		return s.computeRanking(ctx, gameID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.RankingEntry), nil
}

func (s *rankingService) computeRanking(ctx context.Context, gameID int) ([]models.RankingEntry, error) {
	game, err := s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to load game %d for ranking: %w", gameID, err)
	}

	completed := models.MatchStatusCompleted
	matches, err := s.matchRepo.ListByGame(ctx, gameID, &completed)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed matches for game %d: %w", gameID, err)
	}

	membersByTeam, err := s.teamMembersForGame(ctx, game)
	if err != nil {
		return nil, err
	}

	outcomes := AggregateOutcomes(matches, membersByTeam)
	entries := rankOutcomes(outcomes, game)

	if err := s.fillUserIdentities(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// rankOutcomes orders tallies by points descending, breaking ties by fewer
// losses and then ascending user id so the order is total and reproducible.
func rankOutcomes(outcomes map[int]Outcome, game *models.Game) []models.RankingEntry {
	entries := make([]models.RankingEntry, 0, len(outcomes))
	for userID, outcome := range outcomes {
		entries = append(entries, models.RankingEntry{
			UserID: userID,
			Points: outcome.Points(game),
			Wins:   outcome.Wins,
			Losses: outcome.Losses,
			Draws:  outcome.Draws,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		if entries[i].Losses != entries[j].Losses {
			return entries[i].Losses < entries[j].Losses
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func (s *rankingService) teamMembersForGame(ctx context.Context, game *models.Game) (map[int][]int, error) {
	if !game.TeamGame {
		return nil, nil
	}
	teams, err := s.teamRepo.ListByGame(ctx, game.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for game %d: %w", game.ID, err)
	}
	membersByTeam := make(map[int][]int, len(teams))
	for _, team := range teams {
		ids := make([]int, 0, len(team.Members))
		for _, member := range team.Members {
			ids = append(ids, member.ID)
		}
		membersByTeam[team.ID] = ids
	}
	return membersByTeam, nil
}

func (s *rankingService) fillUserIdentities(ctx context.Context, entries []models.RankingEntry) error {
	if len(entries) == 0 {
		return nil
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users for ranking: %w", err)
	}
	byID := make(map[int]*models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	for i := range entries {
		if user, ok := byID[entries[i].UserID]; ok {
			entries[i].Username = user.Username
			entries[i].Avatar = user.Avatar
		}
	}
	return nil
}

func (s *rankingService) ComputeUserTotals(ctx context.Context, userID int) (models.UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.UserProfile{}, ErrUserNotFound
		}
		return models.UserProfile{}, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	completed := models.MatchStatusCompleted
	matches, err := s.matchRepo.ListByUser(ctx, userID, &completed)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("failed to list matches for user %d: %w", userID, err)
	}

	profile := models.UserProfile{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
	}

	byGame := make(map[int][]*models.Match)
	for _, match := range matches {
		byGame[match.GameID] = append(byGame[match.GameID], match)
	}

	for gameID, gameMatches := range byGame {
		game, err := s.gameRepo.GetByID(ctx, gameID)
		if err != nil {
			if errors.Is(err, repositories.ErrGameNotFound) {
				continue
			}
			return models.UserProfile{}, fmt.Errorf("failed to load game %d for totals: %w", gameID, err)
		}

		membersByTeam, err := s.teamMembersForGame(ctx, game)
		if err != nil {
			return models.UserProfile{}, err
		}

		outcome := AggregateOutcomes(gameMatches, membersByTeam)[userID]
		profile.Wins += outcome.Wins
		profile.Losses += outcome.Losses
		profile.Draws += outcome.Draws
		profile.TotalPoints += outcome.Points(game)
	}
	return profile, nil
}
