package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/family-ranking/live"
	"github.com/Dosada05/family-ranking/models"
	"github.com/Dosada05/family-ranking/monitor"
	"github.com/Dosada05/family-ranking/repositories"
)

type MatchService interface {
	Propose(ctx context.Context, creatorID int, input ProposeMatchInput) (*models.Match, error)
	Accept(ctx context.Context, actorID, matchID int) (*models.Match, error)
	Reject(ctx context.Context, actorID, matchID int) (*models.Match, error)
	RequestSettlement(ctx context.Context, actorID, matchID int) (*models.Match, error)
	ConfirmSettlement(ctx context.Context, actorID, matchID int) (*models.Match, error)
	ListMyMatches(ctx context.Context, actorID int, status *models.MatchStatus) ([]*models.Match, error)
}

type ProposeMatchInput struct {
	GameID         int            `json:"game_id"`
	TeamMatch      bool           `json:"team_match"`
	OpponentID     *int           `json:"opponent_id,omitempty"`
	Team1ID        *int           `json:"team1_id,omitempty"`
	Team2ID        *int           `json:"team2_id,omitempty"`
	BetType        models.BetType `json:"bet_type"`
	BetDescription *string        `json:"bet_description,omitempty"`
	Score1         *int           `json:"score1,omitempty"`
	Score2         *int           `json:"score2,omitempty"`
	WinnerID       *int           `json:"winner_id,omitempty"`
}

type matchService struct {
	matchRepo repositories.MatchRepository
	gameRepo  repositories.GameRepository
	userRepo  repositories.UserRepository
	teamRepo  repositories.TeamRepository
	ranking   RankingService
	hub       *live.Hub
	metrics   *monitor.Metrics
	logger    *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	gameRepo repositories.GameRepository,
	userRepo repositories.UserRepository,
	teamRepo repositories.TeamRepository,
	ranking RankingService,
	hub *live.Hub,
	metrics *monitor.Metrics,
	logger *slog.Logger,
) MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &matchService{
		matchRepo: matchRepo,
		gameRepo:  gameRepo,
		userRepo:  userRepo,
		teamRepo:  teamRepo,
		ranking:   ranking,
		hub:       hub,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *matchService) Propose(ctx context.Context, creatorID int, input ProposeMatchInput) (*models.Match, error) {
	game, err := s.gameRepo.GetByID(ctx, input.GameID)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to load game %d: %w", input.GameID, err)
	}

	if input.TeamMatch != game.TeamGame {
		return nil, ErrMatchTypeMismatch
	}
	if !input.BetType.Valid() {
		return nil, ErrMatchBetTypeInvalid
	}
	if (input.Score1 != nil && *input.Score1 < 0) || (input.Score2 != nil && *input.Score2 < 0) {
		return nil, ErrMatchScoreInvalid
	}

	match := &models.Match{
		GameID:      game.ID,
		TeamMatch:   input.TeamMatch,
		BetType:     input.BetType,
		Score1:      input.Score1,
		Score2:      input.Score2,
		WinnerID:    input.WinnerID,
		Status:      models.MatchStatusPending,
		CreatedByID: creatorID,
	}
	// A bet description carries no meaning on a friendly match.
	if input.BetType != models.BetFriendly {
		match.BetDescription = input.BetDescription
	}

	if input.TeamMatch {
		if err := s.validateTeamSides(ctx, game, input, match); err != nil {
			return nil, err
		}
	} else {
		if err := s.validatePlayerSides(ctx, creatorID, input, match); err != nil {
			return nil, err
		}
	}

	if err := s.matchRepo.Create(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	s.metrics.MatchProposed()
	return match, nil
}

func (s *matchService) validatePlayerSides(ctx context.Context, creatorID int, input ProposeMatchInput, match *models.Match) error {
	if input.OpponentID == nil {
		return fmt.Errorf("%w: opponent is required", ErrMatchTypeMismatch)
	}
	if *input.OpponentID == creatorID {
		return ErrMatchSelfPlay
	}
	if _, err := s.userRepo.GetByID(ctx, *input.OpponentID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load opponent %d: %w", *input.OpponentID, err)
	}

	creator := creatorID
	match.Player1ID = &creator
	match.Player2ID = input.OpponentID

	if input.WinnerID != nil && *input.WinnerID != creatorID && *input.WinnerID != *input.OpponentID {
		return ErrMatchWinnerInvalid
	}
	return nil
}

func (s *matchService) validateTeamSides(ctx context.Context, game *models.Game, input ProposeMatchInput, match *models.Match) error {
	if input.Team1ID == nil || input.Team2ID == nil {
		return fmt.Errorf("%w: both teams are required", ErrMatchTypeMismatch)
	}
	if *input.Team1ID == *input.Team2ID {
		return ErrMatchSameTeam
	}

	team1, err := s.loadTeam(ctx, *input.Team1ID)
	if err != nil {
		return err
	}
	team2, err := s.loadTeam(ctx, *input.Team2ID)
	if err != nil {
		return err
	}
	if team1.GameID != game.ID || team2.GameID != game.ID {
		return ErrTeamGameMismatch
	}
	for _, member := range team1.Members {
		if team2.HasMember(member.ID) {
			return ErrTeamsShareMembers
		}
	}

	match.Team1ID = input.Team1ID
	match.Team2ID = input.Team2ID

	if input.WinnerID != nil && *input.WinnerID != team1.ID && *input.WinnerID != team2.ID {
		return ErrMatchWinnerInvalid
	}
	return nil
}

func (s *matchService) Accept(ctx context.Context, actorID, matchID int) (*models.Match, error) {
	match, err := s.finalize(ctx, actorID, matchID, models.MatchStatusCompleted)
	if err != nil {
		return nil, err
	}
	s.metrics.MatchCompleted()
	s.publishRanking(match.GameID)
	return match, nil
}

func (s *matchService) Reject(ctx context.Context, actorID, matchID int) (*models.Match, error) {
	match, err := s.finalize(ctx, actorID, matchID, models.MatchStatusRejected)
	if err != nil {
		return nil, err
	}
	s.metrics.MatchRejected()
	return match, nil
}

// finalize performs the single PENDING -> terminal transition. The status
// update is a compare-and-set keyed on PENDING, so of two concurrent
// accept/reject calls exactly one wins and the other observes a conflict.
func (s *matchService) finalize(ctx context.Context, actorID, matchID int, to models.MatchStatus) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusPending {
		return nil, ErrMatchNotPending
	}
	if err := s.assertCounterpart(ctx, actorID, match); err != nil {
		return nil, err
	}

	if err := s.matchRepo.TransitionStatus(ctx, nil, match.ID, models.MatchStatusPending, to); err != nil {
		if errors.Is(err, repositories.ErrMatchStatusConflict) {
			return nil, ErrMatchNotPending
		}
		return nil, err
	}
	match.Status = to
	return match, nil
}

// assertCounterpart enforces the trust mechanism: the side that did not
// record the result must confirm it. Individual matches: only player2 (the
// proposer is always player1). Team matches: any member of either team
// except the creator.
func (s *matchService) assertCounterpart(ctx context.Context, actorID int, match *models.Match) error {
	if !match.TeamMatch {
		if match.Player2ID == nil || *match.Player2ID != actorID {
			return ErrNotCounterpart
		}
		return nil
	}

	if match.CreatedByID == actorID {
		return ErrNotCounterpart
	}
	team1, team2, err := s.loadSides(ctx, match)
	if err != nil {
		return err
	}
	if !team1.HasMember(actorID) && !team2.HasMember(actorID) {
		return ErrNotCounterpart
	}
	return nil
}

func (s *matchService) RequestSettlement(ctx context.Context, actorID, matchID int) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.assertSettleable(match); err != nil {
		return nil, err
	}

	role, err := s.settlementRole(ctx, actorID, match)
	if err != nil {
		return nil, err
	}
	if role != roleLoser {
		if role == roleWinner {
			return nil, ErrNotLoser
		}
		return nil, ErrNotParticipant
	}

	if match.BetSettledRequested {
		return nil, ErrSettlementAlreadyRequested
	}

	now := time.Now()
	if err := s.matchRepo.MarkSettlementRequested(ctx, match.ID, now); err != nil {
		if errors.Is(err, repositories.ErrMatchSettlementConflict) {
			return nil, ErrSettlementAlreadyRequested
		}
		return nil, err
	}
	match.BetSettledRequested = true
	match.BetSettledRequestedAt = &now
	return match, nil
}

func (s *matchService) ConfirmSettlement(ctx context.Context, actorID, matchID int) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.assertSettleable(match); err != nil {
		return nil, err
	}

	role, err := s.settlementRole(ctx, actorID, match)
	if err != nil {
		return nil, err
	}
	if role != roleWinner {
		if role == roleLoser {
			return nil, ErrNotWinner
		}
		return nil, ErrNotParticipant
	}

	if !match.BetSettledRequested {
		return nil, ErrSettlementNotRequested
	}
	if match.BetSettledConfirmed {
		return nil, ErrSettlementAlreadyConfirmed
	}

	if err := s.matchRepo.MarkSettlementConfirmed(ctx, match.ID); err != nil {
		if errors.Is(err, repositories.ErrMatchSettlementConflict) {
			return nil, ErrSettlementAlreadyConfirmed
		}
		return nil, err
	}
	match.BetSettledConfirmed = true
	s.metrics.SettlementClosed()
	return match, nil
}

// assertSettleable gates the settlement protocol: it only exists on
// completed, wagered, decided matches.
func (s *matchService) assertSettleable(match *models.Match) error {
	if match.Status != models.MatchStatusCompleted {
		return ErrMatchNotCompleted
	}
	if match.BetType == models.BetFriendly {
		return ErrBetNotWagered
	}
	if match.DecideWinnerID() == nil {
		return ErrMatchHasNoWinner
	}
	return nil
}

type settlementRole int

const (
	roleNone settlementRole = iota
	roleWinner
	roleLoser
)

func (s *matchService) settlementRole(ctx context.Context, actorID int, match *models.Match) (settlementRole, error) {
	winnerID := match.DecideWinnerID()
	if winnerID == nil {
		return roleNone, nil
	}

	if !match.TeamMatch {
		if match.Player1ID == nil || match.Player2ID == nil {
			return roleNone, nil
		}
		switch actorID {
		case *winnerID:
			return roleWinner, nil
		case *match.Player1ID, *match.Player2ID:
			return roleLoser, nil
		}
		return roleNone, nil
	}

	team1, team2, err := s.loadSides(ctx, match)
	if err != nil {
		return roleNone, err
	}
	winner, loser := team1, team2
	if *winnerID == team2.ID {
		winner, loser = team2, team1
	}
	if winner.HasMember(actorID) {
		return roleWinner, nil
	}
	if loser.HasMember(actorID) {
		return roleLoser, nil
	}
	return roleNone, nil
}

func (s *matchService) ListMyMatches(ctx context.Context, actorID int, status *models.MatchStatus) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByUser(ctx, actorID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for user %d: %w", actorID, err)
	}
	if matches == nil {
		return []*models.Match{}, nil
	}
	return matches, nil
}

func (s *matchService) getMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}
	return match, nil
}

func (s *matchService) loadTeam(ctx context.Context, teamID int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to load team %d: %w", teamID, err)
	}
	return team, nil
}

func (s *matchService) loadSides(ctx context.Context, match *models.Match) (*models.Team, *models.Team, error) {
	if match.Team1ID == nil || match.Team2ID == nil {
		return nil, nil, fmt.Errorf("team match %d is missing a side", match.ID)
	}
	team1, err := s.loadTeam(ctx, *match.Team1ID)
	if err != nil {
		return nil, nil, err
	}
	team2, err := s.loadTeam(ctx, *match.Team2ID)
	if err != nil {
		return nil, nil, err
	}
	return team1, team2, nil
}

// publishRanking refreshes the leaderboard for subscribers after a match
// completes. Failures only cost the push, never the accept.
func (s *matchService) publishRanking(gameID int) {
	if s.hub == nil || s.ranking == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		started := time.Now()
		entries, err := s.ranking.ComputeRanking(ctx, gameID)
		if err != nil {
			s.logger.Error("failed to recompute ranking after match completion",
				slog.Int("game_id", gameID), slog.Any("error", err))
			return
		}
		s.metrics.ObserveRankingLatency(time.Since(started))
		s.hub.BroadcastRanking(gameID, entries)
	}()
}
