package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/family-ranking/models"
	"github.com/Dosada05/family-ranking/repositories"
)

type TeamService interface {
	CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error)
	GetTeamByID(ctx context.Context, id int) (*models.Team, error)
	ListTeamsByGame(ctx context.Context, gameID int) ([]*models.Team, error)
}

type CreateTeamInput struct {
	GameID    int    `json:"game_id"`
	Name      string `json:"name"`
	MemberIDs []int  `json:"member_ids"`
}

type teamService struct {
	db       *sql.DB
	teamRepo repositories.TeamRepository
	gameRepo repositories.GameRepository
	userRepo repositories.UserRepository
}

func NewTeamService(
	db *sql.DB,
	teamRepo repositories.TeamRepository,
	gameRepo repositories.GameRepository,
	userRepo repositories.UserRepository,
) TeamService {
	return &teamService{
		db:       db,
		teamRepo: teamRepo,
		gameRepo: gameRepo,
		userRepo: userRepo,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}

	if _, err := s.gameRepo.GetByID(ctx, input.GameID); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to load game %d: %w", input.GameID, err)
	}

	memberIDs := dedupeIDs(input.MemberIDs)
	for _, memberID := range memberIDs {
		if _, err := s.userRepo.GetByID(ctx, memberID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil, fmt.Errorf("%w: member %d", ErrUserNotFound, memberID)
			}
			return nil, fmt.Errorf("failed to load member %d: %w", memberID, err)
		}
	}

	team := &models.Team{
		GameID: input.GameID,
		Name:   name,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin team create transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.teamRepo.Create(ctx, tx, team, memberIDs); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit team create transaction: %w", err)
	}

	return s.GetTeamByID(ctx, team.ID)
}

func (s *teamService) GetTeamByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team by id %d: %w", id, err)
	}
	return team, nil
}

func (s *teamService) ListTeamsByGame(ctx context.Context, gameID int) ([]*models.Team, error) {
	if _, err := s.gameRepo.GetByID(ctx, gameID); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to load game %d: %w", gameID, err)
	}

	teams, err := s.teamRepo.ListByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for game %d: %w", gameID, err)
	}
	if teams == nil {
		return []*models.Team{}, nil
	}
	return teams, nil
}

func dedupeIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	result := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}
