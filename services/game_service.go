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

type GameService interface {
	CreateGame(ctx context.Context, input GameInput) (*models.Game, error)
	GetGameByID(ctx context.Context, id int) (*models.Game, error)
	GetAllGames(ctx context.Context) ([]*models.Game, error)
	UpdateGame(ctx context.Context, id int, input GameInput) (*models.Game, error)
	DeleteGame(ctx context.Context, id int) error
}

type GameInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	WinPoint    int     `json:"win_point"`
	DrawPoint   int     `json:"draw_point"`
	LossPoint   int     `json:"loss_point"`
	TeamGame    bool    `json:"team_game"`
}

type gameService struct {
	db        *sql.DB
	gameRepo  repositories.GameRepository
	teamRepo  repositories.TeamRepository
	matchRepo repositories.MatchRepository
}

func NewGameService(
	db *sql.DB,
	gameRepo repositories.GameRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
) GameService {
	return &gameService{
		db:        db,
		gameRepo:  gameRepo,
		teamRepo:  teamRepo,
		matchRepo: matchRepo,
	}
}

func validateGameInput(input GameInput) (GameInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return input, ErrGameNameRequired
	}
	if input.WinPoint < 0 || input.DrawPoint < 0 || input.LossPoint < 0 {
		return input, ErrGamePointsInvalid
	}
	return input, nil
}

func (s *gameService) CreateGame(ctx context.Context, input GameInput) (*models.Game, error) {
	input, err := validateGameInput(input)
	if err != nil {
		return nil, err
	}

	game := &models.Game{
		Name:        input.Name,
		Description: input.Description,
		WinPoint:    input.WinPoint,
		DrawPoint:   input.DrawPoint,
		LossPoint:   input.LossPoint,
		TeamGame:    input.TeamGame,
	}

	if err := s.gameRepo.Create(ctx, game); err != nil {
		if errors.Is(err, repositories.ErrGameNameConflict) {
			return nil, ErrGameNameConflict
		}
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return game, nil
}

func (s *gameService) GetGameByID(ctx context.Context, id int) (*models.Game, error) {
	game, err := s.gameRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game by id %d: %w", id, err)
	}
	return game, nil
}

func (s *gameService) GetAllGames(ctx context.Context) ([]*models.Game, error) {
	games, err := s.gameRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	if games == nil {
		return []*models.Game{}, nil
	}
	return games, nil
}

func (s *gameService) UpdateGame(ctx context.Context, id int, input GameInput) (*models.Game, error) {
	input, err := validateGameInput(input)
	if err != nil {
		return nil, err
	}

	game := &models.Game{
		ID:          id,
		Name:        input.Name,
		Description: input.Description,
		WinPoint:    input.WinPoint,
		DrawPoint:   input.DrawPoint,
		LossPoint:   input.LossPoint,
		TeamGame:    input.TeamGame,
	}

	if err := s.gameRepo.Update(ctx, game); err != nil {
		switch {
		case errors.Is(err, repositories.ErrGameNotFound):
			return nil, ErrGameNotFound
		case errors.Is(err, repositories.ErrGameNameConflict):
			return nil, ErrGameNameConflict
		default:
			return nil, fmt.Errorf("failed to update game %d: %w", id, err)
		}
	}
	return game, nil
}

// DeleteGame removes the game together with its matches, teams and team
// memberships in one transaction.
func (s *gameService) DeleteGame(ctx context.Context, id int) error {
	if _, err := s.GetGameByID(ctx, id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin game delete transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.matchRepo.DeleteByGame(ctx, tx, id); err != nil {
		return err
	}
	if err := s.teamRepo.DeleteByGame(ctx, tx, id); err != nil {
		return err
	}
	if err := s.gameRepo.Delete(ctx, tx, id); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return ErrGameNotFound
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit game delete transaction: %w", err)
	}
	return nil
}
