package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/family-ranking/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound      = errors.New("team not found")
	ErrTeamGameInvalid   = errors.New("team game conflict or invalid")
	ErrTeamMemberInvalid = errors.New("team member conflict or invalid")
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team, memberIDs []int) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByGame(ctx context.Context, gameID int) ([]*models.Team, error)
	DeleteByGame(ctx context.Context, exec SQLExecutor, gameID int) error
	RemoveMemberEverywhere(ctx context.Context, exec SQLExecutor, userID int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team, memberIDs []int) error {
	executor := r.getExecutor(exec)

	query := `
		INSERT INTO teams (game_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, team.GameID, team.Name).
		Scan(&team.ID, &team.CreatedAt)
	if err != nil {
		return r.handleTeamError(err)
	}

	for _, memberID := range memberIDs {
		_, err = executor.ExecContext(ctx,
			`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`,
			team.ID, memberID,
		)
		if err != nil {
			return r.handleTeamError(err)
		}
	}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT id, game_id, name, created_at FROM teams WHERE id = $1`

	team := &models.Team{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&team.ID, &team.GameID, &team.Name, &team.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team by id %d: %w", id, err)
	}

	members, err := r.loadMembers(ctx, []int{team.ID})
	if err != nil {
		return nil, err
	}
	team.Members = members[team.ID]
	return team, nil
}

func (r *postgresTeamRepository) ListByGame(ctx context.Context, gameID int) ([]*models.Team, error) {
	query := `SELECT id, game_id, name, created_at FROM teams WHERE game_id = $1 ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams for game %d: %w", gameID, err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	teamIDs := make([]int, 0)
	for rows.Next() {
		team := &models.Team{}
		if scanErr := rows.Scan(&team.ID, &team.GameID, &team.Name, &team.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", scanErr)
		}
		teams = append(teams, team)
		teamIDs = append(teamIDs, team.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during team rows iteration: %w", err)
	}

	members, err := r.loadMembers(ctx, teamIDs)
	if err != nil {
		return nil, err
	}
	for _, team := range teams {
		team.Members = members[team.ID]
	}
	return teams, nil
}

// loadMembers fetches the member users of the given teams in one query,
// keyed by team id.
func (r *postgresTeamRepository) loadMembers(ctx context.Context, teamIDs []int) (map[int][]models.User, error) {
	members := make(map[int][]models.User)
	if len(teamIDs) == 0 {
		return members, nil
	}

	query := `
		SELECT tm.team_id, u.id, u.username, u.email, u.role, u.avatar, u.created_at
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = ANY($1)
		ORDER BY u.id ASC`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(teamIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var teamID int
		var user models.User
		if scanErr := rows.Scan(&teamID, &user.ID, &user.Username, &user.Email, &user.Role, &user.Avatar, &user.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team member row: %w", scanErr)
		}
		members[teamID] = append(members[teamID], user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during team member rows iteration: %w", err)
	}
	return members, nil
}

func (r *postgresTeamRepository) DeleteByGame(ctx context.Context, exec SQLExecutor, gameID int) error {
	executor := r.getExecutor(exec)

	_, err := executor.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id IN (SELECT id FROM teams WHERE game_id = $1)`,
		gameID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete team members for game %d: %w", gameID, err)
	}

	_, err = executor.ExecContext(ctx, `DELETE FROM teams WHERE game_id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete teams for game %d: %w", gameID, err)
	}
	return nil
}

func (r *postgresTeamRepository) RemoveMemberEverywhere(ctx context.Context, exec SQLExecutor, userID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM team_members WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to remove user %d from teams: %w", userID, err)
	}
	return nil
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "teams_game_id_fkey":
			return ErrTeamGameInvalid
		case "team_members_user_id_fkey", "team_members_team_id_fkey":
			return ErrTeamMemberInvalid
		}
	}
	return err
}
