package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/family-ranking/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound           = errors.New("match not found")
	ErrMatchStatusConflict     = errors.New("match status changed concurrently")
	ErrMatchSettlementConflict = errors.New("match settlement state changed concurrently")
	ErrMatchGameInvalid        = errors.New("match game conflict or invalid")
	ErrMatchParticipantInvalid = errors.New("match participant conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByGame(ctx context.Context, gameID int, status *models.MatchStatus) ([]*models.Match, error)
	ListByUser(ctx context.Context, userID int, status *models.MatchStatus) ([]*models.Match, error)
	// TransitionStatus flips the status with a compare-and-set keyed on the
	// prior value. Zero affected rows means the match was transitioned
	// concurrently (the caller has already verified it exists).
	TransitionStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.MatchStatus) error
	MarkSettlementRequested(ctx context.Context, id int, at time.Time) error
	MarkSettlementConfirmed(ctx context.Context, id int) error
	DeleteByGame(ctx context.Context, exec SQLExecutor, gameID int) error
	DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, game_id, is_team_match, player1_id, player2_id, team1_id, team2_id,
	bet_type, bet_description, score1, score2, winner_id, status,
	bet_settled_requested, bet_settled_requested_at, bet_settled_confirmed,
	created_by, created_at`

func scanMatch(row interface{ Scan(dest ...interface{}) error }) (*models.Match, error) {
	match := &models.Match{}
	err := row.Scan(
		&match.ID,
		&match.GameID,
		&match.TeamMatch,
		&match.Player1ID,
		&match.Player2ID,
		&match.Team1ID,
		&match.Team2ID,
		&match.BetType,
		&match.BetDescription,
		&match.Score1,
		&match.Score2,
		&match.WinnerID,
		&match.Status,
		&match.BetSettledRequested,
		&match.BetSettledRequestedAt,
		&match.BetSettledConfirmed,
		&match.CreatedByID,
		&match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches
			(game_id, is_team_match, player1_id, player2_id, team1_id, team2_id,
			 bet_type, bet_description, score1, score2, winner_id, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		match.GameID,
		match.TeamMatch,
		match.Player1ID,
		match.Player2ID,
		match.Team1ID,
		match.Team2ID,
		match.BetType,
		match.BetDescription,
		match.Score1,
		match.Score2,
		match.WinnerID,
		match.Status,
		match.CreatedByID,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	match, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByGame(ctx context.Context, gameID int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE game_id = $1`)

	args := []interface{}{gameID}
	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(len(args)+1))
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY created_at ASC, id ASC")

	return r.queryMatches(ctx, queryBuilder.String(), args...)
}

func (r *postgresMatchRepository) ListByUser(ctx context.Context, userID int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT ` + matchColumns + `
		FROM matches m
		WHERE (m.player1_id = $1 OR m.player2_id = $1 OR m.created_by = $1
		       OR EXISTS (
		           SELECT 1 FROM team_members tm
		           WHERE tm.user_id = $1 AND tm.team_id IN (m.team1_id, m.team2_id)
		       ))`)

	args := []interface{}{userID}
	if statusFilter != nil {
		queryBuilder.WriteString(" AND m.status = $" + strconv.Itoa(len(args)+1))
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY m.created_at DESC, m.id DESC")

	return r.queryMatches(ctx, queryBuilder.String(), args...)
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) TransitionStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.MatchStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET status = $1 WHERE id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to transition match %d to %s: %w", id, to, err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) MarkSettlementRequested(ctx context.Context, id int, at time.Time) error {
	query := `
		UPDATE matches
		SET bet_settled_requested = TRUE, bet_settled_requested_at = $1
		WHERE id = $2
		  AND status = $3
		  AND bet_type <> $4
		  AND bet_settled_requested = FALSE`

	result, err := r.db.ExecContext(ctx, query, at, id, models.MatchStatusCompleted, models.BetFriendly)
	if err != nil {
		return fmt.Errorf("failed to mark settlement requested for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchSettlementConflict)
}

func (r *postgresMatchRepository) MarkSettlementConfirmed(ctx context.Context, id int) error {
	query := `
		UPDATE matches
		SET bet_settled_confirmed = TRUE
		WHERE id = $1
		  AND bet_settled_requested = TRUE
		  AND bet_settled_confirmed = FALSE`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark settlement confirmed for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchSettlementConflict)
}

func (r *postgresMatchRepository) DeleteByGame(ctx context.Context, exec SQLExecutor, gameID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM matches WHERE game_id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete matches for game %d: %w", gameID, err)
	}
	return nil
}

func (r *postgresMatchRepository) DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM matches WHERE player1_id = $1 OR player2_id = $1 OR created_by = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete matches for user %d: %w", userID, err)
	}
	return nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_game_id_fkey":
			return ErrMatchGameInvalid
		case "matches_player1_id_fkey", "matches_player2_id_fkey",
			"matches_team1_id_fkey", "matches_team2_id_fkey":
			return ErrMatchParticipantInvalid
		}
	}
	return err
}
