package services

import (
	"context"
	"sync"
	"time"

	"github.com/Dosada05/family-ranking/models"
	"github.com/Dosada05/family-ranking/repositories"
)

// In-memory repository fakes shared by the service tests.

type fakeGameRepo struct {
	games  map[int]*models.Game
	nextID int
}

func newFakeGameRepo() *fakeGameRepo {
	return &fakeGameRepo{games: make(map[int]*models.Game), nextID: 1}
}

func (f *fakeGameRepo) add(game *models.Game) *models.Game {
	if game.ID == 0 {
		game.ID = f.nextID
		f.nextID++
	}
	f.games[game.ID] = game
	return game
}

func (f *fakeGameRepo) Create(_ context.Context, game *models.Game) error {
	f.add(game)
	return nil
}

func (f *fakeGameRepo) GetByID(_ context.Context, id int) (*models.Game, error) {
	game, ok := f.games[id]
	if !ok {
		return nil, repositories.ErrGameNotFound
	}
	return game, nil
}

func (f *fakeGameRepo) List(_ context.Context) ([]*models.Game, error) {
	games := make([]*models.Game, 0, len(f.games))
	for _, game := range f.games {
		games = append(games, game)
	}
	return games, nil
}

func (f *fakeGameRepo) Update(_ context.Context, game *models.Game) error {
	if _, ok := f.games[game.ID]; !ok {
		return repositories.ErrGameNotFound
	}
	f.games[game.ID] = game
	return nil
}

func (f *fakeGameRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := f.games[id]; !ok {
		return repositories.ErrGameNotFound
	}
	delete(f.games, id)
	return nil
}

type fakeUserRepo struct {
	users  map[int]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*models.User), nextID: 1}
}

func (f *fakeUserRepo) add(user *models.User) *models.User {
	if user.ID == 0 {
		user.ID = f.nextID
		f.nextID++
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	for _, existing := range f.users {
		if existing.Username == user.Username {
			return repositories.ErrUserUsernameConflict
		}
		if user.Email != "" && existing.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	f.add(user)
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) GetByPasswordResetToken(_ context.Context, token string) (*models.User, error) {
	for _, user := range f.users {
		if user.PasswordResetToken != nil && *user.PasswordResetToken == token {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) List(_ context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, len(f.users))
	for _, user := range f.users {
		clone := *user
		users = append(users, &clone)
	}
	return users, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return repositories.ErrUserNotFound
	}
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) SetPasswordResetToken(_ context.Context, userID int, token string, expiresAt time.Time) error {
	user, ok := f.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.PasswordResetToken = &token
	user.PasswordResetExpiresAt = &expiresAt
	return nil
}

func (f *fakeUserRepo) UpdateAvatarKey(_ context.Context, userID int, key *string) error {
	user, ok := f.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.Avatar = key
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := f.users[id]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

type fakeTeamRepo struct {
	teams  map[int]*models.Team
	nextID int
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{teams: make(map[int]*models.Team), nextID: 1}
}

func (f *fakeTeamRepo) add(team *models.Team) *models.Team {
	if team.ID == 0 {
		team.ID = f.nextID
		f.nextID++
	}
	f.teams[team.ID] = team
	return team
}

func (f *fakeTeamRepo) Create(_ context.Context, _ repositories.SQLExecutor, team *models.Team, memberIDs []int) error {
	members := make([]models.User, 0, len(memberIDs))
	for _, id := range memberIDs {
		members = append(members, models.User{ID: id})
	}
	team.Members = members
	f.add(team)
	return nil
}

func (f *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	team, ok := f.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return team, nil
}

func (f *fakeTeamRepo) ListByGame(_ context.Context, gameID int) ([]*models.Team, error) {
	teams := make([]*models.Team, 0)
	for _, team := range f.teams {
		if team.GameID == gameID {
			teams = append(teams, team)
		}
	}
	return teams, nil
}

func (f *fakeTeamRepo) DeleteByGame(_ context.Context, _ repositories.SQLExecutor, gameID int) error {
	for id, team := range f.teams {
		if team.GameID == gameID {
			delete(f.teams, id)
		}
	}
	return nil
}

func (f *fakeTeamRepo) RemoveMemberEverywhere(_ context.Context, _ repositories.SQLExecutor, userID int) error {
	for _, team := range f.teams {
		kept := team.Members[:0]
		for _, member := range team.Members {
			if member.ID != userID {
				kept = append(kept, member)
			}
		}
		team.Members = kept
	}
	return nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	matches map[int]*models.Match
	nextID  int
	teams   *fakeTeamRepo
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[int]*models.Match), nextID: 1}
}

func (f *fakeMatchRepo) add(match *models.Match) *models.Match {
	if match.ID == 0 {
		match.ID = f.nextID
		f.nextID++
	}
	f.matches[match.ID] = match
	return match
}

func (f *fakeMatchRepo) Create(_ context.Context, match *models.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	match.CreatedAt = time.Now()
	f.add(match)
	return nil
}

func (f *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	match, ok := f.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	clone := *match
	return &clone, nil
}

func (f *fakeMatchRepo) ListByGame(_ context.Context, gameID int, status *models.MatchStatus) ([]*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matches := make([]*models.Match, 0)
	for _, match := range f.matches {
		if match.GameID != gameID {
			continue
		}
		if status != nil && match.Status != *status {
			continue
		}
		clone := *match
		matches = append(matches, &clone)
	}
	return matches, nil
}

func (f *fakeMatchRepo) ListByUser(_ context.Context, userID int, status *models.MatchStatus) ([]*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matches := make([]*models.Match, 0)
	for _, match := range f.matches {
		if status != nil && match.Status != *status {
			continue
		}
		if !f.involves(match, userID) {
			continue
		}
		clone := *match
		matches = append(matches, &clone)
	}
	return matches, nil
}

func (f *fakeMatchRepo) involves(match *models.Match, userID int) bool {
	if match.CreatedByID == userID {
		return true
	}
	if match.Player1ID != nil && *match.Player1ID == userID {
		return true
	}
	if match.Player2ID != nil && *match.Player2ID == userID {
		return true
	}
	if f.teams == nil || !match.TeamMatch {
		return false
	}
	for _, teamID := range []*int{match.Team1ID, match.Team2ID} {
		if teamID == nil {
			continue
		}
		if team, ok := f.teams.teams[*teamID]; ok && team.HasMember(userID) {
			return true
		}
	}
	return false
}

func (f *fakeMatchRepo) TransitionStatus(_ context.Context, _ repositories.SQLExecutor, id int, from, to models.MatchStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	match, ok := f.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if match.Status != from {
		return repositories.ErrMatchStatusConflict
	}
	match.Status = to
	return nil
}

func (f *fakeMatchRepo) MarkSettlementRequested(_ context.Context, id int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	match, ok := f.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if match.Status != models.MatchStatusCompleted || match.BetType == models.BetFriendly || match.BetSettledRequested {
		return repositories.ErrMatchSettlementConflict
	}
	match.BetSettledRequested = true
	match.BetSettledRequestedAt = &at
	return nil
}

func (f *fakeMatchRepo) MarkSettlementConfirmed(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	match, ok := f.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if !match.BetSettledRequested || match.BetSettledConfirmed {
		return repositories.ErrMatchSettlementConflict
	}
	match.BetSettledConfirmed = true
	return nil
}

func (f *fakeMatchRepo) DeleteByGame(_ context.Context, _ repositories.SQLExecutor, gameID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, match := range f.matches {
		if match.GameID == gameID {
			delete(f.matches, id)
		}
	}
	return nil
}

func (f *fakeMatchRepo) DeleteByUser(_ context.Context, _ repositories.SQLExecutor, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, match := range f.matches {
		if f.involves(match, userID) {
			delete(f.matches, id)
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }
