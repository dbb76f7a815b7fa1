package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Dosada05/family-ranking/models"
	"github.com/Dosada05/family-ranking/repositories"
	"github.com/Dosada05/family-ranking/storage"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserService interface {
	GetProfile(ctx context.Context, userID int) (models.UserProfile, error)
	ListUsers(ctx context.Context) ([]models.UserProfile, error)
	UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput) (*models.User, error)
	UploadAvatar(ctx context.Context, userID int, contentType string, reader io.Reader) (string, error)

	// Admin operations.
	CreateUser(ctx context.Context, input AdminCreateUserInput) (*models.User, error)
	UpdateUser(ctx context.Context, userID int, input AdminUpdateUserInput) (*models.User, error)
	DeleteUser(ctx context.Context, userID int) error
}

type UpdateProfileInput struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

type AdminCreateUserInput struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

type AdminUpdateUserInput struct {
	Username *string          `json:"username,omitempty"`
	Email    *string          `json:"email,omitempty"`
	Role     *models.UserRole `json:"role,omitempty"`
}

type userService struct {
	db        *sql.DB
	userRepo  repositories.UserRepository
	teamRepo  repositories.TeamRepository
	matchRepo repositories.MatchRepository
	ranking   RankingService
	uploader  storage.FileUploader
	logger    *slog.Logger
}

func NewUserService(
	db *sql.DB,
	userRepo repositories.UserRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	ranking RankingService,
	uploader storage.FileUploader,
	logger *slog.Logger,
) UserService {
	return &userService{
		db:        db,
		userRepo:  userRepo,
		teamRepo:  teamRepo,
		matchRepo: matchRepo,
		ranking:   ranking,
		uploader:  uploader,
		logger:    logger,
	}
}

func (s *userService) GetProfile(ctx context.Context, userID int) (models.UserProfile, error) {
	return s.ranking.ComputeUserTotals(ctx, userID)
}

func (s *userService) ListUsers(ctx context.Context) ([]models.UserProfile, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	profiles := make([]models.UserProfile, 0, len(users))
	for _, user := range users {
		profile, err := s.ranking.ComputeUserTotals(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput) (*models.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, ErrUsernameRequired
		}
		user.Username = username
	}
	if input.Email != nil {
		user.Email = strings.TrimSpace(*input.Email)
	}

	if err := s.saveUser(ctx, user); err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

// UploadAvatar stores the image in the bucket under a fresh key and records
// its public URL on the user. The previous object, if any, is removed best
// effort.
func (s *userService) UploadAvatar(ctx context.Context, userID int, contentType string, reader io.Reader) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("avatars/%d/%s%s", userID, uuid.NewString(), extensionForContentType(contentType))

	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar for user %d: %w", userID, err)
	}

	if err := s.userRepo.UpdateAvatarKey(ctx, userID, &result.Location); err != nil {
		return "", fmt.Errorf("failed to record avatar for user %d: %w", userID, err)
	}

	if user.Avatar != nil {
		if oldKey := s.keyFromLocation(*user.Avatar); oldKey != "" {
			if delErr := s.uploader.Delete(ctx, oldKey); delErr != nil {
				s.logger.Warn("failed to delete previous avatar",
					slog.Int("user_id", userID),
					slog.String("key", oldKey),
					slog.Any("error", delErr),
				)
			}
		}
	}

	return result.Location, nil
}

func (s *userService) CreateUser(ctx context.Context, input AdminCreateUserInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if len(input.Password) < 8 {
		return nil, ErrPasswordTooShort
	}

	role := input.Role
	if role == "" {
		role = models.RolePlayer
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: string(hashedPassword),
		Role:         role,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, userID int, input AdminUpdateUserInput) (*models.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, ErrUsernameRequired
		}
		user.Username = username
	}
	if input.Email != nil {
		user.Email = strings.TrimSpace(*input.Email)
	}
	if input.Role != nil {
		user.Role = *input.Role
	}

	if err := s.saveUser(ctx, user); err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

// DeleteUser removes the user together with their matches and team
// memberships in one transaction. Completed matches of other participants
// are removed too, so per-game standings recompute without the departed
// player.
func (s *userService) DeleteUser(ctx context.Context, userID int) error {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin user delete transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.matchRepo.DeleteByUser(ctx, tx, userID); err != nil {
		return err
	}
	if err := s.teamRepo.RemoveMemberEverywhere(ctx, tx, userID); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, tx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user delete transaction: %w", err)
	}
	return nil
}

func (s *userService) loadUser(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	return user, nil
}

func (s *userService) saveUser(ctx context.Context, user *models.User) error {
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return mapUserRepoError(err)
	}
	return nil
}

// keyFromLocation recovers the bucket key from a stored public URL. Avatars
// are always placed under avatars/, anything else is not ours to delete.
func (s *userService) keyFromLocation(location string) string {
	idx := strings.Index(location, "/avatars/")
	if idx < 0 {
		return ""
	}
	return location[idx+1:]
}

func mapUserRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrUserUsernameConflict):
		return ErrUsernameConflict
	case errors.Is(err, repositories.ErrUserEmailConflict):
		return ErrEmailConflict
	default:
		return fmt.Errorf("user repository error: %w", err)
	}
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
