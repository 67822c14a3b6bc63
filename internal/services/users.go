package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"games_catalog/internal/identity"
	"games_catalog/internal/models"
	"games_catalog/internal/storage/database"
	"games_catalog/internal/storage/uploads"
)

const (
	UsernameMaxLen   = 20
	PasswordMinLen   = 6
	uploadsURLPrefix = "/uploads/"
	externalPassword = "!external"
)

// Authenticator creates and verifies accounts. UserService checks local
// password hashes; SSOAuthenticator delegates to the SSO service.
type Authenticator interface {
	Signup(ctx context.Context, in SignupInput) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

type SignupInput struct {
	Username string
	Password string
	// Image is the raw profile picture. Empty means the default picture.
	Image []byte
}

type UserService struct {
	storage *database.Storage
	hasher  *identity.PasswordHasher
	images  uploads.ImageStore
	catalog GameLookup
	log     *slog.Logger
}

// NewUserService builds the account service. images and catalog may be nil;
// without a catalog profiles carry no game names.
func NewUserService(s *database.Storage, hasher *identity.PasswordHasher, images uploads.ImageStore, catalog GameLookup, log *slog.Logger) *UserService {
	return &UserService{
		storage: s,
		hasher:  hasher,
		images:  images,
		catalog: catalog,
		log:     log,
	}
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	const op = "services.users.Signup"

	username, err := validateSignup(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	image, err := s.saveImage(in.Image)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.create(ctx, username, hash, image)
	if err != nil {
		s.dropImage(image)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	const op = "services.users.Authenticate"

	user, err := s.byUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.PasswordHash == externalPassword {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "services.users.GetUser"

	var user models.User

	err := s.storage.DB.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

// UserExists reports whether the account behind a session is still there.
func (s *UserService) UserExists(ctx context.Context, id int64) (bool, error) {
	const op = "services.users.UserExists"

	var count int64
	if err := s.storage.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return count > 0, nil
}

// GetProfile returns the user with their lists and ratings. Names of rated
// games are looked up in the catalog on a best-effort basis.
func (s *UserService) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	const op = "services.users.GetProfile"

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile := models.Profile{
		User:      *user,
		Lists:     []models.GameList{},
		Ratings:   []models.Rating{},
		GameNames: map[int64]string{},
	}

	db := s.storage.DB.WithContext(ctx)

	if err := db.Preload("Entries", orderedEntries).
		Where("user_id = ?", id).
		Order("created_at DESC, id DESC").
		Find(&profile.Lists).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Where("user_id = ?", id).
		Order("updated_at DESC").
		Find(&profile.Ratings).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.catalog != nil && len(profile.Ratings) > 0 {
		ids := make([]int64, 0, len(profile.Ratings))
		for _, r := range profile.Ratings {
			ids = append(ids, r.GameID)
		}

		found := lookupGames(ctx, s.catalog, ids, resolveWorkers, s.log.With(
			slog.String("operation", op),
			slog.Int64("user_id", id),
		))
		for gameID, game := range found {
			profile.GameNames[gameID] = game.Name
		}
	}

	return &profile, nil
}

// DeleteAccount removes the caller together with their ratings, reviews and
// lists.
func (s *UserService) DeleteAccount(ctx context.Context, id identity.Identity) error {
	const op = "services.users.DeleteAccount"

	if id.Anonymous() {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	tx := s.storage.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("%s: %w", op, tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var user models.User
	if err := tx.First(&user, id.UserID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	owned := tx.Model(&models.GameList{}).Select("id").Where("user_id = ?", id.UserID)

	steps := []func() error{
		func() error { return tx.Where("list_id IN (?)", owned).Delete(&models.ListEntry{}).Error },
		func() error { return tx.Where("user_id = ?", id.UserID).Delete(&models.GameList{}).Error },
		func() error { return tx.Where("user_id = ?", id.UserID).Delete(&models.Rating{}).Error },
		func() error { return tx.Where("user_id = ?", id.UserID).Delete(&models.Review{}).Error },
		func() error { return tx.Delete(&user).Error },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			tx.Rollback()
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.dropImage(user.ProfileImage)

	return nil
}

// ensureUser returns the local mirror of an externally authenticated
// account, creating it on first sight.
func (s *UserService) ensureUser(ctx context.Context, username, image string) (*models.User, error) {
	user, err := s.byUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return s.create(ctx, username, externalPassword, image)
}

func (s *UserService) create(ctx context.Context, username, hash, image string) (*models.User, error) {
	user := models.User{Username: username, PasswordHash: hash, ProfileImage: image}

	tx := s.storage.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var taken int64
	if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&taken).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if taken > 0 {
		tx.Rollback()
		return nil, errUsernameTaken()
	}

	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errUsernameTaken()
		}
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *UserService) byUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	err := s.storage.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// saveImage stores an uploaded profile picture and returns its public path.
func (s *UserService) saveImage(data []byte) (string, error) {
	if len(data) == 0 || s.images == nil {
		return models.DefaultProfileImage, nil
	}

	name, err := s.images.SaveImage(data)
	switch {
	case errors.Is(err, uploads.ErrImageTooLarge):
		return "", invalid("image", "Profile image must be at most 5 MB")
	case errors.Is(err, uploads.ErrInvalidImage):
		return "", invalid("image", "Profile image must be a JPEG, PNG, GIF or WebP file")
	case err != nil:
		return "", err
	}

	return uploadsURLPrefix + name, nil
}

func (s *UserService) dropImage(image string) {
	if s.images == nil || !strings.HasPrefix(image, uploadsURLPrefix) {
		return
	}

	if err := s.images.DeleteImage(strings.TrimPrefix(image, uploadsURLPrefix)); err != nil {
		s.log.Warn("failed to delete profile image", slog.String("image", image), slog.String("error", err.Error()))
	}
}

func validateSignup(in SignupInput) (string, error) {
	username := strings.TrimSpace(in.Username)

	switch {
	case username == "":
		return "", invalid("username", "Username is required")
	case utf8.RuneCountInString(username) > UsernameMaxLen:
		return "", invalid("username", fmt.Sprintf("Username must be at most %d characters", UsernameMaxLen))
	case utf8.RuneCountInString(in.Password) < PasswordMinLen:
		return "", invalid("password", fmt.Sprintf("Password must be at least %d characters", PasswordMinLen))
	case len(in.Password) > identity.MaxPasswordLen:
		return "", invalid("password", fmt.Sprintf("Password must be at most %d bytes", identity.MaxPasswordLen))
	}

	return username, nil
}

func errUsernameTaken() error {
	return invalid("username", "Username already taken")
}
