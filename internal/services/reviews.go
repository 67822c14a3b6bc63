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
)

type ReviewService struct {
	storage *database.Storage
	log     *slog.Logger
}

func NewReviewService(s *database.Storage, log *slog.Logger) *ReviewService {
	return &ReviewService{
		storage: s,
		log:     log,
	}
}

func (s *ReviewService) AddReview(ctx context.Context, id identity.Identity, gameID int64, body string) (*models.Review, error) {
	const op = "services.reviews.AddReview"

	if id.Anonymous() {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	if gameID <= 0 {
		return nil, fmt.Errorf("%s: %w", op, invalid("game_id", "Unknown game"))
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%s: %w", op, invalid("body", "Review cannot be empty"))
	}
	if utf8.RuneCountInString(body) > models.ReviewMaxLen {
		return nil, fmt.Errorf("%s: %w", op, invalid("body", fmt.Sprintf("Review must be at most %d characters", models.ReviewMaxLen)))
	}

	review := models.Review{UserID: id.UserID, GameID: gameID, Body: body}

	tx := s.storage.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%s: %w", op, tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&review).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &review, nil
}

// ReviewsForGame returns the newest reviews first.
func (s *ReviewService) ReviewsForGame(ctx context.Context, gameID int64) ([]models.ReviewEntry, error) {
	const op = "services.reviews.ReviewsForGame"

	entries := []models.ReviewEntry{}
	if err := s.storage.DB.WithContext(ctx).
		Table("reviews").
		Select("reviews.id, reviews.user_id, users.username, reviews.body, reviews.created_at").
		Joins("JOIN users ON users.id = reviews.user_id").
		Where("reviews.game_id = ?", gameID).
		Order("reviews.created_at DESC, reviews.id DESC").
		Scan(&entries).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

// DeleteReview removes one of the caller's reviews and returns the game it
// was written for.
func (s *ReviewService) DeleteReview(ctx context.Context, id identity.Identity, reviewID int64) (int64, error) {
	const op = "services.reviews.DeleteReview"

	if id.Anonymous() {
		return 0, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	tx := s.storage.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, fmt.Errorf("%s: %w", op, tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var review models.Review
	if err := tx.First(&review, reviewID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if review.UserID != id.UserID {
		tx.Rollback()
		return 0, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := tx.Delete(&review).Error; err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return review.GameID, nil
}
