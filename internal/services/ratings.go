package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"games_catalog/internal/identity"
	"games_catalog/internal/models"
	"games_catalog/internal/storage/database"
)

type RatingService struct {
	storage *database.Storage
	log     *slog.Logger
}

func NewRatingService(s *database.Storage, log *slog.Logger) *RatingService {
	return &RatingService{
		storage: s,
		log:     log,
	}
}

// AverageRatings returns the mean local score per game, rounded to two
// decimals. Games nobody rated are absent from the map.
func (s *RatingService) AverageRatings(ctx context.Context, gameIDs []int64) (map[int64]float64, error) {
	const op = "services.ratings.AverageRatings"

	averages := make(map[int64]float64, len(gameIDs))
	if len(gameIDs) == 0 {
		return averages, nil
	}

	var rows []struct {
		GameID int64
		Avg    float64
	}

	if err := s.storage.DB.WithContext(ctx).
		Model(&models.Rating{}).
		Select("game_id, AVG(score) AS avg").
		Where("game_id IN ?", gameIDs).
		Group("game_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, r := range rows {
		averages[r.GameID] = math.Round(r.Avg*100) / 100
	}

	return averages, nil
}

// MergeAverages sets AvgRating on every game that has an average. The others
// keep a nil AvgRating.
func MergeAverages(games []models.Game, averages map[int64]float64) []models.Game {
	for i := range games {
		if avg, ok := averages[games[i].ID]; ok {
			games[i].AvgRating = &avg
		}
	}
	return games
}

// SubmitRating inserts the caller's score for a game or overwrites the
// existing one. Concurrent submissions for the same pair leave one row.
func (s *RatingService) SubmitRating(ctx context.Context, id identity.Identity, gameID int64, score int) (*models.RatingResult, error) {
	const op = "services.ratings.SubmitRating"

	if id.Anonymous() {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	if score < models.RatingMin || score > models.RatingMax {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRating)
	}
	if gameID <= 0 {
		return nil, fmt.Errorf("%s: %w", op, invalid("game_id", "Unknown game"))
	}

	tx := s.storage.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%s: %w", op, tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var existing int64
	if err := tx.Model(&models.Rating{}).
		Where("user_id = ? AND game_id = ?", id.UserID, gameID).
		Count(&existing).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rating := models.Rating{UserID: id.UserID, GameID: gameID, Score: score}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&rating).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Where("user_id = ? AND game_id = ?", id.UserID, gameID).First(&rating).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.RatingResult{Rating: rating, Created: existing == 0}, nil
}

// UserRating returns nil when the user has not rated the game.
func (s *RatingService) UserRating(ctx context.Context, userID, gameID int64) (*models.Rating, error) {
	const op = "services.ratings.UserRating"

	var r models.Rating

	err := s.storage.DB.WithContext(ctx).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &r, nil
}

func (s *RatingService) RatingsByUser(ctx context.Context, userID int64) ([]models.Rating, error) {
	const op = "services.ratings.RatingsByUser"

	ratings := []models.Rating{}
	if err := s.storage.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ratings, nil
}
