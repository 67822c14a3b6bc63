package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"games_catalog/internal/identity"
	"games_catalog/internal/models"
)

// Catalog is the remote game catalog.
type Catalog interface {
	GameLookup
	ListGames(ctx context.Context, filter models.GameFilter) ([]models.Game, error)
	SearchGames(ctx context.Context, term string) ([]models.SearchResult, error)
	ListPlatforms(ctx context.Context) ([]models.Reference, error)
	ListGenres(ctx context.Context) ([]models.Reference, error)
	ListGameNames(ctx context.Context) ([]models.Reference, error)
}

// GameService joins catalog data with local ratings and reviews.
type GameService struct {
	catalog Catalog
	ratings *RatingService
	reviews *ReviewService
	log     *slog.Logger
}

func NewGameService(catalog Catalog, ratings *RatingService, reviews *ReviewService, log *slog.Logger) *GameService {
	return &GameService{
		catalog: catalog,
		ratings: ratings,
		reviews: reviews,
		log:     log,
	}
}

// ListGames returns one catalog page with local averages merged in. If the
// averages cannot be read the games are returned without them.
func (s *GameService) ListGames(ctx context.Context, filter models.GameFilter) ([]models.Game, error) {
	const op = "services.games.ListGames"

	games, err := s.catalog.ListGames(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.withAverages(ctx, op, games), nil
}

// GetGame returns a game with its average, the viewer's own rating and the
// reviews. Only the catalog lookup can fail the call.
func (s *GameService) GetGame(ctx context.Context, gameID int64, viewer identity.Identity) (*models.GameDetail, error) {
	const op = "services.games.GetGame"

	game, err := s.catalog.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	merged := s.withAverages(ctx, op, []models.Game{*game})

	detail := models.GameDetail{
		Game:    merged[0],
		Reviews: []models.ReviewEntry{},
	}

	if !viewer.Anonymous() {
		rating, err := s.ratings.UserRating(ctx, viewer.UserID, gameID)
		if err != nil {
			s.log.Warn("own rating unavailable", slog.String("operation", op), slog.String("error", err.Error()))
		}
		detail.UserRating = rating
	}

	reviews, err := s.reviews.ReviewsForGame(ctx, gameID)
	if err != nil {
		s.log.Warn("reviews unavailable", slog.String("operation", op), slog.String("error", err.Error()))
	} else {
		detail.Reviews = reviews
	}

	return &detail, nil
}

func (s *GameService) SearchGames(ctx context.Context, term string) ([]models.SearchResult, error) {
	const op = "services.games.SearchGames"

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%s: %w", op, invalid("query", "Query parameter is required"))
	}

	results, err := s.catalog.SearchGames(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return results, nil
}

func (s *GameService) ListPlatforms(ctx context.Context) ([]models.Reference, error) {
	return s.catalog.ListPlatforms(ctx)
}

func (s *GameService) ListGenres(ctx context.Context) ([]models.Reference, error) {
	return s.catalog.ListGenres(ctx)
}

func (s *GameService) ListGameNames(ctx context.Context) ([]models.Reference, error) {
	return s.catalog.ListGameNames(ctx)
}

func (s *GameService) withAverages(ctx context.Context, op string, games []models.Game) []models.Game {
	ids := make([]int64, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}

	averages, err := s.ratings.AverageRatings(ctx, ids)
	if err != nil {
		s.log.Warn("averages unavailable", slog.String("operation", op), slog.String("error", err.Error()))
		return games
	}

	return MergeAverages(games, averages)
}
