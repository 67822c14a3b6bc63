package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"gorm.io/gorm"

	"games_catalog/internal/identity"
	"games_catalog/internal/models"
	"games_catalog/internal/storage/database"
)

const (
	resolveWorkers = 4
	lookupBatch    = 100
)

// GameLookup resolves catalog ids, one at a time or in a batch.
type GameLookup interface {
	GetGame(ctx context.Context, id int64) (*models.Game, error)
	GetGames(ctx context.Context, ids []int64) ([]models.Game, error)
}

type ListService struct {
	storage *database.Storage
	catalog GameLookup
	ratings *RatingService
	log     *slog.Logger
	workers int
}

// NewListService wires the list store to the catalog. ratings may be nil, in
// which case resolved lists carry no averages.
func NewListService(s *database.Storage, catalog GameLookup, ratings *RatingService, log *slog.Logger) *ListService {
	return &ListService{
		storage: s,
		catalog: catalog,
		ratings: ratings,
		log:     log,
		workers: resolveWorkers,
	}
}

func (s *ListService) CreateList(ctx context.Context, id identity.Identity, title string, gameIDs []int64) (*models.GameList, error) {
	const op = "services.lists.CreateList"

	if id.Anonymous() {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	title, err := validateTitle(title)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids, err := validateGameIDs(gameIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	list := models.GameList{UserID: id.UserID, Title: title, Entries: entries(ids)}

	tx := s.storage.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%s: %w", op, tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Create also inserts the entries through the association.
	if err := tx.Create(&list).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &list, nil
}

func (s *ListService) GetList(ctx context.Context, listID int64) (*models.GameList, error) {
	const op = "services.lists.GetList"

	list, err := loadList(s.storage.DB.WithContext(ctx), listID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

// ResolveList looks the members up in the catalog in batches. A member the
// catalog did not return, or whose batch failed, becomes a Missing
// placeholder and does not fail the view.
func (s *ListService) ResolveList(ctx context.Context, listID int64) (*models.ListView, error) {
	const op = "services.lists.ResolveList"

	list, err := s.GetList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids := list.GameIDs()
	found := lookupGames(ctx, s.catalog, ids, s.workers, s.log.With(
		slog.String("operation", op),
		slog.Int64("list_id", listID),
	))

	view := &models.ListView{
		List:  *list,
		Games: make([]models.ListedGame, len(ids)),
	}

	for i, gameID := range ids {
		game, ok := found[gameID]
		if !ok {
			view.Games[i] = models.ListedGame{GameID: gameID, Missing: true}
			continue
		}
		view.Games[i] = models.ListedGame{GameID: gameID, Game: &game}
	}

	s.mergeAverages(ctx, view)

	return view, nil
}

// lookupGames fetches ids in chunks of lookupBatch, at most workers chunks at
// a time. A failed chunk is logged and its ids are absent from the result.
func lookupGames(ctx context.Context, catalog GameLookup, ids []int64, workers int, log *slog.Logger) map[int64]models.Game {
	found := make(map[int64]models.Game, len(ids))
	if len(ids) == 0 {
		return found
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, max(workers, 1))
	)

	for start := 0; start < len(ids); start += lookupBatch {
		batch := ids[start:min(start+lookupBatch, len(ids))]

		wg.Add(1)
		go func(batch []int64) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			games, err := catalog.GetGames(ctx, batch)
			if err != nil {
				log.Warn("game lookup failed",
					slog.Int("batch_size", len(batch)),
					slog.Int64("first_game_id", batch[0]),
					slog.String("error", err.Error()),
				)
				return
			}

			mu.Lock()
			for _, g := range games {
				found[g.ID] = g
			}
			mu.Unlock()
		}(batch)
	}

	wg.Wait()

	return found
}

func (s *ListService) mergeAverages(ctx context.Context, view *models.ListView) {
	if s.ratings == nil {
		return
	}

	ids := make([]int64, 0, len(view.Games))
	for _, g := range view.Games {
		if g.Game != nil {
			ids = append(ids, g.GameID)
		}
	}

	averages, err := s.ratings.AverageRatings(ctx, ids)
	if err != nil {
		s.log.Warn("averages unavailable", slog.String("error", err.Error()))
		return
	}

	for _, g := range view.Games {
		if g.Game == nil {
			continue
		}
		if avg, ok := averages[g.GameID]; ok {
			g.Game.AvgRating = &avg
		}
	}
}

// UpdateList renames the list when newTitle is set and replaces its members
// when newGameIDs is non-nil.
func (s *ListService) UpdateList(ctx context.Context, id identity.Identity, listID int64, newTitle *string, newGameIDs []int64) (*models.GameList, error) {
	const op = "services.lists.UpdateList"

	if id.Anonymous() {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	var (
		title string
		ids   []int64
		err   error
	)

	if newTitle != nil {
		if title, err = validateTitle(*newTitle); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if newGameIDs != nil {
		if ids, err = validateGameIDs(newGameIDs); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
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

	list, err := ownedList(tx, id, listID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if newTitle != nil {
		if err := tx.Model(list).Update("title", title).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if newGameIDs != nil {
		if err := tx.Where("list_id = ?", listID).Delete(&models.ListEntry{}).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		fresh := entries(ids)
		for i := range fresh {
			fresh[i].ListID = listID
		}

		if err := tx.Create(&fresh).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	list, err = loadList(tx, listID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *ListService) DeleteList(ctx context.Context, id identity.Identity, listID int64) error {
	const op = "services.lists.DeleteList"

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

	if _, err := ownedList(tx, id, listID); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Where("list_id = ?", listID).Delete(&models.ListEntry{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Delete(&models.GameList{}, listID).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *ListService) ListsByOwner(ctx context.Context, userID int64) ([]models.GameList, error) {
	const op = "services.lists.ListsByOwner"

	lists := []models.GameList{}
	if err := s.storage.DB.WithContext(ctx).
		Preload("Entries", orderedEntries).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&lists).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return lists, nil
}

func orderedEntries(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func loadList(db *gorm.DB, listID int64) (*models.GameList, error) {
	var list models.GameList

	err := db.Preload("Entries", orderedEntries).First(&list, listID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &list, nil
}

func ownedList(tx *gorm.DB, id identity.Identity, listID int64) (*models.GameList, error) {
	var list models.GameList

	err := tx.First(&list, listID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if list.UserID != id.UserID {
		return nil, ErrForbidden
	}

	return &list, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)

	if title == "" {
		return "", invalid("title", "List name is required")
	}
	if utf8.RuneCountInString(title) > models.ListTitleMaxLen {
		return "", invalid("title", fmt.Sprintf("List name must be at most %d characters", models.ListTitleMaxLen))
	}

	return title, nil
}

// validateGameIDs drops duplicates, keeping the first occurrence.
func validateGameIDs(gameIDs []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(gameIDs))
	ids := make([]int64, 0, len(gameIDs))

	for _, id := range gameIDs {
		if id <= 0 {
			return nil, invalid("game_ids", fmt.Sprintf("Invalid game id %d", id))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, invalid("game_ids", "Select at least one game")
	}
	if len(ids) > models.ListMaxGames {
		return nil, invalid("game_ids", fmt.Sprintf("A list can hold at most %d games", models.ListMaxGames))
	}

	return ids, nil
}

func entries(ids []int64) []models.ListEntry {
	out := make([]models.ListEntry, 0, len(ids))
	for i, id := range ids {
		out = append(out, models.ListEntry{GameID: id, Position: i})
	}
	return out
}
