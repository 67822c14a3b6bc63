package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"games_catalog/internal/config"
	"games_catalog/internal/identity"
	"games_catalog/internal/models"
	"games_catalog/internal/storage/database"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestDB opens a migrated in-memory sqlite store.
func setupTestDB(t *testing.T) *database.Storage {
	t.Helper()

	s, err := database.New(config.Database{Driver: config.DriverSQLite, DBName: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func setupMockDB(t *testing.T) (*database.Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return &database.Storage{DB: gormDB}, mock
}

func seedUser(t *testing.T, s *database.Storage, username string) identity.Identity {
	t.Helper()

	user := models.User{Username: username, PasswordHash: "x", ProfileImage: models.DefaultProfileImage}
	require.NoError(t, s.DB.Create(&user).Error)

	return identity.Identity{UserID: user.ID, Username: user.Username}
}

var errCatalogDown = errors.New("catalog down")

type fakeCatalog struct {
	mu      sync.Mutex
	games   map[int64]models.Game
	failing map[int64]bool
	listErr error
	getErr  error
	lookups atomic.Int32
}

func newFakeCatalog(games ...models.Game) *fakeCatalog {
	c := &fakeCatalog{games: map[int64]models.Game{}, failing: map[int64]bool{}}
	for _, g := range games {
		c.games[g.ID] = g
	}
	return c
}

func (c *fakeCatalog) fail(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[id] = true
}

func (c *fakeCatalog) GetGame(_ context.Context, id int64) (*models.Game, error) {
	c.lookups.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failing[id] {
		return nil, errCatalogDown
	}
	g, ok := c.games[id]
	if !ok {
		return nil, errors.New("game not found in catalog")
	}
	return &g, nil
}

// GetGames counts one lookup per call. Failing and unknown ids are left out,
// the way the catalog omits ids it cannot serve.
func (c *fakeCatalog) GetGames(_ context.Context, ids []int64) ([]models.Game, error) {
	c.lookups.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return nil, c.getErr
	}

	games := []models.Game{}
	for _, id := range ids {
		if g, ok := c.games[id]; ok && !c.failing[id] {
			games = append(games, g)
		}
	}
	return games, nil
}

func (c *fakeCatalog) ListGames(_ context.Context, filter models.GameFilter) ([]models.Game, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}

	games := []models.Game{}
	if filter.HasFilters() {
		return games, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(c.games)) {
		games = append(games, c.games[id])
	}
	return games, nil
}

func (c *fakeCatalog) SearchGames(_ context.Context, term string) ([]models.SearchResult, error) {
	return []models.SearchResult{{ID: 1, Name: term}}, nil
}

func (c *fakeCatalog) ListPlatforms(context.Context) ([]models.Reference, error) {
	return []models.Reference{{ID: 6, Name: "PC"}}, nil
}

func (c *fakeCatalog) ListGenres(context.Context) ([]models.Reference, error) {
	return []models.Reference{{ID: 12, Name: "RPG"}}, nil
}

func (c *fakeCatalog) ListGameNames(context.Context) ([]models.Reference, error) {
	return []models.Reference{{ID: 1, Name: "Game 1"}}, nil
}
