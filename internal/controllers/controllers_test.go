package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"games_catalog/internal/clients/igdb"
	"games_catalog/internal/identity"
	"games_catalog/internal/models"
	"games_catalog/internal/services"
	"games_catalog/internal/web"
)

var alice = identity.Identity{UserID: 1, Username: "alice"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func as(r *http.Request, id identity.Identity) *http.Request {
	return r.WithContext(identity.WithIdentity(r.Context(), id))
}

// flashesOf reads back the notices a handler queued on the response.
func flashesOf(t *testing.T, rec *httptest.ResponseRecorder) []web.Flash {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "flash" && c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return web.PopFlashes(httptest.NewRecorder(), req)
}

// fakeRenderer records the last page instead of executing templates.
type fakeRenderer struct {
	name string
	page web.Page
	err  error
}

func (f *fakeRenderer) Render(w io.Writer, name string, page web.Page) error {
	if f.err != nil {
		return f.err
	}
	f.name = name
	f.page = page
	_, err := fmt.Fprintf(w, "page:%s", name)
	return err
}

type MockGameService struct {
	mock.Mock
}

func (m *MockGameService) ListGames(ctx context.Context, filter models.GameFilter) ([]models.Game, error) {
	args := m.Called(ctx, filter)
	games, _ := args.Get(0).([]models.Game)
	return games, args.Error(1)
}

func (m *MockGameService) GetGame(ctx context.Context, gameID int64, viewer identity.Identity) (*models.GameDetail, error) {
	args := m.Called(ctx, gameID, viewer)
	detail, _ := args.Get(0).(*models.GameDetail)
	return detail, args.Error(1)
}

func (m *MockGameService) SearchGames(ctx context.Context, term string) ([]models.SearchResult, error) {
	args := m.Called(ctx, term)
	results, _ := args.Get(0).([]models.SearchResult)
	return results, args.Error(1)
}

func (m *MockGameService) ListPlatforms(ctx context.Context) ([]models.Reference, error) {
	args := m.Called(ctx)
	refs, _ := args.Get(0).([]models.Reference)
	return refs, args.Error(1)
}

func (m *MockGameService) ListGenres(ctx context.Context) ([]models.Reference, error) {
	args := m.Called(ctx)
	refs, _ := args.Get(0).([]models.Reference)
	return refs, args.Error(1)
}

func (m *MockGameService) ListGameNames(ctx context.Context) ([]models.Reference, error) {
	args := m.Called(ctx)
	refs, _ := args.Get(0).([]models.Reference)
	return refs, args.Error(1)
}

type MockRatingService struct {
	mock.Mock
}

func (m *MockRatingService) SubmitRating(ctx context.Context, id identity.Identity, gameID int64, score int) (*models.RatingResult, error) {
	args := m.Called(ctx, id, gameID, score)
	res, _ := args.Get(0).(*models.RatingResult)
	return res, args.Error(1)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation field", fmt.Errorf("op: %w", &services.ValidationError{Field: "title", Message: "Title is required"}), http.StatusBadRequest, "Title is required"},
		{"rating range", fmt.Errorf("op: %w", services.ErrInvalidRating), http.StatusBadRequest, "rating must be between 1 and 5"},
		{"forbidden", fmt.Errorf("op: %w", services.ErrForbidden), http.StatusForbidden, "you do not own this resource"},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid username or password"},
		{"anonymous", fmt.Errorf("op: %w", services.ErrUnauthorized), http.StatusUnauthorized, "authentication required"},
		{"missing row", fmt.Errorf("op: %w", services.ErrNotFound), http.StatusNotFound, "not found"},
		{"missing game", fmt.Errorf("op: %w", igdb.ErrNotFound), http.StatusNotFound, "not found"},
		{"upstream", fmt.Errorf("op: %w", igdb.ErrUpstreamRequest), http.StatusBadGateway, ErrUpstream.Error()},
		{"upstream auth", fmt.Errorf("op: %w", igdb.ErrUpstreamAuth), http.StatusBadGateway, ErrUpstream.Error()},
		{"other", errors.New("disk full"), http.StatusInternalServerError, ErrInternal.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestParseIDs(t *testing.T) {
	t.Run("repeated and comma separated", func(t *testing.T) {
		ids, err := parseIDs([]string{"3", "1, 2", "", " 4 "})
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 1, 2, 4}, ids)
	})

	t.Run("nothing submitted", func(t *testing.T) {
		ids, err := parseIDs(nil)
		require.NoError(t, err)
		assert.Nil(t, ids)
	})

	t.Run("not a number", func(t *testing.T) {
		_, err := parseIDs([]string{"1,abc"})
		var verr *services.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "game_ids", verr.Field)
	})
}

func TestPages_RenderFailure(t *testing.T) {
	p := pages{renderer: &fakeRenderer{err: errors.New("boom")}, log: discardLogger()}

	rec := httptest.NewRecorder()
	p.render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "index", "Games", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPages_Fail(t *testing.T) {
	p := pages{renderer: &fakeRenderer{}, log: discardLogger()}

	t.Run("anonymous goes to login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		p.fail(rec, httptest.NewRequest(http.MethodPost, "/new_list", nil), "op", services.ErrUnauthorized, "/")

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.Equal(t, []web.Flash{{Category: web.FlashDanger, Message: ErrLoginNeeded.Error()}}, flashesOf(t, rec))
	})

	t.Run("other errors go back", func(t *testing.T) {
		rec := httptest.NewRecorder()
		p.fail(rec, httptest.NewRequest(http.MethodPost, "/list/3/edit", nil), "op", services.ErrForbidden, "/list/3")

		assert.Equal(t, "/list/3", rec.Header().Get("Location"))
		assert.Equal(t, []web.Flash{{Category: web.FlashDanger, Message: "you do not own this resource"}}, flashesOf(t, rec))
	})
}
