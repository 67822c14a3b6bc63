package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"games_catalog/internal/identity"
	"games_catalog/internal/models"
	"games_catalog/internal/services"
	"games_catalog/internal/web"
)

type MockListService struct {
	mock.Mock
}

func (m *MockListService) CreateList(ctx context.Context, id identity.Identity, title string, gameIDs []int64) (*models.GameList, error) {
	args := m.Called(ctx, id, title, gameIDs)
	list, _ := args.Get(0).(*models.GameList)
	return list, args.Error(1)
}

func (m *MockListService) GetList(ctx context.Context, listID int64) (*models.GameList, error) {
	args := m.Called(ctx, listID)
	list, _ := args.Get(0).(*models.GameList)
	return list, args.Error(1)
}

func (m *MockListService) ResolveList(ctx context.Context, listID int64) (*models.ListView, error) {
	args := m.Called(ctx, listID)
	view, _ := args.Get(0).(*models.ListView)
	return view, args.Error(1)
}

func (m *MockListService) UpdateList(ctx context.Context, id identity.Identity, listID int64, newTitle *string, newGameIDs []int64) (*models.GameList, error) {
	args := m.Called(ctx, id, listID, newTitle, newGameIDs)
	list, _ := args.Get(0).(*models.GameList)
	return list, args.Error(1)
}

func (m *MockListService) DeleteList(ctx context.Context, id identity.Identity, listID int64) error {
	args := m.Called(ctx, id, listID)
	return args.Error(0)
}

func setupListController() (*ListController, *MockListService, *fakeRenderer) {
	renderer := &fakeRenderer{}
	service := &MockListService{}
	return NewListController(renderer, service, discardLogger()), service, renderer
}

func sampleList() *models.GameList {
	return &models.GameList{
		ID:     3,
		UserID: 1,
		Title:  "Shooters",
		Entries: []models.ListEntry{
			{ListID: 3, GameID: 7, Position: 0},
			{ListID: 3, GameID: 1, Position: 1},
		},
	}
}

func TestListController_API(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		ctrl, service, _ := setupListController()
		service.On("CreateList", mock.Anything, alice, "Shooters", []int64{7, 1}).Return(sampleList(), nil)

		req := as(httptest.NewRequest(http.MethodPost, "/api/lists", strings.NewReader(`{"title":"Shooters","game_ids":[7,1]}`)), alice)
		rec := httptest.NewRecorder()
		ctrl.Create(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"game_ids":[7,1]`)
		service.AssertExpectations(t)
	})

	t.Run("create anonymous", func(t *testing.T) {
		ctrl, service, _ := setupListController()
		service.On("CreateList", mock.Anything, identity.Identity{}, "x", []int64{1}).
			Return(nil, fmt.Errorf("services.lists.CreateList: %w", services.ErrUnauthorized))

		rec := httptest.NewRecorder()
		ctrl.Create(rec, httptest.NewRequest(http.MethodPost, "/api/lists", strings.NewReader(`{"title":"x","game_ids":[1]}`)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rename only", func(t *testing.T) {
		ctrl, service, _ := setupListController()
		renamed := sampleList()
		renamed.Title = "Best"
		service.On("UpdateList", mock.Anything, alice, int64(3), mock.MatchedBy(func(title *string) bool {
			return title != nil && *title == "Best"
		}), []int64(nil)).Return(renamed, nil)

		req := as(withParam(httptest.NewRequest(http.MethodPut, "/api/lists/3", strings.NewReader(`{"title":"Best"}`)), "id", "3"), alice)
		rec := httptest.NewRecorder()
		ctrl.Update(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"title":"Best"`)
	})

	t.Run("update someone else's", func(t *testing.T) {
		ctrl, service, _ := setupListController()
		service.On("UpdateList", mock.Anything, alice, int64(3), mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("services.lists.UpdateList: %w", services.ErrForbidden))

		req := as(withParam(httptest.NewRequest(http.MethodPut, "/api/lists/3", strings.NewReader(`{"game_ids":[2]}`)), "id", "3"), alice)
		rec := httptest.NewRecorder()
		ctrl.Update(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		ctrl, service, _ := setupListController()
		service.On("DeleteList", mock.Anything, alice, int64(3)).Return(nil)

		rec := httptest.NewRecorder()
		ctrl.Delete(rec, as(withParam(httptest.NewRequest(http.MethodDelete, "/api/lists/3", nil), "id", "3"), alice))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("get missing", func(t *testing.T) {
		ctrl, service, _ := setupListController()
		service.On("ResolveList", mock.Anything, int64(99)).
			Return(nil, fmt.Errorf("services.lists.ResolveList: %w", services.ErrNotFound))

		rec := httptest.NewRecorder()
		ctrl.Get(rec, withParam(httptest.NewRequest(http.MethodGet, "/api/lists/99", nil), "id", "99"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get with missing members", func(t *testing.T) {
		ctrl, service, _ := setupListController()
		view := &models.ListView{
			List: *sampleList(),
			Games: []models.ListedGame{
				{GameID: 7, Game: &models.Game{ID: 7, Name: "Quake"}},
				{GameID: 1, Missing: true},
			},
		}
		service.On("ResolveList", mock.Anything, int64(3)).Return(view, nil)

		rec := httptest.NewRecorder()
		ctrl.Get(rec, withParam(httptest.NewRequest(http.MethodGet, "/api/lists/3", nil), "id", "3"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `{"game_id":1,"missing":true}`)
	})
}

func TestListController_Pages(t *testing.T) {
	t.Run("new list needs a session", func(t *testing.T) {
		ctrl, _, renderer := setupListController()

		rec := httptest.NewRecorder()
		ctrl.NewForm(rec, httptest.NewRequest(http.MethodGet, "/new_list", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.Empty(t, renderer.name)
	})

	t.Run("create from form", func(t *testing.T) {
		ctrl, service, _ := setupListController()
		service.On("CreateList", mock.Anything, alice, "Shooters", []int64{7, 1, 4}).Return(sampleList(), nil)

		form := url.Values{"title": {"Shooters"}, "game_ids": {"7", "1", "4"}}
		rec := httptest.NewRecorder()
		ctrl.CreateForm(rec, as(postForm("/new_list", form), alice))

		assert.Equal(t, "/list/3", rec.Header().Get("Location"))
		assert.Equal(t, []web.Flash{{Category: web.FlashSuccess, Message: "List created!"}}, flashesOf(t, rec))
	})

	t.Run("create with bad ids", func(t *testing.T) {
		ctrl, service, _ := setupListController()

		form := url.Values{"title": {"Shooters"}, "game_ids": {"7,doom"}}
		rec := httptest.NewRecorder()
		ctrl.CreateForm(rec, as(postForm("/new_list", form), alice))

		assert.Equal(t, "/new_list", rec.Header().Get("Location"))
		service.AssertNotCalled(t, "CreateList", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("show marks owner", func(t *testing.T) {
		ctrl, service, renderer := setupListController()
		service.On("ResolveList", mock.Anything, int64(3)).Return(&models.ListView{List: *sampleList()}, nil)

		rec := httptest.NewRecorder()
		ctrl.Show(rec, as(withParam(httptest.NewRequest(http.MethodGet, "/list/3", nil), "id", "3"), alice))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "lists/show", renderer.name)
		assert.True(t, renderer.page.Data.(listView).IsOwner)
	})

	t.Run("edit form prefilled", func(t *testing.T) {
		ctrl, service, renderer := setupListController()
		service.On("GetList", mock.Anything, int64(3)).Return(sampleList(), nil)

		rec := httptest.NewRecorder()
		ctrl.EditForm(rec, as(withParam(httptest.NewRequest(http.MethodGet, "/list/3/edit", nil), "id", "3"), alice))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, listForm{ListID: 3, Title: "Shooters", GameIDs: "7,1"}, renderer.page.Data)
	})

	t.Run("edit form of someone else's list", func(t *testing.T) {
		ctrl, service, renderer := setupListController()
		service.On("GetList", mock.Anything, int64(3)).Return(sampleList(), nil)

		bob := identity.Identity{UserID: 2, Username: "bob"}
		rec := httptest.NewRecorder()
		ctrl.EditForm(rec, as(withParam(httptest.NewRequest(http.MethodGet, "/list/3/edit", nil), "id", "3"), bob))

		assert.Equal(t, "/list/3", rec.Header().Get("Location"))
		assert.Equal(t, []web.Flash{{Category: web.FlashDanger, Message: "you do not own this resource"}}, flashesOf(t, rec))
		assert.Empty(t, renderer.name)
	})

	t.Run("update with every game unchecked", func(t *testing.T) {
		ctrl, service, _ := setupListController()
		service.On("UpdateList", mock.Anything, alice, int64(3), mock.Anything, []int64{}).
			Return(nil, fmt.Errorf("services.lists.UpdateList: %w", &services.ValidationError{Field: "game_ids", Message: "Select at least one game"}))

		rec := httptest.NewRecorder()
		ctrl.UpdateForm(rec, as(withParam(postForm("/list/3/edit", url.Values{"title": {"Shooters"}}), "id", "3"), alice))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/list/3/edit", rec.Header().Get("Location"))
		assert.Equal(t, []web.Flash{{Category: web.FlashDanger, Message: "Select at least one game"}}, flashesOf(t, rec))
		service.AssertExpectations(t)
	})

	t.Run("delete", func(t *testing.T) {
		ctrl, service, _ := setupListController()
		service.On("DeleteList", mock.Anything, alice, int64(3)).Return(nil)

		rec := httptest.NewRecorder()
		ctrl.DeleteForm(rec, as(withParam(postForm("/list/3/delete", nil), "id", "3"), alice))

		assert.Equal(t, "/users/profile/1", rec.Header().Get("Location"))
	})
}
