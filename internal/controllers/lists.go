package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"games_catalog/internal/identity"
	"games_catalog/internal/models"
	"games_catalog/internal/services"
)

type ListServicer interface {
	CreateList(ctx context.Context, id identity.Identity, title string, gameIDs []int64) (*models.GameList, error)
	GetList(ctx context.Context, listID int64) (*models.GameList, error)
	ResolveList(ctx context.Context, listID int64) (*models.ListView, error)
	UpdateList(ctx context.Context, id identity.Identity, listID int64, newTitle *string, newGameIDs []int64) (*models.GameList, error)
	DeleteList(ctx context.Context, id identity.Identity, listID int64) error
}

type ListController struct {
	pages
	service ListServicer
}

func NewListController(renderer Renderer, s ListServicer, log *slog.Logger) *ListController {
	return &ListController{
		pages:   pages{renderer: renderer, log: log},
		service: s,
	}
}

type CreateListRequest struct {
	Title   string  `json:"title"`
	GameIDs []int64 `json:"game_ids"`
}

// UpdateListRequest leaves a field unchanged when it is omitted.
type UpdateListRequest struct {
	Title   *string `json:"title"`
	GameIDs []int64 `json:"game_ids"`
}

type listResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	GameIDs   []int64   `json:"game_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toListResponse(l *models.GameList) listResponse {
	return listResponse{
		ID:        l.ID,
		UserID:    l.UserID,
		Title:     l.Title,
		GameIDs:   l.GameIDs(),
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

type listForm struct {
	ListID  int64
	Title   string
	GameIDs string
}

type listView struct {
	View    *models.ListView
	IsOwner bool
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func listURL(listID int64) string {
	return fmt.Sprintf("/list/%d", listID)
}

// JSON API

func (c *ListController) Get(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.lists.Get"

	listID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, c.log, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	view, err := c.service.ResolveList(r.Context(), listID)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, view)
}

func (c *ListController) Create(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.lists.Create"

	var req CreateListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.log.Info(ErrParsingJSON.Error(), slog.String("operation", op), slog.String("error", err.Error()))
		writeJSON(w, c.log, http.StatusBadRequest, errorResponse{Error: ErrParsingJSON.Error()})
		return
	}

	list, err := c.service.CreateList(r.Context(), identity.FromContext(r.Context()), req.Title, req.GameIDs)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusCreated, toListResponse(list))
}

func (c *ListController) Update(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.lists.Update"

	listID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, c.log, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var req UpdateListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.log.Info(ErrParsingJSON.Error(), slog.String("operation", op), slog.String("error", err.Error()))
		writeJSON(w, c.log, http.StatusBadRequest, errorResponse{Error: ErrParsingJSON.Error()})
		return
	}

	list, err := c.service.UpdateList(r.Context(), identity.FromContext(r.Context()), listID, req.Title, req.GameIDs)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, toListResponse(list))
}

func (c *ListController) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.lists.Delete"

	listID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, c.log, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := c.service.DeleteList(r.Context(), identity.FromContext(r.Context()), listID); err != nil {
		writeError(w, c.log, op, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HTML pages

func (c *ListController) NewForm(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.lists.NewForm"

	if identity.FromContext(r.Context()).Anonymous() {
		c.fail(w, r, op, services.ErrUnauthorized, "/")
		return
	}

	c.render(w, r, http.StatusOK, "lists/form", "New list", listForm{})
}

func (c *ListController) CreateForm(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.lists.CreateForm"

	if err := r.ParseForm(); err != nil {
		c.log.Info(ErrParsingForm.Error(), slog.String("operation", op), slog.String("error", err.Error()))
		c.fail(w, r, op, &services.ValidationError{Field: "form", Message: ErrParsingForm.Error()}, "/new_list")
		return
	}

	ids, err := parseIDs(r.PostForm["game_ids"])
	if err != nil {
		c.fail(w, r, op, err, "/new_list")
		return
	}

	list, err := c.service.CreateList(r.Context(), identity.FromContext(r.Context()), r.PostForm.Get("title"), ids)
	if err != nil {
		c.fail(w, r, op, err, "/new_list")
		return
	}

	c.done(w, r, "List created!", listURL(list.ID))
}

func (c *ListController) Show(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.lists.Show"

	listID, err := pathID(r, "id")
	if err != nil {
		c.renderError(w, r, op, services.ErrNotFound)
		return
	}

	view, err := c.service.ResolveList(r.Context(), listID)
	if err != nil {
		c.renderError(w, r, op, err)
		return
	}

	viewer := identity.FromContext(r.Context())
	c.render(w, r, http.StatusOK, "lists/show", view.List.Title, listView{
		View:    view,
		IsOwner: !viewer.Anonymous() && viewer.UserID == view.List.UserID,
	})
}

func (c *ListController) EditForm(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.lists.EditForm"

	listID, err := pathID(r, "id")
	if err != nil {
		c.renderError(w, r, op, services.ErrNotFound)
		return
	}

	viewer := identity.FromContext(r.Context())
	if viewer.Anonymous() {
		c.fail(w, r, op, services.ErrUnauthorized, listURL(listID))
		return
	}

	list, err := c.service.GetList(r.Context(), listID)
	if err != nil {
		c.fail(w, r, op, err, "/")
		return
	}

	if list.UserID != viewer.UserID {
		c.fail(w, r, op, services.ErrForbidden, listURL(listID))
		return
	}

	c.render(w, r, http.StatusOK, "lists/form", "Edit list", listForm{
		ListID:  list.ID,
		Title:   list.Title,
		GameIDs: joinIDs(list.GameIDs()),
	})
}

func (c *ListController) UpdateForm(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.lists.UpdateForm"

	listID, err := pathID(r, "id")
	if err != nil {
		c.fail(w, r, op, services.ErrNotFound, "/")
		return
	}

	back := listURL(listID) + "/edit"

	if err := r.ParseForm(); err != nil {
		c.log.Info(ErrParsingForm.Error(), slog.String("operation", op), slog.String("error", err.Error()))
		c.fail(w, r, op, &services.ValidationError{Field: "form", Message: ErrParsingForm.Error()}, back)
		return
	}

	ids, err := parseIDs(r.PostForm["game_ids"])
	if err != nil {
		c.fail(w, r, op, err, back)
		return
	}
	// The form always posts the full selection, so none checked means empty.
	if ids == nil {
		ids = []int64{}
	}

	title := r.PostForm.Get("title")
	if _, err := c.service.UpdateList(r.Context(), identity.FromContext(r.Context()), listID, &title, ids); err != nil {
		c.fail(w, r, op, err, back)
		return
	}

	c.done(w, r, "List updated!", listURL(listID))
}

func (c *ListController) DeleteForm(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.lists.DeleteForm"

	listID, err := pathID(r, "id")
	if err != nil {
		c.fail(w, r, op, services.ErrNotFound, "/")
		return
	}

	id := identity.FromContext(r.Context())
	if err := c.service.DeleteList(r.Context(), id, listID); err != nil {
		c.fail(w, r, op, err, listURL(listID))
		return
	}

	c.done(w, r, "List deleted.", fmt.Sprintf("/users/profile/%d", id.UserID))
}
