package controllers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"games_catalog/internal/identity"
	"games_catalog/internal/models"
)

type GameServicer interface {
	ListGames(ctx context.Context, filter models.GameFilter) ([]models.Game, error)
	GetGame(ctx context.Context, gameID int64, viewer identity.Identity) (*models.GameDetail, error)
	SearchGames(ctx context.Context, term string) ([]models.SearchResult, error)
	ListPlatforms(ctx context.Context) ([]models.Reference, error)
	ListGenres(ctx context.Context) ([]models.Reference, error)
	ListGameNames(ctx context.Context) ([]models.Reference, error)
}

type RatingServicer interface {
	SubmitRating(ctx context.Context, id identity.Identity, gameID int64, score int) (*models.RatingResult, error)
}

type RateRequest struct {
	Rating int `json:"rating"`
}

// GameController serves the catalog JSON API.
type GameController struct {
	service GameServicer
	ratings RatingServicer
	log     *slog.Logger
}

func NewGameController(s GameServicer, ratings RatingServicer, log *slog.Logger) *GameController {
	return &GameController{
		service: s,
		ratings: ratings,
		log:     log,
	}
}

// gameFilter reads platform, genre and page from the query string.
func gameFilter(r *http.Request) (models.GameFilter, error) {
	platform, err := optionalID(r, "platform")
	if err != nil {
		return models.GameFilter{}, err
	}
	genre, err := optionalID(r, "genre")
	if err != nil {
		return models.GameFilter{}, err
	}

	page := pageNumber(r)

	return models.GameFilter{
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
		PlatformID: platform,
		GenreID:    genre,
	}, nil
}

func (c *GameController) ListGames(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.ListGames"

	filter, err := gameFilter(r)
	if err != nil {
		writeJSON(w, c.log, http.StatusBadRequest, errorResponse{Error: "platform and genre must be numeric ids"})
		return
	}

	games, err := c.service.ListGames(r.Context(), filter)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	if len(games) == 0 {
		writeJSON(w, c.log, http.StatusNotFound, errorResponse{Error: ErrNoGames.Error()})
		return
	}

	writeJSON(w, c.log, http.StatusOK, games)
}

func (c *GameController) AllGames(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.AllGames"

	refs, err := c.service.ListGameNames(r.Context())
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, refs)
}

func (c *GameController) Platforms(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.Platforms"

	refs, err := c.service.ListPlatforms(r.Context())
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, refs)
}

func (c *GameController) Genres(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.Genres"

	refs, err := c.service.ListGenres(r.Context())
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, refs)
}

func (c *GameController) Search(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.Search"

	results, err := c.service.SearchGames(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, results)
}

func (c *GameController) GetGame(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.GetGame"

	gameID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, c.log, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	detail, err := c.service.GetGame(r.Context(), gameID, identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, detail)
}

// Rate answers 201 when the rating is new and 200 when it replaced one.
func (c *GameController) Rate(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.Rate"

	gameID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, c.log, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.log.Info(ErrParsingJSON.Error(), slog.String("operation", op), slog.String("error", err.Error()))
		writeJSON(w, c.log, http.StatusBadRequest, errorResponse{Error: ErrParsingJSON.Error()})
		return
	}

	res, err := c.ratings.SubmitRating(r.Context(), identity.FromContext(r.Context()), gameID, req.Rating)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}

	writeJSON(w, c.log, status, res)
}
