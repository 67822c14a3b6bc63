package controllers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"games_catalog/internal/identity"
	"games_catalog/internal/models"
	"games_catalog/internal/services"
	"games_catalog/internal/web"
)

type ReviewServicer interface {
	AddReview(ctx context.Context, id identity.Identity, gameID int64, body string) (*models.Review, error)
	DeleteReview(ctx context.Context, id identity.Identity, reviewID int64) (int64, error)
}

type ProfileServicer interface {
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
}

// PageController renders the catalog pages: home, game detail, profiles,
// and the rating and review forms posted from them.
type PageController struct {
	pages
	games    GameServicer
	ratings  RatingServicer
	reviews  ReviewServicer
	profiles ProfileServicer
}

func NewPageController(
	renderer Renderer,
	games GameServicer,
	ratings RatingServicer,
	reviews ReviewServicer,
	profiles ProfileServicer,
	log *slog.Logger,
) *PageController {
	return &PageController{
		pages:    pages{renderer: renderer, log: log},
		games:    games,
		ratings:  ratings,
		reviews:  reviews,
		profiles: profiles,
	}
}

type homeView struct {
	Games      []models.Game
	Page       int
	HasNext    bool
	PlatformID string
	GenreID    string
}

// PageURL keeps the active filters when moving between pages.
func (v homeView) PageURL(page int) string {
	q := url.Values{}
	if v.PlatformID != "" {
		q.Set("platform", v.PlatformID)
	}
	if v.GenreID != "" {
		q.Set("genre", v.GenreID)
	}
	q.Set("page", strconv.Itoa(page))
	return "/?" + q.Encode()
}

type gameView struct {
	Detail        *models.GameDetail
	RatingMin     int
	RatingMax     int
	CurrentRating int
}

type profileView struct {
	Profile *models.Profile
	IsSelf  bool
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func (c *PageController) Home(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.pages.Home"

	filter, err := gameFilter(r)
	if err != nil {
		c.renderError(w, r, op, &services.ValidationError{Field: "filter", Message: "Platform and genre must be numeric ids"})
		return
	}

	games, err := c.games.ListGames(r.Context(), filter)
	if err != nil {
		c.renderError(w, r, op, err)
		return
	}

	c.render(w, r, http.StatusOK, "index", "Games", homeView{
		Games:      games,
		Page:       pageNumber(r),
		HasNext:    len(games) == pageSize,
		PlatformID: formatID(filter.PlatformID),
		GenreID:    formatID(filter.GenreID),
	})
}

func (c *PageController) Game(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.pages.Game"

	gameID, err := pathID(r, "id")
	if err != nil {
		c.renderError(w, r, op, services.ErrNotFound)
		return
	}

	detail, err := c.games.GetGame(r.Context(), gameID, identity.FromContext(r.Context()))
	if err != nil {
		c.renderError(w, r, op, err)
		return
	}

	current := (models.RatingMin + models.RatingMax) / 2
	if detail.UserRating != nil {
		current = detail.UserRating.Score
	}

	c.render(w, r, http.StatusOK, "game_detail", detail.Game.Name, gameView{
		Detail:        detail,
		RatingMin:     models.RatingMin,
		RatingMax:     models.RatingMax,
		CurrentRating: current,
	})
}

func (c *PageController) Rate(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.pages.Rate"

	gameID, err := pathID(r, "id")
	if err != nil {
		c.fail(w, r, op, services.ErrNotFound, "/")
		return
	}

	id := identity.FromContext(r.Context())
	if id.Anonymous() {
		web.AddFlash(w, r, web.FlashDanger, "You must be logged in to rate a game.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	back := fmt.Sprintf("/games/%d", gameID)

	score, err := strconv.Atoi(r.PostFormValue("rating"))
	if err != nil {
		c.fail(w, r, op, services.ErrInvalidRating, back)
		return
	}

	res, err := c.ratings.SubmitRating(r.Context(), id, gameID, score)
	if err != nil {
		c.fail(w, r, op, err, back)
		return
	}

	if res.Created {
		c.done(w, r, "Rating submitted!", back)
		return
	}
	c.done(w, r, "Rating updated!", back)
}

func (c *PageController) AddReview(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.pages.AddReview"

	gameID, err := pathID(r, "id")
	if err != nil {
		c.fail(w, r, op, services.ErrNotFound, "/")
		return
	}

	back := fmt.Sprintf("/games/%d", gameID)

	if _, err := c.reviews.AddReview(r.Context(), identity.FromContext(r.Context()), gameID, r.PostFormValue("body")); err != nil {
		c.fail(w, r, op, err, back)
		return
	}

	c.done(w, r, "Review posted!", back)
}

func (c *PageController) DeleteReview(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.pages.DeleteReview"

	reviewID, err := pathID(r, "id")
	if err != nil {
		c.fail(w, r, op, services.ErrNotFound, "/")
		return
	}

	gameID, err := c.reviews.DeleteReview(r.Context(), identity.FromContext(r.Context()), reviewID)
	if err != nil {
		c.fail(w, r, op, err, "/")
		return
	}

	c.done(w, r, "Review deleted.", fmt.Sprintf("/games/%d", gameID))
}

func (c *PageController) Profile(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.pages.Profile"

	userID, err := pathID(r, "id")
	if err != nil {
		c.renderError(w, r, op, services.ErrNotFound)
		return
	}

	profile, err := c.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		c.renderError(w, r, op, err)
		return
	}

	c.render(w, r, http.StatusOK, "users/profile", profile.User.Username, profileView{
		Profile: profile,
		IsSelf:  identity.FromContext(r.Context()).UserID == profile.User.ID,
	})
}

// NotFound renders the error page for unknown routes.
func (c *PageController) NotFound(w http.ResponseWriter, r *http.Request) {
	c.renderError(w, r, "controllers.pages.NotFound", services.ErrNotFound)
}
