package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"games_catalog/internal/clients/igdb"
	"games_catalog/internal/identity"
	"games_catalog/internal/services"
	"games_catalog/internal/web"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidID    = errors.New("invalid id")
	ErrParsingJSON  = errors.New("invalid JSON body")
	ErrParsingForm  = errors.New("invalid form")
	ErrNoGames      = errors.New("No games found matching your filters")
	ErrUpstream     = errors.New("game catalog is unavailable, try again later")
	ErrInternal     = errors.New("internal server error")
	ErrLoginNeeded  = errors.New("You must be logged in to do that.")
	ErrRenderFailed = errors.New("failed to render page")
)

const pageSize = igdb.DefaultPageSize

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error to an HTTP status and a message that is
// safe to show to the client.
func statusFor(err error) (int, string) {
	var verr *services.ValidationError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, services.ErrInvalidRating):
		return http.StatusBadRequest, services.ErrInvalidRating.Error()
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, ErrBadRequest.Error()
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, services.ErrForbidden.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, services.ErrInvalidCredentials.Error()
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, services.ErrUnauthorized.Error()
	case errors.Is(err, services.ErrNotFound), errors.Is(err, igdb.ErrNotFound):
		return http.StatusNotFound, ErrNotFound.Error()
	case errors.Is(err, igdb.ErrUpstreamAuth), errors.Is(err, igdb.ErrUpstreamRequest):
		return http.StatusBadGateway, ErrUpstream.Error()
	default:
		return http.StatusInternalServerError, ErrInternal.Error()
	}
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encoding response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	status, msg := statusFor(err)
	logFailure(log, op, status, err)
	writeJSON(w, log, status, errorResponse{Error: msg})
}

func logFailure(log *slog.Logger, op string, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("operation", op), slog.Int("status", status), slog.String("error", err.Error()))
		return
	}
	log.Info("request rejected", slog.String("operation", op), slog.Int("status", status), slog.String("error", err.Error()))
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// optionalID reads a positive integer query parameter. Blank means unset.
func optionalID(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrBadRequest
	}
	return &id, nil
}

func pageNumber(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// parseIDs accepts repeated values and comma separated lists.
func parseIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, &services.ValidationError{Field: "game_ids", Message: "Game ids must be numbers"}
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type Renderer interface {
	Render(w io.Writer, name string, page web.Page) error
}

// pages is shared by the HTML controllers.
type pages struct {
	renderer Renderer
	log      *slog.Logger
}

func (p pages) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	page := web.Page{
		Title:   title,
		Viewer:  identity.FromContext(r.Context()),
		Flashes: web.PopFlashes(w, r),
		Data:    data,
	}
	p.renderPage(w, status, name, page)
}

// renderNotice renders name with an extra danger notice, for forms that are
// shown again instead of redirecting.
func (p pages) renderNotice(w http.ResponseWriter, r *http.Request, status int, name, title, notice string, data any) {
	page := web.Page{
		Title:   title,
		Viewer:  identity.FromContext(r.Context()),
		Flashes: append(web.PopFlashes(w, r), web.Flash{Category: web.FlashDanger, Message: notice}),
		Data:    data,
	}
	p.renderPage(w, status, name, page)
}

func (p pages) renderPage(w http.ResponseWriter, status int, name string, page web.Page) {
	var buf strings.Builder
	if err := p.renderer.Render(&buf, name, page); err != nil {
		p.log.Error(ErrRenderFailed.Error(), slog.String("page", name), slog.String("error", err.Error()))
		http.Error(w, ErrInternal.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, buf.String())
}

type errorView struct {
	Status  int
	Message string
}

func (p pages) renderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logFailure(p.log, op, status, err)
	p.render(w, r, status, "error", http.StatusText(status), errorView{Status: status, Message: msg})
}

// fail reports err as a flash notice and redirects. Anonymous callers are
// sent to the login page instead.
func (p pages) fail(w http.ResponseWriter, r *http.Request, op string, err error, back string) {
	status, msg := statusFor(err)
	logFailure(p.log, op, status, err)

	if status == http.StatusUnauthorized && !errors.Is(err, services.ErrInvalidCredentials) {
		web.AddFlash(w, r, web.FlashDanger, ErrLoginNeeded.Error())
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	web.AddFlash(w, r, web.FlashDanger, msg)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (p pages) done(w http.ResponseWriter, r *http.Request, message, to string) {
	web.AddFlash(w, r, web.FlashSuccess, message)
	http.Redirect(w, r, to, http.StatusSeeOther)
}
