package igdb

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"games_catalog/internal/models"
)

const (
	coverSize      = "t_cover_big"
	screenshotSize = "t_screenshot_med"
)

// flexID accepts either a bare id or an expanded object carrying one.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}

	if b[0] == '{' {
		var obj struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			*f = 0
			return nil
		}
		*f = flexID(obj.ID)
		return nil
	}

	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		*f = 0
		return nil
	}
	*f = flexID(id)

	return nil
}

type remoteImage struct {
	URL *string `json:"url"`
}

// An unexpanded image reference arrives as a bare id and carries no url.
func (r *remoteImage) UnmarshalJSON(b []byte) error {
	*r = remoteImage{}

	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}

	type plain remoteImage
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return nil
	}
	*r = remoteImage(p)

	return nil
}

type remoteNamed struct {
	ID   flexID  `json:"id"`
	Name *string `json:"name"`
}

func (r *remoteNamed) UnmarshalJSON(b []byte) error {
	*r = remoteNamed{}

	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return r.ID.UnmarshalJSON(b)
	}

	type plain remoteNamed
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return nil
	}
	*r = remoteNamed(p)

	return nil
}

// remoteGame mirrors the IGDB game record. Everything except the id may be
// missing from a response.
type remoteGame struct {
	ID                    int64         `json:"id"`
	Name                  *string       `json:"name"`
	Summary               *string       `json:"summary"`
	Cover                 *remoteImage  `json:"cover"`
	Genres                []remoteNamed `json:"genres"`
	Platforms             []remoteNamed `json:"platforms"`
	Screenshots           []remoteImage `json:"screenshots"`
	AggregatedRating      *float64      `json:"aggregated_rating"`
	AggregatedRatingCount *int          `json:"aggregated_rating_count"`
	Hypes                 *int          `json:"hypes"`
}

type remoteSearchResult struct {
	ID              int64   `json:"id"`
	Name            *string `json:"name"`
	AlternativeName *string `json:"alternative_name"`
	Description     *string `json:"description"`
	Game            flexID  `json:"game"`
	Character       flexID  `json:"character"`
	Company         flexID  `json:"company"`
	Collection      flexID  `json:"collection"`
	Platform        flexID  `json:"platform"`
	Theme           flexID  `json:"theme"`
	PublishedAt     *int64  `json:"published_at"`
	Checksum        *string `json:"checksum"`
}

func normalizeGame(g remoteGame) models.Game {
	game := models.Game{
		ID:        g.ID,
		Name:      deref(g.Name),
		Summary:   plainText(deref(g.Summary)),
		Genres:    names(g.Genres),
		Platforms: names(g.Platforms),
	}

	if g.Cover != nil {
		game.CoverURL = imageURL(deref(g.Cover.URL), coverSize)
	}

	for _, s := range g.Screenshots {
		if u := imageURL(deref(s.URL), screenshotSize); u != "" {
			game.Screenshots = append(game.Screenshots, u)
		}
	}

	if g.AggregatedRating != nil {
		r := *g.AggregatedRating
		game.AggregatedRating = &r
	}
	if g.AggregatedRatingCount != nil {
		game.AggregatedRatingCount = *g.AggregatedRatingCount
	}
	if g.Hypes != nil {
		game.Hypes = *g.Hypes
	}

	return game
}

func normalizeSearchResult(r remoteSearchResult) models.SearchResult {
	res := models.SearchResult{
		ID:              r.ID,
		Name:            deref(r.Name),
		AlternativeName: deref(r.AlternativeName),
		Description:     plainText(deref(r.Description)),
		Game:            int64(r.Game),
		Character:       int64(r.Character),
		Company:         int64(r.Company),
		Collection:      int64(r.Collection),
		Platform:        int64(r.Platform),
		Theme:           int64(r.Theme),
		Checksum:        deref(r.Checksum),
	}
	if r.PublishedAt != nil {
		res.PublishedAt = *r.PublishedAt
	}
	return res
}

func normalizeReference(r remoteNamed) models.Reference {
	return models.Reference{ID: int64(r.ID), Name: deref(r.Name)}
}

func names(refs []remoteNamed) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if n := deref(r.Name); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// imageURL turns "//images.igdb.com/.../t_thumb/x.jpg" into an absolute https
// url of the requested size.
func imageURL(raw, size string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	return strings.Replace(raw, "/t_thumb/", "/"+size+"/", 1)
}

// plainText drops any markup and decodes entities.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	return strings.TrimSpace(doc.Text())
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
