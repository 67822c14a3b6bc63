package models

// Game is a catalog record as served by IGDB. It is never persisted; every
// read goes to the remote catalog and AvgRating is merged in afterwards.
type Game struct {
	ID                    int64    `json:"id"`
	Name                  string   `json:"name"`
	Summary               string   `json:"summary"`
	CoverURL              string   `json:"cover_url"`
	Genres                []string `json:"genres"`
	Platforms             []string `json:"platforms"`
	Screenshots           []string `json:"screenshots,omitempty"`
	AggregatedRating      *float64 `json:"aggregated_rating"`
	AggregatedRatingCount int      `json:"aggregated_rating_count"`
	Hypes                 int      `json:"hypes"`
	AvgRating             *float64 `json:"avg_rating"`
}

// Reference is an id/name pair from a catalog lookup table.
type Reference struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SearchResult is one row of the catalog free-text search. Rows may point at
// games, characters, companies, collections, platforms or themes.
type SearchResult struct {
	ID              int64  `json:"id"`
	Name            string `json:"name,omitempty"`
	AlternativeName string `json:"alternative_name,omitempty"`
	Description     string `json:"description,omitempty"`
	Game            int64  `json:"game,omitempty"`
	Character       int64  `json:"character,omitempty"`
	Company         int64  `json:"company,omitempty"`
	Collection      int64  `json:"collection,omitempty"`
	Platform        int64  `json:"platform,omitempty"`
	Theme           int64  `json:"theme,omitempty"`
	PublishedAt     int64  `json:"published_at,omitempty"`
	Checksum        string `json:"checksum,omitempty"`
}

// GameFilter narrows a catalog listing. Nil filters are not applied.
type GameFilter struct {
	Limit      int
	Offset     int
	PlatformID *int64
	GenreID    *int64
}

func (f GameFilter) HasFilters() bool {
	return f.PlatformID != nil || f.GenreID != nil
}

// GameDetail is everything the game page shows.
type GameDetail struct {
	Game       Game          `json:"game"`
	UserRating *Rating       `json:"user_rating,omitempty"`
	Reviews    []ReviewEntry `json:"reviews"`
}
