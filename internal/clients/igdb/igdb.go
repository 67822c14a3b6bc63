package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"games_catalog/internal/config"
	"games_catalog/internal/models"
)

var (
	ErrUpstreamAuth    = errors.New("catalog authentication failed")
	ErrUpstreamRequest = errors.New("catalog request failed")
	ErrNotFound        = errors.New("game not found in catalog")
)

const (
	DefaultPageSize = 20
	maxPageSize     = 500
	maxBodySize     = 8 << 20
)

var (
	gameFields = []string{
		"name",
		"summary",
		"cover.url",
		"genres.name",
		"platforms.name",
		"aggregated_rating",
		"aggregated_rating_count",
		"hypes",
	}
	searchFields = []string{
		"alternative_name",
		"character",
		"checksum",
		"collection",
		"company",
		"description",
		"game",
		"name",
		"platform",
		"published_at",
		"theme",
	}
	platformCategories = []int64{1, 2, 3, 4, 5, 6}
)

type Client struct {
	log         *slog.Logger
	httpClient  *http.Client
	baseURL     string
	clientID    string
	tokens      *tokenCache
	limiter     *rate.Limiter
	timeout     time.Duration
	lookupLimit int
}

func New(log *slog.Logger, cfg config.IGDB) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	lookupLimit := cfg.LookupLimit
	if lookupLimit <= 0 || lookupLimit > maxPageSize {
		lookupLimit = maxPageSize
	}

	burst := int(math.Ceil(cfg.RateLimit))
	if burst < 1 {
		burst = 1
	}

	return &Client{
		log:         log,
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		clientID:    cfg.ClientID,
		tokens:      sharedTokenCache(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		timeout:     timeout,
		lookupLimit: lookupLimit,
	}
}

// ListGames returns one page of games sorted by hype. An empty page is not
// an error.
func (c *Client) ListGames(ctx context.Context, filter models.GameFilter) ([]models.Game, error) {
	const op = "igdb.ListGames"

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	q := newQuery(gameFields...)
	if filter.PlatformID != nil {
		q.Where(in("platforms", *filter.PlatformID))
	}
	if filter.GenreID != nil {
		q.Where(in("genres", *filter.GenreID))
	}
	q.Sort("hypes desc").Limit(limit).Offset(offset)

	var remote []remoteGame
	if err := c.post(ctx, "games", q, &remote); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	games := make([]models.Game, 0, len(remote))
	for _, g := range remote {
		games = append(games, normalizeGame(g))
	}

	return games, nil
}

func (c *Client) GetGame(ctx context.Context, id int64) (*models.Game, error) {
	const op = "igdb.GetGame"

	fields := append(append([]string{}, gameFields...), "screenshots.url")
	q := newQuery(fields...).Where(in("id", id))

	var remote []remoteGame
	if err := c.post(ctx, "games", q, &remote); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(remote) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	game := normalizeGame(remote[0])

	return &game, nil
}

// GetGames looks up several games by id with one request per maxPageSize
// ids. Ids the catalog does not know are left out of the result.
func (c *Client) GetGames(ctx context.Context, ids []int64) ([]models.Game, error) {
	const op = "igdb.GetGames"

	games := make([]models.Game, 0, len(ids))
	for start := 0; start < len(ids); start += maxPageSize {
		end := min(start+maxPageSize, len(ids))
		batch := ids[start:end]

		q := newQuery(gameFields...).Where(in("id", batch...)).Limit(len(batch))

		var remote []remoteGame
		if err := c.post(ctx, "games", q, &remote); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		for _, g := range remote {
			games = append(games, normalizeGame(g))
		}
	}

	return games, nil
}

func (c *Client) SearchGames(ctx context.Context, term string) ([]models.SearchResult, error) {
	const op = "igdb.SearchGames"

	q := newQuery(searchFields...).Search(term)

	var remote []remoteSearchResult
	if err := c.post(ctx, "search", q, &remote); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	results := make([]models.SearchResult, 0, len(remote))
	for _, r := range remote {
		results = append(results, normalizeSearchResult(r))
	}

	return results, nil
}

func (c *Client) ListPlatforms(ctx context.Context) ([]models.Reference, error) {
	const op = "igdb.ListPlatforms"

	q := newQuery("name").Where(in("category", platformCategories...)).Limit(c.lookupLimit)

	refs, err := c.references(ctx, "platforms", q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return refs, nil
}

func (c *Client) ListGenres(ctx context.Context) ([]models.Reference, error) {
	const op = "igdb.ListGenres"

	refs, err := c.references(ctx, "genres", newQuery("name").Limit(c.lookupLimit))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return refs, nil
}

// ListGameNames returns the most hyped games as id/name pairs.
func (c *Client) ListGameNames(ctx context.Context) ([]models.Reference, error) {
	const op = "igdb.ListGameNames"

	q := newQuery("name").Sort("hypes desc").Limit(c.lookupLimit)

	refs, err := c.references(ctx, "games", q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return refs, nil
}

func (c *Client) references(ctx context.Context, endpoint string, q *query) ([]models.Reference, error) {
	var remote []remoteNamed
	if err := c.post(ctx, endpoint, q, &remote); err != nil {
		return nil, err
	}

	refs := make([]models.Reference, 0, len(remote))
	for _, r := range remote {
		refs = append(refs, normalizeReference(r))
	}

	return refs, nil
}

// post sends an Apicalypse query and decodes the JSON answer into out. A 401
// drops the cached token and the request is retried once with a fresh one.
func (c *Client) post(ctx context.Context, endpoint string, q *query, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := q.String()

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
		}

		token, err := c.tokens.Token(ctx, c.httpClient)
		if err != nil {
			return err
		}

		status, payload, err := c.send(ctx, endpoint, token, body)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
		}

		if status == http.StatusUnauthorized && attempt == 0 {
			c.log.Warn("catalog rejected access token, refreshing", slog.String("endpoint", endpoint))
			c.tokens.Invalidate(token)
			continue
		}

		if status < 200 || status >= 300 {
			return fmt.Errorf("%w: %s answered %d", ErrUpstreamRequest, endpoint, status)
		}

		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%w: malformed %s response: %w", ErrUpstreamRequest, endpoint, err)
		}

		return nil
	}
}

func (c *Client) send(ctx context.Context, endpoint, token, body string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, strings.NewReader(body))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, err
	}

	c.log.Debug("catalog request",
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)),
	)

	return resp.StatusCode, payload, nil
}
