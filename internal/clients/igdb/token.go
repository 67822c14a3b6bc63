package igdb

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type tokenKey struct {
	tokenURL     string
	clientID     string
	clientSecret string
}

var (
	tokenCachesMu sync.Mutex
	tokenCaches   = map[tokenKey]*tokenCache{}
)

// tokenCache holds the app access token for one credential pair. It is
// shared by every Client built with the same credentials.
type tokenCache struct {
	cfg clientcredentials.Config

	mu    sync.Mutex
	token *oauth2.Token
}

func sharedTokenCache(tokenURL, clientID, clientSecret string) *tokenCache {
	key := tokenKey{tokenURL: tokenURL, clientID: clientID, clientSecret: clientSecret}

	tokenCachesMu.Lock()
	defer tokenCachesMu.Unlock()

	if c, ok := tokenCaches[key]; ok {
		return c
	}

	c := &tokenCache{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}
	tokenCaches[key] = c

	return c
}

// Token returns the cached access token, exchanging the client credentials
// for a new one when none is held or the held one has expired.
func (c *tokenCache) Token(ctx context.Context, hc *http.Client) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid() {
		return c.token.AccessToken, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)

	token, err := c.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstreamAuth, err)
	}

	c.token = token

	return token.AccessToken, nil
}

// Invalidate drops the cached token if it is still the one that was rejected.
func (c *tokenCache) Invalidate(rejected string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && c.token.AccessToken == rejected {
		c.token = nil
	}
}
