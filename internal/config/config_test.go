package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "client")
	t.Setenv("TWITCH_CLIENT_SECRET", "secret")
	t.Setenv("APP_SECRET", "0123456789abcdef")

	t.Run("defaults and env overrides", func(t *testing.T) {
		path := writeConfig(t, "env: local\ndatabase:\n  driver: sqlite\n  dbname: games.db\n")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "client", cfg.IGDB.ClientID)
		assert.Equal(t, "https://api.igdb.com/v4", cfg.IGDB.BaseURL)
		assert.Equal(t, 10*time.Second, cfg.IGDB.Timeout)
		assert.Equal(t, 500, cfg.IGDB.LookupLimit)
		assert.Equal(t, 168*time.Hour, cfg.Session.TTL)
		assert.Equal(t, ProviderLocal, cfg.Identity.Provider)
		assert.Equal(t, "games.db", cfg.Database.GetDSN())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("sso needs an address", func(t *testing.T) {
		path := writeConfig(t, "env: local\nidentity:\n  provider: sso\n")

		_, err := Load(path)
		assert.ErrorContains(t, err, "clients.sso.address")
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: Database{Driver: DriverMySQL},
			IGDB:     IGDB{RateLimit: 4},
			Session:  Session{Secret: "0123456789abcdef"},
			Identity: Identity{Provider: ProviderLocal},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, false},
		{"unknown provider", func(c *Config) { c.Identity.Provider = "ldap" }, false},
		{"short secret", func(c *Config) { c.Session.Secret = "short" }, false},
		{"zero rate", func(c *Config) { c.IGDB.RateLimit = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	db := Database{Host: "db", Port: 3306, UsernameDB: "games", Password: "pw", DBName: "catalog"}

	t.Run("mysql", func(t *testing.T) {
		db.Driver = DriverMySQL
		dsn := db.GetDSN()
		assert.Contains(t, dsn, "games:pw@tcp(db:3306)/catalog?")
		assert.Contains(t, dsn, "parseTime=true")
		assert.Contains(t, dsn, "charset=utf8mb4")
	})

	t.Run("postgres", func(t *testing.T) {
		db.Driver = DriverPostgres
		db.Port = 5432
		assert.Equal(t, "host=db user=games password=pw dbname=catalog port=5432 sslmode=disable TimeZone=UTC", db.GetDSN())
	})
}
