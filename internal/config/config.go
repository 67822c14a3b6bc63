package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ProviderLocal = "local"
	ProviderSSO   = "sso"
)

type Config struct {
	Env         string `yaml:"env" env:"ENV" env-required:"true"`
	UploadsPath string `yaml:"uploads_path" env:"UPLOADS_PATH" env-default:"./uploads"`
	Database    `yaml:"database"`
	HTTPServer  `yaml:"http_server"`
	IGDB        IGDB          `yaml:"igdb"`
	Session     Session       `yaml:"session"`
	Identity    Identity      `yaml:"identity"`
	Clients     ClientsConfig `yaml:"clients"`
}

type Database struct {
	Driver     string `yaml:"driver" env:"DB_DRIVER" env-default:"mysql"`
	Host       string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port       int    `yaml:"port" env:"PORT" env-default:"3306"`
	UsernameDB string `yaml:"username-db" env:"USERNAMEDB"`
	Password   string `yaml:"password" env:"PASSWORD"`
	DBName     string `yaml:"dbname" env:"DBNAME" env-default:"games"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	Cors        []string      `yaml:"cors" env-default:"http://localhost:3000"`
}

type IGDB struct {
	ClientID     string        `yaml:"client_id" env:"TWITCH_CLIENT_ID" env-required:"true"`
	ClientSecret string        `yaml:"client_secret" env:"TWITCH_CLIENT_SECRET" env-required:"true"`
	BaseURL      string        `yaml:"base_url" env:"IGDB_BASE_URL" env-default:"https://api.igdb.com/v4"`
	TokenURL     string        `yaml:"token_url" env:"TWITCH_TOKEN_URL" env-default:"https://id.twitch.tv/oauth2/token"`
	Timeout      time.Duration `yaml:"timeout" env-default:"10s"`
	RateLimit    float64       `yaml:"rate_limit" env-default:"4"`
	LookupLimit  int           `yaml:"lookup_limit" env-default:"500"`
}

type Session struct {
	Secret     string        `yaml:"secret" env:"APP_SECRET" env-required:"true"`
	TTL        time.Duration `yaml:"ttl" env-default:"168h"`
	CookieName string        `yaml:"cookie_name" env-default:"session"`
	Secure     bool          `yaml:"secure" env-default:"false"`
}

type Identity struct {
	Provider string `yaml:"provider" env:"IDENTITY_PROVIDER" env-default:"local"`
}

type Client struct {
	Address      string        `yaml:"address"`
	Timeout      time.Duration `yaml:"timeout" env-default:"5s"`
	RetriesCount int           `yaml:"retries_count" env-default:"3"`
	Insecure     bool          `yaml:"insecure" env-default:"true"`
	AppID        uint32        `yaml:"app_id" env-default:"1"`
}

type ClientsConfig struct {
	SSO Client `yaml:"sso"`
}

func MustLoad() *Config {
	configPath := flag.String("config", "", "path to config yaml file")
	flag.Parse()
	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_PATH")
	}
	if *configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	cfg, err := Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	return cfg
}

// Load reads the yaml file at path, then applies environment overrides.
// A .env file in the working directory, if present, is loaded first.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	_ = godotenv.Load()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: cannot read config %s: %w", op, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (cfg *Config) Validate() error {
	switch cfg.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	switch cfg.Identity.Provider {
	case ProviderLocal:
	case ProviderSSO:
		if cfg.Clients.SSO.Address == "" {
			return fmt.Errorf("identity provider %q requires clients.sso.address", ProviderSSO)
		}
	default:
		return fmt.Errorf("unsupported identity provider %q", cfg.Identity.Provider)
	}

	if len(cfg.Session.Secret) < 16 {
		return fmt.Errorf("session secret must be at least 16 characters")
	}

	if cfg.IGDB.RateLimit <= 0 {
		return fmt.Errorf("igdb rate_limit must be positive")
	}

	return nil
}

// GetDSN builds the driver specific connection string. For sqlite DBName is
// the database file path.
func (cfg *Database) GetDSN() string {
	switch cfg.Driver {
	case DriverPostgres:
		return fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Host,
			cfg.UsernameDB,
			cfg.Password,
			cfg.DBName,
			cfg.Port,
		)
	case DriverSQLite:
		return cfg.DBName
	default:
		mc := mysql.NewConfig()
		mc.User = cfg.UsernameDB
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = cfg.Host + ":" + strconv.Itoa(cfg.Port)
		mc.DBName = cfg.DBName
		mc.ParseTime = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN()
	}
}
