package utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "MOVIEDEX"
	// DefaultJWTSecret is for local development only; production refuses it.
	DefaultJWTSecret = "dev-secret-change-me"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
	// CookieSecure marks the session cookie Secure; off in development.
	CookieSecure bool
}

type CatalogConfig struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	CacheTTL     time.Duration
	Timeout      time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

type Config struct {
	Env         string
	HTTPAddr    string
	GRPCAddr    string
	SyncAddr    string
	DBPath      string
	CORSOrigins []string
	Auth        AuthConfig
	Catalog     CatalogConfig
	Log         LogConfig
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// NewViper returns a viper instance with defaults and env binding set up.
// A .env file in the working directory is loaded first when present.
func NewViper() *viper.Viper {
	// missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}

	v.SetDefault("env", "development")
	v.SetDefault("http_addr", ":8787")
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("sync_addr", ":7070")
	v.SetDefault("db_path", filepath.Join(home, ".moviedex", "data.db"))
	v.SetDefault("cors_origin", "http://localhost:8081")
	v.SetDefault("jwt_secret", DefaultJWTSecret)
	v.SetDefault("jwt_issuer", "moviedex")
	v.SetDefault("jwt_ttl", 7*24*time.Hour)
	v.SetDefault("tmdb_api_key", "")
	v.SetDefault("tmdb_base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb_image_base_url", "https://image.tmdb.org/t/p")
	v.SetDefault("catalog_cache_ttl", 10*time.Minute)
	v.SetDefault("catalog_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")
	return v
}

func LoadConfig() Config {
	return ConfigFrom(NewViper())
}

func ConfigFrom(v *viper.Viper) Config {
	env := strings.ToLower(strings.TrimSpace(v.GetString("env")))
	return Config{
		Env:         env,
		HTTPAddr:    v.GetString("http_addr"),
		GRPCAddr:    v.GetString("grpc_addr"),
		SyncAddr:    v.GetString("sync_addr"),
		DBPath:      v.GetString("db_path"),
		CORSOrigins: splitOrigins(v.GetString("cors_origin")),
		Auth: AuthConfig{
			JWTSecret:    v.GetString("jwt_secret"),
			JWTIssuer:    v.GetString("jwt_issuer"),
			JWTDuration:  durationOr(v.GetDuration("jwt_ttl"), 7*24*time.Hour),
			CookieSecure: env == "production",
		},
		Catalog: CatalogConfig{
			APIKey:       v.GetString("tmdb_api_key"),
			BaseURL:      strings.TrimRight(v.GetString("tmdb_base_url"), "/"),
			ImageBaseURL: strings.TrimRight(v.GetString("tmdb_image_base_url"), "/"),
			CacheTTL:     v.GetDuration("catalog_cache_ttl"),
			Timeout:      durationOr(v.GetDuration("catalog_timeout"), 10*time.Second),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
			File:   v.GetString("log_file"),
		},
	}
}

func LoadAuthConfig() AuthConfig {
	return LoadConfig().Auth
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// durationOr falls back when the value did not parse (viper yields 0).
func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
