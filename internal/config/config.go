package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds process configuration. Values come from the
// environment with an optional .env file loaded first; defaults match
// the production deployment.
type Settings struct {
	Env      string
	HTTPAddr string

	PostgresDSN string

	AuthSecret      string
	TokenIssuer     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	APIKeyExpiry time.Duration

	RateLimitPerSecond int
	RateLimitBurst     int
	MaxBodyBytes       int64

	CORSOrigins []string
}

const envPrefix = "INVOICEHUB_"

// Load reads settings from the environment. A .env file in the working
// directory is applied first when present; real environment variables
// win over file values.
func Load() (Settings, error) {
	_ = godotenv.Load()

	s := Settings{
		Env:                getString("ENV", "production"),
		HTTPAddr:           getString("HTTP_ADDR", ":8004"),
		PostgresDSN:        getString("PG_DSN", ""),
		AuthSecret:         getString("AUTH_SECRET", ""),
		TokenIssuer:        getString("TOKEN_ISSUER", "invoicehub"),
		AccessTokenTTL:     getDuration("ACCESS_TOKEN_TTL", 60*time.Minute),
		RefreshTokenTTL:    getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:         getInt("BCRYPT_COST", 12),
		APIKeyExpiry:       getDuration("API_KEY_EXPIRY", 365*24*time.Hour),
		RateLimitPerSecond: getInt("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 40),
		MaxBodyBytes:       int64(getInt("MAX_BODY_BYTES", 10<<20)),
		CORSOrigins:        getList("CORS_ORIGINS", nil),
	}

	if strings.TrimSpace(s.AuthSecret) == "" {
		return Settings{}, fmt.Errorf("config: %sAUTH_SECRET is required", envPrefix)
	}
	if len(s.AuthSecret) < 32 {
		return Settings{}, fmt.Errorf("config: %sAUTH_SECRET must be at least 32 characters", envPrefix)
	}
	if s.BcryptCost < 4 || s.BcryptCost > 31 {
		return Settings{}, fmt.Errorf("config: bcrypt cost %d out of range", s.BcryptCost)
	}
	return s, nil
}

func getString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
