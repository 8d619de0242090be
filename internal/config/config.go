package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minJWTSecretLength = 32

type Config struct {
	Port           int
	DatabaseURL    string
	DBMaxConns     int32
	JWTSecret      string
	TokenTTL       time.Duration
	InviteTTL      time.Duration
	RequestTimeout time.Duration
	AllowedOrigins []string

	SuperAdminEmail    string
	SuperAdminName     string
	SuperAdminPassword string
}

func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile reads settings from the environment, falling back to the dotenv
// file at envPath. A missing file is not an error.
func LoadFile(envPath string) (Config, error) {
	values := map[string]string{}
	if _, err := os.Stat(envPath); err == nil {
		fileValues, err := godotenv.Read(envPath)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", envPath, err)
		}
		values = fileValues
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("stat %s: %w", envPath, err)
	}
	lookup := func(key string) string {
		return firstNonEmpty(os.Getenv(key), values[key])
	}

	cfg := Config{
		Port:           8080,
		DBMaxConns:     20,
		TokenTTL:       24 * time.Hour,
		InviteTTL:      24 * time.Hour,
		RequestTimeout: 60 * time.Second,
		AllowedOrigins: []string{"*"},
		SuperAdminName: "Super Admin",
	}

	if portRaw := lookup("PORT"); portRaw != "" {
		port, err := strconv.Atoi(portRaw)
		if err != nil || port <= 0 {
			return Config{}, fmt.Errorf("invalid PORT: %q", portRaw)
		}
		cfg.Port = port
	}

	cfg.DatabaseURL = lookup("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required (environment variable or .env)")
	}

	if raw := lookup("DB_MAX_CONNS"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid DB_MAX_CONNS: %q", raw)
		}
		cfg.DBMaxConns = int32(n)
	}

	cfg.JWTSecret = lookup("JWT_SECRET")
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}

	var err error
	if cfg.TokenTTL, err = durationValue(lookup("TOKEN_TTL"), "TOKEN_TTL", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.InviteTTL, err = durationValue(lookup("INVITE_TTL"), "INVITE_TTL", cfg.InviteTTL); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = durationValue(lookup("REQUEST_TIMEOUT"), "REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return Config{}, err
	}

	if raw := lookup("CORS_ALLOWED_ORIGINS"); raw != "" {
		cfg.AllowedOrigins = splitList(raw)
	}

	cfg.SuperAdminEmail = strings.ToLower(lookup("SUPERADMIN_EMAIL"))
	cfg.SuperAdminPassword = lookup("SUPERADMIN_PASSWORD")
	if name := lookup("SUPERADMIN_NAME"); name != "" {
		cfg.SuperAdminName = name
	}
	if (cfg.SuperAdminEmail == "") != (cfg.SuperAdminPassword == "") {
		return Config{}, fmt.Errorf("SUPERADMIN_EMAIL and SUPERADMIN_PASSWORD must be set together")
	}

	return cfg, nil
}

func durationValue(raw, key string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return ""
}
