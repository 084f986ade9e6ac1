package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

type Config struct {
	Addr        string
	StoreDriver string
	DataFile    string
	DatabaseURL string
	AdminToken  string
	AssetDir    string
	WebAppURL   string
	BotToken    string
	SeedCatalog bool
	BackupSpec  string
	BackupDir   string
}

type CLIConfig struct {
	APIBaseURL string
	AdminToken string
}

func LoadFromEnv() (Config, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("PETLING_ADDR", ":8080")
	}

	cfg := Config{
		Addr:        addr,
		StoreDriver: strings.ToLower(envDefault("PETLING_STORE", StoreFile)),
		DataFile:    envDefault("PETLING_DATA_FILE", "data.json"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AdminToken:  strings.TrimSpace(os.Getenv("PETLING_ADMIN_TOKEN")),
		AssetDir:    envDefault("PETLING_ASSET_DIR", "static"),
		WebAppURL:   strings.TrimRight(envDefault("PETLING_WEBAPP_URL", "http://localhost:8080"), "/"),
		BotToken:    strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		SeedCatalog: envBoolDefault("PETLING_SEED_CATALOG", true),
		BackupSpec:  envDefault("PETLING_BACKUP_SPEC", "@every 1h"),
		BackupDir:   envDefault("PETLING_BACKUP_DIR", "backups"),
	}

	switch cfg.StoreDriver {
	case StoreFile, StorePostgres:
	default:
		return cfg, fmt.Errorf("PETLING_STORE must be %q or %q", StoreFile, StorePostgres)
	}
	if cfg.StoreDriver == StorePostgres && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required when PETLING_STORE=postgres")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("PETCTL_API_BASE_URL", "http://localhost:8080"), "/"),
		AdminToken: strings.TrimSpace(os.Getenv("PETCTL_ADMIN_TOKEN")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
