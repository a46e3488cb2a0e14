package config

import (
	"log"
	"os"
	"time"
)

type Config struct {
	Port string

	// Oracle backend: "rule" (offline heuristics), "gemini" or "kimi".
	Oracle        string
	OracleTimeout time.Duration

	// Gemini (Vertex AI) settings
	GCPProjectID string
	GCPLocation  string
	GeminiModel  string

	// Moonshot (Kimi) settings
	MoonshotAPIKey  string
	MoonshotModel   string
	MoonshotBaseURL string

	StorageBackend string // "memory", "sqlite" or "firestore"
	SQLitePath     string
	ScenesFile     string // YAML scene catalog; optional
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

// Load reads all env vars and builds the config
func Load() *Config {
	cfg := &Config{
		Port: getEnv("COAX_PORT", "8080"),

		Oracle:        getEnv("COAX_ORACLE", "rule"),
		OracleTimeout: getDurationEnv("COAX_ORACLE_TIMEOUT", 25*time.Second),

		GCPProjectID: getEnv("COAX_GCP_PROJECT", ""),
		GCPLocation:  getEnv("COAX_GCP_LOCATION", "us-central1"),
		GeminiModel:  getEnv("COAX_GEMINI_MODEL", "gemini-2.5-flash"),

		MoonshotAPIKey:  getEnv("MOONSHOT_API_KEY", ""),
		MoonshotModel:   getEnv("MOONSHOT_MODEL", "moonshot-v1-8k"),
		MoonshotBaseURL: getEnv("MOONSHOT_BASE_URL", ""),

		StorageBackend: getEnv("COAX_STORAGE_BACKEND", "memory"),
		SQLitePath:     getEnv("COAX_SQLITE_PATH", "coax.db"),
		ScenesFile:     getEnv("COAX_SCENES_FILE", ""),
	}

	// Minimal validation up front, so a misconfigured backend fails at boot
	// instead of on the first turn.
	switch cfg.Oracle {
	case "gemini":
		if cfg.GCPProjectID == "" {
			log.Fatal("COAX_GCP_PROJECT must be set for the gemini oracle")
		}
	case "kimi":
		if cfg.MoonshotAPIKey == "" {
			log.Fatal("MOONSHOT_API_KEY must be set for the kimi oracle")
		}
	}
	if cfg.StorageBackend == "firestore" && cfg.GCPProjectID == "" {
		log.Fatal("COAX_GCP_PROJECT must be set for the firestore backend")
	}

	return cfg
}
