package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthorityChallonge = "challonge"
	AuthorityLocal     = "local"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Bcrypt-хэши паролей площадки и организатора.
	JudgePasscodeHash     string
	OrganizerPasscodeHash string
	SessionTTL            time.Duration

	AuthorityBackend string
	ChallongeAPIKey  string
	ChallongeBaseURL string

	RulesFile      string
	NATSURL        string
	AllowedOrigins []string

	R2AccountID       string
	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// ArchiveEnabled reports whether standings archiving to R2 is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.R2BucketName != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		(c.R2AccountID != "" || c.R2Endpoint != "")
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv собирает конфигурацию из произвольного источника переменных.
func FromEnv(getenv func(string) string) (*Config, error) {
	dbURL := getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080" // Порт по умолчанию
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	judgeHash := getenv("JUDGE_PASSCODE_HASH")
	if judgeHash == "" {
		judgeHash = getenv("VENUE_PASSCODE_HASH")
	}
	organizerHash := getenv("ORGANIZER_PASSCODE_HASH")
	if judgeHash == "" && organizerHash == "" {
		return nil, fmt.Errorf("at least one of JUDGE_PASSCODE_HASH or ORGANIZER_PASSCODE_HASH must be set")
	}

	sessionTTL := 12 * time.Hour
	if s := getenv("SESSION_TTL"); s != "" {
		sessionTTL, err = time.ParseDuration(s)
		if err != nil || sessionTTL <= 0 {
			return nil, fmt.Errorf("invalid SESSION_TTL %q", s)
		}
	}

	backend := strings.ToLower(getenv("AUTHORITY_BACKEND"))
	if backend == "" {
		backend = AuthorityChallonge
	}
	apiKey := getenv("CHALLONGE_API_KEY")
	switch backend {
	case AuthorityChallonge:
		if apiKey == "" {
			return nil, fmt.Errorf("CHALLONGE_API_KEY must be set when AUTHORITY_BACKEND is %s", AuthorityChallonge)
		}
	case AuthorityLocal:
	default:
		return nil, fmt.Errorf("unknown AUTHORITY_BACKEND %q", backend)
	}

	cfg := &Config{
		DatabaseURL:           dbURL,
		JWTSecretKey:          jwtKey,
		ServerPort:            port,
		JudgePasscodeHash:     judgeHash,
		OrganizerPasscodeHash: organizerHash,
		SessionTTL:            sessionTTL,
		AuthorityBackend:      backend,
		ChallongeAPIKey:       apiKey,
		ChallongeBaseURL:      getenv("CHALLONGE_BASE_URL"),
		RulesFile:             getenv("RULES_FILE"),
		NATSURL:               getenv("NATS_URL"),
		AllowedOrigins:        splitList(getenv("ALLOWED_ORIGINS")),
		R2AccountID:           getenv("R2_ACCOUNT_ID"),
		R2Endpoint:            getenv("R2_ENDPOINT"),
		R2AccessKeyID:         getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:     getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:          getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:       getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
