package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	WatchDir     string
	AuditLogPath string
	LogMode      string
	Mode         string // watch | sweep

	MoveMaxAttempts int
	MoveBackoffBase time.Duration
	SettleDelay     time.Duration

	ConvertTimeout   time.Duration
	VectorizeTimeout time.Duration
	TopicsTimeout    time.Duration
	ArticlesTimeout  time.Duration

	ArticlesPerRun  int
	TopicBatchSize  int
	TopicMaxBatches int
	TopicModel      string

	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int

	DatabaseURL string
	SslCertPath string

	EmbedProvider string
	AIAPIKey      string
	EmbedModel    string
	GenModel      string

	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	DeepSeekModel   string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string

	SupabaseURL     string
	SupabaseKey     string
	TopicUserID     string
	ArticleAuthorID string
	ArticleCategory string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	S3Endpoint   string

	StatusAddr  string
	CORSOrigins []string

	OCRLang         string
	OCRMaxPages     int
	WhisperModel    string
	WhisperLanguage string

	// Warnings lists malformed values that fell back to their defaults.
	// Logging is not set up yet when config loads, so the caller reports them.
	Warnings []string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	r := &envReader{}
	cfg := &Config{
		WatchDir:     getEnv("WATCH_DIR", "watched_inbox"),
		AuditLogPath: getEnv("AUDIT_LOG_PATH", "pipeline_audit.log"),
		LogMode:      getEnv("LOG_MODE", "prod"),
		Mode:         strings.ToLower(getEnv("PIPELINE_MODE", "watch")),

		MoveMaxAttempts: r.getEnvInt("MOVE_MAX_ATTEMPTS", 3),
		MoveBackoffBase: r.getEnvDuration("MOVE_BACKOFF_BASE", time.Second),
		SettleDelay:     r.getEnvDuration("SETTLE_DELAY", 1500*time.Millisecond),

		ConvertTimeout:   r.getEnvDuration("CONVERT_TIMEOUT", 300*time.Second),
		VectorizeTimeout: r.getEnvDuration("VECTORIZE_TIMEOUT", 300*time.Second),
		TopicsTimeout:    r.getEnvDuration("TOPICS_TIMEOUT", 300*time.Second),
		ArticlesTimeout:  r.getEnvDuration("ARTICLES_TIMEOUT", 1800*time.Second),

		ArticlesPerRun:  r.getEnvInt("ARTICLES_PER_RUN", 100),
		TopicBatchSize:  r.getEnvInt("TOPIC_BATCH_SIZE", 8),
		TopicMaxBatches: r.getEnvInt("TOPIC_MAX_BATCHES", 5),
		TopicModel:      getEnv("TOPIC_MODEL", "deepseek-chat"),

		ChunkSize:      r.getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   r.getEnvInt("CHUNK_OVERLAP", 200),
		EmbedBatchSize: r.getEnvInt("EMBED_BATCH_SIZE", 16),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		EmbedProvider: strings.ToLower(getEnv("EMBED_PROVIDER", "gemini")),
		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-004"),
		GenModel:      getEnv("GEN_MODEL", "gemini-1.5-flash"),

		DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekModel:   getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),

		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		TopicUserID:     getEnv("TOPIC_USER_ID", ""),
		ArticleAuthorID: getEnv("ARTICLE_AUTHOR_ID", ""),
		ArticleCategory: getEnv("ARTICLE_CATEGORY", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),

		StatusAddr:  getEnv("STATUS_ADDR", ""),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),

		OCRLang:         getEnv("OCR_LANG", "fra"),
		OCRMaxPages:     r.getEnvInt("OCR_MAX_PAGES", 0),
		WhisperModel:    getEnv("WHISPER_MODEL", "base"),
		WhisperLanguage: getEnv("WHISPER_LANGUAGE", "fr"),
	}
	cfg.Warnings = r.warnings

	return cfg
}

// Validate checks the startup preconditions. The watched directory must exist.
func (c *Config) Validate() error {
	var errs []error

	if c.WatchDir == "" {
		errs = append(errs, errors.New("WATCH_DIR not set"))
	} else if fi, err := os.Stat(c.WatchDir); err != nil {
		errs = append(errs, fmt.Errorf("watch dir %q not accessible: %w", c.WatchDir, err))
	} else if !fi.IsDir() {
		errs = append(errs, fmt.Errorf("watch dir %q is not a directory", c.WatchDir))
	}

	if c.Mode != "watch" && c.Mode != "sweep" {
		errs = append(errs, fmt.Errorf("PIPELINE_MODE=%q, want watch or sweep", c.Mode))
	}
	if c.EmbedProvider != "gemini" && c.EmbedProvider != "openai" {
		errs = append(errs, fmt.Errorf("EMBED_PROVIDER=%q, want gemini or openai", c.EmbedProvider))
	}
	if c.MoveMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("MOVE_MAX_ATTEMPTS must be >= 1, got %d", c.MoveMaxAttempts))
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("invalid chunking: size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}

	return errors.Join(errs...)
}

// ArchiveEnabled reports whether completed records are uploaded to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.BucketName != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// envReader parses typed variables and collects the ones it had to ignore.
type envReader struct {
	warnings []string
}

func (r *envReader) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func (r *envReader) getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.warn("%s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

// getEnvDuration accepts Go durations ("1500ms") and bare integers as seconds.
func (r *envReader) getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.warn("%s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
