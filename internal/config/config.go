// Package config centralizes how the service reads environment variables and
// exposes them as strongly typed values.
package config

import (
	"crypto/rand"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration shared by the API server, the
// worker, and the development CLI.
type Config struct {
	Address     string
	MaxFileSize int64
	LogLevel    string

	DatabaseURL string

	// RedisAddr empty means jobs are dispatched by an in-process pool
	// instead of the asynq queue.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3UseSSL     bool
	S3Region     string
	UploadBucket string
	ResultBucket string

	SigningSecret []byte
	SignedURLTTL  time.Duration

	WorkerConcurrency int
	JobTimeout        time.Duration
	RetentionWindow   time.Duration
	TempDir           string

	// External engine binaries. Paths are overridable so containers can pin
	// exact tool builds.
	VipsPath         string
	FFmpegPath       string
	FFprobePath      string
	SofficePath      string
	EbookConvertPath string
	SevenZipPath     string
}

const (
	defaultAddress     = ":8080"
	defaultMaxFileSize = 200 << 20 // 200 MiB
	defaultSignedTTL   = 5 * time.Minute
	defaultWorkers     = 2
	defaultJobTimeout  = 10 * time.Minute
	defaultRetention   = time.Hour
)

// Load reads configuration from environment variables falling back to
// defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Address:     readEnv("FORMATFORGE_ADDRESS", defaultAddress),
		MaxFileSize: parseInt64("FORMATFORGE_MAX_FILE_BYTES", defaultMaxFileSize),
		LogLevel:    readEnv("FORMATFORGE_LOG_LEVEL", "info"),

		DatabaseURL: readEnv("FORMATFORGE_DATABASE_URL", ""),

		RedisAddr:     readEnv("FORMATFORGE_REDIS_ADDR", ""),
		RedisPassword: readEnv("FORMATFORGE_REDIS_PASSWORD", ""),
		RedisDB:       parseInt("FORMATFORGE_REDIS_DB", 0),

		S3Endpoint:   readEnv("FORMATFORGE_S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:  readEnv("FORMATFORGE_S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:  readEnv("FORMATFORGE_S3_SECRET_KEY", "minioadmin"),
		S3UseSSL:     parseBool("FORMATFORGE_S3_USE_SSL", false),
		S3Region:     readEnv("FORMATFORGE_S3_REGION", "us-east-1"),
		UploadBucket: readEnv("FORMATFORGE_UPLOAD_BUCKET", "formatforge-uploads"),
		ResultBucket: readEnv("FORMATFORGE_RESULT_BUCKET", "formatforge-results"),

		SigningSecret: parseSecret("FORMATFORGE_SIGNING_SECRET"),
		SignedURLTTL:  parseDuration("FORMATFORGE_SIGNED_TTL", defaultSignedTTL),

		WorkerConcurrency: parseInt("FORMATFORGE_WORKERS", defaultWorkers),
		JobTimeout:        parseDuration("FORMATFORGE_JOB_TIMEOUT", defaultJobTimeout),
		RetentionWindow:   parseDuration("FORMATFORGE_RETENTION", defaultRetention),
		TempDir:           readEnv("FORMATFORGE_TEMP_DIR", os.TempDir()),

		VipsPath:         readEnv("FORMATFORGE_VIPS_PATH", "vips"),
		FFmpegPath:       readEnv("FORMATFORGE_FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      readEnv("FORMATFORGE_FFPROBE_PATH", "ffprobe"),
		SofficePath:      readEnv("FORMATFORGE_SOFFICE_PATH", "soffice"),
		EbookConvertPath: readEnv("FORMATFORGE_EBOOK_CONVERT_PATH", "ebook-convert"),
		SevenZipPath:     readEnv("FORMATFORGE_7Z_PATH", "7z"),
	}
	if cfg.SigningSecret == nil {
		cfg.SigningSecret = randomSecret()
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = defaultWorkers
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = defaultRetention
	}
	return cfg, nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte("formatforge-fallback-secret")
	}
	return buf
}
