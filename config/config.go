package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config stores the client configuration.
// Values come from the environment (optionally via a .env file), then an
// optional TOML overlay named by STEMDECK_CONFIG.
type Config struct {
	APIBaseURL    string `toml:"api_base_url"`   // Base origin of the splitting backend
	TranscribeURL string `toml:"transcribe_url"` // Websocket endpoint of the transcription service
	AuthToken     string `toml:"auth_token"`     // Bearer token; empty means anonymous session
	BotSiteKey    string `toml:"bot_site_key"`   // Optional bot-verification site key
	BotToken      string `toml:"bot_token"`      // Pre-solved verification token sent with uploads
	APIRateLimit  int    `toml:"api_rate_limit"` // Requests per second towards the backend, 0 = unlimited
	MaxUploadMB   int    `toml:"max_upload_mb"`

	// 本地持久化存储
	StoreDriver string `toml:"store_driver"` // sqlite, redis, mysql, memory
	StorePath   string `toml:"store_path"`   // SQLite file for the sqlite driver
	StoreKey    string `toml:"store_key"`

	// Redis配置
	RedisHost     string `toml:"redis_host"`
	RedisPort     string `toml:"redis_port"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// MySQL配置 (mysql driver)
	DBHost     string `toml:"db_host"`
	DBPort     string `toml:"db_port"`
	DBUser     string `toml:"db_user"`
	DBPassword string `toml:"db_password"`
	DBName     string `toml:"db_name"`

	// MinIO直连签名，留空则通过后端 /presigned-url 获取
	MinioEndpoint  string `toml:"minio_endpoint"`
	MinioAccessKey string `toml:"minio_access_key"`
	MinioSecretKey string `toml:"minio_secret_key"`
	MinioBucket    string `toml:"minio_bucket"`
	MinioRegion    string `toml:"minio_region"`
	MinioUseSSL    bool   `toml:"minio_use_ssl"`

	// 音频
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFplayPath  string `toml:"ffplay_path"`
	FFprobePath string `toml:"ffprobe_path"`
	MicFormat   string `toml:"mic_format"` // ffmpeg input format, e.g. pulse, alsa, avfoundation
	MicDevice   string `toml:"mic_device"`

	// 语音
	VoiceSampleRate       int           `toml:"voice_sample_rate"`
	VoiceChunk            time.Duration `toml:"-"`
	VoiceInactivity       time.Duration `toml:"-"`
	VoiceTranscriptHold   time.Duration `toml:"-"`
	VoiceChunkMS          int           `toml:"voice_chunk_ms"`
	VoiceInactivitySecs   int           `toml:"voice_inactivity_seconds"`
	VoiceTranscriptHoldSS int           `toml:"voice_transcript_hold_seconds"`

	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "stemdeck.db"
	}
	return filepath.Join(dir, "stemdeck", "library.db")
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	cfg := &Config{
		APIBaseURL:    getEnv("API_BASE_URL", "http://localhost:8000"),
		TranscribeURL: getEnv("TRANSCRIBE_URL", "ws://localhost:8000/transcribe"),
		AuthToken:     os.Getenv("AUTH_TOKEN"),
		BotSiteKey:    os.Getenv("BOT_SITE_KEY"),
		BotToken:      os.Getenv("BOT_TOKEN"),
		APIRateLimit:  getEnvInt("API_RATE_LIMIT", 5),
		MaxUploadMB:   getEnvInt("MAX_UPLOAD_MB", 100),

		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		StorePath:   getEnv("STORE_PATH", defaultStorePath()),
		StoreKey:    getEnv("STORE_KEY", "stemdeck:tracks"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:     getEnv("DB_NAME", "stemdeck"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "stems"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFplayPath:  getEnv("FFPLAY_PATH", "ffplay"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
		MicFormat:   getEnv("MIC_FORMAT", "pulse"),
		MicDevice:   getEnv("MIC_DEVICE", "default"),

		VoiceSampleRate:       getEnvInt("VOICE_SAMPLE_RATE", 16000),
		VoiceChunkMS:          getEnvInt("VOICE_CHUNK_MS", 250),
		VoiceInactivitySecs:   getEnvInt("VOICE_INACTIVITY_SECONDS", 10),
		VoiceTranscriptHoldSS: getEnvInt("VOICE_TRANSCRIPT_HOLD_SECONDS", 3),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}

	if path := os.Getenv("STEMDECK_CONFIG"); path != "" {
		if err := cfg.Overlay(path); err != nil {
			log.Printf("Ignoring config overlay %s: %v", path, err)
		}
	}

	cfg.derive()
	return cfg
}

// Overlay decodes a TOML file over the current values. Keys missing from
// the file keep their current value.
func (c *Config) Overlay(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	c.derive()
	return nil
}

func (c *Config) derive() {
	c.VoiceChunk = time.Duration(c.VoiceChunkMS) * time.Millisecond
	c.VoiceInactivity = time.Duration(c.VoiceInactivitySecs) * time.Second
	c.VoiceTranscriptHold = time.Duration(c.VoiceTranscriptHoldSS) * time.Second
}

// MaxUploadBytes returns the upload size limit, 0 when unlimited.
func (c *Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadMB) << 20
}

// BotVerificationEnabled reports whether uploads carry a verification token.
func (c *Config) BotVerificationEnabled() bool {
	return c.BotSiteKey != ""
}
