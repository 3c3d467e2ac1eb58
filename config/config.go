package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DriverMongo    = "mongo"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ProviderCloudinary = "cloudinary"
	ProviderMinio      = "minio"
	ProviderLocal      = "local"

	// UpdatePolicyReplace destroys the old media only when a replacement is uploaded.
	UpdatePolicyReplace = "replace"
	// UpdatePolicyAlways destroys the old media on every update, replacement or not.
	UpdatePolicyAlways = "always"
)

// Config stores the application configuration.
type Config struct {
	Port string `validate:"required,numeric"`

	DBDriver        string `validate:"oneof=mongo mysql postgres memory"`
	MongoURI        string `validate:"required_if=DBDriver mongo"`
	MongoDatabase   string `validate:"required_if=DBDriver mongo"`
	MongoCollection string `validate:"required_if=DBDriver mongo"`
	DBHost          string `validate:"required_if=DBDriver mysql"`
	DBPort          string
	DBUser          string
	DBPassword      string
	DBName          string `validate:"required_if=DBDriver mysql"`
	PostgresDSN     string `validate:"required_if=DBDriver postgres"`

	MediaProvider    string `validate:"oneof=cloudinary minio local"`
	CloudinaryURL    string `validate:"required_if=MediaProvider cloudinary"`
	CloudinaryFolder string
	MinioEndpoint    string `validate:"required_if=MediaProvider minio"`
	MinioAccessKey   string
	MinioSecretKey   string
	MinioBucket      string `validate:"required_if=MediaProvider minio"`
	MinioRegion      string
	MinioUseSSL      bool
	MinioPublicURL   string // Base URL used to build public object URLs; defaults to the endpoint
	MediaDir         string // local provider only
	MediaBaseURL     string // local provider only

	UploadDir         string // Staging directory for incoming files
	MaxUploadSize     int64  `validate:"gt=0"`
	MediaUpdatePolicy string `validate:"oneof=replace always"`

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	LogLevel      string `validate:"oneof=debug info warn error"`
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
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

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() does not override variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		Port: getEnv("PORT", "9999"),

		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", DriverMongo)),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "musiccollection"),
		MongoCollection: getEnv("MONGO_COLLECTION", "musics"),
		DBHost:          getEnv("DB_HOST", "127.0.0.1"),
		DBPort:          getEnv("DB_PORT", "3306"),
		DBUser:          getEnv("DB_USER", "root"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBName:          getEnv("DB_NAME", "musiccollection"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),

		MediaProvider:    strings.ToLower(getEnv("MEDIA_PROVIDER", ProviderCloudinary)),
		CloudinaryURL:    os.Getenv("CLOUDINARY_URL"),
		CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "music"),
		MinioEndpoint:    os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:   os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:   os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:      getEnv("MINIO_BUCKET", "music"),
		MinioRegion:      getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:      getEnvBool("MINIO_USE_SSL", false),
		MinioPublicURL:   os.Getenv("MINIO_PUBLIC_URL"),
		MediaDir:         getEnv("MEDIA_DIR", filepath.Join("uploads", "media")),
		MediaBaseURL:     os.Getenv("MEDIA_BASE_URL"),

		UploadDir:         getEnv("UPLOAD_DIR", os.TempDir()),
		MaxUploadSize:     int64(getEnvInt("MAX_UPLOAD_SIZE_MB", 50)) << 20,
		MediaUpdatePolicy: strings.ToLower(getEnv("MEDIA_UPDATE_POLICY", UpdatePolicyReplace)),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,

		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:       os.Getenv("LOG_FILE"),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}

// Validate checks that everything the process needs at startup is present.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// LocalMediaBaseURL is the URL prefix of files kept by the local media provider.
func (c *Config) LocalMediaBaseURL() string {
	if c.MediaBaseURL != "" {
		return c.MediaBaseURL
	}
	return "http://localhost:" + c.Port + "/media"
}

// RedisAddr returns host:port of the Redis server.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// MaxUploadSizeMB is the upload limit as shown to clients.
func (c *Config) MaxUploadSizeMB() int64 {
	return c.MaxUploadSize >> 20
}
