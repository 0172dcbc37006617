package configuration

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Server      ServerConfig
	Upload      UploadConfig
	NATSURL     string
	KeycloakUrl string
	CLAMAVURL   string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
}

type ServerConfig struct {
	Port string
}

type UploadConfig struct {
	// RepositoryBackend selects the metadata store: "csv" or "postgres".
	RepositoryBackend string
	CSVPath           string
	MaxRetries        int
}

func Load() *Config {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "uploaduser"),
			Password: getEnv("DB_PASSWORD", "uploadpassword"),
			DBName:   getEnv("DB_NAME", "uploads"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
			BucketName: getEnv("MINIO_BUCKET", "uploads"),
			UseSSL:     getEnv("MINIO_USE_SSL", "false") == "true",
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Upload: UploadConfig{
			RepositoryBackend: getEnv("REPOSITORY_BACKEND", "csv"),
			CSVPath:           getEnv("REPOSITORY_CSV_PATH", "./data/uploads.csv"),
			MaxRetries:        getEnvInt("UPLOAD_MAX_RETRIES", 3),
		},
		NATSURL:     getEnv("NATS_URL", "nats://localhost:4222"),
		CLAMAVURL:   getEnv("CLAMAV_URL", "tcp://localhost:3310"),
		KeycloakUrl: getEnv("KEYCLOAK_URL", ""),
	}
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
