package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	JWTSecret     string
	JWTExpiration time.Duration
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	EmailFrom     string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Endpoint    string
	UploadDir     string
}

func LoadConfig() *Config {
	// Try to load .env file but don't fail if it doesn't exist
	_ = godotenv.Load()

	expiration, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "24h"))
	if err != nil {
		log.Fatal("Invalid JWT_EXPIRATION format. Use format like '24h'")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "5000"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "folderly_db"),
		JWTSecret:     getEnv("JWT_SECRET", "default-secret"),
		JWTExpiration: expiration,
		SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		EmailFrom:     getEnv("EMAIL_FROM", "noreply@folderly.app"),
		S3Region:      getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:      getEnv("AWS_BUCKET_NAME", ""),
		S3AccessKey:   getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
