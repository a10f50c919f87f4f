package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost               string
	DBUser               string
	DBPassword           string
	DBName               string
	DBPort               string
	DBDriver             string
	AppPort              string
	AppEnv               string
	LogLevel             string
	JWTSecret            string
	PaymentCallbackToken string
	RabbitMQURL          string
	CORSOrigin           string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:               os.Getenv("DB_HOST"),
		DBUser:               os.Getenv("DB_USER"),
		DBPassword:           os.Getenv("DB_PASSWORD"),
		DBName:               os.Getenv("DB_NAME"),
		DBPort:               os.Getenv("DB_PORT"),
		DBDriver:             getEnv("DB_DRIVER", "postgres"),
		AppPort:              getEnv("APP_PORT", "8080"),
		AppEnv:               os.Getenv("APP_ENV"),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		PaymentCallbackToken: os.Getenv("PAYMENT_CALLBACK_TOKEN"),
		RabbitMQURL:          os.Getenv("RABBITMQ_URL"),
		CORSOrigin:           getEnv("CORS_ORIGIN", "http://localhost:3000"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
