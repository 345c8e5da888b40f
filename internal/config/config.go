package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/closetline/marketplace/internal/models"
	"github.com/closetline/marketplace/pkg/db"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	KAFKA_ADDRESS string
	ORDER_TOPIC   string

	JWT_SECRET string

	SMTP_ADDR     string
	SMTP_FROM     string
	SMTP_USER     string
	SMTP_PASSWORD string

	// Re-enables the PENDING -> SHIPPED shortcut that skips confirmation.
	// Off unless explicitly requested.
	ALLOW_DIRECT_DISPATCH bool

	JOB_INTERVAL time.Duration
	LOG_LEVEL    string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),

		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),
		ORDER_TOPIC:   getDefault("ORDER_TOPIC", "order_events"),

		JWT_SECRET: os.Getenv("JWT_SECRET"),

		SMTP_ADDR:     os.Getenv("SMTP_ADDR"),
		SMTP_FROM:     getDefault("SMTP_FROM", "no-reply@closetline.com"),
		SMTP_USER:     os.Getenv("SMTP_USER"),
		SMTP_PASSWORD: os.Getenv("SMTP_PASSWORD"),

		ALLOW_DIRECT_DISPATCH: getBool("SHIPPING_ALLOW_DIRECT_DISPATCH"),

		JOB_INTERVAL: getDuration("JOB_INTERVAL", 5*time.Minute),
		LOG_LEVEL:    getDefault("LOG_LEVEL", "info"),
	}

	return config, nil
}

func getDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB_USER, c.DB_PASSWORD, c.DB_HOST, c.DB_PORT, c.DB_NAME,
	)
}

func InitDB() (*gorm.DB, error) {
	configuration, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	database, err := db.Open(context.Background(), configuration.DatabaseDSN())
	if err != nil {
		return nil, err
	}
	if err := Migrate(database); err != nil {
		return nil, err
	}
	return database, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductView{},
		&models.Order{},
		&models.OrderItem{},
		&models.Shipment{},
		&models.Conversation{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
