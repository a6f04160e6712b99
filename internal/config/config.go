package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rexinehouse/catalog/internal/hash"
	"github.com/rexinehouse/catalog/internal/models"
)

type Config struct {
	AppAddr       string
	DatabaseURL   string
	SQLitePath    string
	UploadDir     string
	JWTSecret     string
	RefreshSecret string
	AdminEmail    string
	AdminPassword string
	KafkaAddress  string
	ESURL         string
	ESUser        string
	ESPassword    string
	LogLevel      string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		AppAddr:       getenv("APP_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    getenv("CATALOG_DB", "catalog.db"),
		UploadDir:     getenv("UPLOAD_DIR", "uploads"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RefreshSecret: os.Getenv("REFRESH_SECRET"),
		AdminEmail:    getenv("ADMIN_EMAIL", "admin@rexinehouse.com"),
		AdminPassword: getenv("ADMIN_PASSWORD", "admin123"),
		KafkaAddress:  os.Getenv("KAFKA_ADDRESS"),
		ESURL:         os.Getenv("ES_URL"),
		ESUser:        os.Getenv("ES_USER"),
		ESPassword:    os.Getenv("ES_PASSWORD"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
	}

	if config.JWTSecret == "" || config.RefreshSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET and REFRESH_SECRET must be set")
	}

	return config, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// InitDB opens the configured database and runs migrations. A postgres
// DSN in DATABASE_URL wins; otherwise the local sqlite file is used.
func InitDB(ctx context.Context, cfg *Config) (*gorm.DB, error) {
	var dial gorm.Dialector
	if cfg.DatabaseURL != "" {
		dial = postgres.Open(cfg.DatabaseURL)
	} else {
		dial = sqlite.Open(cfg.SQLitePath)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB: %w", err)
	}
	configurePool(sqlDB)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Star{}, &models.RefreshToken{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

// SeedAdmin creates the administrator account if it is missing.
// Safe to run on every boot.
func SeedAdmin(db *gorm.DB, cfg *Config) error {
	var existing models.User
	err := db.Where("email = ?", cfg.AdminEmail).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("checking admin account: %w", err)
	}

	passwordHash, err := hash.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}

	admin := models.User{
		Email:        cfg.AdminEmail,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}
	return nil
}
