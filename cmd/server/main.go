package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/rexinehouse/catalog/internal/config"
	"github.com/rexinehouse/catalog/internal/handlers"
	"github.com/rexinehouse/catalog/internal/logging"
	loggingmw "github.com/rexinehouse/catalog/internal/middleware/logging"
	"github.com/rexinehouse/catalog/internal/mykafka"
	"github.com/rexinehouse/catalog/internal/search"
	"github.com/rexinehouse/catalog/internal/service"
	httpserver "github.com/rexinehouse/catalog/internal/transport/http"
	"github.com/rexinehouse/catalog/internal/upload"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LogLevel)
	slog.SetDefault(logger)

	db, err := config.InitDB(context.Background(), configuration)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	if err := config.SeedAdmin(db, configuration); err != nil {
		log.Fatalf("admin seed failed: %v", err)
	}

	uploads, err := upload.NewStore(configuration.UploadDir)
	if err != nil {
		log.Fatalf("upload store init failed: %v", err)
	}

	jwtSecret := []byte(configuration.JWTSecret)
	refreshSecret := []byte(configuration.RefreshSecret)

	prod := mykafka.NewProducer(configuration.KafkaAddress)

	var searchService *search.Service
	if configuration.ESURL != "" {
		esClient, err := search.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init failed: %v", err)
		}
		searchService = search.NewService(esClient, "products")
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.BodyLimit("16M"),
		loggingmw.RequestLogger(logger),
		middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "header:X-CSRF-Token",
			CookieName:     "XSRF-TOKEN",
			CookiePath:     "/",
			CookieHTTPOnly: false,
			CookieSameSite: http.SameSiteLaxMode,
			Skipper: func(c echo.Context) bool {
				p := c.Path()
				return p == "/api/v1/login" || p == "/api/v1/register"
			},
		}),
	)

	tokens := &service.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}

	deps := httpserver.Deps{
		DB:          db,
		AuthHandler: &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: prod},
		Products:    &handlers.ProductHandler{DB: db, Uploads: uploads, Producer: prod, Search: searchService},
		Stars:       &handlers.StarHandler{DB: db, Producer: prod},
		Uploads:     &handlers.UploadHandler{Uploads: uploads},
		Tokens:      tokens,
	}
	if searchService != nil {
		deps.SearchHandler = &handlers.SearchHandler{Service: searchService}
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.AppAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
