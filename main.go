package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"agenda-view/api"
	"agenda-view/storage"
	"agenda-view/view"
)

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.New()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		logger.SetLevel(log.DebugLevel)
	}

	client := storage.New(cfg.TasksAPIBase, cfg.TasksAPIToken, logger, storage.WithTimeout(cfg.TasksAPITimeout))

	var rc *redis.Client
	if cfg.RedisConnectionString != "" {
		rc = redis.NewClient(redisOptions(cfg.RedisConnectionString))
	} else {
		logger.Info("REDIS_CONNECTION_STRING not set; task list cache disabled")
	}
	newRepo := func(userID string) view.Repository {
		if rc == nil {
			return client
		}
		return storage.NewCache(client, rc, cfg.TasksCacheTTL, userID, logger)
	}

	var auth *api.Auth
	if cfg.AuthTestMode {
		auth = api.NewTestAuth([]byte(cfg.TestJWTSecret))
	} else {
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Auth0Domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, cfg.Auth0Audience, "https://"+cfg.Auth0Domain+"/")
	}

	sessions := api.NewSessions(newRepo, cfg.SessionIdleTTL, logger)
	go sessions.Run(context.Background(), time.Minute)

	e := echo.New()
	e.JSONSerializer = api.SonicSerializer{}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding},
	}))
	e.Use(api.GzipRequestMiddleware(0))
	api.Register(e, sessions, auth, logger)

	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
